package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/beekhof/calendar-assistant/internal/assistant"
	"github.com/beekhof/calendar-assistant/internal/calendar"
	"github.com/beekhof/calendar-assistant/internal/ics"
)

var (
	promptTimezone string
	promptICS      bool
)

var promptCmd = &cobra.Command{
	Use:   "prompt TEXT...",
	Short: "Create, find or delete events from a plain-language prompt",
	Example: `  calassist prompt dentist next Monday at 2pm
  calassist prompt --tz Europe/London "what's on tomorrow?"
  calassist prompt --ics "my meetings this Friday" > friday.ics`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tz := promptTimezone
		if tz == "" {
			tz = cfg.DefaultTimezone
		}
		if tz == "" {
			return fmt.Errorf("a timezone must be provided via --tz or --default-timezone flag, DEFAULT_TIMEZONE environment variable, or config file")
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		var out *assistant.Outcome
		err = a.session.Use(func(tok *oauth2.Token) *oauth2.Token {
			var next *oauth2.Token
			out, next = a.service.HandlePrompt(ctx, strings.Join(args, " "), tz, tok)
			return next
		})
		if err != nil {
			if out == nil {
				return fmt.Errorf("failed to load token: %w", err)
			}
			slog.Warn("failed to save refreshed token", "error", err)
		}

		w := cmd.OutOrStdout()
		if promptICS && out.Error == nil {
			if err := ics.Encode(w, outcomeEvents(out), time.Now()); err == nil {
				return nil
			}
		}
		printOutcome(w, out)

		if out.Error != nil && out.Error.Kind == assistant.ErrorAuthRequired {
			return fmt.Errorf("%w; run \"calassist login --force\"", out.Err())
		}
		return out.Err()
	},
}

func init() {
	promptCmd.Flags().StringVar(&promptTimezone, "tz", "", "IANA timezone of the prompt (overrides default_timezone)")
	promptCmd.Flags().BoolVar(&promptICS, "ics", false, "Write found or created events as iCalendar to stdout")
}

func outcomeEvents(out *assistant.Outcome) []calendar.Event {
	if out.Event != nil {
		return []calendar.Event{*out.Event}
	}
	return out.Events
}

func printOutcome(w io.Writer, out *assistant.Outcome) {
	if out.Error != nil {
		fmt.Fprintf(w, "Error (%s): %s\n", out.Error.Kind, out.Error.Detail)
		if out.Error.RawText != "" {
			fmt.Fprintf(w, "Completion reply:\n%s\n", out.Error.RawText)
		}
		return
	}

	fmt.Fprintln(w, out.Message)
	for _, ev := range outcomeEvents(out) {
		fmt.Fprintf(w, "  %s  %s", ev.Start, ev.Summary)
		if ev.Link != "" {
			fmt.Fprintf(w, "  %s", ev.Link)
		}
		fmt.Fprintln(w)
	}
}
