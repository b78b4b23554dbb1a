package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/beekhof/calendar-assistant/internal/audit"
	"github.com/beekhof/calendar-assistant/internal/calendar"
)

var calendarsCmd = &cobra.Command{
	Use:   "calendars",
	Short: "List the calendars the stored token can access",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}

		var (
			list    []calendar.CalendarSummary
			listErr error
		)
		if err := a.session.Use(func(tok *oauth2.Token) *oauth2.Token {
			var next *oauth2.Token
			list, next, listErr = a.gateway.Calendars(ctx, tok)
			return next
		}); err != nil {
			return fmt.Errorf("failed to use stored token: %w", err)
		}
		if calendar.IsKind(listErr, calendar.KindAuthRequired) {
			return fmt.Errorf("%w; run \"calassist login --force\"", listErr)
		}
		if listErr != nil {
			return listErr
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tTIMEZONE\tACCESS")
		for _, c := range list {
			name := c.Summary
			if c.Primary {
				name += " (primary)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, name, c.TimeZone, c.AccessRole)
		}
		return tw.Flush()
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently handled prompts from the audit log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.AuditDBPath == "" {
			return fmt.Errorf("audit_db_path must be provided via --audit-db flag, AUDIT_DB_PATH environment variable, or config file")
		}

		store, err := audit.Open(cmd.Context(), cfg.AuditDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tACTION\tOUTCOME\tTIMEZONE\tDETAIL\tPROMPT")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Action, e.Outcome, e.Timezone, e.Detail, e.Prompt)
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
}
