// Package assistant handles a prompt end to end: interpret it, run the
// resulting calendar operation and report the outcome.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/beekhof/calendar-assistant/internal/action"
	"github.com/beekhof/calendar-assistant/internal/audit"
	"github.com/beekhof/calendar-assistant/internal/calendar"
	"github.com/beekhof/calendar-assistant/internal/timewindow"
)

// MaxPromptLength is the longest prompt accepted, in characters.
const MaxPromptLength = 1000

// Interpreter turns a prompt into an action.
type Interpreter interface {
	Interpret(ctx context.Context, prompt, userTimezone string) (action.Action, error)
}

// Gateway performs calendar operations with a per-user token.
type Gateway interface {
	Create(ctx context.Context, tok *oauth2.Token, a action.CreateAction) (*calendar.Event, *oauth2.Token, error)
	Find(ctx context.Context, tok *oauth2.Token, q action.EventQuery, userTimezone string) ([]calendar.Event, *oauth2.Token, error)
	Delete(ctx context.Context, tok *oauth2.Token, eventID, calendarID string) (*oauth2.Token, error)
}

// Recorder stores audit entries.
type Recorder interface {
	Record(ctx context.Context, e *audit.Entry) error
}

// Service wires an Interpreter to a Gateway.
type Service struct {
	interpreter  Interpreter
	gateway      Gateway
	recorder     Recorder
	storePrompts bool
	exposeRaw    bool
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder records every handled prompt. The prompt text itself is
// only stored when storePrompts is set.
func WithRecorder(r Recorder, storePrompts bool) Option {
	return func(s *Service) {
		s.recorder = r
		s.storePrompts = storePrompts
	}
}

// WithRawReplies includes the completion reply in interpretation errors.
func WithRawReplies(expose bool) Option {
	return func(s *Service) { s.exposeRaw = expose }
}

// NewService creates a Service.
func NewService(interpreter Interpreter, gateway Gateway, opts ...Option) *Service {
	s := &Service{
		interpreter: interpreter,
		gateway:     gateway,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandlePrompt interprets prompt and carries out the action. It always
// returns an outcome; failures are outcomes of kind OutcomeError. The
// returned token is tok after any refresh and must be persisted by the
// caller.
func (s *Service) HandlePrompt(ctx context.Context, prompt, userTimezone string, tok *oauth2.Token) (*Outcome, *oauth2.Token) {
	out := &Outcome{RequestID: uuid.NewString()}
	defer s.record(ctx, out, prompt, userTimezone)

	prompt = strings.TrimSpace(prompt)
	if err := validate(prompt, userTimezone); err != nil {
		out.Kind = OutcomeError
		out.Error = &OutcomeError{Kind: ErrorInvalidInput, Detail: err.Error()}
		return out, tok
	}

	act, err := s.interpreter.Interpret(ctx, prompt, userTimezone)
	if err != nil {
		slog.Warn("failed to interpret prompt", "request_id", out.RequestID, "error", err)
		s.fail(out, err)
		return out, tok
	}
	out.Action = act.Kind()

	switch a := act.(type) {
	case action.CreateAction:
		tok = s.create(ctx, out, tok, a)
	case action.ViewAction:
		tok = s.view(ctx, out, tok, a.Query, userTimezone)
	case action.DeleteAction:
		tok = s.deleteByQuery(ctx, out, tok, a.Query, userTimezone)
	default:
		s.fail(out, fmt.Errorf("unhandled action %T", act))
	}
	return out, tok
}

func validate(prompt, userTimezone string) error {
	if prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if n := utf8.RuneCountInString(prompt); n > MaxPromptLength {
		return fmt.Errorf("prompt too long: maximum %d characters, got %d", MaxPromptLength, n)
	}
	if _, err := timewindow.LoadLocation(userTimezone); err != nil {
		return err
	}
	return nil
}

func (s *Service) create(ctx context.Context, out *Outcome, tok *oauth2.Token, a action.CreateAction) *oauth2.Token {
	ev, tok, err := s.gateway.Create(ctx, tok, a)
	if err != nil {
		s.fail(out, err)
		return tok
	}

	out.Kind = OutcomeCreated
	out.Event = ev
	out.Message = a.Completion
	if out.Message == "" {
		out.Message = fmt.Sprintf("Created %q.", ev.Summary)
	}
	return tok
}

func (s *Service) view(ctx context.Context, out *Outcome, tok *oauth2.Token, q action.EventQuery, userTimezone string) *oauth2.Token {
	events, tok, err := s.gateway.Find(ctx, tok, q, userTimezone)
	if err != nil {
		s.fail(out, err)
		return tok
	}

	out.Kind = OutcomeFound
	out.Events = events
	switch len(events) {
	case 0:
		out.Message = "No events found."
	case 1:
		out.Message = "Found 1 event."
	default:
		out.Message = fmt.Sprintf("Found %d events.", len(events))
	}
	return tok
}

// deleteByQuery deletes the earliest event matching q. No match is a
// not-found outcome and nothing is deleted.
func (s *Service) deleteByQuery(ctx context.Context, out *Outcome, tok *oauth2.Token, q action.EventQuery, userTimezone string) *oauth2.Token {
	events, tok, err := s.gateway.Find(ctx, tok, q, userTimezone)
	if err != nil {
		s.fail(out, err)
		return tok
	}
	if len(events) == 0 {
		out.Kind = OutcomeNotFound
		out.Message = "No matching event to delete."
		return tok
	}

	target := events[0]
	out.Matches = len(events)
	tok, err = s.gateway.Delete(ctx, tok, target.ID, target.CalendarID)
	if calendar.IsKind(err, calendar.KindNotFound) {
		out.Kind = OutcomeNotFound
		out.Event = &target
		out.Message = fmt.Sprintf("%q was already deleted.", target.Summary)
		return tok
	}
	if err != nil {
		s.fail(out, err)
		return tok
	}

	out.Kind = OutcomeDeleted
	out.Event = &target
	out.Message = fmt.Sprintf("Deleted %q.", target.Summary)
	if len(events) > 1 {
		slog.Warn("delete query matched several events", "request_id", out.RequestID, "matches", len(events), "deleted", target.ID)
		out.Message = fmt.Sprintf("Deleted %q, the earliest of %d matching events.", target.Summary, len(events))
	}
	return tok
}

func (s *Service) fail(out *Outcome, err error) {
	out.Kind = OutcomeError
	out.Error = outcomeError(err, s.exposeRaw)
}

func (s *Service) record(ctx context.Context, out *Outcome, prompt, userTimezone string) {
	if s.recorder == nil {
		return
	}

	e := &audit.Entry{
		ID:        out.RequestID,
		CreatedAt: s.now(),
		Timezone:  userTimezone,
		Action:    string(out.Action),
		Outcome:   string(out.Kind),
	}
	if out.Error != nil {
		e.Detail = string(out.Error.Kind) + ": " + out.Error.Detail
	} else if out.Event != nil {
		e.Detail = out.Event.ID
	}
	if s.storePrompts {
		e.Prompt = prompt
	}

	// Record even when the request context is already done.
	if err := s.recorder.Record(context.WithoutCancel(ctx), e); err != nil {
		slog.Error("failed to record audit entry", "request_id", out.RequestID, "error", err)
	}
}
