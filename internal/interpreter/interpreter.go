// Package interpreter turns a free-text prompt into a structured action by
// asking a completion service to classify and resolve it.
package interpreter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/beekhof/calendar-assistant/internal/action"
	"github.com/beekhof/calendar-assistant/internal/timewindow"
)

// Completer sends a single user message to a completion service and
// returns the text of the reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Interpreter builds the instruction block, calls the completer once and
// validates the reply.
type Interpreter struct {
	completer Completer
	now       func() time.Time
}

// New creates an Interpreter using the wall clock.
func New(completer Completer) *Interpreter {
	return &Interpreter{completer: completer, now: time.Now}
}

// WithClock replaces the clock used to compute "today".
func (i *Interpreter) WithClock(now func() time.Time) *Interpreter {
	i.now = now
	return i
}

// Interpret classifies prompt and resolves its dates against userTimezone.
// Every failure after the timezone check is an *action.InterpretationError.
// A failed or malformed completion is never retried.
func (i *Interpreter) Interpret(ctx context.Context, prompt, userTimezone string) (action.Action, error) {
	loc, err := timewindow.LoadLocation(userTimezone)
	if err != nil {
		return nil, err
	}

	pc := promptContext{
		prompt:   prompt,
		location: loc,
		now:      i.now().In(loc),
	}
	slog.Debug("interpreting prompt", "timezone", loc.String(), "offset", pc.offset(), "prompt", prompt)

	reply, err := i.completer.Complete(ctx, pc.instruction())
	if err != nil {
		return nil, action.CompletionFailed(err)
	}
	if strings.TrimSpace(reply) == "" {
		return nil, action.EmptyResponse()
	}

	text := StripCodeFence(reply)
	slog.Debug("completion reply", "text", text)

	act, err := action.Decode(text, loc)
	if err != nil {
		return nil, err
	}

	refOffset := pc.now.Format("-07:00")
	switch a := act.(type) {
	case action.CreateAction:
		a.Start = alignOffset(a.Start, loc, refOffset)
		if a.End != nil {
			end := alignOffset(*a.End, loc, refOffset)
			a.End = &end
		}
		normalized, err := a.Normalize()
		if err != nil {
			return nil, err
		}
		return normalized, nil
	case action.ViewAction:
		a.Query = alignQuery(a.Query, loc, refOffset)
		return a, nil
	case action.DeleteAction:
		a.Query = alignQuery(a.Query, loc, refOffset)
		return a, nil
	}
	return act, nil
}

func alignQuery(q action.EventQuery, loc *time.Location, refOffset string) action.EventQuery {
	if q.Start != nil {
		start := alignOffset(*q.Start, loc, refOffset)
		q.Start = &start
	}
	if q.End != nil {
		end := alignOffset(*q.End, loc, refOffset)
		q.End = &end
	}
	return q
}

// alignOffset corrects a timestamp written with today's offset for a date
// on the other side of a DST change. The wall-clock time is kept and the
// offset becomes the one loc observes on that date. Timestamps in any other
// offset, and wall-clock times that do not exist in loc, are left alone.
//
// The rule applies to query start and end literals as well as to created
// events. It cannot tell a model mistake from a deliberate offset: a query
// for 09:00-08:00 on a date when loc observes -07:00 is read as 09:00-07:00,
// one hour earlier than the literal as written.
func alignOffset(t action.OffsetTime, loc *time.Location, refOffset string) action.OffsetTime {
	if t.Format("-07:00") != refOffset {
		return t
	}

	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	local := time.Date(y, mo, d, h, mi, s, t.Nanosecond(), loc)
	if lh, lmi, ls := local.Clock(); lh != h || lmi != mi || ls != s {
		return t
	}
	if local.Format("-07:00") == refOffset {
		return t
	}

	aligned := action.NewOffsetTime(local)
	slog.Debug("aligned timestamp offset", "from", t.Literal, "to", aligned.Literal)
	return aligned
}
