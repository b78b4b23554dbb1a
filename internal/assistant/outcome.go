package assistant

import (
	"errors"
	"fmt"

	"github.com/beekhof/calendar-assistant/internal/action"
	"github.com/beekhof/calendar-assistant/internal/calendar"
)

// OutcomeKind is the result category of a handled prompt.
type OutcomeKind string

const (
	OutcomeCreated  OutcomeKind = "created"
	OutcomeFound    OutcomeKind = "found"
	OutcomeDeleted  OutcomeKind = "deleted"
	OutcomeNotFound OutcomeKind = "not_found"
	OutcomeError    OutcomeKind = "error"
)

// ErrorKind tells the caller how to present a failed prompt.
type ErrorKind string

const (
	ErrorInvalidInput   ErrorKind = "invalid_input"
	ErrorInterpretation ErrorKind = "interpretation"
	ErrorAuthRequired   ErrorKind = "auth_required"
	ErrorTimeout        ErrorKind = "timeout"
	ErrorProvider       ErrorKind = "provider"
	ErrorInternal       ErrorKind = "internal"
)

// Outcome is the result of HandlePrompt.
type Outcome struct {
	RequestID string           `json:"requestId"`
	Kind      OutcomeKind      `json:"kind"`
	Action    action.Kind      `json:"action,omitempty"`
	Message   string           `json:"message,omitempty"`
	Event     *calendar.Event  `json:"event,omitempty"`
	Events    []calendar.Event `json:"events,omitempty"`
	// Matches is the number of events a delete query matched.
	Matches int           `json:"matches,omitempty"`
	Error   *OutcomeError `json:"error,omitempty"`
}

// OutcomeError describes a failed prompt.
type OutcomeError struct {
	Kind   ErrorKind `json:"kind"`
	Code   string    `json:"code,omitempty"`
	Detail string    `json:"detail"`
	// RawText is the completion reply, only set when raw replies are exposed.
	RawText string `json:"rawText,omitempty"`
	// Status is the provider HTTP status, if any.
	Status int `json:"status,omitempty"`
}

// Err returns the outcome's error detail as an error, or nil.
func (o *Outcome) Err() error {
	if o.Error == nil {
		return nil
	}
	return fmt.Errorf("%s: %s", o.Error.Kind, o.Error.Detail)
}

// outcomeError maps an error from the interpreter or gateway to its
// outcome representation.
func outcomeError(err error, exposeRaw bool) *OutcomeError {
	var ie *action.InterpretationError
	if errors.As(err, &ie) {
		oe := &OutcomeError{Kind: ErrorInterpretation, Code: string(ie.Code), Detail: ie.Error()}
		if exposeRaw {
			oe.RawText = ie.RawText
		}
		return oe
	}

	var pe *calendar.ProviderError
	if errors.As(err, &pe) {
		oe := &OutcomeError{Code: string(pe.Kind), Detail: pe.Error(), Status: pe.Status}
		switch pe.Kind {
		case calendar.KindAuthRequired:
			oe.Kind = ErrorAuthRequired
			oe.Detail = "calendar authorization expired, please log in again"
		case calendar.KindTimeout:
			oe.Kind = ErrorTimeout
		default:
			oe.Kind = ErrorProvider
		}
		return oe
	}

	return &OutcomeError{Kind: ErrorInternal, Detail: err.Error()}
}
