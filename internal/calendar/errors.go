package calendar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
)

// ErrorKind classifies a failed calendar provider call.
type ErrorKind string

const (
	// KindTimeout is a network timeout. Create retries it.
	KindTimeout ErrorKind = "timeout"
	// KindAuthRequired means the token is unusable and the user must log in again.
	KindAuthRequired ErrorKind = "auth_required"
	// KindNotFound means the event or calendar does not exist (anymore).
	KindNotFound ErrorKind = "not_found"
	// KindOther is any other provider failure.
	KindOther ErrorKind = "other"
)

// ProviderError is returned by every Gateway operation that fails after
// input validation.
type ProviderError struct {
	Kind   ErrorKind
	Status int
	Body   string
	Err    error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("calendar provider: %s", e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a ProviderError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

func authRequired(err error) *ProviderError {
	return &ProviderError{Kind: KindAuthRequired, Err: err}
}

// classify maps a client error onto a ProviderError.
func classify(err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	if isTimeout(err) {
		return &ProviderError{Kind: KindTimeout, Err: err}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := gerr.Body
		if body == "" {
			body = gerr.Message
		}
		switch gerr.Code {
		case http.StatusUnauthorized:
			return &ProviderError{Kind: KindAuthRequired, Status: gerr.Code, Body: body, Err: err}
		case http.StatusNotFound, http.StatusGone:
			return &ProviderError{Kind: KindNotFound, Status: gerr.Code, Body: body, Err: err}
		default:
			return &ProviderError{Kind: KindOther, Status: gerr.Code, Body: body, Err: err}
		}
	}
	return &ProviderError{Kind: KindOther, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
