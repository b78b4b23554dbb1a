package action

import (
	"errors"
	"fmt"
)

// ErrorCode classifies why a completion reply could not become an Action.
type ErrorCode string

const (
	// CodeEmptyResponse means the completion service returned no text.
	CodeEmptyResponse ErrorCode = "EMPTY_RESPONSE"
	// CodeMalformedJSON means the reply was not a JSON object.
	CodeMalformedJSON ErrorCode = "MALFORMED_JSON"
	// CodeUnsupportedActionType means action_type was not create, view or delete.
	CodeUnsupportedActionType ErrorCode = "UNSUPPORTED_ACTION_TYPE"
	// CodeMissingField means a field required by the action type was absent.
	CodeMissingField ErrorCode = "MISSING_FIELD"
	// CodeDateParse means a date or timestamp could not be parsed.
	CodeDateParse ErrorCode = "DATE_PARSE"
	// CodeInvalidTimeRange means an event would end at or before its start.
	CodeInvalidTimeRange ErrorCode = "INVALID_TIME_RANGE"
	// CodeCompletionFailed means the completion service call itself failed.
	CodeCompletionFailed ErrorCode = "COMPLETION_FAILED"
)

// InterpretationError is returned for every way a prompt can fail to turn
// into an Action. RawText keeps the reply text for diagnostics and is never
// part of Error().
type InterpretationError struct {
	Code    ErrorCode
	Field   string
	Value   string
	RawText string
	Cause   error
}

func (e *InterpretationError) Error() string {
	var msg string
	switch e.Code {
	case CodeEmptyResponse:
		msg = "completion service returned an empty reply"
	case CodeMalformedJSON:
		msg = "reply is not valid JSON"
	case CodeUnsupportedActionType:
		msg = fmt.Sprintf("unsupported action type %q", e.Value)
	case CodeMissingField:
		msg = fmt.Sprintf("missing field %s", e.Field)
	case CodeDateParse:
		msg = fmt.Sprintf("cannot parse %s value %q", e.Field, e.Value)
	case CodeInvalidTimeRange:
		msg = fmt.Sprintf("end %s is not after start %s", e.Value, e.Field)
	case CodeCompletionFailed:
		msg = "completion request failed"
	default:
		msg = "interpretation failed"
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *InterpretationError) Unwrap() error {
	return e.Cause
}

// EmptyResponse creates an empty-reply error.
func EmptyResponse() *InterpretationError {
	return &InterpretationError{Code: CodeEmptyResponse}
}

// MalformedJSON keeps the exact text that failed to parse.
func MalformedJSON(raw string, cause error) *InterpretationError {
	return &InterpretationError{Code: CodeMalformedJSON, RawText: raw, Cause: cause}
}

// UnsupportedActionType creates an unknown action type error.
func UnsupportedActionType(value string) *InterpretationError {
	return &InterpretationError{Code: CodeUnsupportedActionType, Value: value}
}

// MissingField creates a missing field error.
func MissingField(field string) *InterpretationError {
	return &InterpretationError{Code: CodeMissingField, Field: field}
}

// DateParse creates an unparseable date error.
func DateParse(field, value string, cause error) *InterpretationError {
	return &InterpretationError{Code: CodeDateParse, Field: field, Value: value, Cause: cause}
}

// InvalidTimeRange reports an end that does not follow its start. Field
// carries the start literal and Value the end literal.
func InvalidTimeRange(start, end string) *InterpretationError {
	return &InterpretationError{Code: CodeInvalidTimeRange, Field: start, Value: end}
}

// CompletionFailed wraps a transport failure of the completion service.
func CompletionFailed(cause error) *InterpretationError {
	return &InterpretationError{Code: CodeCompletionFailed, Cause: cause}
}

// IsCode reports whether err is an InterpretationError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ie *InterpretationError
	if errors.As(err, &ie) {
		return ie.Code == code
	}
	return false
}
