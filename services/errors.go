package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures. All of them are caller input or state
// errors reported synchronously; none are retried internally.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidState      ErrorKind = "invalid_state"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindInvalidAmount     ErrorKind = "invalid_amount"
	KindIneligible        ErrorKind = "ineligible"
)

// EngineError carries the kind and a descriptive message. The request layer
// maps kinds to HTTP statuses; the engine only surfaces them.
type EngineError struct {
	Kind    ErrorKind
	Message string
}

func (e *EngineError) Error() string { return e.Message }

// KindOf extracts the ErrorKind of err, or "" for non-engine errors.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

func errNotFound(format string, args ...any) *EngineError {
	return &EngineError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func errInvalidState(format string, args ...any) *EngineError {
	return &EngineError{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func errInsufficientFunds(format string, args ...any) *EngineError {
	return &EngineError{Kind: KindInsufficientFunds, Message: fmt.Sprintf(format, args...)}
}

func errInvalidAmount(format string, args ...any) *EngineError {
	return &EngineError{Kind: KindInvalidAmount, Message: fmt.Sprintf(format, args...)}
}

func errIneligible(format string, args ...any) *EngineError {
	return &EngineError{Kind: KindIneligible, Message: fmt.Sprintf(format, args...)}
}
