package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrModelInvocation marks failures of the model service after retries are exhausted.
	ErrModelInvocation = errors.New("model invocation failed")

	// ErrParse marks model output that does not have the required structure.
	ErrParse = errors.New("model output rejected")

	// ErrHandler marks a handler failure on a single item.
	ErrHandler = errors.New("handler failed")

	// ErrCancelled marks a run stopped by its caller.
	ErrCancelled = errors.New("run cancelled")

	// ErrRunNotFound is returned when a run ID cannot be found in the store.
	ErrRunNotFound = errors.New("run not found")
)

// ErrorKind names the category of a terminal or item error.
type ErrorKind string

const (
	KindModelInvocation ErrorKind = "model_invocation"
	KindParse           ErrorKind = "parse"
	KindHandler         ErrorKind = "handler"
	KindCancelled       ErrorKind = "cancelled"
	KindUnknown         ErrorKind = "unknown"
)

// ModelInvocationError is returned when every attempt to call the model failed.
type ModelInvocationError struct {
	Attempts int
	Err      error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model invocation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ModelInvocationError) Unwrap() []error { return []error{ErrModelInvocation, e.Err} }

// ParseError is returned when a model response lacks the required structure.
// A single malformed item invalidates the whole response.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse model output: %s: %v", e.Reason, e.Err)
	}
	return "parse model output: " + e.Reason
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

// HandlerError wraps the error a handler returned for one item.
// It is recorded on the item and never fails the run.
type HandlerError struct {
	Tool string
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %q: %v", e.Tool, e.Err)
}

func (e *HandlerError) Unwrap() []error { return []error{ErrHandler, e.Err} }

// CancelledError is the terminal cause of a run whose context ended.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("run cancelled: %v", e.Err)
}

func (e *CancelledError) Unwrap() []error { return []error{ErrCancelled, e.Err} }

// KindOf classifies err. Cancellation wins over the other kinds.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrModelInvocation):
		return KindModelInvocation
	case errors.Is(err, ErrHandler):
		return KindHandler
	default:
		return KindUnknown
	}
}
