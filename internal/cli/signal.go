package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
)

// SignalError is the cancellation cause recorded when a signal stops a command.
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return "interrupted by " + e.Signal.String()
}

// SignalContext is cancelled on SIGINT or SIGTERM. Unlike signal.NotifyContext
// it remembers which signal fired, as the context's cause.
type SignalContext struct {
	context.Context
	cancel context.CancelCauseFunc
}

// NewSignalContext starts watching for SIGINT and SIGTERM until the context ends.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancelCause(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			cancel(&SignalError{Signal: sig})
		case <-ctx.Done():
		}
	}()

	return &SignalContext{Context: ctx, cancel: cancel}
}

// Cancel stops watching and cancels the context without a signal cause.
func (sc *SignalContext) Cancel() {
	sc.cancel(nil)
}

// Signal returns the signal that cancelled the context, or nil.
func (sc *SignalContext) Signal() os.Signal {
	var se *SignalError
	if errors.As(context.Cause(sc.Context), &se) {
		return se.Signal
	}
	return nil
}
