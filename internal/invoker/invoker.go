// Package invoker calls the model service under a bounded retry policy.
package invoker

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/tickler/pkg/domain"
	"github.com/aretw0/tickler/pkg/ports"
	"github.com/aretw0/tickler/pkg/retry"
)

// Check inspects a successful response. A non-nil error counts as a failed
// attempt and consumes the same retry budget as a failed call.
type Check func(domain.ModelResponse) error

// Result is the accepted response and the number of calls it took.
type Result struct {
	Response domain.ModelResponse
	Attempts int
}

// Invoker is safe for concurrent use.
type Invoker struct {
	client    ports.ModelClient
	policy    retry.Policy
	sleep     retry.Sleeper
	logger    *slog.Logger
	onAttempt func(context.Context, *domain.AttemptEvent)
}

// Option configures the Invoker.
type Option func(*Invoker)

// WithPolicy sets the retry policy.
func WithPolicy(p retry.Policy) Option {
	return func(i *Invoker) {
		i.policy = p
	}
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(s retry.Sleeper) Option {
	return func(i *Invoker) {
		i.sleep = s
	}
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Invoker) {
		i.logger = l
	}
}

// WithAttemptHook is called after every attempt, successful or not.
func WithAttemptHook(fn func(context.Context, *domain.AttemptEvent)) Option {
	return func(i *Invoker) {
		i.onAttempt = fn
	}
}

// New creates an Invoker with the default policy.
func New(client ports.ModelClient, opts ...Option) *Invoker {
	i := &Invoker{
		client: client,
		policy: retry.DefaultPolicy(),
		sleep:  retry.Sleep,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Invoke sends req until a call succeeds or the policy is exhausted.
func (i *Invoker) Invoke(ctx context.Context, req domain.ModelRequest) (Result, error) {
	return i.InvokeChecked(ctx, req, nil)
}

// InvokeChecked is Invoke with an acceptance check on every response.
// The identical request is re-sent on each attempt.
//
// Errors:
//   - *domain.CancelledError when ctx ends first;
//   - the check's own error when the last attempt failed the check;
//   - *domain.ModelInvocationError when the last attempt failed the call.
func (i *Invoker) InvokeChecked(ctx context.Context, req domain.ModelRequest, check Check) (Result, error) {
	runID := domain.RunIDFromContext(ctx)
	logger := i.logger.With("run_id", runID)

	var accepted domain.ModelResponse
	var callFailed bool

	res := retry.Do(ctx, i.policy, func(ctx context.Context, attempt int) error {
		resp, err := i.client.Complete(ctx, req)
		if err != nil {
			callFailed = true
			return err
		}
		callFailed = false
		if check != nil {
			if err := check(resp); err != nil {
				return err
			}
		}
		accepted = resp
		return nil
	},
		retry.WithSleeper(i.sleep),
		retry.WithNotify(func(attempt int, err error, next time.Duration) {
			logger.Warn("Model attempt failed", "attempt", attempt, "max_attempts", i.policy.MaxAttempts, "next_delay", next, "error", err)
			i.emit(ctx, runID, attempt, err, next)
		}),
	)

	if res.Err == nil {
		i.emit(ctx, runID, res.Attempts, nil, 0)
		logger.Debug("Model call accepted", "attempts", res.Attempts)
		return Result{Response: accepted, Attempts: res.Attempts}, nil
	}

	if res.Interrupted || ctx.Err() != nil {
		cause := ctx.Err()
		if cause == nil {
			cause = res.Err
		}
		return Result{Attempts: res.Attempts}, &domain.CancelledError{Err: cause}
	}

	if !callFailed {
		return Result{Attempts: res.Attempts}, res.Err
	}
	return Result{Attempts: res.Attempts}, &domain.ModelInvocationError{Attempts: res.Attempts, Err: res.Err}
}

func (i *Invoker) emit(ctx context.Context, runID string, attempt int, err error, next time.Duration) {
	if i.onAttempt == nil {
		return
	}
	i.onAttempt(ctx, &domain.AttemptEvent{
		Timestamp: time.Now(),
		RunID:     runID,
		Attempt:   attempt,
		Err:       err,
		Delay:     next,
	})
}
