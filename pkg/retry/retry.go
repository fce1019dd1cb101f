// Package retry runs an operation under a bounded exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy configures retry behavior.
type Policy struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// BaseDelay is the wait after the first failure.
	BaseDelay time.Duration `yaml:"base_delay" json:"base_delay"`
	// MaxDelay caps every individual wait.
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`
	// Multiplier grows the wait after each failure.
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
	// Jitter is the randomization factor in [0, 1). Zero gives exact delays.
	Jitter float64 `yaml:"jitter" json:"jitter"`
}

// DefaultPolicy returns five attempts with waits of 5s, 10s, 10s, 10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   5 * time.Second,
		MaxDelay:    10 * time.Second,
		Multiplier:  2,
	}
}

// Validate reports configuration errors.
func (p Policy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("retry: max attempts must be at least 1, got %d", p.MaxAttempts)
	case p.BaseDelay < 0:
		return fmt.Errorf("retry: base delay must not be negative")
	case p.MaxDelay < p.BaseDelay:
		return fmt.Errorf("retry: max delay %s is below base delay %s", p.MaxDelay, p.BaseDelay)
	case p.Multiplier < 1:
		return fmt.Errorf("retry: multiplier must be at least 1, got %g", p.Multiplier)
	case p.Jitter < 0 || p.Jitter >= 1:
		return fmt.Errorf("retry: jitter must be in [0, 1), got %g", p.Jitter)
	}
	return nil
}

// Schedule returns the waits between consecutive attempts, one fewer than MaxAttempts.
// With jitter enabled the values are one random draw.
func (p Policy) Schedule() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	b := p.newBackOff()
	delays := make([]time.Duration, p.MaxAttempts-1)
	for i := range delays {
		delays[i] = p.clamp(b.NextBackOff())
	}
	return delays
}

// MaxTotalDelay is the longest cumulative wait the policy can schedule.
func (p Policy) MaxTotalDelay() time.Duration {
	if p.MaxAttempts <= 1 {
		return 0
	}
	return time.Duration(p.MaxAttempts-1) * p.MaxDelay
}

func (p Policy) newBackOff() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: p.Jitter,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.MaxDelay,
	}
}

// clamp keeps jittered waits inside [0, MaxDelay].
func (p Policy) clamp(d time.Duration) time.Duration {
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Notify is called after every failed attempt. next is zero when no attempt follows.
type Notify func(attempt int, err error, next time.Duration)

type options struct {
	sleep  Sleeper
	notify Notify
}

// Option customizes a single Do call.
type Option func(*options)

// WithSleeper replaces the wait between attempts.
func WithSleeper(s Sleeper) Option {
	return func(o *options) {
		o.sleep = s
	}
}

// WithNotify registers a callback for failed attempts.
func WithNotify(n Notify) Option {
	return func(o *options) {
		o.notify = n
	}
}

// Result contains the outcome of a retry operation.
type Result struct {
	// Attempts is the number of attempts made.
	Attempts int
	// Err is the last error, nil on success.
	Err error
	// Waited is the cumulative scheduled delay.
	Waited time.Duration
	// Interrupted is true when ctx ended before the policy was exhausted.
	Interrupted bool
}

// Do runs op until it succeeds, returns a permanent error, the policy is
// exhausted or ctx is done. op receives the 1-based attempt number.
func Do(ctx context.Context, p Policy, op func(ctx context.Context, attempt int) error, opts ...Option) Result {
	o := options{sleep: Sleep}
	for _, opt := range opts {
		opt(&o)
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	b := p.newBackOff()
	var res Result

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Interrupted = true
			if res.Err == nil {
				res.Err = err
			}
			return res
		}

		res.Attempts = attempt
		err := op(ctx, attempt)
		if err == nil {
			res.Err = nil
			return res
		}
		res.Err = err

		var next time.Duration
		last := attempt == p.MaxAttempts || IsPermanent(err)
		if !last {
			next = p.clamp(b.NextBackOff())
		}
		if o.notify != nil {
			o.notify(attempt, err, next)
		}
		if last {
			break
		}

		if serr := o.sleep(ctx, next); serr != nil {
			res.Interrupted = true
			return res
		}
		res.Waited += next
	}

	var perm *PermanentError
	if errors.As(res.Err, &perm) {
		res.Err = perm.Err
	}
	return res
}

// PermanentError is an error that should not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps an error to indicate it should not be retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent checks if an error is permanent.
func IsPermanent(err error) bool {
	var permanent *PermanentError
	return errors.As(err, &permanent)
}
