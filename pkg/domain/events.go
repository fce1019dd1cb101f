package domain

import (
	"context"
	"time"
)

// StateEvent reports a transition of the run state machine.
type StateEvent struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	From      RunState  `json:"from"`
	To        RunState  `json:"to"`
	Err       error     `json:"-"`
}

// AttemptEvent reports the end of one model call attempt.
// Delay is the wait scheduled before the next attempt, zero when none follows.
type AttemptEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"run_id"`
	Attempt   int           `json:"attempt"`
	Err       error         `json:"-"`
	Delay     time.Duration `json:"delay"`
}

// ItemEvent reports the start or end of a single item dispatch.
// Outcome and Duration are set only on finish.
type ItemEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"run_id"`
	Index     int           `json:"index"`
	Item      ExtractedItem `json:"item"`
	Outcome   *ItemOutcome  `json:"outcome,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// LifecycleHooks defines callbacks for pipeline observability.
// Item hooks may be called concurrently when dispatch runs with a bound above one.
type LifecycleHooks struct {
	OnStateChange func(context.Context, *StateEvent)
	OnAttempt     func(context.Context, *AttemptEvent)
	OnItemStart   func(context.Context, *ItemEvent)
	OnItemFinish  func(context.Context, *ItemEvent)
	OnRunFinish   func(context.Context, *RunResult)
}

// MergeHooks fans every callback out to all non-nil hooks, in order.
func MergeHooks(all ...LifecycleHooks) LifecycleHooks {
	var merged LifecycleHooks
	for _, h := range all {
		merged.OnStateChange = chain(merged.OnStateChange, h.OnStateChange)
		merged.OnAttempt = chain(merged.OnAttempt, h.OnAttempt)
		merged.OnItemStart = chain(merged.OnItemStart, h.OnItemStart)
		merged.OnItemFinish = chain(merged.OnItemFinish, h.OnItemFinish)
		merged.OnRunFinish = chain(merged.OnRunFinish, h.OnRunFinish)
	}
	return merged
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
