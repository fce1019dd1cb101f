package tickler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/tickler/internal/dispatcher"
	"github.com/aretw0/tickler/internal/invoker"
	"github.com/aretw0/tickler/internal/parser"
	"github.com/aretw0/tickler/internal/prompt"
	"github.com/aretw0/tickler/internal/runtime"
	"github.com/aretw0/tickler/pkg/domain"
	"github.com/aretw0/tickler/pkg/ports"
	"github.com/aretw0/tickler/pkg/registry"
	"github.com/aretw0/tickler/pkg/retry"
)

// Engine is the high-level entry point for the tickler library.
// It wires the pipeline stages and optionally records every run.
// An Engine is safe for concurrent use.
type Engine struct {
	runtime    *runtime.Engine
	registry   *registry.Registry
	history    ports.RunStore
	logger     *slog.Logger
	runTimeout time.Duration

	// build-time settings
	hooks       domain.LifecycleHooks
	policy      retry.Policy
	sleeper     retry.Sleeper
	concurrency int
	itemTimeout time.Duration
	location    *time.Location
	clock       func() time.Time
	newID       func() string
	handlers    map[string]registry.Handler
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithRetryPolicy replaces the default five-attempt policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithSleeper replaces the wait between model attempts, mainly for tests.
func WithSleeper(s retry.Sleeper) Option {
	return func(e *Engine) {
		e.sleeper = s
	}
}

// WithConcurrency bounds how many items are dispatched at once. The default is 1.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// WithItemTimeout bounds each handler call. Zero disables the bound.
func WithItemTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.itemTimeout = d
	}
}

// WithRunTimeout bounds a whole run. Zero disables the bound.
func WithRunTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.runTimeout = d
	}
}

// WithTimezone renders the reference time in loc.
func WithTimezone(loc *time.Location) Option {
	return func(e *Engine) {
		e.location = loc
	}
}

// WithClock sets the source of the reference time.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithIDGenerator sets the run ID source.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// WithRegistry dispatches through an existing registry.
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithHandler registers h for the tool name. Later registrations win.
func WithHandler(name string, h registry.Handler) Option {
	return func(e *Engine) {
		e.handlers[name] = h
	}
}

// WithRunStore records every finished run in store.
func WithRunStore(store ports.RunStore) Option {
	return func(e *Engine) {
		e.history = store
	}
}

// New builds an Engine calling model for completions.
func New(model ports.ModelClient, opts ...Option) (*Engine, error) {
	if model == nil {
		return nil, errors.New("tickler: model client is required")
	}

	e := &Engine{
		policy:      retry.DefaultPolicy(),
		sleeper:     retry.Sleep,
		concurrency: 1,
		handlers:    make(map[string]registry.Handler),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.registry == nil {
		e.registry = registry.NewRegistry()
	}
	for name, h := range e.handlers {
		e.registry.Register(name, h)
	}
	if err := e.policy.Validate(); err != nil {
		return nil, fmt.Errorf("tickler: %w", err)
	}
	if e.concurrency < 1 {
		return nil, fmt.Errorf("tickler: concurrency must be at least 1, got %d", e.concurrency)
	}

	var promptOpts []prompt.Option
	if e.location != nil {
		promptOpts = append(promptOpts, prompt.WithLocation(e.location))
	}
	builder, err := prompt.New(promptOpts...)
	if err != nil {
		return nil, fmt.Errorf("tickler: %w", err)
	}
	p, err := parser.New()
	if err != nil {
		return nil, fmt.Errorf("tickler: %w", err)
	}

	inv := invoker.New(model,
		invoker.WithPolicy(e.policy),
		invoker.WithSleeper(e.sleeper),
		invoker.WithLogger(e.logger),
		invoker.WithAttemptHook(e.hooks.OnAttempt),
	)
	disp := dispatcher.New(e.registry,
		dispatcher.WithConcurrency(e.concurrency),
		dispatcher.WithItemTimeout(e.itemTimeout),
		dispatcher.WithLogger(e.logger),
		dispatcher.WithHooks(e.hooks),
	)

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
	}
	if e.clock != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithClock(e.clock))
	}
	if e.newID != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithIDGenerator(e.newID))
	}
	e.runtime = runtime.NewEngine(builder, inv, p, disp, runtimeOpts...)

	return e, nil
}

// Run processes one input to a terminal state. See runtime.Engine.Run for
// the result and error contract. When a run store is configured the record
// is saved even if the caller's context has ended.
func (e *Engine) Run(ctx context.Context, input domain.RawInput) (*domain.RunResult, error) {
	if e.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.runTimeout)
		defer cancel()
	}

	result, err := e.runtime.Run(ctx, input)

	if e.history != nil && result != nil {
		rec := domain.NewRunRecord(input, result)
		if serr := e.history.Save(context.WithoutCancel(ctx), rec); serr != nil {
			e.logger.Error("Failed to record run", "run_id", result.RunID, "error", serr)
		}
	}
	return result, err
}

// RunText is Run for a plain string.
func (e *Engine) RunText(ctx context.Context, text string) (*domain.RunResult, error) {
	return e.Run(ctx, domain.RawInput{Text: text})
}

// Registry returns the handler registry used for dispatch.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// History returns the run store, or nil when runs are not recorded.
func (e *Engine) History() ports.RunStore {
	return e.history
}
