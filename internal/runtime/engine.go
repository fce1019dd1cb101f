// Package runtime drives a single run through the pipeline state machine:
// Idle, PromptBuilt, ModelInvoked, Parsed, Dispatched, Completed, with Failed
// reachable from every non-terminal state.
package runtime

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/tickler/internal/invoker"
	"github.com/aretw0/tickler/pkg/domain"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aretw0/tickler/internal/runtime"

// PromptBuilder renders the model request for a run.
type PromptBuilder interface {
	Build(rawText string, now time.Time) domain.ModelRequest
}

// ModelInvoker calls the model until a response passes check.
type ModelInvoker interface {
	InvokeChecked(ctx context.Context, req domain.ModelRequest, check invoker.Check) (invoker.Result, error)
}

// OutputParser turns a response into ordered items.
type OutputParser interface {
	Parse(resp domain.ModelResponse) (*domain.Completion, error)
}

// ItemDispatcher executes items and returns one outcome per item.
type ItemDispatcher interface {
	Dispatch(ctx context.Context, items []domain.ExtractedItem) ([]domain.ItemOutcome, error)
}

// Engine owns the run state machine. Runs share no mutable state, so one
// Engine serves any number of concurrent runs.
type Engine struct {
	builder    PromptBuilder
	invoker    ModelInvoker
	parser     OutputParser
	dispatcher ItemDispatcher

	clock  func() time.Time
	newID  func() string
	logger *slog.Logger
	hooks  domain.LifecycleHooks
	tracer trace.Tracer
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithClock sets the source of the reference time given to the prompt.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithIDGenerator sets how run IDs are minted.
func WithIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) {
		e.newID = fn
	}
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithLifecycleHooks registers state and run hooks.
func WithLifecycleHooks(h domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = h
	}
}

// WithTracer sets the tracer used for run and stage spans.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = t
	}
}

// NewEngine wires the pipeline stages together.
func NewEngine(b PromptBuilder, inv ModelInvoker, p OutputParser, d ItemDispatcher, opts ...EngineOption) *Engine {
	e := &Engine{
		builder:    b,
		invoker:    inv,
		parser:     p,
		dispatcher: d,
		clock:      time.Now,
		newID:      uuid.NewString,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e
}

// Run processes one input to a terminal state.
//
// The returned result is never nil. A Completed run returns a nil error even
// when some items failed. A Failed run returns its terminal cause, which is a
// *domain.ModelInvocationError, *domain.ParseError or *domain.CancelledError.
func (e *Engine) Run(ctx context.Context, input domain.RawInput) (*domain.RunResult, error) {
	r := &run{
		engine: e,
		result: &domain.RunResult{
			RunID:     e.newID(),
			State:     domain.StateIdle,
			StartedAt: e.clock(),
		},
	}
	r.logger = e.logger.With("run_id", r.result.RunID)

	ctx = domain.ContextWithRunID(ctx, r.result.RunID)
	ctx, span := e.tracer.Start(ctx, "tickler.run", trace.WithAttributes(
		attribute.String("tickler.run_id", r.result.RunID),
		attribute.Int("tickler.input_bytes", len(input.Text)),
	))
	defer span.End()
	r.span = span

	r.logger.Info("Run started", "input_bytes", len(input.Text))

	if err := ctx.Err(); err != nil {
		return r.fail(ctx, &domain.CancelledError{Err: err})
	}

	// Idle -> PromptBuilt
	req := e.builder.Build(input.Text, r.result.StartedAt)
	r.transition(ctx, domain.StatePromptBuilt)

	// PromptBuilt -> ModelInvoked -> Parsed, retried as one unit
	var completion *domain.Completion
	invokeCtx, invokeSpan := e.tracer.Start(ctx, "tickler.model")
	res, err := e.invoker.InvokeChecked(invokeCtx, req, func(resp domain.ModelResponse) error {
		if r.result.State != domain.StateModelInvoked {
			r.transition(ctx, domain.StateModelInvoked)
		}
		c, err := e.parser.Parse(resp)
		if err != nil {
			r.logger.Warn("Model output rejected", "error", err, "body_bytes", len(resp.Body))
			return err
		}
		completion = c
		return nil
	})
	invokeSpan.SetAttributes(attribute.Int("tickler.attempts", res.Attempts))
	r.result.Attempts = res.Attempts
	if err != nil {
		invokeSpan.RecordError(err)
		invokeSpan.SetStatus(codes.Error, string(domain.KindOf(err)))
		invokeSpan.End()
		return r.fail(ctx, err)
	}
	invokeSpan.End()

	r.result.Summary = completion.Summary
	r.transition(ctx, domain.StateParsed)
	r.logger.Info("Model output parsed", "items", len(completion.Items), "attempts", res.Attempts)

	// Parsed -> Dispatched, never retried
	dispatchCtx, dispatchSpan := e.tracer.Start(ctx, "tickler.dispatch", trace.WithAttributes(
		attribute.Int("tickler.items", len(completion.Items)),
	))
	outcomes, err := e.dispatcher.Dispatch(dispatchCtx, completion.Items)
	dispatchSpan.End()
	r.result.Outcomes = outcomes
	if err != nil {
		return r.fail(ctx, &domain.CancelledError{Err: err})
	}
	r.transition(ctx, domain.StateDispatched)

	// Dispatched -> Completed
	r.transition(ctx, domain.StateCompleted)
	return r.finish(ctx), nil
}

// run is the per-call bookkeeping; it is never shared between goroutines
// except through the completed result.
type run struct {
	engine *Engine
	result *domain.RunResult
	logger *slog.Logger
	span   trace.Span
}

func (r *run) transition(ctx context.Context, to domain.RunState) {
	from := r.result.State
	r.result.State = to
	r.logger.Debug("Run state changed", "from", from, "to", to)
	r.span.AddEvent("state", trace.WithAttributes(attribute.String("tickler.state", string(to))))

	if h := r.engine.hooks.OnStateChange; h != nil {
		h(ctx, &domain.StateEvent{
			Timestamp: time.Now(),
			RunID:     r.result.RunID,
			From:      from,
			To:        to,
		})
	}
}

func (r *run) fail(ctx context.Context, cause error) (*domain.RunResult, error) {
	from := r.result.State
	r.result.State = domain.StateFailed
	r.result.Cause = cause

	r.span.RecordError(cause)
	r.span.SetStatus(codes.Error, string(domain.KindOf(cause)))

	if h := r.engine.hooks.OnStateChange; h != nil {
		h(ctx, &domain.StateEvent{
			Timestamp: time.Now(),
			RunID:     r.result.RunID,
			From:      from,
			To:        domain.StateFailed,
			Err:       cause,
		})
	}

	r.logger.Error("Run failed", "from", from, "kind", domain.KindOf(cause), "error", cause,
		"outcomes", len(r.result.Outcomes), "attempts", r.result.Attempts)
	return r.finish(ctx), cause
}

func (r *run) finish(ctx context.Context) *domain.RunResult {
	r.result.FinishedAt = r.engine.clock()

	if r.result.State == domain.StateCompleted {
		counts := r.result.Counts()
		r.logger.Info("Run completed",
			"succeeded", counts[domain.OutcomeSucceeded],
			"skipped", counts[domain.OutcomeSkipped],
			"failed", counts[domain.OutcomeFailed],
			"duration", r.result.Duration())
	}

	if h := r.engine.hooks.OnRunFinish; h != nil {
		h(ctx, r.result)
	}
	return r.result
}
