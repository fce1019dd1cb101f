// Package dispatcher routes extracted items to their handlers with bounded
// concurrency while keeping outcomes in item order.
package dispatcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/tickler/pkg/domain"
	"github.com/aretw0/tickler/pkg/registry"
	"golang.org/x/sync/errgroup"
)

// CancelledDetail is the outcome detail of items that never started.
const CancelledDetail = "cancelled"

// Resolver finds the handler for a tool name.
type Resolver interface {
	Lookup(name string) (registry.Handler, bool)
}

// Dispatcher is safe for concurrent use; each Dispatch call is independent.
type Dispatcher struct {
	resolver    Resolver
	concurrency int
	itemTimeout time.Duration
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency bounds how many handlers run at once. Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		d.concurrency = n
	}
}

// WithItemTimeout bounds every single handler call. Zero disables it.
func WithItemTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.itemTimeout = timeout
	}
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithHooks registers item lifecycle hooks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(d *Dispatcher) {
		d.hooks = h
	}
}

// New creates a sequential Dispatcher unless WithConcurrency says otherwise.
func New(resolver Resolver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		resolver:    resolver,
		concurrency: 1,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.concurrency < 1 {
		d.concurrency = 1
	}
	return d
}

// Dispatch runs every item and returns exactly one outcome per item, in item order.
// A handler failure never stops the remaining items. When ctx ends, items that
// had not started are recorded as failed and ctx.Err() is returned alongside
// the complete outcome list.
func (d *Dispatcher) Dispatch(ctx context.Context, items []domain.ExtractedItem) ([]domain.ItemOutcome, error) {
	outcomes := make([]domain.ItemOutcome, len(items))

	// A plain group: one item failing must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for i, item := range items {
		if ctx.Err() != nil {
			outcomes[i] = cancelled(item)
			continue
		}
		g.Go(func() error {
			outcomes[i] = d.runItem(ctx, i, item)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, ctx.Err()
}

func (d *Dispatcher) runItem(ctx context.Context, index int, item domain.ExtractedItem) (outcome domain.ItemOutcome) {
	runID := domain.RunIDFromContext(ctx)
	logger := d.logger.With("run_id", runID, "index", index, "tool", item.ToolName)

	if ctx.Err() != nil {
		return cancelled(item)
	}

	start := time.Now()
	if d.hooks.OnItemStart != nil {
		d.hooks.OnItemStart(ctx, &domain.ItemEvent{Timestamp: start, RunID: runID, Index: index, Item: item})
	}
	defer func() {
		if d.hooks.OnItemFinish != nil {
			d.hooks.OnItemFinish(ctx, &domain.ItemEvent{
				Timestamp: time.Now(),
				RunID:     runID,
				Index:     index,
				Item:      item,
				Outcome:   &outcome,
				Duration:  time.Since(start),
			})
		}
	}()

	handler, ok := d.resolver.Lookup(item.ToolName)
	if !ok {
		logger.Info("No handler for tool, skipping")
		return domain.ItemOutcome{
			Item:   item,
			Status: domain.OutcomeSkipped,
			Detail: fmt.Sprintf("no handler registered for tool %q", item.ToolName),
		}
	}

	if err := d.call(ctx, handler, item); err != nil {
		herr := &domain.HandlerError{Tool: item.ToolName, Err: err}
		logger.Warn("Handler failed", "error", herr)
		return domain.ItemOutcome{Item: item, Status: domain.OutcomeFailed, Detail: err.Error()}
	}

	logger.Debug("Handler succeeded", "duration", time.Since(start))
	return domain.ItemOutcome{Item: item, Status: domain.OutcomeSucceeded}
}

func (d *Dispatcher) call(ctx context.Context, handler registry.Handler, item domain.ExtractedItem) (err error) {
	if d.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.itemTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler(ctx, item.Parameters)
}

// cancelled marks an item that never started because the run context ended.
func cancelled(item domain.ExtractedItem) domain.ItemOutcome {
	return domain.ItemOutcome{
		Item:   item,
		Status: domain.OutcomeFailed,
		Detail: CancelledDetail,
	}
}
