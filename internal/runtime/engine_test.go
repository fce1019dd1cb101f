package runtime_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/tickler/internal/dispatcher"
	"github.com/aretw0/tickler/internal/invoker"
	"github.com/aretw0/tickler/internal/parser"
	"github.com/aretw0/tickler/internal/prompt"
	"github.com/aretw0/tickler/internal/runtime"
	"github.com/aretw0/tickler/pkg/domain"
	"github.com/aretw0/tickler/pkg/ports"
	"github.com/aretw0/tickler/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	engine   *runtime.Engine
	calls    atomic.Int32
	waited   time.Duration
	mu       sync.Mutex
	received []map[string]any
	states   []domain.RunState
}

func newHarness(t *testing.T, client func(ctx context.Context, n int) (domain.ModelResponse, error), sleeper func(ctx context.Context, d time.Duration) error) *harness {
	t.Helper()
	h := &harness{}

	if sleeper == nil {
		sleeper = func(ctx context.Context, d time.Duration) error {
			h.waited += d
			return ctx.Err()
		}
	}

	model := ports.ModelClientFunc(func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
		return client(ctx, int(h.calls.Add(1)))
	})

	reg := registry.NewRegistry()
	reg.Register(domain.ToolCreateCalendarReminder, func(ctx context.Context, params map[string]any) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.received = append(h.received, params)
		return nil
	})

	builder, err := prompt.New()
	require.NoError(t, err)

	h.engine = runtime.NewEngine(
		builder,
		invoker.New(model, invoker.WithSleeper(sleeper)),
		parser.MustNew(),
		dispatcher.New(reg),
		runtime.WithClock(func() time.Time { return fixedNow }),
		runtime.WithIDGenerator(func() string { return "run-test" }),
		runtime.WithLifecycleHooks(domain.LifecycleHooks{
			OnStateChange: func(_ context.Context, e *domain.StateEvent) { h.states = append(h.states, e.To) },
		}),
	)
	return h
}

func body(s string) domain.ModelResponse {
	return domain.ModelResponse{Body: []byte(s)}
}

func TestRun_ScenarioA_SingleReminder(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, n int) (domain.ModelResponse, error) {
		return body(`{
			"summary": "Meeting with Bob tomorrow at 3pm",
			"function_calls": [{
				"tool_name": "create-calendar-reminder",
				"parameters": {
					"subject": "Meeting with Bob",
					"start_datetime": "2024-03-02T15:00:00",
					"end_datetime": "2024-03-02T16:00:00",
					"location": "N/A"
				}
			}]
		}`), nil
	}, nil)

	res, err := h.engine.Run(context.Background(), domain.RawInput{Text: "Meeting tomorrow 3pm with Bob"})
	require.NoError(t, err)

	assert.Equal(t, "run-test", res.RunID)
	assert.Equal(t, domain.StateCompleted, res.State)
	assert.Nil(t, res.Cause)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "Meeting with Bob tomorrow at 3pm", res.Summary)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, domain.OutcomeSucceeded, res.Outcomes[0].Status)

	require.Len(t, h.received, 1)
	assert.Equal(t, "Meeting with Bob", h.received[0]["subject"])

	assert.Equal(t, []domain.RunState{
		domain.StatePromptBuilt,
		domain.StateModelInvoked,
		domain.StateParsed,
		domain.StateDispatched,
		domain.StateCompleted,
	}, h.states)
}

func TestRun_ScenarioB_MalformedOutputEveryAttempt(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, n int) (domain.ModelResponse, error) {
		return body("I'm sorry, I can't produce JSON today."), nil
	}, nil)

	res, err := h.engine.Run(context.Background(), domain.RawInput{Text: "anything"})
	require.Error(t, err)

	assert.Equal(t, domain.StateFailed, res.State)
	assert.Equal(t, domain.KindParse, domain.KindOf(res.Cause))
	assert.Same(t, err, res.Cause)
	assert.EqualValues(t, 5, h.calls.Load(), "five attempts, never more")
	assert.Equal(t, 5, res.Attempts)
	assert.LessOrEqual(t, h.waited, 40*time.Second)
	assert.Empty(t, res.Outcomes)
	assert.Empty(t, h.received, "no handler runs when parsing never succeeded")
}

func TestRun_ModelUnavailable(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, n int) (domain.ModelResponse, error) {
		return domain.ModelResponse{}, errors.New("ThrottlingException")
	}, nil)

	res, err := h.engine.Run(context.Background(), domain.RawInput{Text: "anything"})

	var mie *domain.ModelInvocationError
	require.ErrorAs(t, err, &mie)
	assert.Equal(t, domain.StateFailed, res.State)
	assert.EqualValues(t, 5, h.calls.Load())
	assert.Equal(t, []domain.RunState{domain.StatePromptBuilt, domain.StateFailed}, h.states)
}

func TestRun_RecoversAfterMalformedOutput(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, n int) (domain.ModelResponse, error) {
		if n == 1 {
			return body(`{"function_calls": [{"parameters": {}}]}`), nil
		}
		return body(`{"summary": "ok", "function_calls": []}`), nil
	}, nil)

	res, err := h.engine.Run(context.Background(), domain.RawInput{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 5*time.Second, h.waited)
	assert.Empty(t, res.Outcomes)
	assert.Equal(t, domain.StateCompleted, res.State)
}

func TestRun_ScenarioC_UnknownToolIsSkipped(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, n int) (domain.ModelResponse, error) {
		return body(`{
			"summary": "two",
			"function_calls": [
				{"tool_name": "create-calendar-reminder", "parameters": {"subject": "Dentist"}},
				{"tool_name": "unregistered-tool", "parameters": {"x": 1}}
			]
		}`), nil
	}, nil)

	res, err := h.engine.Run(context.Background(), domain.RawInput{Text: "x"})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)

	assert.Equal(t, domain.OutcomeSucceeded, res.Outcomes[0].Status)
	assert.Equal(t, domain.ToolCreateCalendarReminder, res.Outcomes[0].Item.ToolName)
	assert.Equal(t, domain.OutcomeSkipped, res.Outcomes[1].Status)
	assert.Equal(t, "unregistered-tool", res.Outcomes[1].Item.ToolName)
	assert.Equal(t, domain.StateCompleted, res.State)
}

func TestRun_HandlerErrorDoesNotFailRun(t *testing.T) {
	model := ports.ModelClientFunc(func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
		return body(`{"function_calls": [
			{"tool_name": "flaky", "parameters": {}},
			{"tool_name": "steady", "parameters": {}}
		]}`), nil
	})

	reg := registry.NewRegistry()
	reg.Register("flaky", func(ctx context.Context, p map[string]any) error { return errors.New("smtp 451") })
	reg.Register("steady", func(ctx context.Context, p map[string]any) error { return nil })

	builder, err := prompt.New()
	require.NoError(t, err)
	engine := runtime.NewEngine(builder, invoker.New(model), parser.MustNew(), dispatcher.New(reg))

	res, err := engine.Run(context.Background(), domain.RawInput{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, res.State)
	assert.Equal(t, domain.OutcomeFailed, res.Outcomes[0].Status)
	assert.Equal(t, "smtp 451", res.Outcomes[0].Detail)
	assert.Equal(t, domain.OutcomeSucceeded, res.Outcomes[1].Status)
	assert.NotEmpty(t, res.RunID, "default IDs are generated")
}

func TestRun_ScenarioD_CancelWhileModelCallOutstanding(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inFlight := make(chan struct{})

	h := newHarness(t, func(ctx context.Context, n int) (domain.ModelResponse, error) {
		close(inFlight)
		<-ctx.Done()
		return domain.ModelResponse{}, ctx.Err()
	}, func(ctx context.Context, d time.Duration) error {
		// Real wait, bounded by one retry window.
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	})

	go func() {
		<-inFlight
		cancel()
	}()

	start := time.Now()
	res, err := h.engine.Run(ctx, domain.RawInput{Text: "x"})
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Equal(t, domain.StateFailed, res.State)
	assert.Equal(t, domain.KindCancelled, domain.KindOf(res.Cause))
	assert.EqualValues(t, 1, h.calls.Load())
	assert.Less(t, elapsed, 5*time.Second, "cancellation does not wait out the retry delay")
}

func TestRun_CancelDuringDispatchKeepsOutcomes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	model := ports.ModelClientFunc(func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
		return body(`{"function_calls": [
			{"tool_name": "first", "parameters": {}},
			{"tool_name": "first", "parameters": {}}
		]}`), nil
	})

	reg := registry.NewRegistry()
	reg.Register("first", func(ctx context.Context, p map[string]any) error {
		cancel()
		return nil
	})

	builder, err := prompt.New()
	require.NoError(t, err)
	engine := runtime.NewEngine(builder, invoker.New(model), parser.MustNew(), dispatcher.New(reg))

	res, err := engine.Run(ctx, domain.RawInput{Text: "x"})
	assert.Equal(t, domain.KindCancelled, domain.KindOf(err))
	assert.Equal(t, domain.StateFailed, res.State)
	require.Len(t, res.Outcomes, 2, "outcomes recorded before cancellation are kept")
	assert.Equal(t, domain.OutcomeSucceeded, res.Outcomes[0].Status)
	assert.Equal(t, domain.OutcomeFailed, res.Outcomes[1].Status)
}

func TestRun_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarness(t, func(ctx context.Context, n int) (domain.ModelResponse, error) {
		t.Fatal("model must not be called")
		return domain.ModelResponse{}, nil
	}, nil)

	res, err := h.engine.Run(ctx, domain.RawInput{Text: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.StateFailed, res.State)
	assert.Equal(t, fixedNow, res.FinishedAt)
}

func TestRun_ConcurrentRunsAreIndependent(t *testing.T) {
	model := ports.ModelClientFunc(func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
		return body(`{"summary": "` + req.Messages[0].Content[11:12] + `", "function_calls": []}`), nil
	})
	builder, err := prompt.New()
	require.NoError(t, err)
	engine := runtime.NewEngine(builder, invoker.New(model), parser.MustNew(), dispatcher.New(registry.NewRegistry()))

	var wg sync.WaitGroup
	results := make([]*domain.RunResult, 10)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := engine.Run(context.Background(), domain.RawInput{Text: string(rune('a' + i))})
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, res := range results {
		assert.Equal(t, string(rune('a'+i)), res.Summary)
		assert.False(t, seen[res.RunID], "run IDs are unique")
		seen[res.RunID] = true
	}
}
