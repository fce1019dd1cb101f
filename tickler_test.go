package tickler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/tickler"
	"github.com/aretw0/tickler/pkg/adapters/memory"
	"github.com/aretw0/tickler/pkg/domain"
	"github.com/aretw0/tickler/pkg/ports"
	"github.com/aretw0/tickler/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oneReminder = `{
	"summary": "A dentist appointment.",
	"function_calls": [{
		"tool_name": "create-calendar-reminder",
		"parameters": {"subject": "Dentist", "start_datetime": "2024-03-08T10:00:00"}
	}]
}`

func staticModel(body string) ports.ModelClient {
	return ports.ModelClientFunc(func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
		return domain.ModelResponse{Body: []byte(body)}, nil
	})
}

func noWait(ctx context.Context, d time.Duration) error { return ctx.Err() }

func TestNew_Validation(t *testing.T) {
	_, err := tickler.New(nil)
	assert.Error(t, err)

	_, err = tickler.New(staticModel("{}"), tickler.WithConcurrency(0))
	assert.ErrorContains(t, err, "concurrency")

	_, err = tickler.New(staticModel("{}"), tickler.WithRetryPolicy(retry.Policy{}))
	assert.ErrorContains(t, err, "max attempts")
}

func TestEngine_RunRecordsHistory(t *testing.T) {
	var got map[string]any
	store := memory.NewStore()

	engine, err := tickler.New(staticModel(oneReminder),
		tickler.WithRunStore(store),
		tickler.WithIDGenerator(func() string { return "run-42" }),
		tickler.WithHandler(domain.ToolCreateCalendarReminder, func(ctx context.Context, params map[string]any) error {
			got = params
			return nil
		}),
	)
	require.NoError(t, err)

	result, err := engine.RunText(context.Background(), "Dentist next Friday at 10")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, result.State)
	assert.Equal(t, "Dentist", got["subject"])

	rec, err := engine.History().Load(context.Background(), "run-42")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, rec.State)
	assert.Equal(t, "Dentist next Friday at 10", rec.Input)
	require.Len(t, rec.Outcomes, 1)
	assert.Equal(t, domain.OutcomeSucceeded, rec.Outcomes[0].Status)
}

func TestEngine_FailedRunIsRecorded(t *testing.T) {
	var calls atomic.Int32
	model := ports.ModelClientFunc(func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
		calls.Add(1)
		return domain.ModelResponse{}, errors.New("service unavailable")
	})
	store := memory.NewStore()

	engine, err := tickler.New(model, tickler.WithSleeper(noWait), tickler.WithRunStore(store))
	require.NoError(t, err)

	result, err := engine.RunText(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrModelInvocation)
	assert.Equal(t, domain.StateFailed, result.State)
	assert.EqualValues(t, 5, calls.Load())

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 1)

	rec, err := store.Load(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.KindModelInvocation, rec.ErrorKind)
}

func TestEngine_RunTimeout(t *testing.T) {
	model := ports.ModelClientFunc(func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
		<-ctx.Done()
		return domain.ModelResponse{}, ctx.Err()
	})

	engine, err := tickler.New(model, tickler.WithRunTimeout(20*time.Millisecond))
	require.NoError(t, err)

	result, err := engine.RunText(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Equal(t, domain.StateFailed, result.State)
}

func TestEngine_HooksAndRegistry(t *testing.T) {
	var finished *domain.RunResult
	var attempts int

	engine, err := tickler.New(staticModel(oneReminder),
		tickler.WithLifecycleHooks(domain.LifecycleHooks{
			OnAttempt:   func(_ context.Context, e *domain.AttemptEvent) { attempts++ },
			OnRunFinish: func(_ context.Context, r *domain.RunResult) { finished = r },
		}),
	)
	require.NoError(t, err)

	result, err := engine.RunText(context.Background(), "x")
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, domain.OutcomeSkipped, result.Outcomes[0].Status, "no handler registered")

	assert.Equal(t, 1, attempts)
	require.NotNil(t, finished)
	assert.Equal(t, result.RunID, finished.RunID)
	assert.Empty(t, engine.Registry().Names())
	assert.Nil(t, engine.History())
}
