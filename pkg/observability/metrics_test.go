package observability_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/tickler/pkg/domain"
	"github.com/aretw0/tickler/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnAttempt(ctx, &domain.AttemptEvent{Attempt: 1, Err: errors.New("unavailable")})
	hooks.OnAttempt(ctx, &domain.AttemptEvent{Attempt: 2, Err: &domain.ParseError{Reason: "not json"}})
	hooks.OnAttempt(ctx, &domain.AttemptEvent{Attempt: 3})

	item := domain.ExtractedItem{ToolName: domain.ToolCreateCalendarReminder}
	hooks.OnItemFinish(ctx, &domain.ItemEvent{
		Item:     item,
		Outcome:  &domain.ItemOutcome{Item: item, Status: domain.OutcomeSucceeded},
		Duration: 20 * time.Millisecond,
	})
	hooks.OnItemFinish(ctx, &domain.ItemEvent{
		Item:    domain.ExtractedItem{ToolName: "unknown"},
		Outcome: &domain.ItemOutcome{Status: domain.OutcomeSkipped},
	})

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	hooks.OnRunFinish(ctx, &domain.RunResult{State: domain.StateCompleted, StartedAt: start, FinishedAt: start.Add(3 * time.Second)})

	expected := `
		# HELP tickler_model_attempts_total Model call attempts by result.
		# TYPE tickler_model_attempts_total counter
		tickler_model_attempts_total{result="model_error"} 1
		tickler_model_attempts_total{result="ok"} 1
		tickler_model_attempts_total{result="parse_error"} 1
	`
	assert.NoError(t, testutil.CollectAndCompare(m.Attempts, strings.NewReader(expected)))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Items.WithLabelValues(domain.ToolCreateCalendarReminder, string(domain.OutcomeSucceeded))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Items.WithLabelValues("unknown", string(domain.OutcomeSkipped))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues(string(domain.StateCompleted))))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ItemDuration), "skipped items are not timed")
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}

func TestNewTracer_NoEndpoint(t *testing.T) {
	shutdown, err := observability.NewTracer(context.Background(), observability.TraceConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
