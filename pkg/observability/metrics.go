package observability

import (
	"context"
	"errors"

	"github.com/aretw0/tickler/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Attempt results reported on tickler_model_attempts_total.
const (
	AttemptOK         = "ok"
	AttemptParseError = "parse_error"
	AttemptModelError = "model_error"
	metricsNamespace  = "tickler"
)

// Metrics holds the run collectors.
type Metrics struct {
	Runs         *prometheus.CounterVec
	Attempts     *prometheus.CounterVec
	Items        *prometheus.CounterVec
	RunDuration  prometheus.Histogram
	ItemDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Runs by terminal state.",
		}, []string{"status"}),
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "model_attempts_total",
			Help:      "Model call attempts by result.",
		}, []string{"result"}),
		Items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "items_total",
			Help:      "Dispatched items by tool and outcome.",
		}, []string{"tool", "status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time from run start to terminal state.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		}),
		ItemDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "item_duration_seconds",
			Help:      "Handler execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
	}

	for _, c := range []prometheus.Collector{m.Runs, m.Attempts, m.Items, m.RunDuration, m.ItemDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnAttempt: func(_ context.Context, e *domain.AttemptEvent) {
			m.Attempts.WithLabelValues(attemptResult(e.Err)).Inc()
		},
		OnItemFinish: func(_ context.Context, e *domain.ItemEvent) {
			if e.Outcome == nil {
				return
			}
			m.Items.WithLabelValues(e.Item.ToolName, string(e.Outcome.Status)).Inc()
			if e.Outcome.Status != domain.OutcomeSkipped {
				m.ItemDuration.WithLabelValues(e.Item.ToolName).Observe(e.Duration.Seconds())
			}
		},
		OnRunFinish: func(_ context.Context, r *domain.RunResult) {
			m.Runs.WithLabelValues(string(r.State)).Inc()
			m.RunDuration.Observe(r.Duration().Seconds())
		},
	}
}

func attemptResult(err error) string {
	switch {
	case err == nil:
		return AttemptOK
	case errors.Is(err, domain.ErrParse):
		return AttemptParseError
	default:
		return AttemptModelError
	}
}
