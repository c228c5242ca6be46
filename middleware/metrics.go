package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/haasonsaas/trialrun/dispatch"
)

// Metrics collects per-attempt dispatch metrics.
type Metrics struct {
	// Attempts counts trial attempts.
	// Labels: experiment, trial, status (success|error)
	Attempts *prometheus.CounterVec

	// Duration measures attempt latency in seconds.
	// Labels: experiment, trial
	Duration *prometheus.HistogramVec

	// Redirects counts attempts that ran on a trial other than the one
	// selection chose (kill-switch overrides and error-policy replays).
	// Labels: experiment, trial
	Redirects *prometheus.CounterVec
}

// NewMetrics registers the dispatch collectors with reg. Pass
// prometheus.DefaultRegisterer for process-global metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trialrun_attempts_total",
			Help: "Trial attempts by experiment, trial, and status.",
		}, []string{"experiment", "trial", "status"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trialrun_attempt_duration_seconds",
			Help:    "Trial attempt latency in seconds.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		}, []string{"experiment", "trial"}),
		Redirects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trialrun_redirected_attempts_total",
			Help: "Attempts executed on a trial other than the selected one.",
		}, []string{"experiment", "trial"}),
	}
}

// Decorator returns the decorator feeding these collectors.
func (m *Metrics) Decorator() dispatch.Decorator {
	return func(next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, inv dispatch.Invocation) (any, error) {
			start := time.Now()
			result, err := next(ctx, inv)

			status := "success"
			if err != nil {
				status = "error"
			}
			m.Attempts.WithLabelValues(inv.Experiment, inv.TrialKey, status).Inc()
			m.Duration.WithLabelValues(inv.Experiment, inv.TrialKey).Observe(time.Since(start).Seconds())
			if inv.TrialKey != inv.SelectedKey {
				m.Redirects.WithLabelValues(inv.Experiment, inv.TrialKey).Inc()
			}
			return result, err
		}
	}
}
