package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the issue workflow.
// All methods are safe on a nil receiver.
type Metrics struct {
	// Workflow outcomes by action and outcome
	ActionOutcome *prometheus.CounterVec

	// Latency of one Apply call, load to projection
	ActionLatency *prometheus.HistogramVec

	// Projection cache lookups by result
	CacheLookups *prometheus.CounterVec
}

// New registers the workflow metrics with reg. Pass prometheus.DefaultRegisterer
// in the process and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActionOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "citizen_issue_actions_total",
			Help: "Total issue workflow actions by action and outcome",
		}, []string{"action", "outcome"}),

		ActionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "citizen_issue_action_duration_seconds",
			Help:    "Duration of issue workflow actions including persistence and projection",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"action"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "citizen_issue_cache_lookups_total",
			Help: "Projection cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "error"
	}
}

// ObserveAction records one workflow action outcome and its duration.
func (m *Metrics) ObserveAction(action, outcome string, d time.Duration) {
	if m != nil {
		m.ActionOutcome.WithLabelValues(action, outcome).Inc()
		m.ActionLatency.WithLabelValues(action).Observe(d.Seconds())
	}
}

// IncrementCacheLookup records a projection cache lookup result.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}
