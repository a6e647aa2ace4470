package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision module.
type Metrics struct {
	// Input loading latencies by source
	InputLatency *prometheus.HistogramVec

	// Decision outcomes by status and workflow kind
	DecisionOutcome *prometheus.CounterVec

	// Overall decide latency
	DecideLatency prometheus.Histogram
}

// New creates a Metrics instance with all decision metrics registered.
func New() *Metrics {
	return &Metrics{
		InputLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idv_decision_input_duration_seconds",
			Help:    "Duration of loading decision inputs by source",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}), // source: "signals", "playbook", "rules", "insight", "lists", "vault"

		DecisionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idv_decision_outcomes_total",
			Help: "Total decision outcomes by status and workflow kind",
		}, []string{"status", "kind"}),

		DecideLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "idv_decision_decide_duration_seconds",
			Help:    "Duration of a full decision including input loading and persistence",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// ObserveInputLatency records the duration of loading one input.
func (m *Metrics) ObserveInputLatency(source string, d time.Duration) {
	if m != nil {
		m.InputLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncrementOutcome records a decision outcome.
func (m *Metrics) IncrementOutcome(status, kind string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(status, kind).Inc()
	}
}

// ObserveDecideLatency records the total decide duration.
func (m *Metrics) ObserveDecideLatency(d time.Duration) {
	if m != nil {
		m.DecideLatency.Observe(d.Seconds())
	}
}
