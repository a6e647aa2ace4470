package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts applied and rejected transitions.
type Metrics struct {
	Transitions *prometheus.CounterVec
	Rejections  *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idv_workflow_transitions_total",
			Help: "Committed workflow transitions by kind and target state",
		}, []string{"kind", "to_state"}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idv_workflow_rejections_total",
			Help: "Actions rejected by kind, action and error code",
		}, []string{"kind", "action", "code"}),
		Duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idv_workflow_action_duration_seconds",
			Help:    "Duration of one workflow action including its transition body",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind", "action"}),
	}
}

func (m *Metrics) observeTransition(kind Kind, to State) {
	if m != nil {
		m.Transitions.WithLabelValues(string(kind), string(to)).Inc()
	}
}

func (m *Metrics) observeRejection(kind Kind, action ActionKind, code string) {
	if m != nil {
		m.Rejections.WithLabelValues(string(kind), string(action), code).Inc()
	}
}

func (m *Metrics) observeDuration(kind Kind, action ActionKind, d time.Duration) {
	if m != nil {
		m.Duration.WithLabelValues(string(kind), string(action)).Observe(d.Seconds())
	}
}
