package document

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks stage calls, retries and session outcomes.
type Metrics struct {
	StageCalls *prometheus.CounterVec
	Retries    *prometheus.CounterVec
	Outcomes   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		StageCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idv_document_stage_calls_total",
			Help: "Document vendor stage calls by stage and outcome",
		}, []string{"stage", "outcome"}),
		Retries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idv_document_retries_total",
			Help: "Image retries requested by side",
		}, []string{"side"}),
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idv_document_outcomes_total",
			Help: "Machine runs by returned status",
		}, []string{"status"}),
	}
}

func (m *Metrics) incStageCall(stage Stage, outcome string) {
	if m != nil {
		m.StageCalls.WithLabelValues(string(stage), outcome).Inc()
	}
}

func (m *Metrics) incRetry(side Side) {
	if m != nil {
		m.Retries.WithLabelValues(string(side)).Inc()
	}
}

func (m *Metrics) incOutcome(status Status) {
	if m != nil {
		m.Outcomes.WithLabelValues(string(status)).Inc()
	}
}
