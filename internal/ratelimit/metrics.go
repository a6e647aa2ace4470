package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected    prometheus.Counter
	StoreErrors prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Rejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idv_ratelimit_rejected_total",
			Help: "Requests rejected by the per-tenant rate limit",
		}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idv_ratelimit_store_errors_total",
			Help: "Rate limit checks that failed open because the store errored",
		}),
	}
}

func (m *Metrics) incRejected() {
	if m == nil {
		return
	}
	m.Rejected.Inc()
}

func (m *Metrics) incStoreError() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}
