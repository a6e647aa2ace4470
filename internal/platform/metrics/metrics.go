package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds process-level Prometheus metrics. Package-specific metrics
// live next to the code they measure.
type Metrics struct {
	DependencyUp *prometheus.GaugeVec
}

// New creates and registers process metrics.
func New() *Metrics {
	return &Metrics{
		DependencyUp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "idv_dependency_up",
			Help: "Whether a dependency passed its last readiness check (1) or not (0)",
		}, []string{"dependency"}),
	}
}

// SetDependencyUp records the last readiness outcome for a dependency.
func (m *Metrics) SetDependencyUp(name string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.DependencyUp.WithLabelValues(name).Set(v)
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
