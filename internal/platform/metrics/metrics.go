// Package metrics holds process-wide Prometheus metrics. Feature packages
// register their own metrics in their metrics subpackages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds transport-level Prometheus metrics.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
}

// New creates and registers all transport metrics.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carebridge_http_request_duration_seconds",
			Help:    "HTTP request latency by method and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
}

// ObserveRequest records one request observation.
func (m *Metrics) ObserveRequest(method, status string, seconds float64) {
	m.RequestDuration.WithLabelValues(method, status).Observe(seconds)
}
