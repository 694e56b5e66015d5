// Package metrics registers Prometheus metrics for connection lifecycle
// operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Transitions   *prometheus.CounterVec
	ThreadAppends prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebridge_connection_transitions_total",
			Help: "Connection state transitions by operation and outcome.",
		}, []string{"operation", "outcome"}),
		ThreadAppends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carebridge_connection_thread_appends_total",
			Help: "Messages appended to connection threads.",
		}),
	}
}

func (m *Metrics) RecordTransition(operation, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) RecordThreadAppend() {
	if m == nil {
		return
	}
	m.ThreadAppends.Inc()
}
