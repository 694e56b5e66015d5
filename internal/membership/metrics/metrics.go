// Package metrics registers Prometheus metrics for the entitlement gate and
// billing webhook intake.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	GateDenials   *prometheus.CounterVec
	QuotaConsumed prometheus.Counter
	WebhookEvents *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		GateDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebridge_entitlement_denials_total",
			Help: "Entitlement gate denials by action and reason.",
		}, []string{"action", "reason"}),
		QuotaConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carebridge_free_quota_consumed_total",
			Help: "Free-tier metered actions consumed.",
		}),
		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebridge_billing_webhook_events_total",
			Help: "Billing webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
	}
}

func (m *Metrics) RecordGateDenial(action, reason string) {
	if m == nil {
		return
	}
	m.GateDenials.WithLabelValues(action, reason).Inc()
}

func (m *Metrics) RecordQuotaConsumed() {
	if m == nil {
		return
	}
	m.QuotaConsumed.Inc()
}

func (m *Metrics) RecordWebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}
