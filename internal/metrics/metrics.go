// Package metrics exposes Prometheus counters for the conversation engine
// and the webhook surface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors recorded across the service.
type Metrics struct {
	registry *prometheus.Registry

	MessagesReceived   *prometheus.CounterVec
	MessagesSent       *prometheus.CounterVec
	PhaseTransitions   *prometheus.CounterVec
	HandlerFailures    prometheus.Counter
	DuplicatesDropped  prometheus.Counter
	AdvisorFallbacks   prometheus.Counter
	WebhookPayloadSize prometheus.Histogram
}

// New creates a metrics set on its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "finassist_messages_received_total",
			Help: "Inbound webhook messages by type.",
		}, []string{"type"}),
		MessagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "finassist_messages_sent_total",
			Help: "Outbound messages by transport.",
		}, []string{"transport"}),
		PhaseTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "finassist_phase_transitions_total",
			Help: "Conversation phase transitions by target phase.",
		}, []string{"to"}),
		HandlerFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "finassist_handler_failures_total",
			Help: "Phase handler failures converted to apologies.",
		}),
		DuplicatesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "finassist_webhook_duplicates_dropped_total",
			Help: "Webhook deliveries dropped by deduplication.",
		}),
		AdvisorFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "finassist_advisor_fallbacks_total",
			Help: "Advisor replies that used the canned fallback.",
		}),
		WebhookPayloadSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "finassist_webhook_payload_bytes",
			Help:    "Size of received webhook payloads.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 6),
		}),
	}
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
