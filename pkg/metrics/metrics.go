// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WebhookDeliveriesTotal tracks webhook deliveries per channel and result.
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Webhook deliveries received, by channel and result",
		},
		[]string{"channel", "result"},
	)

	// InboundEventsDropped tracks normalizer drops (echo, receipts, malformed).
	InboundEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbound_events_dropped_total",
			Help: "Inbound events dropped during normalization",
		},
		[]string{"channel", "reason"},
	)

	// MessagesTotal tracks persisted messages by sender.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages persisted",
		},
		[]string{"business_id", "sender"},
	)

	// AITurnDuration tracks AI collaborator turn duration by outcome.
	AITurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_turn_duration_seconds",
			Help:    "AI reply generation duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"outcome"},
	)

	// DeliveryRetriesTotal tracks outbound delivery retries.
	DeliveryRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_retries_total",
			Help: "Outbound delivery retry attempts",
		},
	)

	// DeliveryFailuresTotal tracks deliveries that exhausted retries.
	DeliveryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_failures_total",
			Help: "Outbound deliveries that failed after retry exhaustion",
		},
		[]string{"channel"},
	)

	// TicketsTotal tracks tickets created by category and priority.
	TicketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_total",
			Help: "Total tickets created",
		},
		[]string{"business_id", "category", "priority"},
	)

	// TicketsByStatus gauges open ticket counts per status.
	TicketsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tickets_by_status",
			Help: "Tickets per lifecycle status",
		},
		[]string{"business_id", "status"},
	)

	// TicketsBySLAStatus gauges tickets per derived SLA status.
	TicketsBySLAStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tickets_by_sla_status",
			Help: "Open tickets per derived SLA status",
		},
		[]string{"business_id", "sla_status"},
	)

	// EscalationsTotal tracks escalations raised.
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalations_total",
			Help: "Ticket escalations raised",
		},
		[]string{"business_id"},
	)

	// ActiveSessions gauges the live AI session registry size.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Active AI turn sessions in the registry",
		},
	)

	// StreamPublishesTotal tracks events published to the durable stream.
	StreamPublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_publishes_total",
			Help: "Events published to the durable inbox stream",
		},
		[]string{"kind", "result"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordAITurn records an AI collaborator turn.
func RecordAITurn(outcome string, duration float64) {
	AITurnDuration.WithLabelValues(outcome).Observe(duration)
}
