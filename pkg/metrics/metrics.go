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

	// WebhooksTotal tracks inbound webhook deliveries by platform and outcome.
	// Outcome is one of: stored, duplicate, malformed, store_error.
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_webhooks_total",
			Help: "Inbound webhook deliveries",
		},
		[]string{"platform", "outcome"},
	)

	// MessagesTotal tracks stored messages by platform and direction.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_messages_total",
			Help: "Messages stored",
		},
		[]string{"platform", "direction"},
	)

	// RoutingAnalysesTotal tracks routing analyzer invocations by outcome.
	// Outcome is one of: assigned, below_threshold, no_suggestion, no_teams, error.
	RoutingAnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_routing_analyses_total",
			Help: "Routing analyzer invocations",
		},
		[]string{"outcome"},
	)

	// RoutingDuration tracks routing analyzer duration including the LLM call.
	RoutingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inbox_routing_duration_seconds",
			Help:    "Routing analyzer duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30},
		},
	)

	// LLMTokensTotal tracks LLM tokens processed by the routing analyzer.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// SendDuration tracks outbound provider send duration.
	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inbox_send_duration_seconds",
			Help:    "Outbound provider send duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"platform", "status"},
	)

	// RoutingTasksPending tracks routing tasks waiting in the queue.
	RoutingTasksPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inbox_routing_tasks_pending",
			Help: "Routing tasks pending in the queue",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordWebhook records one inbound webhook delivery.
func RecordWebhook(platform, outcome string) {
	WebhooksTotal.WithLabelValues(platform, outcome).Inc()
}

// RecordSend records one outbound provider send.
func RecordSend(platform, status string, duration float64) {
	SendDuration.WithLabelValues(platform, status).Observe(duration)
}

// RecordRouting records one routing analyzer invocation.
func RecordRouting(outcome string, duration float64, model string, tokensIn, tokensOut int) {
	RoutingAnalysesTotal.WithLabelValues(outcome).Inc()
	RoutingDuration.Observe(duration)
	if model != "" {
		LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
		LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
	}
}
