// Package metrics declares the Prometheus collectors exported by CatalogRelay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebhookEvents counts inbound webhook deliveries by classification
	// (message, status, invalid, malformed).
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogrelay_webhook_events_total",
			Help: "Total number of webhook deliveries by event kind",
		},
		[]string{"kind"},
	)

	// RouterActions counts actions enqueued by the router.
	RouterActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogrelay_router_actions_total",
			Help: "Total number of actions enqueued by the message router",
		},
		[]string{"action"},
	)

	// Dispatches counts outbound sends by message kind and result (sent, failed).
	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogrelay_dispatch_total",
			Help: "Total number of outbound message sends",
		},
		[]string{"kind", "result"},
	)

	// CatalogFallbacks counts catalog resolutions that fell back to the sentinel item.
	CatalogFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogrelay_catalog_fallback_total",
			Help: "Total number of catalog resolutions that used the fallback item",
		},
		[]string{"reason"},
	)

	// AIFallbacks counts completions replaced by the apology text.
	AIFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogrelay_ai_fallback_total",
			Help: "Total number of AI replies replaced by the fallback apology",
		},
	)

	// ExternalCallDuration observes latency of calls to external services
	// (catalog, completion, send).
	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalogrelay_external_call_duration_seconds",
			Help:    "Duration of external service calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)
)

// Handler returns the HTTP handler that serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
