package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook ingestion metrics
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_webhooks_total",
			Help: "Total number of webhook submissions by acceptance status",
		},
		[]string{"status"},
	)

	WebhookBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_webhook_bytes_total",
			Help: "Total bytes of accepted webhook bodies",
		},
	)

	// Relay metrics
	QueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_queue_capacity",
			Help: "Maximum capacity of the relay queue",
		},
	)

	BroadcastLagged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_broadcast_lagged_total",
			Help: "Events dropped for subscribers that fell behind",
		},
	)

	// Delivery metrics
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_deliveries_total",
			Help: "Delivery attempts by listener and result",
		},
		[]string{"listener", "result"},
	)

	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notifier_delivery_duration_seconds",
			Help:    "Duration of message sends to the chat backend",
			Buckets: prometheus.DefBuckets,
		},
	)

	SessionReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_session_reconnects_total",
			Help: "Session reconnect attempts by listener",
		},
		[]string{"listener"},
	)

	SessionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notifier_session_state",
			Help: "Current notifier state (0 disconnected, 1 connecting, 2 connected, 3 delivering)",
		},
		[]string{"listener"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_rate_limit_hits_total",
			Help: "Webhook submissions rejected by the rate limiter",
		},
	)
)

var queueDepthOnce sync.Once

// RegisterQueueDepth exposes depth as notifier_queue_depth. Only the first
// call registers; later calls are ignored.
func RegisterQueueDepth(depth func() int) {
	queueDepthOnce.Do(func() {
		promauto.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "notifier_queue_depth",
				Help: "Current number of undelivered events in the relay queue",
			},
			func() float64 { return float64(depth()) },
		)
	})
}
