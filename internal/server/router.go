package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stormlightlabs/notifier/common/logging"
	"github.com/stormlightlabs/notifier/common/middleware"
	"github.com/stormlightlabs/notifier/internal/handlers"
)

// NewRouter constructs a ServeMux with the relay routes registered.
func NewRouter(webhook *handlers.WebhookHandler, status *handlers.StatusHandler, logger *logging.Logger) http.Handler {
	mux := http.NewServeMux()

	// Liveness summary and webhook intake
	mux.HandleFunc("GET /{$}", status.Status)
	mux.HandleFunc("POST /gh", webhook.HandleWebhook)

	// Health endpoints
	mux.HandleFunc("GET /healthz", status.Health)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	if logger == nil {
		logger = logging.Default()
	}
	return middleware.RequestID(middleware.AccessLog(logger.Logger)(mux))
}
