package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stormlightlabs/notifier/common/httputil"
	"github.com/stormlightlabs/notifier/common/logging"
	"github.com/stormlightlabs/notifier/common/middleware"
	"github.com/stormlightlabs/notifier/internal/models"
	"github.com/stormlightlabs/notifier/internal/ratelimit"
)

// Ingester admits one webhook submission.
type Ingester interface {
	Handle(ctx context.Context, headers http.Header, body []byte) (models.AcceptanceStatus, error)
}

type WebhookHandler struct {
	ingestor Ingester
	limiter  ratelimit.RateLimiter
	maxBody  int64
	logger   *logging.Logger
}

// NewWebhookHandler builds the POST /gh handler. A nil limiter disables rate
// limiting; maxBody <= 0 disables the size cap.
func NewWebhookHandler(ingestor Ingester, limiter ratelimit.RateLimiter, maxBody int64, logger *logging.Logger) *WebhookHandler {
	if limiter == nil {
		limiter = ratelimit.NoOpRateLimiter{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		ingestor: ingestor,
		limiter:  limiter,
		maxBody:  maxBody,
		logger:   logger,
	}
}

func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ip := middleware.ClientIP(r)
	allowed, err := h.limiter.Allow(ctx, ip)
	if err != nil {
		// fail open
		h.logger.WarnContext(ctx, "rate limit check failed", logging.IP(ip), logging.Error(err))
	} else if !allowed {
		w.Header().Set("Retry-After", "1")
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := h.readBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.InfoContext(ctx, "webhook rejected", logging.IP(ip), logging.Error(err))
			httputil.WriteError(w, http.StatusBadRequest, "payload too large")
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	status, err := h.ingestor.Handle(ctx, r.Header, body)
	code := status.StatusCode()
	if status.Retryable() {
		w.Header().Set("Retry-After", "1")
	}
	if status == models.Accepted {
		httputil.WriteJSON(w, code, httputil.StatusBody{Text: status.String(), Code: code})
		return
	}
	if err != nil {
		h.logger.DebugContext(ctx, "webhook not accepted", logging.Error(err))
	}
	httputil.WriteError(w, code, status.String())
}

func (h *WebhookHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	if h.maxBody <= 0 {
		return io.ReadAll(r.Body)
	}
	return io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
}
