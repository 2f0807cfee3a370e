package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/stormlightlabs/notifier/common/logging"
	"github.com/stormlightlabs/notifier/internal/metrics"
	"github.com/stormlightlabs/notifier/internal/models"
	"github.com/stormlightlabs/notifier/internal/relay"
	"github.com/stormlightlabs/notifier/internal/webhook"
)

// IngestConfig holds the validation knobs of the ingestor.
type IngestConfig struct {
	// Secret enables signature verification when non-empty.
	Secret          string
	UserAgentPrefix string
	StrictHeaders   bool
}

// Ingestor validates webhook deliveries and admits them to the relay. It never
// talks to the chat backend.
type Ingestor struct {
	sink   relay.Sink
	signer *webhook.Signer
	cfg    IngestConfig
	logger *logging.Logger
	now    func() time.Time

	statsMu sync.RWMutex
	stats   models.IngestionStats
}

func NewIngestor(sink relay.Sink, cfg IngestConfig, logger *logging.Logger) *Ingestor {
	if logger == nil {
		logger = logging.Default()
	}
	in := &Ingestor{
		sink:   sink,
		cfg:    cfg,
		logger: logger.With(logging.Service("ingestor")),
		now:    time.Now,
	}
	if cfg.Secret != "" {
		in.signer = webhook.NewSigner(cfg.Secret)
	}
	return in
}

// Handle runs the validation sequence, failing fast on the first violation,
// and enqueues the resulting event without blocking. The error explains any
// status other than Accepted.
func (in *Ingestor) Handle(ctx context.Context, headers http.Header, body []byte) (models.AcceptanceStatus, error) {
	event, err := in.validate(headers, body)
	if err != nil {
		status := models.Malformed
		if errors.Is(err, webhook.ErrUnauthorized) {
			status = models.Unauthorized
		}
		in.record(ctx, status, headers, len(body), err)
		return status, err
	}

	if err := in.sink.Enqueue(event); err != nil {
		status := models.Unavailable
		if errors.Is(err, relay.ErrQueueFull) {
			status = models.Overloaded
		}
		in.record(ctx, status, headers, len(body), err)
		return status, err
	}

	in.record(ctx, models.Accepted, headers, len(body), nil)
	return models.Accepted, nil
}

func (in *Ingestor) validate(h http.Header, body []byte) (*models.Event, error) {
	if len(h) == 0 {
		return nil, fmt.Errorf("%w: empty header set", webhook.ErrMalformed)
	}
	if err := webhook.CheckHeaders(h, in.cfg.StrictHeaders, in.signer != nil); err != nil {
		return nil, err
	}
	if err := webhook.CheckUserAgent(h.Get(webhook.HeaderUserAgent), in.cfg.UserAgentPrefix); err != nil {
		return nil, err
	}
	if in.signer != nil {
		if err := in.signer.Verify(body, h.Get(webhook.HeaderSignature256)); err != nil {
			return nil, err
		}
	}

	payload, err := webhook.DecodeBody(h.Get("Content-Type"), body)
	if err != nil {
		return nil, err
	}

	return &models.Event{
		ID:         h.Get(webhook.HeaderDelivery),
		Kind:       h.Get(webhook.HeaderEvent),
		Payload:    payload,
		HookID:     h.Get(webhook.HeaderHookID),
		TargetType: h.Get(webhook.HeaderTargetType),
		TargetID:   h.Get(webhook.HeaderTargetID),
		ReceivedAt: in.now().UTC(),
	}, nil
}

func (in *Ingestor) record(ctx context.Context, status models.AcceptanceStatus, h http.Header, size int, err error) {
	metrics.WebhooksTotal.WithLabelValues(status.String()).Inc()

	in.statsMu.Lock()
	in.stats.TotalRequests++
	if status == models.Accepted {
		in.stats.Accepted++
		in.stats.TotalBytes += int64(size)
		in.stats.LastEvent = in.now()
	} else {
		in.stats.Rejected++
	}
	in.statsMu.Unlock()

	logger := in.logger.WithEvent(h.Get(webhook.HeaderDelivery), h.Get(webhook.HeaderEvent))
	if hookID := h.Get(webhook.HeaderHookID); hookID != "" {
		logger = logger.With(logging.HookID(hookID))
	}
	outcome := slog.String("outcome", status.String())
	switch status {
	case models.Accepted:
		metrics.WebhookBytesTotal.Add(float64(size))
		logger.InfoContext(ctx, "webhook accepted", outcome)
	case models.Unauthorized:
		logger.WarnContext(ctx, "webhook rejected", outcome, logging.Error(err),
			slog.String("user_agent", h.Get(webhook.HeaderUserAgent)))
	case models.Overloaded, models.Unavailable:
		logger.WarnContext(ctx, "webhook not admitted", outcome, logging.Error(err))
	default:
		logger.InfoContext(ctx, "webhook rejected", outcome, logging.Error(err))
	}
}

// Stats returns a snapshot of the ingestion counters.
func (in *Ingestor) Stats() models.IngestionStats {
	in.statsMu.RLock()
	defer in.statsMu.RUnlock()
	return in.stats
}
