package handlers

import (
	"net/http"

	"github.com/stormlightlabs/notifier/common/httputil"
	"github.com/stormlightlabs/notifier/common/messaging"
	"github.com/stormlightlabs/notifier/internal/models"
)

// Listeners reports the chat side of the pipeline.
type Listeners interface {
	Connected() bool
	States() map[string]string
}

// Relay reports whether ingestion is still open.
type Relay interface {
	Closed() bool
}

// StatsSource exposes ingestion counters.
type StatsSource interface {
	Stats() models.IngestionStats
}

type StatusHandler struct {
	listeners Listeners
	relay     Relay
	stats     StatsSource
	broker    messaging.Client
}

// NewStatusHandler builds GET / and GET /healthz. broker is nil unless the
// nats broadcast backend is in use.
func NewStatusHandler(listeners Listeners, relay Relay, stats StatsSource, broker messaging.Client) *StatusHandler {
	return &StatusHandler{
		listeners: listeners,
		relay:     relay,
		stats:     stats,
		broker:    broker,
	}
}

// StatusResponse is the body of GET /.
type StatusResponse struct {
	Discord bool `json:"discord"`
	GitHub  bool `json:"github"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Discord   bool                    `json:"discord"`
	GitHub    bool                    `json:"github"`
	Listeners map[string]string       `json:"listeners"`
	Ingestion models.IngestionStats   `json:"ingestion"`
	NATS      *messaging.HealthStatus `json:"nats,omitempty"`
}

func (h *StatusHandler) status() StatusResponse {
	return StatusResponse{
		Discord: h.listeners.Connected(),
		GitHub:  !h.relay.Closed(),
	}
}

// Status always answers 200; the booleans carry the health.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.status())
}

// Health answers 503 once ingestion has closed or the broker link is down.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.status()
	resp := HealthResponse{
		Status:    "ok",
		Discord:   st.Discord,
		GitHub:    st.GitHub,
		Listeners: h.listeners.States(),
	}
	if h.stats != nil {
		resp.Ingestion = h.stats.Stats()
	}

	code := http.StatusOK
	if h.broker != nil {
		nh := messaging.CheckClientHealth(h.broker)
		resp.NATS = &nh
		if !nh.Connected {
			code = http.StatusServiceUnavailable
		}
	}
	if !st.GitHub {
		code = http.StatusServiceUnavailable
	}
	switch {
	case code != http.StatusOK:
		resp.Status = "unavailable"
	case !st.Discord:
		resp.Status = "degraded"
	}

	httputil.WriteJSON(w, code, resp)
}
