package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormlightlabs/notifier/common/messaging"
	"github.com/stormlightlabs/notifier/internal/models"
)

type stubListeners struct {
	connected bool
	states    map[string]string
}

func (s stubListeners) Connected() bool           { return s.connected }
func (s stubListeners) States() map[string]string { return s.states }

type stubRelay struct{ closed bool }

func (s stubRelay) Closed() bool { return s.closed }

type stubStats struct{ stats models.IngestionStats }

func (s stubStats) Stats() models.IngestionStats { return s.stats }

type stubBroker struct {
	messaging.Client
	connected bool
}

func (s stubBroker) IsConnected() bool { return s.connected }

func TestStatus(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		closed    bool
		want      string
	}{
		{"all up", true, false, `{"discord":true,"github":true}`},
		{"chat down", false, false, `{"discord":false,"github":true}`},
		{"relay closed", true, true, `{"discord":true,"github":false}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewStatusHandler(stubListeners{connected: tt.connected}, stubRelay{closed: tt.closed}, nil, nil)

			rr := httptest.NewRecorder()
			h.Status(rr, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.JSONEq(t, tt.want, rr.Body.String())
		})
	}
}

func TestHealth(t *testing.T) {
	stats := stubStats{stats: models.IngestionStats{TotalRequests: 3, Accepted: 2, Rejected: 1, TotalBytes: 40, LastEvent: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}}
	states := map[string]string{"primary": "connected", "audit": "connecting"}

	tests := []struct {
		name       string
		connected  bool
		closed     bool
		broker     messaging.Client
		wantCode   int
		wantStatus string
	}{
		{"ok", true, false, nil, http.StatusOK, "ok"},
		{"degraded", false, false, nil, http.StatusOK, "degraded"},
		{"closed", true, true, nil, http.StatusServiceUnavailable, "unavailable"},
		{"broker up", true, false, stubBroker{connected: true}, http.StatusOK, "ok"},
		{"broker down", true, false, stubBroker{connected: false}, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewStatusHandler(stubListeners{connected: tt.connected, states: states}, stubRelay{closed: tt.closed}, stats, tt.broker)

			rr := httptest.NewRecorder()
			h.Health(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			require.Equal(t, tt.wantCode, rr.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, states, resp.Listeners)
			assert.Equal(t, int64(2), resp.Ingestion.Accepted)
			if tt.broker == nil {
				assert.Nil(t, resp.NATS)
			} else {
				require.NotNil(t, resp.NATS)
				assert.Equal(t, tt.broker.IsConnected(), resp.NATS.Connected)
			}
		})
	}
}
