package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormlightlabs/notifier/common/httputil"
	"github.com/stormlightlabs/notifier/common/logging"
	"github.com/stormlightlabs/notifier/internal/models"
	"github.com/stormlightlabs/notifier/internal/notifier"
	"github.com/stormlightlabs/notifier/internal/relay"
	"github.com/stormlightlabs/notifier/internal/service"
	"github.com/stormlightlabs/notifier/internal/webhook"
)

const testSecret = "It's a Secret to Everybody"

type stubIngester struct {
	status models.AcceptanceStatus
	err    error
	calls  int
	body   []byte
}

func (s *stubIngester) Handle(_ context.Context, _ http.Header, body []byte) (models.AcceptanceStatus, error) {
	s.calls++
	s.body = body
	return s.status, s.err
}

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

func (s *stubLimiter) Close() error { return nil }

func decodeStatusBody(t *testing.T, rr *httptest.ResponseRecorder) httputil.StatusBody {
	t.Helper()
	var body httputil.StatusBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestHandleWebhook_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     models.AcceptanceStatus
		err        error
		wantCode   int
		retryAfter bool
	}{
		{"accepted", models.Accepted, nil, http.StatusAccepted, false},
		{"malformed", models.Malformed, webhook.ErrMalformed, http.StatusBadRequest, false},
		{"unauthorized", models.Unauthorized, webhook.ErrUnauthorized, http.StatusBadRequest, false},
		{"overloaded", models.Overloaded, relay.ErrQueueFull, http.StatusServiceUnavailable, true},
		{"unavailable", models.Unavailable, relay.ErrQueueClosed, http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := &stubIngester{status: tt.status, err: tt.err}
			h := NewWebhookHandler(ing, nil, 1024, logging.Discard())

			req := httptest.NewRequest(http.MethodPost, "/gh", strings.NewReader(`{"zen":"Keep it logically awesome."}`))
			rr := httptest.NewRecorder()
			h.HandleWebhook(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, 1, ing.calls)
			assert.Equal(t, tt.retryAfter, rr.Header().Get("Retry-After") == "1")

			body := decodeStatusBody(t, rr)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.status.String(), body.Text)
		})
	}
}

func TestHandleWebhook_BodyPassedVerbatim(t *testing.T) {
	ing := &stubIngester{status: models.Accepted}
	h := NewWebhookHandler(ing, nil, 0, logging.Discard())

	raw := []byte("{\"action\":\"opened\"}\n")
	h.HandleWebhook(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/gh", bytes.NewReader(raw)))

	assert.Equal(t, raw, ing.body)
}

func TestHandleWebhook_TooLarge(t *testing.T) {
	ing := &stubIngester{status: models.Accepted}
	h := NewWebhookHandler(ing, nil, 8, logging.Discard())

	rr := httptest.NewRecorder()
	h.HandleWebhook(rr, httptest.NewRequest(http.MethodPost, "/gh", strings.NewReader(`{"action":"opened"}`)))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, ing.calls)
	assert.Equal(t, "payload too large", decodeStatusBody(t, rr).Text)
}

func TestHandleWebhook_RateLimited(t *testing.T) {
	ing := &stubIngester{status: models.Accepted}
	lim := &stubLimiter{allow: false}
	h := NewWebhookHandler(ing, lim, 1024, logging.Discard())

	req := httptest.NewRequest(http.MethodPost, "/gh", strings.NewReader(`{}`))
	req.RemoteAddr = "140.82.115.10:40000"
	rr := httptest.NewRecorder()
	h.HandleWebhook(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.Zero(t, ing.calls, "no validation work once limited")
	assert.Equal(t, []string{"140.82.115.10"}, lim.keys)
}

func TestHandleWebhook_LimiterErrorFailsOpen(t *testing.T) {
	ing := &stubIngester{status: models.Accepted}
	lim := &stubLimiter{err: errors.New("redis: connection refused")}
	h := NewWebhookHandler(ing, lim, 1024, logging.Discard())

	rr := httptest.NewRecorder()
	h.HandleWebhook(rr, httptest.NewRequest(http.MethodPost, "/gh", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, 1, ing.calls)
}

// recordingSession is a chat session that never drops.
type recordingSession struct {
	mu   sync.Mutex
	sent []string
	lost chan struct{}
}

func (s *recordingSession) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lost = make(chan struct{})
	return nil
}

func (s *recordingSession) Send(_ context.Context, _, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, content)
	return nil
}

func (s *recordingSession) Close() error { return nil }

func (s *recordingSession) Lost() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lost
}

func (s *recordingSession) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type pipeline struct {
	handler *WebhookHandler
	queue   *relay.Queue
	session *recordingSession
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	queue := relay.NewQueue(8)
	ing := service.NewIngestor(queue, service.IngestConfig{
		Secret:          testSecret,
		UserAgentPrefix: "GitHub-Hookshot/",
		StrictHeaders:   true,
	}, logging.Discard())

	session := &recordingSession{}
	n := notifier.New(notifier.Config{
		ChannelID:    "1187654321",
		ReadyTimeout: time.Second,
		SendTimeout:  time.Second,
	}, session, queue, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		queue.Close()
		<-done
	})

	return &pipeline{
		handler: NewWebhookHandler(ing, nil, 1<<20, logging.Discard()),
		queue:   queue,
		session: session,
	}
}

func signedRequest(body []byte, kind string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/gh", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.HeaderHookID, "292430182")
	req.Header.Set(webhook.HeaderEvent, kind)
	req.Header.Set(webhook.HeaderDelivery, "72d3162e-cc78-11e3-81ab-4c9367dc0958")
	req.Header.Set(webhook.HeaderSignature, "sha1=7d38cdd689735b008b3c702edd92eea23791c5f6")
	req.Header.Set(webhook.HeaderSignature256, webhook.NewSigner(testSecret).Sign(body))
	req.Header.Set(webhook.HeaderUserAgent, "GitHub-Hookshot/044aadd")
	req.Header.Set(webhook.HeaderTargetType, "repository")
	req.Header.Set(webhook.HeaderTargetID, "79929171")
	return req
}

func TestPipeline_SignedEventIsDelivered(t *testing.T) {
	p := newPipeline(t)

	rr := httptest.NewRecorder()
	p.handler.HandleWebhook(rr, signedRequest([]byte(`{"action":"opened"}`), "issues"))
	require.Equal(t, http.StatusAccepted, rr.Code)

	require.Eventually(t, func() bool { return len(p.session.messages()) == 1 }, 2*time.Second, 10*time.Millisecond)
	msg := p.session.messages()[0]
	assert.Contains(t, msg, "**issues**")
	assert.Contains(t, msg, `"action": "opened"`)
}

func TestPipeline_EmptyHeadersRejected(t *testing.T) {
	p := newPipeline(t)

	req := httptest.NewRequest(http.MethodPost, "/gh", strings.NewReader(`{"action":"opened"}`))
	req.Header = http.Header{}
	rr := httptest.NewRecorder()
	p.handler.HandleWebhook(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, p.queue.Len())
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, p.session.messages())
}

func TestPipeline_BadSignatureRejected(t *testing.T) {
	p := newPipeline(t)

	req := signedRequest([]byte(`{"action":"opened"}`), "issues")
	req.Header.Set(webhook.HeaderSignature256, webhook.NewSigner("wrong").Sign([]byte(`{"action":"opened"}`)))
	rr := httptest.NewRecorder()
	p.handler.HandleWebhook(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "unauthorized", decodeStatusBody(t, rr).Text)
	assert.Zero(t, p.queue.Len())
}
