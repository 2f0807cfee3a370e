// Package sender posts realistic, signed webhook deliveries to a running
// relay. It backs the send-test command.
package sender

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/stormlightlabs/notifier/internal/webhook"
)

// UserAgent identifies test deliveries while still passing the default
// GitHub-Hookshot/ prefix check.
const UserAgent = "GitHub-Hookshot/notifier-send-test"

// Sender delivers webhook submissions the way GitHub does.
type Sender struct {
	URL        string
	Secret     string
	HookID     string
	HTTPClient *http.Client
}

// New creates a Sender for the relay at baseURL.
func New(baseURL, secret string) *Sender {
	return &Sender{
		URL:    strings.TrimSuffix(baseURL, "/") + "/gh",
		Secret: secret,
		HookID: strconv.Itoa(gofakeit.Number(100000000, 999999999)),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send encodes payload as JSON, signs it and posts it as a kind event. It
// returns the HTTP status the relay answered with.
func (s *Sender) Send(ctx context.Context, kind string, payload any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.HeaderHookID, s.HookID)
	req.Header.Set(webhook.HeaderEvent, kind)
	req.Header.Set(webhook.HeaderDelivery, uuid.New().String())
	req.Header.Set(webhook.HeaderUserAgent, UserAgent)
	req.Header.Set(webhook.HeaderTargetType, "repository")
	req.Header.Set(webhook.HeaderTargetID, strconv.Itoa(repositoryID(payload)))
	if s.Secret != "" {
		req.Header.Set(webhook.HeaderSignature, signSHA1(s.Secret, body))
		req.Header.Set(webhook.HeaderSignature256, webhook.NewSigner(s.Secret).Sign(body))
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// signSHA1 fills the legacy header GitHub still sends alongside the
// sha256 one.
func signSHA1(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

func repositoryID(payload any) int {
	if m, ok := payload.(map[string]any); ok {
		if repo, ok := m["repository"].(map[string]any); ok {
			if id, ok := repo["id"].(int); ok {
				return id
			}
		}
	}
	return 0
}
