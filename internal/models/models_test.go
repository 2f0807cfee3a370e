package models

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcceptanceStatus(t *testing.T) {
	tests := []struct {
		status    AcceptanceStatus
		name      string
		code      int
		retryable bool
	}{
		{Accepted, "accepted", http.StatusAccepted, false},
		{Malformed, "malformed", http.StatusBadRequest, false},
		{Unauthorized, "unauthorized", http.StatusBadRequest, false},
		{Overloaded, "overloaded", http.StatusServiceUnavailable, true},
		{Unavailable, "unavailable", http.StatusServiceUnavailable, true},
		{AcceptanceStatus(99), "unknown", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.status.String())
			assert.Equal(t, tt.code, tt.status.StatusCode())
			assert.Equal(t, tt.retryable, tt.status.Retryable())
		})
	}
}

func TestEventAccessors(t *testing.T) {
	e := &Event{
		Kind: "issues",
		Payload: map[string]any{
			"action":     "opened",
			"repository": map[string]any{"full_name": "octo/hello"},
			"sender":     map[string]any{"login": "octocat"},
		},
	}
	assert.Equal(t, "opened", e.Action())
	assert.Equal(t, "octo/hello", e.Repository())
	assert.Equal(t, "octocat", e.Sender())

	bare := &Event{Kind: "ping", Payload: []any{"not", "a", "map"}}
	assert.Empty(t, bare.Action())
	assert.Empty(t, bare.Repository())

	wrongType := &Event{Payload: map[string]any{"action": 7, "repository": "flat"}}
	assert.Empty(t, wrongType.Action())
	assert.Empty(t, wrongType.Repository())
}
