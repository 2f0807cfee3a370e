package models

import "time"

// Event is one accepted GitHub webhook delivery. It is immutable once
// constructed and carries no references to HTTP request state.
type Event struct {
	// ID is the delivery identifier supplied by GitHub.
	ID string `json:"id"`
	// Kind is the event category from X-GitHub-Event, e.g. "push".
	Kind string `json:"kind"`
	// Payload is the decoded body as a generic JSON tree.
	Payload any `json:"payload"`

	HookID     string    `json:"hook_id,omitempty"`
	TargetType string    `json:"target_type,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Repository returns payload.repository.full_name when present.
func (e *Event) Repository() string {
	return e.stringAt("repository", "full_name")
}

// Action returns payload.action when present.
func (e *Event) Action() string {
	return e.stringAt("action")
}

// Sender returns payload.sender.login when present.
func (e *Event) Sender() string {
	return e.stringAt("sender", "login")
}

func (e *Event) stringAt(path ...string) string {
	cur := e.Payload
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[p]
	}
	s, _ := cur.(string)
	return s
}

// IngestionStats counts webhook outcomes since startup.
type IngestionStats struct {
	TotalRequests int64     `json:"total_requests"`
	Accepted      int64     `json:"accepted"`
	Rejected      int64     `json:"rejected"`
	TotalBytes    int64     `json:"total_bytes"`
	LastEvent     time.Time `json:"last_event,omitzero"`
}
