package logging

import (
	"log/slog"
	"time"
)

// Common field names for consistent logging across the relay.
const (
	FieldService    = "service"
	FieldRequestID  = "request_id"
	FieldIP         = "ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldEventID    = "event_id"
	FieldEventKind  = "event_kind"
	FieldHookID     = "hook_id"
	FieldChannelID  = "channel_id"
	FieldListener   = "listener"
	FieldState      = "state"
	FieldAttempt    = "attempt"
	FieldQueueDepth = "queue_depth"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// RequestID returns a slog attribute for the request ID.
func RequestID(id string) slog.Attr {
	return slog.String(FieldRequestID, id)
}

// IP returns a slog attribute for the IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for a duration, rendered in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// EventID returns a slog attribute for an event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// EventKind returns a slog attribute for the event category.
func EventKind(kind string) slog.Attr {
	return slog.String(FieldEventKind, kind)
}

// HookID returns a slog attribute for the webhook configuration ID.
func HookID(id string) slog.Attr {
	return slog.String(FieldHookID, id)
}

// ChannelID returns a slog attribute for a chat channel ID.
func ChannelID(id string) slog.Attr {
	return slog.String(FieldChannelID, id)
}

// Listener returns a slog attribute naming a notifier listener.
func Listener(name string) slog.Attr {
	return slog.String(FieldListener, name)
}

// State returns a slog attribute for a state machine state.
func State(s string) slog.Attr {
	return slog.String(FieldState, s)
}

// Attempt returns a slog attribute for a retry attempt counter.
func Attempt(n int) slog.Attr {
	return slog.Int(FieldAttempt, n)
}

// QueueDepth returns a slog attribute for the relay queue depth.
func QueueDepth(n int) slog.Attr {
	return slog.Int(FieldQueueDepth, n)
}
