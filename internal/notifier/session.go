// Package notifier delivers relayed events to a chat channel over a
// long-lived bot session, reconnecting with bounded backoff when the session
// drops.
package notifier

import (
	"context"
	"errors"
)

var (
	// ErrDeliveryFailed marks a single failed send on a healthy session.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrSessionLost marks a failure of the connection itself.
	ErrSessionLost = errors.New("chat session lost")
)

// Session is a connection to the chat backend owned by exactly one Notifier.
type Session interface {
	// Open connects and blocks until the backend reports readiness.
	Open(ctx context.Context) error
	// Send posts content to channelID. An error wrapping ErrSessionLost
	// means the connection is gone; any other error concerns this message only.
	Send(ctx context.Context, channelID, content string) error
	// Close tears the connection down. It is safe to call on a closed session.
	Close() error
	// Lost is closed when the current connection drops.
	Lost() <-chan struct{}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
