// Package messaging is the broker seam behind the broadcast relay's NATS
// backend. Relayed events travel as JSON bodies with their delivery ID and
// kind duplicated into headers.
package messaging

import (
	"context"
	"time"
)

// Header keys set on every relayed event.
const (
	HeaderEventKind  = "Relay-Event-Kind"
	HeaderDeliveryID = "Relay-Delivery-Id"
)

// Message is one broker message.
type Message struct {
	Subject string
	Data    []byte
	// Metadata is carried as broker headers.
	Metadata map[string]string
	// ReceivedAt is stamped on the subscriber side.
	ReceivedAt time.Time
}

// MessageHandler consumes a delivered message. A returned error is logged by
// the client and does not stop the subscription.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription is a live interest in a subject pattern.
type Subscription interface {
	Unsubscribe() error
	IsValid() bool
}

// Client is what the relay needs from a broker: headered publish, fan-out
// subscribe and a liveness probe.
type Client interface {
	PublishMsg(ctx context.Context, msg *Message) error
	Subscribe(subject string, handler MessageHandler) (Subscription, error)
	IsConnected() bool

	// Drain flushes in-flight messages before closing.
	Drain() error
	Close() error
}
