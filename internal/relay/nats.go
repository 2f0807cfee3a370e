package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/stormlightlabs/notifier/common/messaging"
	"github.com/stormlightlabs/notifier/internal/models"
)

// NATSFanout broadcasts events through a message broker. Every listener holds
// its own subscription, so each sees every event published after it
// subscribed.
type NATSFanout struct {
	client  messaging.Client
	subject string
	opts    options

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

// NewNATSFanout publishes under subject. The client stays owned by the caller.
func NewNATSFanout(client messaging.Client, subject string, opts ...Option) *NATSFanout {
	return &NATSFanout{
		client:  client,
		subject: subject,
		opts:    buildOptions(opts),
		done:    make(chan struct{}),
	}
}

// Enqueue publishes e. Publication is fire-and-forget; a broker error is
// returned as is.
func (f *NATSFanout) Enqueue(e *models.Event) error {
	if f.closed.Load() {
		return ErrQueueClosed
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := &messaging.Message{
		Subject: messaging.EventSubject(f.subject, e.Kind),
		Data:    data,
		Metadata: map[string]string{
			messaging.HeaderEventKind:  e.Kind,
			messaging.HeaderDeliveryID: e.ID,
		},
	}
	if err := f.client.PublishMsg(context.Background(), msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe opens a broker subscription feeding a buffer of the given size.
func (f *NATSFanout) Subscribe(buffer int) (*NATSSubscription, error) {
	if f.closed.Load() {
		return nil, ErrQueueClosed
	}
	if buffer < 1 {
		buffer = 1
	}

	s := &NATSSubscription{
		fanout: f,
		events: make(chan *models.Event, buffer),
		done:   make(chan struct{}),
	}
	sub, err := f.client.Subscribe(messaging.WildcardSubject(f.subject), s.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", f.subject, err)
	}
	s.sub = sub
	return s, nil
}

// Close stops publication and wakes all subscribers. It is idempotent.
func (f *NATSFanout) Close() {
	f.closeOnce.Do(func() {
		f.closed.Store(true)
		close(f.done)
	})
}

// Closed reports whether Close has been called.
func (f *NATSFanout) Closed() bool {
	return f.closed.Load()
}

// NATSSubscription is one listener's view of a NATSFanout.
type NATSSubscription struct {
	fanout *NATSFanout
	sub    messaging.Subscription
	events chan *models.Event
	lagged atomic.Int64

	once sync.Once
	done chan struct{}
}

func (s *NATSSubscription) handle(_ context.Context, msg *messaging.Message) error {
	dec := json.NewDecoder(bytes.NewReader(msg.Data))
	dec.UseNumber()

	var e models.Event
	if err := dec.Decode(&e); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	select {
	case s.events <- &e:
	default:
		s.lagged.Add(1)
		s.fanout.opts.onLag()
	}
	return nil
}

// Next blocks for the next event or returns ErrQueueClosed once the fan-out
// is closed or the subscription cancelled.
func (s *NATSSubscription) Next(ctx context.Context) (*models.Event, error) {
	select {
	case <-s.fanout.done:
		return nil, ErrQueueClosed
	case <-s.done:
		return nil, ErrQueueClosed
	default:
	}

	select {
	case <-s.fanout.done:
		return nil, ErrQueueClosed
	case <-s.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case e := <-s.events:
		return e, nil
	}
}

// Lagged returns how many events this subscriber has missed.
func (s *NATSSubscription) Lagged() int64 {
	return s.lagged.Load()
}

// Unsubscribe cancels the broker subscription. It is idempotent.
func (s *NATSSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.sub.Unsubscribe()
	})
	return err
}
