package relay

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stormlightlabs/notifier/internal/models"
)

// Option configures a fan-out primitive.
type Option func(*options)

type options struct {
	onLag func()
}

// WithLagObserver registers fn to be called once per event dropped for a
// subscriber whose buffer was full.
func WithLagObserver(fn func()) Option {
	return func(o *options) { o.onLag = fn }
}

func buildOptions(opts []Option) options {
	o := options{onLag: func() {}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Broadcaster delivers every published event to every current subscriber.
// Each subscriber reads from its own bounded buffer; one that falls behind
// loses the overflow instead of stalling the publisher or its peers. There is
// no replay: a subscriber sees only events published after it subscribed.
type Broadcaster struct {
	opts options

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
	done   chan struct{}
}

func NewBroadcaster(opts ...Option) *Broadcaster {
	return &Broadcaster{
		opts: buildOptions(opts),
		subs: make(map[*Subscription]struct{}),
		done: make(chan struct{}),
	}
}

// Enqueue publishes e to all subscribers. It never blocks and only fails
// after Close.
func (b *Broadcaster) Enqueue(e *models.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrQueueClosed
	}
	for s := range b.subs {
		select {
		case s.events <- e:
		default:
			s.lagged.Add(1)
			b.opts.onLag()
		}
	}
	return nil
}

// Subscribe registers a subscriber with room for buffer pending events.
func (b *Broadcaster) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	s := &Subscription{
		b:      b,
		events: make(chan *models.Event, buffer),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.subs[s] = struct{}{}
	}
	return s
}

// Subscribers returns the number of registered subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close stops publication and wakes every subscriber. It is idempotent.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	clear(b.subs)
}

// Closed reports whether Close has been called.
func (b *Broadcaster) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Subscription is one subscriber's cursor into a Broadcaster.
type Subscription struct {
	b      *Broadcaster
	events chan *models.Event
	lagged atomic.Int64

	once sync.Once
	done chan struct{}
}

// Next blocks for the next event. It returns ErrQueueClosed after the
// broadcaster is closed or the subscription is cancelled.
func (s *Subscription) Next(ctx context.Context) (*models.Event, error) {
	select {
	case <-s.b.done:
		return nil, ErrQueueClosed
	case <-s.done:
		return nil, ErrQueueClosed
	default:
	}

	select {
	case <-s.b.done:
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
func (s *Subscription) Lagged() int64 {
	return s.lagged.Load()
}

// Unsubscribe removes the subscriber. It is idempotent.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.b.mu.Lock()
		delete(s.b.subs, s)
		s.b.mu.Unlock()
		close(s.done)
	})
}
