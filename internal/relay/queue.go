// Package relay carries accepted events from the ingestor to the notifiers.
// Queue is the default single-consumer hand-off; Broadcaster and NATSFanout
// deliver every event to every subscriber.
package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/stormlightlabs/notifier/internal/models"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer is at capacity.
	ErrQueueFull = errors.New("relay queue full")
	// ErrQueueClosed is returned once Close has been called.
	ErrQueueClosed = errors.New("relay queue closed")
)

// Sink accepts events without blocking.
type Sink interface {
	Enqueue(e *models.Event) error
}

// Source yields events to a single notifier, blocking until one is available.
type Source interface {
	Next(ctx context.Context) (*models.Event, error)
}

// Queue is a bounded FIFO safe for many producers and one consumer.
type Queue struct {
	events chan *models.Event
	done   chan struct{}

	// mu orders Enqueue against Close so no send starts after closing.
	mu     sync.RWMutex
	closed bool
}

// NewQueue returns a queue holding at most capacity undelivered events.
// A capacity below 1 is raised to 1.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		events: make(chan *models.Event, capacity),
		done:   make(chan struct{}),
	}
}

// Enqueue adds e without blocking.
func (q *Queue) Enqueue(e *models.Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.events <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks until an event is available, the queue is closed or ctx
// ends. Events still buffered at Close are discarded.
func (q *Queue) Dequeue(ctx context.Context) (*models.Event, error) {
	select {
	case <-q.done:
		return nil, ErrQueueClosed
	default:
	}

	select {
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case e := <-q.events:
		return e, nil
	}
}

// Next implements Source.
func (q *Queue) Next(ctx context.Context) (*models.Event, error) {
	return q.Dequeue(ctx)
}

// Close stops admission and wakes every blocked Dequeue. It is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.done)
	}
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	return len(q.events)
}

// Cap returns the capacity fixed at construction.
func (q *Queue) Cap() int {
	return cap(q.events)
}
