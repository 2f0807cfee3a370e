package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/stormlightlabs/notifier/common/logging"
	"github.com/stormlightlabs/notifier/internal/metrics"
	"github.com/stormlightlabs/notifier/internal/models"
	"github.com/stormlightlabs/notifier/internal/relay"
)

// State is the notifier's connection state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Delivering
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Delivering:
		return "delivering"
	default:
		return "unknown"
	}
}

// ReconnectPolicy bounds session re-establishment.
type ReconnectPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p ReconnectPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxRetries)), ctx)
}

type Config struct {
	// Name identifies the listener in logs and metrics.
	Name      string
	ChannelID string
	// ReadyTimeout bounds each wait for the session to become ready.
	ReadyTimeout time.Duration
	// SendTimeout bounds one message send. A send is also abandoned when the
	// context given to Run ends; closing the relay lets it finish.
	SendTimeout time.Duration
	Reconnect   ReconnectPolicy
}

// Notifier drains a relay source and delivers each event to one channel.
// Delivery is at most once: a failed send is logged and never retried.
type Notifier struct {
	cfg     Config
	session Session
	source  relay.Source
	logger  *logging.Logger
	state   atomic.Int32
}

func New(cfg Config, session Session, source relay.Source, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "primary"
	}
	n := &Notifier{
		cfg:     cfg,
		session: session,
		source:  source,
		logger:  logger.With(logging.Service("notifier"), logging.Listener(cfg.Name)),
	}
	n.setState(Disconnected)
	return n
}

// State returns the current state.
func (n *Notifier) State() State {
	return State(n.state.Load())
}

// Connected reports whether the session is up.
func (n *Notifier) Connected() bool {
	s := n.State()
	return s == Connected || s == Delivering
}

// Name returns the listener name.
func (n *Notifier) Name() string {
	return n.cfg.Name
}

func (n *Notifier) setState(s State) {
	prev := State(n.state.Swap(int32(s)))
	metrics.SessionState.WithLabelValues(n.cfg.Name).Set(float64(s))
	// delivering flips on every event and would drown the log
	if prev != s && s != Delivering && prev != Delivering {
		n.logger.Debug("state changed", logging.State(s.String()), slog.String("from", prev.String()))
	}
}

// Run connects and delivers until the source is closed or ctx ends, both of
// which return nil. Failing to connect at startup, or to reconnect after
// exhausting the policy, returns an error wrapping ErrSessionLost.
func (n *Notifier) Run(ctx context.Context) error {
	if err := n.connect(ctx); err != nil {
		return stopErr(ctx, fmt.Errorf("start session for %s: %w", n.cfg.Name, err))
	}
	defer func() {
		_ = n.session.Close()
		n.setState(Disconnected)
	}()

	for {
		if isClosed(n.session.Lost()) {
			if err := n.reconnect(ctx); err != nil {
				return stopErr(ctx, err)
			}
			continue
		}

		event, err := n.next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, relay.ErrQueueClosed), ctx.Err() != nil:
			n.logger.InfoContext(ctx, "relay closed, notifier stopping")
			return nil
		case errors.Is(err, ErrSessionLost):
			continue
		default:
			return fmt.Errorf("dequeue: %w", err)
		}

		if err := n.deliver(ctx, event); errors.Is(err, ErrSessionLost) {
			if err := n.reconnect(ctx); err != nil {
				return stopErr(ctx, err)
			}
		}
	}
}

// next waits for an event, giving up early with ErrSessionLost when the
// session drops so the reconnect does not wait for traffic.
func (n *Notifier) next(ctx context.Context) (*models.Event, error) {
	lost := n.session.Lost()
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-lost:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	event, err := n.source.Next(waitCtx)
	if err != nil && ctx.Err() == nil && isClosed(lost) {
		return nil, ErrSessionLost
	}
	return event, err
}

func (n *Notifier) deliver(ctx context.Context, e *models.Event) error {
	n.setState(Delivering)
	defer n.setState(Connected)

	sendCtx := ctx
	if n.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(sendCtx, n.cfg.SendTimeout)
		defer cancel()
	}

	start := time.Now()
	err := n.session.Send(sendCtx, n.cfg.ChannelID, Format(e))
	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

	logger := n.logger.WithEvent(e.ID, e.Kind)
	attrs := []any{
		logging.ChannelID(n.cfg.ChannelID),
		logging.Duration(time.Since(start)),
	}
	switch {
	case err == nil:
		metrics.DeliveriesTotal.WithLabelValues(n.cfg.Name, "delivered").Inc()
		logger.InfoContext(ctx, "event delivered", attrs...)
		return nil
	case ctx.Err() != nil:
		metrics.DeliveriesTotal.WithLabelValues(n.cfg.Name, "abandoned").Inc()
		logger.WarnContext(ctx, "in-flight delivery abandoned", append(attrs, logging.Error(err))...)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	case errors.Is(err, ErrSessionLost) || isClosed(n.session.Lost()):
		metrics.DeliveriesTotal.WithLabelValues(n.cfg.Name, "session_lost").Inc()
		logger.ErrorContext(ctx, "event dropped, session lost", append(attrs, logging.Error(err))...)
		return fmt.Errorf("%w: %v", ErrSessionLost, err)
	default:
		metrics.DeliveriesTotal.WithLabelValues(n.cfg.Name, "failed").Inc()
		logger.ErrorContext(ctx, "event delivery failed", append(attrs, logging.Error(err))...)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
}

// connect opens the session, retrying under the reconnect policy.
func (n *Notifier) connect(ctx context.Context) error {
	n.setState(Connecting)
	attempt := 0
	op := func() error {
		attempt++
		openCtx := ctx
		if n.cfg.ReadyTimeout > 0 {
			var cancel context.CancelFunc
			openCtx, cancel = context.WithTimeout(ctx, n.cfg.ReadyTimeout)
			defer cancel()
		}
		if err := n.session.Open(openCtx); err != nil {
			_ = n.session.Close()
			return err
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		n.logger.WarnContext(ctx, "session open failed",
			logging.Attempt(attempt), logging.Error(err), logging.Duration(wait))
	}

	if err := backoff.RetryNotify(op, n.cfg.Reconnect.backOff(ctx), notify); err != nil {
		n.setState(Disconnected)
		return fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	n.setState(Connected)
	n.logger.InfoContext(ctx, "session ready", logging.Attempt(attempt))
	return nil
}

func (n *Notifier) reconnect(ctx context.Context) error {
	n.setState(Disconnected)
	metrics.SessionReconnects.WithLabelValues(n.cfg.Name).Inc()
	n.logger.WarnContext(ctx, "session lost, reconnecting")
	_ = n.session.Close()

	if err := n.connect(ctx); err != nil {
		return fmt.Errorf("reconnect %s: %w", n.cfg.Name, err)
	}
	return nil
}

// stopErr hides err when it is only the consequence of shutdown.
func stopErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}
