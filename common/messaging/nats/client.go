// Package nats backs messaging.Client with core NATS.
package nats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/stormlightlabs/notifier/common/logging"
	"github.com/stormlightlabs/notifier/common/messaging"
)

const (
	defaultName          = "notifier"
	defaultReconnectWait = 2 * time.Second
	defaultTimeout       = 5 * time.Second
)

// Client is a NATS connection plus the subscriptions opened through it.
type Client struct {
	conn   *nats.Conn
	logger *logging.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

type options struct {
	name          string
	token         string
	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	logger        *logging.Logger
}

// Option tunes Dial.
type Option func(*options)

// WithName sets the connection name shown by the server's monitoring.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithToken enables token authentication.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithMaxReconnects bounds reconnect attempts; -1 retries forever.
func WithMaxReconnects(n int) Option {
	return func(o *options) { o.maxReconnects = n }
}

// WithTimeout sets the dial timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger routes connection events to l.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Dial connects to the server at url. Reconnects are unbounded unless
// WithMaxReconnects says otherwise.
func Dial(url string, opts ...Option) (*Client, error) {
	o := options{
		name:          defaultName,
		maxReconnects: -1,
		reconnectWait: defaultReconnectWait,
		timeout:       defaultTimeout,
		logger:        logging.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With(logging.Service("nats"))

	natsOpts := []nats.Option{
		nats.Name(o.name),
		nats.MaxReconnects(o.maxReconnects),
		nats.ReconnectWait(o.reconnectWait),
		nats.Timeout(o.timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("broker connection lost", logging.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("broker connection restored", "url", c.ConnectedUrlRedacted())
		}),
	}
	if o.token != "" {
		natsOpts = append(natsOpts, nats.Token(o.token))
	}

	conn, err := nats.Connect(url, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return &Client{conn: conn, logger: logger}, nil
}

// PublishMsg publishes msg with Metadata copied into NATS headers.
func (c *Client) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := nats.NewMsg(msg.Subject)
	out.Data = msg.Data
	for k, v := range msg.Metadata {
		out.Header.Set(k, v)
	}
	return c.conn.PublishMsg(out)
}

// Subscribe delivers every message on subject to handler. Each call gets its
// own copy of the stream.
func (c *Client) Subscribe(subject string, handler messaging.MessageHandler) (messaging.Subscription, error) {
	sub, err := c.conn.Subscribe(subject, func(m *nats.Msg) {
		if err := handler(context.Background(), fromNATS(m)); err != nil {
			c.logger.Warn("dropping broker message", "subject", m.Subject, logging.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return subscription{sub}, nil
}

func (c *Client) IsConnected() bool { return c.conn.IsConnected() }

func (c *Client) Drain() error { return c.conn.Drain() }

// Close drops every subscription and the connection without flushing.
func (c *Client) Close() error {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, s := range subs {
		if s.IsValid() {
			_ = s.Unsubscribe()
		}
	}
	c.conn.Close()
	return nil
}

type subscription struct {
	*nats.Subscription
}

// Unsubscribe is idempotent.
func (s subscription) Unsubscribe() error {
	if !s.Subscription.IsValid() {
		return nil
	}
	return s.Subscription.Unsubscribe()
}

func fromNATS(m *nats.Msg) *messaging.Message {
	msg := &messaging.Message{
		Subject:    m.Subject,
		Data:       m.Data,
		ReceivedAt: time.Now(),
	}
	if len(m.Header) > 0 {
		msg.Metadata = make(map[string]string, len(m.Header))
		for k := range m.Header {
			msg.Metadata[k] = m.Header.Get(k)
		}
	}
	return msg
}
