package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/stormlightlabs/notifier/common/logging"
)

// DiscordSession is a Session backed by a Discord bot gateway connection.
// Messages are posted over the REST API; the gateway connection is what
// defines session liveness.
type DiscordSession struct {
	token  string
	logger *logging.Logger

	mu   sync.Mutex
	dg   *discordgo.Session
	lost chan struct{}
}

func NewDiscordSession(token string, logger *logging.Logger) *DiscordSession {
	if logger == nil {
		logger = logging.Default()
	}
	lost := make(chan struct{})
	close(lost)
	return &DiscordSession{
		token:  token,
		logger: logger.With(logging.Service("discord")),
		lost:   lost,
	}
}

// Open connects to the gateway and waits for the READY event.
func (d *DiscordSession) Open(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	// reconnection is driven by the notifier's backoff policy
	dg.ShouldReconnectOnError = false
	dg.Identify.Intents = discordgo.IntentsGuilds

	ready := make(chan struct{})
	lost := make(chan struct{})
	var lostOnce sync.Once

	dg.AddHandlerOnce(func(_ *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			d.logger.Info("gateway ready", "user", r.User.Username, "session_id", r.SessionID)
		}
		close(ready)
	})
	dg.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		lostOnce.Do(func() { close(lost) })
	})

	if err := dg.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}

	select {
	case <-ready:
	case <-lost:
		_ = dg.Close()
		return errors.New("discord gateway closed before ready")
	case <-ctx.Done():
		_ = dg.Close()
		return fmt.Errorf("waiting for discord ready: %w", ctx.Err())
	}

	d.mu.Lock()
	d.dg = dg
	d.lost = lost
	d.mu.Unlock()
	return nil
}

// Send posts content to channelID.
func (d *DiscordSession) Send(ctx context.Context, channelID, content string) error {
	d.mu.Lock()
	dg, lost := d.dg, d.lost
	d.mu.Unlock()

	if dg == nil || isClosed(lost) {
		return ErrSessionLost
	}

	_, err := dg.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	if isClosed(lost) {
		return fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	return err
}

// Close closes the gateway connection if one is open.
func (d *DiscordSession) Close() error {
	d.mu.Lock()
	dg := d.dg
	d.dg = nil
	d.mu.Unlock()

	if dg == nil {
		return nil
	}
	return dg.Close()
}

// Lost is closed when the gateway disconnects. Before the first successful
// Open it is already closed.
func (d *DiscordSession) Lost() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost
}
