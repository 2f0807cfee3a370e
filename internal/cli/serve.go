package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stormlightlabs/notifier/common/logging"
	"github.com/stormlightlabs/notifier/common/messaging"
	natsclient "github.com/stormlightlabs/notifier/common/messaging/nats"
	"github.com/stormlightlabs/notifier/internal/config"
	"github.com/stormlightlabs/notifier/internal/handlers"
	"github.com/stormlightlabs/notifier/internal/heartbeat"
	"github.com/stormlightlabs/notifier/internal/metrics"
	"github.com/stormlightlabs/notifier/internal/notifier"
	"github.com/stormlightlabs/notifier/internal/ratelimit"
	"github.com/stormlightlabs/notifier/internal/relay"
	"github.com/stormlightlabs/notifier/internal/server"
	"github.com/stormlightlabs/notifier/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook relay",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	logger := newLogger(cfg)
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, discordSessions)
	if err != nil {
		return err
	}
	defer a.close()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", cfg.Server.Port, err)
	}
	return a.serve(ctx, ln)
}

// sessionFactory opens one chat session per listener.
type sessionFactory func(token string, logger *logging.Logger) notifier.Session

func discordSessions(token string, logger *logging.Logger) notifier.Session {
	return notifier.NewDiscordSession(token, logger)
}

// relayHub is the ingestion side of whichever relay mode is configured.
type relayHub interface {
	relay.Sink
	Close()
	Closed() bool
}

type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	hub     relayHub
	group   *notifier.Group
	limiter ratelimit.RateLimiter
	broker  *natsclient.Client
	handler http.Handler
	probes  []heartbeat.Probe
}

func newApp(ctx context.Context, cfg *config.Config, logger *logging.Logger, newSession sessionFactory) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	sources, err := a.buildRelay()
	if err != nil {
		a.close()
		return nil, err
	}

	listeners := cfg.AllListeners()
	notifiers := make([]*notifier.Notifier, 0, len(listeners))
	for i, l := range listeners {
		notifiers = append(notifiers, notifier.New(notifier.Config{
			Name:         l.Name,
			ChannelID:    l.DestinationChannel,
			ReadyTimeout: cfg.Discord.ReadyTimeout,
			SendTimeout:  cfg.Discord.SendTimeout,
			Reconnect: notifier.ReconnectPolicy{
				MaxRetries:      cfg.Reconnect.MaxRetries,
				InitialInterval: cfg.Reconnect.InitialInterval,
				MaxInterval:     cfg.Reconnect.MaxInterval,
			},
		}, newSession(l.BotCredential, logger.With(logging.Listener(l.Name))), sources[i], logger))
	}
	a.group = notifier.NewGroup(notifiers...)
	a.probes = append(a.probes, heartbeat.Listeners(a.group.States))

	a.limiter = ratelimit.NoOpRateLimiter{}
	if cfg.RateLimit.Enabled {
		limiter, err := ratelimit.NewRedisRateLimiter(ctx, cfg.RateLimit.RedisURL, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		if err != nil {
			logger.Warn("rate limiter unavailable, continuing without it", logging.Error(err))
		} else {
			a.limiter = limiter
			logger.Info("rate limiting enabled",
				slog.Int("requests", cfg.RateLimit.Requests),
				slog.Duration("window", cfg.RateLimit.Window))
		}
	}

	secret := cfg.Webhook.Secret
	if secret == "" {
		logger.Warn("no webhook secret configured, signatures are not verified")
	}
	ingestor := service.NewIngestor(a.hub, service.IngestConfig{
		Secret:          secret,
		UserAgentPrefix: cfg.Webhook.UserAgentPrefix,
		StrictHeaders:   cfg.Webhook.StrictHeaders,
	}, logger)

	var broker messaging.Client
	if a.broker != nil {
		broker = a.broker
	}
	a.handler = server.NewRouter(
		handlers.NewWebhookHandler(ingestor, a.limiter, cfg.Webhook.MaxBodyBytes, logger),
		handlers.NewStatusHandler(a.group, a.hub, ingestor, broker),
		logger,
	)
	return a, nil
}

// buildRelay creates the hand-off between ingestion and delivery and
// returns one source per listener, in AllListeners order.
func (a *app) buildRelay() ([]relay.Source, error) {
	cfg := a.cfg
	listeners := cfg.AllListeners()
	lag := relay.WithLagObserver(metrics.BroadcastLagged.Inc)

	if cfg.Relay.Mode != config.ModeBroadcast {
		q := relay.NewQueue(cfg.Relay.QueueCapacity)
		a.hub = q
		metrics.QueueCapacity.Set(float64(q.Cap()))
		metrics.RegisterQueueDepth(q.Len)
		a.probes = append(a.probes, heartbeat.QueueDepth(q.Len))
		a.logger.Info("relay queue ready", slog.Int("capacity", q.Cap()))
		return []relay.Source{q}, nil
	}

	sources := make([]relay.Source, 0, len(listeners))
	switch cfg.Relay.BroadcastBackend {
	case config.BackendNATS:
		client, err := natsclient.Dial(cfg.NATS.URL,
			natsclient.WithName(cfg.NATS.Name),
			natsclient.WithToken(cfg.NATS.Token),
			natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
			natsclient.WithTimeout(cfg.NATS.Timeout),
			natsclient.WithLogger(a.logger),
		)
		if err != nil {
			return nil, err
		}
		a.broker = client
		fanout := relay.NewNATSFanout(client, cfg.NATS.Subject, lag)
		a.hub = fanout
		for _, l := range listeners {
			sub, err := fanout.Subscribe(cfg.Relay.SubscriberBuffer)
			if err != nil {
				return nil, fmt.Errorf("subscribe listener %s: %w", l.Name, err)
			}
			sources = append(sources, sub)
		}
		a.logger.Info("nats broadcast ready", slog.String("subject", cfg.NATS.Subject), slog.Int("listeners", len(listeners)))
	default:
		b := relay.NewBroadcaster(lag)
		a.hub = b
		for range listeners {
			sources = append(sources, b.Subscribe(cfg.Relay.SubscriberBuffer))
		}
		a.logger.Info("broadcast ready", slog.Int("listeners", b.Subscribers()))
	}
	return sources, nil
}

// serve runs the HTTP server, the listeners and the heartbeat until ctx ends
// or one of them fails. Shutdown stops admission first, then closes the
// relay so listeners finish; an in-flight delivery is abandoned once the
// shutdown grace elapses.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      a.handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	eg, gctx := errgroup.WithContext(ctx)
	deliverCtx, abandon := context.WithCancel(context.WithoutCancel(ctx))
	defer abandon()
	listenersDone := make(chan struct{})

	eg.Go(func() error {
		a.logger.Info("listening", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		defer close(listenersDone)
		return a.group.Run(deliverCtx)
	})
	eg.Go(func() error {
		return heartbeat.Run(gctx, a.cfg.Heartbeat.Interval, a.logger, a.probes...)
	})
	eg.Go(func() error {
		select {
		case <-gctx.Done():
		case <-listenersDone:
		}
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownGrace)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		a.hub.Close()

		select {
		case <-listenersDone:
		case <-shutdownCtx.Done():
			a.logger.Warn("shutdown grace elapsed, abandoning in-flight delivery")
			abandon()
			<-listenersDone
		}
		stop()
		if err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err := eg.Wait()
	a.logger.Info("stopped")
	return err
}

func (a *app) close() {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	if a.broker != nil {
		if err := a.broker.Drain(); err != nil {
			a.logger.Warn("nats drain failed, closing", logging.Error(err))
			_ = a.broker.Close()
		}
	}
}
