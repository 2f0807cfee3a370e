// Package heartbeat periodically logs the relay's vital signs so a quiet
// deployment can be told apart from a dead one.
package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"github.com/stormlightlabs/notifier/common/logging"
)

// Probe reports one attribute of the heartbeat line.
type Probe func() slog.Attr

// QueueDepth reports the number of buffered events.
func QueueDepth(depth func() int) Probe {
	return func() slog.Attr { return logging.QueueDepth(depth()) }
}

// Listeners reports each listener's session state.
func Listeners(states func() map[string]string) Probe {
	return func() slog.Attr {
		st := states()
		attrs := make([]any, 0, len(st))
		for name, state := range st {
			attrs = append(attrs, slog.String(name, state))
		}
		return slog.Group("listeners", attrs...)
	}
}

// Run logs a heartbeat every interval until ctx ends. A non-positive
// interval disables it and Run returns at once.
func Run(ctx context.Context, interval time.Duration, logger *logging.Logger, probes ...Probe) error {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.With(logging.Service("heartbeat"))
	if interval <= 0 {
		logger.Debug("heartbeat disabled")
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			attrs := make([]slog.Attr, 0, len(probes))
			for _, p := range probes {
				attrs = append(attrs, p())
			}
			logger.LogAttrs(ctx, slog.LevelInfo, "heartbeat", attrs...)
		}
	}
}
