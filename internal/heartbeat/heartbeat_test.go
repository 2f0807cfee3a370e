package heartbeat

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormlightlabs/notifier/common/logging"
)

// syncBuffer guards the log buffer shared with the heartbeat goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_LogsProbes(t *testing.T) {
	var out syncBuffer
	logger := logging.NewWithWriter(&out, slog.LevelInfo, "json")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, 10*time.Millisecond, logger,
			QueueDepth(func() int { return 7 }),
			Listeners(func() map[string]string { return map[string]string{"primary": "connected"} }),
		)
	}()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), `"heartbeat"`) }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	first := strings.SplitN(strings.TrimSpace(out.String()), "\n", 2)[0]
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(first), &entry))
	assert.Equal(t, "heartbeat", entry["msg"])
	assert.Equal(t, "heartbeat", entry["service"])
	assert.Equal(t, float64(7), entry["queue_depth"])
	assert.Equal(t, map[string]any{"primary": "connected"}, entry["listeners"])
}

func TestRun_Disabled(t *testing.T) {
	called := false
	probe := func() slog.Attr {
		called = true
		return slog.Int("x", 1)
	}

	err := Run(context.Background(), 0, logging.Discard(), probe)

	assert.NoError(t, err)
	assert.False(t, called)
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, Run(ctx, time.Hour, logging.Discard()))
}
