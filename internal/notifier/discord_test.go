package notifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stormlightlabs/notifier/common/logging"
)

func TestDiscordSession_BeforeOpen(t *testing.T) {
	d := NewDiscordSession("token", logging.Discard())

	assert.True(t, isClosed(d.Lost()), "no connection means lost")
	assert.ErrorIs(t, d.Send(context.Background(), "1187654321", "hi"), ErrSessionLost)
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())
}
