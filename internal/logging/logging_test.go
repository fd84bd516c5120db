package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFiltersBelowConfiguredLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, Options{Level: "warn"})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("replay failed", "action_id", 7)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "replay failed")
	assert.Contains(t, out, "action_id=7")
}

func TestNewVerboseForcesDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, Options{Level: "error", Verbose: true})
	require.NoError(t, err)

	logger.Debug("refreshing token")
	assert.Contains(t, buf.String(), "refreshing token")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := New(&bytes.Buffer{}, Options{Level: "chatty"})
	assert.ErrorContains(t, err, `parse log level "chatty"`)
}

func TestDiscardDropsEverything(t *testing.T) {
	t.Parallel()

	logger := Discard()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}
