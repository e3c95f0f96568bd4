package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDropsTime(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, slog.LevelInfo).Info("hello", "prompt", "a red fox")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, slog.TimeKey)
	assert.Equal(t, "hello", line[slog.MessageKey])
	assert.Equal(t, "a red fox", line["prompt"])
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn)
	logger.Info("quiet")
	assert.Zero(t, buf.Len())
	logger.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}

func TestContext(t *testing.T) {
	assert.Same(t, discardLogger, FromContextOrDiscard(context.Background()))

	logger := New(&bytes.Buffer{}, slog.LevelInfo)
	ctx := NewContext(context.Background(), logger)
	assert.Same(t, logger, FromContextOrDiscard(ctx))
}
