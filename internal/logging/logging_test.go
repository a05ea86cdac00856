// ABOUTME: Tests for logger construction and the color handler.
// ABOUTME: Verifies level selection, debug override, JSON output and attribute rendering.

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-control/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestNew_LevelFiltering(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "warn"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "agent", "client-1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WRN shown")
	assert.Contains(t, out, "agent=client-1")
}

func TestNew_DebugOverridesLevel(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "error", Debug: true}, &buf)

	logger.Debug("trace")
	assert.Contains(t, buf.String(), "DBG trace")
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Info("pong received", "agent", "client-2")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "pong received", rec["msg"])
	assert.Equal(t, "client-2", rec["agent"])
}

func TestColorHandler_WithAttrsAndGroup(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "info"}, &buf).
		With("component", "gateway").
		WithGroup("conn")

	logger.Info("frame dropped", "bytes", 12)

	out := buf.String()
	assert.Contains(t, out, "INF frame dropped")
	assert.Contains(t, out, " component=gateway")
	assert.Contains(t, out, "conn.bytes=12")
}
