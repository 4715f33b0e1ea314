package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&Config{
		Level:  "info",
		Format: "json",
		writer: &buf,
	})
	require.NoError(t, err)

	log.Info("hello", slog.String("component", "test"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "test", entry["component"])
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&Config{
		Level:  "warn",
		Format: "json",
		writer: &buf,
	})
	require.NoError(t, err)

	log.Debug("dropped debug")
	log.Info("dropped info")
	log.Warn("kept warn")
	log.Error("kept error")

	out := buf.String()
	assert.NotContains(t, out, "dropped debug")
	assert.NotContains(t, out, "dropped info")
	assert.Contains(t, out, "kept warn")
	assert.Contains(t, out, "kept error")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestNew_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&Config{
		Level:  "info",
		Format: "console",
		writer: &buf,
	})
	require.NoError(t, err)

	log.Info("console line")

	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "console line")
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&Config{
		Level:  "info",
		Format: "json",
		writer: &buf,
	})
	require.NoError(t, err)

	log.With("service", "upload-api").Info("attached")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "upload-api", entry["service"])
}

func TestNewDefault(t *testing.T) {
	log := NewDefault()
	require.NotNil(t, log)
	assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run("level_"+tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}
