package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelInfo, true)

	log.Debug("hidden")
	log.Info("distribute: batch confirmed", "batch", 2, "empty", "")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "distribute: batch confirmed")
	assert.Contains(t, out, "batch=2")
	assert.NotContains(t, out, "empty=")
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))
}

func TestFormatRFC3339Millis(t *testing.T) {
	ts := time.Date(2026, 5, 6, 7, 8, 9, 123_456_789, time.FixedZone("X", 3600))
	assert.Equal(t, "2026-05-06T06:08:09.123Z", formatRFC3339Millis(ts))
}
