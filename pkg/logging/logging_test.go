package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewRespectsFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "text", "warn")

	logger.Info("hidden")
	logger.Warn("shown", "turn_id", "t1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "service=genui")
	assert.Contains(t, out, "turn_id=t1")
}

func TestSetLoggerOverridesDefault(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(New(&buf, "json", "debug"))

	WithComponent("orchestrator").Debug("hello")
	assert.Contains(t, buf.String(), `"component":"orchestrator"`)
}
