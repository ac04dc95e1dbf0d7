package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		level, debug string
		want         slog.Level
	}{
		{"", "", slog.LevelInfo},
		{"", "true", slog.LevelDebug},
		{"DEBUG", "", slog.LevelDebug},
		{"warning", "", slog.LevelWarn},
		{"Error", "", slog.LevelError},
		{"verbose", "", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.debug, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			t.Setenv("DEBUG", tt.debug)
			assert.Equal(t, tt.want, GetLogLevel())
		})
	}
}

func TestJSONLoggerSourceAndContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "vogon-test", slog.LevelDebug, true)

	ctx := WithUserID(WithRequestID(context.Background(), "req-1"), "42")
	LoggerWithContext(ctx, logger).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "vogon-test", entry["service"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "42", entry["user_id"])
	assert.Regexp(t, `^logger_test\.go:\d+$`, entry["source"])
}

func TestLoggerWithContextWithoutValues(t *testing.T) {
	logger := slog.Default()
	assert.Same(t, logger, LoggerWithContext(context.Background(), logger))
	assert.Equal(t, "", RequestID(context.Background()))
}
