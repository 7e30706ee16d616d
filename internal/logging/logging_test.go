package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    slog.Level
		wantErr bool
	}{
		{name: "empty defaults to info", input: "", want: slog.LevelInfo},
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "notice maps to info", input: "NOTICE", want: slog.LevelInfo},
		{name: "warning alias", input: "warning", want: slog.LevelWarn},
		{name: "err alias", input: " err ", want: slog.LevelError},
		{name: "invalid", input: "verbose", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestZapLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, zapcore.ErrorLevel, zapLevel(slog.LevelError))
	assert.Equal(t, zapcore.WarnLevel, zapLevel(slog.LevelWarn))
	assert.Equal(t, zapcore.InfoLevel, zapLevel(slog.LevelInfo))
	assert.Less(t, int(zapLevel(slog.LevelDebug)), int(zapcore.DebugLevel)+1)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	_, _, err := NewLogger(Config{Format: "xml"})
	require.Error(t, err)

	_, _, err = NewLogger(Config{Level: "loud"})
	require.Error(t, err)

	handler, flush, err := NewHandler(Config{Format: FormatConsole, Level: "debug", ServiceName: "test"})
	require.NoError(t, err)
	defer flush()
	assert.True(t, handler.Enabled(context.Background(), slog.LevelWarn))
}

func TestTraceHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := &traceHandler{Handler: slog.NewJSONHandler(&buf, nil)}
	logger := slog.New(handler)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	logger.InfoContext(ctx, "with span")
	assert.Contains(t, buf.String(), `"trace_id":"4bf92f3577b34da6a3ce929d0e0e4736"`)
	assert.Contains(t, buf.String(), `"span_id":"00f067aa0ba902b7"`)

	buf.Reset()
	logger.With("k", "v").WithGroup("g").Info("without span")
	assert.NotContains(t, buf.String(), "trace_id")
}
