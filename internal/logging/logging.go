// Package logging configures the process-wide structured logger.
//
// Call sites log through log/slog. Records are handed to a zap core via the
// logr bridge, and the trace and span identifiers of the active OpenTelemetry
// span are attached to every record.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// FormatJSON writes one JSON object per line
	FormatJSON = "json"
	// FormatConsole writes human readable, colored lines
	FormatConsole = "console"
)

// Config configures the logger
type Config struct {
	// Level is the minimum level: debug, info, warn or error
	Level string
	// Format is either json or console, json is the default
	Format string
	// ServiceName is added to every record when set
	ServiceName string
	// Version is added to every record when set
	Version string
}

// ParseLevel converts a level name to a slog level.
// An empty name yields info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "notice", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "err":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", name)
	}
}

// NewLogger builds the zap-backed logr logger for cfg
func NewLogger(cfg Config) (logr.Logger, *zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return logr.Discard(), nil, err
	}

	var zcfg zap.Config
	switch strings.ToLower(cfg.Format) {
	case FormatConsole:
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = clampLevelEncoder(zapcore.CapitalColorLevelEncoder)
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zcfg.DisableStacktrace = true
	case FormatJSON, "":
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeLevel = clampLevelEncoder(zapcore.LowercaseLevelEncoder)
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zcfg.Sampling = nil
	default:
		return logr.Discard(), nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	zcfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	// Keep stdout clean for commands that print data.
	zcfg.OutputPaths = []string{"stderr"}

	zl, err := zcfg.Build(zap.AddCaller())
	if err != nil {
		return logr.Discard(), nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if cfg.ServiceName != "" {
		zl = zl.With(zap.String("service", cfg.ServiceName))
	}
	if cfg.Version != "" {
		zl = zl.With(zap.String("version", cfg.Version))
	}

	return zapr.NewLogger(zl), zl, nil
}

// NewHandler returns an slog handler writing through zap with trace correlation
func NewHandler(cfg Config) (slog.Handler, func(), error) {
	logger, zl, err := NewLogger(cfg)
	if err != nil {
		return nil, func() {}, err
	}
	handler := &traceHandler{Handler: logr.ToSlogHandler(logger)}
	return handler, func() { _ = zl.Sync() }, nil
}

// Setup installs a handler for cfg as the slog default and returns a flush function
func Setup(cfg Config) (func(), error) {
	handler, flush, err := NewHandler(cfg)
	if err != nil {
		return flush, err
	}
	slog.SetDefault(slog.New(handler))
	return flush, nil
}

// zapLevel maps slog levels onto zap levels. Verbosity below info is carried
// as negative zap levels, which is how logr expresses V-levels.
func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.Level(level)
	}
}

func clampLevelEncoder(encoder zapcore.LevelEncoder) zapcore.LevelEncoder {
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		if level < zapcore.DebugLevel {
			level = zapcore.DebugLevel
		}
		encoder(level, enc)
	}
}

// traceHandler wraps an slog.Handler to automatically inject OpenTelemetry
// trace_id and span_id into every log record, enabling log-trace correlation.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}
