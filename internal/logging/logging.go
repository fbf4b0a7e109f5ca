// Package logging builds the zap loggers used by the binaries and carries
// request-scoped fields through a context.
package logging

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type key int

const (
	fieldsKey key = iota
	loggerKey
)

// Format selects the zap encoder.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// New returns a logger writing to stderr at level ("debug", "info", ...).
func New(level string, format Format) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch format {
	case "", FormatJSON:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case FormatConsole:
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(lvl))
	return zap.New(core, zap.AddCaller()), nil
}

// ParseLevel accepts zap level names, case-insensitively. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return lvl, fmt.Errorf("logging: invalid level %q", level)
	}
	return lvl, nil
}

// WithContext enriches the logger with fields from the context
func WithContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	return logger.With(Fields(ctx)...)
}

// WithFields adds log fields to the context
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	existing := Fields(ctx)
	merged := make([]zap.Field, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	return context.WithValue(ctx, fieldsKey, append(merged, fields...))
}

// Fields extracts log fields from the context
func Fields(ctx context.Context) []zap.Field {
	fields, ok := ctx.Value(fieldsKey).([]zap.Field)
	if !ok {
		return nil
	}
	return fields
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger extracts a logger from the context
func Logger(ctx context.Context) *zap.Logger {
	logger, _ := ctx.Value(loggerKey).(*zap.Logger)
	return logger
}

// FromContext returns the context logger, or fallback when there is none,
// enriched with the context fields.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	logger := Logger(ctx)
	if logger == nil {
		logger = fallback
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return WithContext(ctx, logger)
}
