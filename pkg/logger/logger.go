// Package logger wraps zap with a context-aware interface so that every line
// carries the service name and, when known, the id of the connection that
// triggered it.
package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ServiceName = "service"
	ConnID      = "connID"
)

type ctxKey string

const connIDKey ctxKey = ConnID

type Logger interface {
	Debug(ctx context.Context, msg string, fields ...zap.Field)
	Info(ctx context.Context, msg string, fields ...zap.Field)
	Warn(ctx context.Context, msg string, fields ...zap.Field)
	Error(ctx context.Context, msg string, fields ...zap.Field)
	Fatal(ctx context.Context, msg string, fields ...zap.Field)
}

type logger struct {
	serviceName string
	logger      *zap.Logger
}

// WithConnID returns a copy of ctx tagged with the given connection id.
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connIDKey, id)
}

// ConnIDFromCtx returns the connection id stored by WithConnID, if any.
func ConnIDFromCtx(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(connIDKey).(string)
	return id, ok
}

func (l logger) with(ctx context.Context, fields []zap.Field) []zap.Field {
	fields = append(fields, zap.String(ServiceName, l.serviceName))
	if id, ok := ConnIDFromCtx(ctx); ok {
		fields = append(fields, zap.String(ConnID, id))
	}
	return fields
}

func (l logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.logger.Debug(msg, l.with(ctx, fields)...)
}

func (l logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.logger.Info(msg, l.with(ctx, fields)...)
}

func (l logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.logger.Warn(msg, l.with(ctx, fields)...)
}

func (l logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.logger.Error(msg, l.with(ctx, fields)...)
}

func (l logger) Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	l.logger.Fatal(msg, l.with(ctx, fields)...)
}

// New builds a console logger writing to stdout at the given level.
func New(level zapcore.Level, serviceName string) Logger {
	config := zap.Config{
		Encoding:         "console",
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeName:     zapcore.FullNameEncoder,
		},
	}
	zapLogger, err := config.Build()
	if err != nil {
		zapLogger = zap.NewExample()
	}

	return &logger{
		serviceName: serviceName,
		logger:      zapLogger,
	}
}

// Wrap adapts an existing zap logger.
func Wrap(z *zap.Logger, serviceName string) Logger {
	return &logger{serviceName: serviceName, logger: z}
}

// NewNop returns a Logger that discards everything. Used by tests.
func NewNop() Logger {
	return &logger{logger: zap.NewNop()}
}

// ParseLevel converts a LOG_LEVEL value into a zap level, falling back to info.
func ParseLevel(value string) zapcore.Level {
	level, err := zapcore.ParseLevel(value)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}
