package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logger used across the service
type Logger interface {
	Info(ctx context.Context, message string, fields map[string]interface{})
	Error(ctx context.Context, message string, err error, fields map[string]interface{})
	Warn(ctx context.Context, message string, fields map[string]interface{})
	Debug(ctx context.Context, message string, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
}

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// WithCorrelationID stores the request correlation id in ctx
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the correlation id stored in ctx, if any
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// Config configures the logger
type Config struct {
	Level       string
	Format      string
	ServiceName string
	// Output defaults to stdout
	Output io.Writer
}

type structuredLogger struct {
	logger *logrus.Logger
	fields map[string]interface{}
}

// New creates a logrus backed Logger
func New(config Config) Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if config.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		l.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339Nano, FullTimestamp: true})
	}

	if config.Output != nil {
		l.SetOutput(config.Output)
	} else {
		l.SetOutput(os.Stdout)
	}

	return &structuredLogger{
		logger: l,
		fields: map[string]interface{}{"service": config.ServiceName},
	}
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return New(Config{Level: "panic", Output: io.Discard})
}

func (l *structuredLogger) Info(ctx context.Context, message string, fields map[string]interface{}) {
	l.entry(ctx, nil, fields).Info(message)
}

func (l *structuredLogger) Error(ctx context.Context, message string, err error, fields map[string]interface{}) {
	l.entry(ctx, err, fields).Error(message)
}

func (l *structuredLogger) Warn(ctx context.Context, message string, fields map[string]interface{}) {
	l.entry(ctx, nil, fields).Warn(message)
}

func (l *structuredLogger) Debug(ctx context.Context, message string, fields map[string]interface{}) {
	l.entry(ctx, nil, fields).Debug(message)
}

// WithFields returns a logger that adds fields to every entry
func (l *structuredLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &structuredLogger{logger: l.logger, fields: merged}
}

func (l *structuredLogger) entry(ctx context.Context, err error, fields map[string]interface{}) *logrus.Entry {
	f := logrus.Fields{}
	for k, v := range l.fields {
		f[k] = v
	}
	for k, v := range fields {
		f[k] = v
	}
	if id := CorrelationID(ctx); id != "" {
		f["correlation_id"] = id
	}
	if err != nil {
		f[logrus.ErrorKey] = err.Error()
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		f["caller"] = fmt.Sprintf("%s:%d", file, line)
	}
	return l.logger.WithFields(f)
}

// LogPerformance logs how long an operation took
func LogPerformance(ctx context.Context, logger Logger, operation string, duration time.Duration, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["event_type"] = "performance"
	fields["operation"] = operation
	fields["duration_ms"] = duration.Milliseconds()

	logger.Info(ctx, fmt.Sprintf("Performance: %s took %s", operation, duration), fields)
}

// LogAuthFailure logs a rejected manager request
func LogAuthFailure(ctx context.Context, logger Logger, reason, ip string) {
	logger.Warn(ctx, "Auth failure: "+reason, map[string]interface{}{
		"event_type": "auth",
		"ip":         ip,
	})
}
