// Package logger wraps slog with the correlation helpers the daemon
// leans on: request IDs from the API, camera IDs from the workers.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

type contextKey string

// Context keys for the values FromContext folds back into log lines.
const (
	RequestIDKey contextKey = "request_id"
	CameraKey    contextKey = "camera_id"
)

// Logger embeds slog.Logger, so call sites use Debug, Info, Warn and
// Error directly.
type Logger struct {
	*slog.Logger
}

// Config selects level, format and destination. The zero value logs
// JSON at info level to stdout.
type Config struct {
	Level       string
	Format      string
	Output      io.Writer
	AddSource   bool
	ServiceName string
}

// New builds a Logger from cfg. Timestamps are normalized to UTC
// RFC3339Nano so lines from different hosts collate.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if cfg.ServiceName != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("service", cfg.ServiceName),
		})
	}

	return &Logger{Logger: slog.New(handler)}
}

func (l *Logger) with(attr slog.Attr) *Logger {
	return &Logger{Logger: l.Logger.With(attr)}
}

// WithRequestID attaches the API correlation ID.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.with(slog.String("request_id", requestID))
}

// WithCamera attaches the camera external ID. Every line a worker or a
// handler emits for a camera should carry this.
func (l *Logger) WithCamera(externalID string) *Logger {
	return l.with(slog.String("camera_id", externalID))
}

// WithComponent names the subsystem emitting the line.
func (l *Logger) WithComponent(component string) *Logger {
	return l.with(slog.String("component", component))
}

// FromContext folds the request ID and camera ID stored in ctx back
// into the logger.
func (l *Logger) FromContext(ctx context.Context) *Logger {
	out := l
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		out = out.WithRequestID(id)
	}
	if cam, ok := ctx.Value(CameraKey).(string); ok && cam != "" {
		out = out.WithCamera(cam)
	}
	return out
}

// LogFatal logs the error and exits. Only main should call this.
func (l *Logger) LogFatal(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	l.Error(msg, args...)
	os.Exit(1)
}

// ContextWithRequestID stores the request ID for FromContext.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// ContextWithCamera stores the camera external ID for FromContext.
func ContextWithCamera(ctx context.Context, externalID string) context.Context {
	return context.WithValue(ctx, CameraKey, externalID)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
