// Package logger carries the request-scoped slog conventions shared by
// every component: a request id (HTTP) or source tag (background work) is
// stored on the context once and every log line downstream picks it up.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	SourceKey    contextKey = "source"
)

// Setup installs a JSON handler at the given level as the process-wide
// default logger and returns it.
func Setup(level string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLevel(level)}))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a config string to a slog.Level, defaulting to Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FromContext returns a logger tagged with the module name plus whatever
// identity the context carries: the request id for HTTP work, the source
// tag for background work, "unknown" otherwise.
func FromContext(ctx context.Context, module string) *slog.Logger {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		return slog.With("request_id", requestID, "module", module)
	}
	if source, ok := ctx.Value(SourceKey).(string); ok && source != "" {
		return slog.With("source", source, "module", module)
	}
	return slog.With("source", "unknown", "module", module)
}
