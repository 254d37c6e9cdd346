// Package telemetry holds the observability plumbing shared by every
// component: structured logging setup and Prometheus instruments.
package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process logger. Level is one of debug, info, warn,
// error (case-insensitive, default info). JSON output is used when
// jsonOutput is set, otherwise human-readable text.
func NewLogger(level string, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
