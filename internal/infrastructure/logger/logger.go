package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process logger. Development gets a text handler, everything else JSON.
func NewLogger(level string) *slog.Logger {
	return NewLoggerFor(level, os.Getenv("ENVIRONMENT"))
}

// NewLoggerFor is NewLogger with an explicit environment
func NewLoggerFor(level, environment string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if environment == "" || environment == "development" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
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
