package utils

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a slog.Logger configured for the desired verbosity and format.
func NewLogger(level string, json bool) *slog.Logger {
	handlerLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		handlerLevel = slog.LevelDebug
	case "warn", "warning":
		handlerLevel = slog.LevelWarn
	case "error":
		handlerLevel = slog.LevelError
	}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: handlerLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: handlerLevel})
	}

	return slog.New(handler)
}

// WithComponent tags a logger with the subsystem emitting its records.
func WithComponent(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("component", name))
}
