// Package logging configures structured logging for the service.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Config holds configuration for the logger
type Config struct {
	Level       string `json:"level"`  // debug, info, warn, error
	Format      string `json:"format"` // "json" or "text"
	ServiceName string `json:"service_name"`
	AddSource   bool   `json:"add_source"`
}

// NewLogger creates a slog.Logger according to the configuration and
// installs it as the process default. Components derive their own loggers
// with logger.With("component", ...).
func NewLogger(config Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(config.Level),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	switch strings.ToLower(config.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	if config.ServiceName != "" {
		logger = logger.With("service", config.ServiceName)
	}
	slog.SetDefault(logger)
	return logger
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
