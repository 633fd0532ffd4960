package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the process logger: text output for local development,
// JSON everywhere else
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if c.Env == "local" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLogLevel maps a level name to a slog level, defaulting to info
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
