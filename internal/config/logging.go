package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger returns a text logger writing to w, or nil when level is empty
// or "off". Unrecognised levels such as "1" mean debug.
func NewLogger(w io.Writer, level string) *slog.Logger {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" || level == "off" {
		return nil
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelFromString(level)}))
}

func levelFromString(value string) slog.Level {
	switch value {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
