// Package logging builds the process slog logger. Diagnostics always go to
// stderr; stdout is reserved for answers and the MCP protocol.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// LevelSilent is above every standard level
const LevelSilent = slog.Level(100)

// New returns a text logger writing to w at level
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops everything
func Discard() *slog.Logger {
	return New(io.Discard, LevelSilent)
}

// ParseLevel converts debug, info, warn or error (any case) to a slog.Level.
// Unknown strings map to warn.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	case "silent", "off":
		return LevelSilent
	default:
		return slog.LevelWarn
	}
}

// OrDiscard returns l, or a discard logger when l is nil
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
