// Package logging wraps log/slog the way billie-coop-loco and
// Keyhole-Koro-InsightifyCore both do at their service boundaries:
// every subsystem is handed a *slog.Logger at construction time and
// never reaches for the global logger, so tests can inject a
// throwaway logger instead of polluting shared state.
package logging

import (
	"io"
	"log/slog"
)

// Field names shared across every subsystem's structured log lines.
const (
	FieldTarget  = "target"
	FieldSession = "session"
	FieldRunID   = "run_id"
)

// New builds a *slog.Logger writing to w at level. human selects a
// slog.TextHandler (attached-to-a-terminal CLI use) over a
// slog.JSONHandler (machine consumption, twelve-factor deployments).
func New(w io.Writer, level slog.Level, human bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if human {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}
