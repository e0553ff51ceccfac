// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// LevelOff disables every record.
const LevelOff = slog.Level(100)

// ParseLevel maps a configured level name to a slog level.
// Unknown names fall back to warn.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	case "off", "disabled", "none":
		return LevelOff
	default:
		return slog.LevelWarn
	}
}

// New creates a structured logger writing to w.
//
// format selects the handler: "text", "json", or "" to use text when w is a
// terminal and JSON otherwise (pipes, CI, log collectors).
func New(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)
	if lvl == LevelOff {
		return slog.New(slog.DiscardHandler)
	}

	options := &slog.HandlerOptions{Level: lvl}
	if format == "" {
		format = "json"
		if isTerminal(w) {
			format = "text"
		}
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
