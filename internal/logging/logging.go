// Package logging builds the process logger from LOG_LEVEL/LOG_FORMAT.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aswinmurali/servicehub/internal/config"
)

// ParseLevel maps a level name to slog; unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New returns a logger writing to stderr.
func New(cfg config.LogConfig) *slog.Logger {
	return NewWriter(cfg, os.Stderr)
}

// NewWriter returns a logger writing to w: JSON when cfg.Format is
// "json", text otherwise.
func NewWriter(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}
