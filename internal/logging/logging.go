// Package logging builds the process-wide slog logger from configuration.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/llehouerou/syncradio/internal/config"
)

const logFileName = "syncradio/client.log"

// ParseLevel maps a config level name to a slog level. Unknown names yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// New returns a logger writing to w in the configured format.
func New(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// OpenFile returns a logger writing to the configured log file, or to the
// XDG state directory when none is set. The terminal UI owns stdout, so the
// client never logs to the screen.
func OpenFile(cfg config.LogConfig) (*slog.Logger, io.Closer, error) {
	path := cfg.File
	if path == "" {
		var err error
		path, err = xdg.StateFile(logFileName)
		if err != nil {
			return nil, nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // user log file
	if err != nil {
		return nil, nil, err
	}
	return New(f, cfg), f, nil
}
