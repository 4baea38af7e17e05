// Package logging configures the process-wide slog logger: human-readable
// text on stderr, optionally mirrored as JSON to a rotating log file. Stderr
// keeps log output out of any piped stdout.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options controls logger construction.
type Options struct {
	Level    string // debug, info, warn, error
	FilePath string // empty disables file output
	MaxBytes int64  // rotation threshold for the file writer
	Backups  int    // rotated files kept
}

// DefaultOptions returns info-level console-only logging with a 50MB
// rotation threshold once a file path is set.
func DefaultOptions() Options {
	return Options{
		Level:    "info",
		MaxBytes: 50 * 1024 * 1024,
		Backups:  3,
	}
}

// ParseLevel maps a level name to slog.Level; unknown names fall back to
// info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// Setup builds a logger from opts and installs it as the slog default.
// The returned closer flushes and closes the file writer; it is a no-op
// when no file output is configured.
func Setup(opts Options) (io.Closer, error) {
	level := ParseLevel(opts.Level)

	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	}

	var closer io.Closer = nopCloser{}
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0750); err != nil {
			return nil, err
		}
		fw, err := NewRotatingWriter(opts.FilePath, opts.MaxBytes, opts.Backups)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewJSONHandler(fw, &slog.HandlerOptions{Level: level}))
		closer = fw
	}

	slog.SetDefault(slog.New(multiHandler(handlers)))
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
