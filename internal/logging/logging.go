// Package logging builds the process logger. The terminal belongs to the UI,
// so records go to a file or nowhere.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

func ParseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
}

// New returns a text logger writing to path. An empty path discards output.
// The returned closer must be called on shutdown.
func New(path string, level string) (*slog.Logger, io.Closer, error) {
	parsed, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	if path == "" {
		return NewWriter(io.Discard, parsed), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return NewWriter(file, parsed), file, nil
}

func NewWriter(writer io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", "spacesweep"))
}

// Discard is a logger for tests and optional dependencies.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
