package debug

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var (
	mu     sync.Mutex
	file   *os.File
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// DefaultPath returns ~/.config/midi-fixture-control/debug.log
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "midi-fixture-control", "debug.log"), nil
}

// Enable starts debug logging to path (DefaultPath if empty), truncating it.
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		return nil
	}

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.Info("=== Debug logging started ===", "category", "debug")
	return nil
}

// SetOutput sends log lines at or above level to w. Used for --verbose.
func SetOutput(w io.Writer, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	closeFile()
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Disable stops logging and closes any log file
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	closeFile()
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func closeFile() {
	if file != nil {
		file.Close()
		file = nil
	}
}

// Log writes a debug-level message
func Log(category, format string, args ...any) {
	write(slog.LevelDebug, category, format, args...)
}

// Info writes an info-level message
func Info(category, format string, args ...any) {
	write(slog.LevelInfo, category, format, args...)
}

// Warn is for expected, recoverable failures (no space for a device, etc.)
func Warn(category, format string, args ...any) {
	write(slog.LevelWarn, category, format, args...)
}

// Error is for states that indicate a bug in the caller
func Error(category, format string, args ...any) {
	write(slog.LevelError, category, format, args...)
}

func write(level slog.Level, category, format string, args ...any) {
	mu.Lock()
	l := logger
	mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	l.Log(context.Background(), level, msg, "category", category)
}
