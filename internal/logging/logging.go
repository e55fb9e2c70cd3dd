// Package logging wraps log/slog with JSON-file rotation, the same shape
// used throughout the gateway: one *Logger per process, sub-loggers via
// With for request/connection scoping.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger embeds *slog.Logger so callers can use the familiar slog API
// while getting rotation and a stable JSON shape for free.
type Logger struct {
	*slog.Logger
	LogFile string
}

// New builds a Logger that writes rotated JSON lines under dir, at the
// given level (debug, info, warn, error; unrecognized values fall back to
// info). An empty dir disables rotation and writes to stderr instead, which
// is convenient for tests.
func New(dir, level string) *Logger {
	lvl := parseLevel(level)

	var handler slog.Handler
	var logFile string
	if dir == "" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		logFile = filepath.Join(dir, "dentalgw.log")
		w := &lumberjack.Logger{
			Filename: logFile,
			MaxSize:  64, // MB
			MaxAge:   14,
			Compress: true,
		}
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	}

	return &Logger{
		Logger:  slog.New(handler),
		LogFile: logFile,
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		if level != "" && level != "info" {
			fmt.Fprintf(os.Stderr, "logging: unrecognized level %q, using info\n", level)
		}
		return slog.LevelInfo
	}
}

// With returns a sub-logger carrying the given attributes on every line,
// e.g. logger.With("conn_id", id) for a per-connection logger.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), LogFile: l.LogFile}
}
