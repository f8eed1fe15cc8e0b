// Package logging configures the emulator's global structured loggers.
package logging

import (
	"log/slog"
	"os"
)

var (
	Info  *slog.Logger
	Error *slog.Logger
)

// Init configures the global loggers for a given component name.
func Init(logLevel string, component string) {
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With("component", component)

	Info = logger
	Error = logger
}

func init() {
	// Safe default so packages that log before Init runs (e.g. in tests)
	// don't nil-panic.
	Init("info", "csopesy")
}
