package observability

import (
	"log/slog"
	"os"
)

// SetupLogger builds the process-wide slog logger from the logging
// config's level and format, installs it as the default, and returns
// it for components that hold their own reference rather than doing a
// global lookup on a hot path (the frame source and arena processor
// log per-frame failures at debug level).
func SetupLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
