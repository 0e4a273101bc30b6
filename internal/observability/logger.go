package observability

import (
	"log/slog"
	"os"

	"cexarb/internal/config"
)

// NewLogger builds the root *slog.Logger from LoggingConfig, grounded on
// the teacher's main.go handler selection (text vs JSON, level parsing).
// Every constructor in the module threads this logger down via
// logger.With("component", ...).
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
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
		return slog.LevelInfo
	}
}
