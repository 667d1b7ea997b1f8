package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide logger. Production runs emit JSON at
// Info for log shipping; everything else gets text at Debug, which is the
// level room traffic (joins, fanout drops, rejected deltas) is logged at.
func NewLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var handler slog.Handler
	if env == "prod" {
		opts.Level = slog.LevelInfo
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", "canvas-collab")
}
