package config

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the slog.Logger a cache facade should install for
// its own diagnostics, per Log: a rotating file writer when File is
// set, stderr otherwise. Output is JSON, matching cmd/sand's own
// handler choice.
func (c CacheConfiguration) NewLogger() *slog.Logger {
	var w io.Writer = os.Stderr
	if c.Log.File != "" {
		w = &lumberjack.Logger{
			Filename:   c.Log.File,
			MaxSize:    maxOrDefault(c.Log.MaxSizeMB, 100),
			MaxBackups: c.Log.MaxBackups,
			MaxAge:     c.Log.MaxAgeDays,
		}
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.SlogLevel()}))
}

func maxOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
