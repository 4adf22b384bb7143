package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the process logger. Every record carries the service
// name and environment so server and worker output can share a sink.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	env := "development"
	if cfg != nil {
		opts.Level = cfg.LogLevel
		env = cfg.AppEnv
	}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("service", "gramy"), slog.String("env", env))
}
