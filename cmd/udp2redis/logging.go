package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// configureLogger builds the process logger. The terminal handler is left
// out in interactive mode so log lines never draw over the form.
func configureLogger(cfg appConfig, interactive bool, stderr io.Writer) (*slog.Logger, func(), error) {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if !interactive {
		handlers = append(handlers, slog.NewTextHandler(stderr, opts))
	}

	cleanup := func() {}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
			return nil, cleanup, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, cleanup, fmt.Errorf("opening log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, opts))
		cleanup = func() { _ = f.Close() }
	}

	if len(handlers) == 0 {
		return slog.New(slog.DiscardHandler), cleanup, nil
	}
	logger := slog.New(slogmulti.Fanout(handlers...)).With(slog.String("service", "udp2redis"))
	return logger, cleanup, nil
}
