// Package applog provides the launcher's own structured logging —
// distinct from internal/logtail, which reads the game's latest.log
// back. An io.MultiWriter of stdout plus a lumberjack-rotated file
// sink, fronted by log/slog.
package applog

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the file sink; stdout logging is always on.
type Config struct {
	Enabled    bool
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Level      slog.Level
}

// New builds a *slog.Logger writing to stdout, and additionally to a
// rotating file if cfg.Enabled.
func New(cfg Config) *slog.Logger {
	writers := []io.Writer{os.Stdout}

	if cfg.Enabled && cfg.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: cfg.Level,
	})
	return slog.New(handler)
}

// Default returns a stdout-only logger, used where no file sink was
// configured (e.g. short-lived CLI invocations).
func Default() *slog.Logger {
	return New(Config{Level: slog.LevelInfo})
}
