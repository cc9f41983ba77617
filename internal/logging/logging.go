// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/GriffinCanCode/framewatch/internal/config"
)

// Setup installs the default logger: text handler to stdout, plus a rotating
// file writer when a log file is configured.
func Setup(cfg *config.Config) {
	var w io.Writer = os.Stdout
	if cfg.LogFile != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		})
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})
	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch s {
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
