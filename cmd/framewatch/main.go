// Framewatch daemon - periodic screen capture with perceptual dedup,
// served over HTTP/WebSocket.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/framewatch/internal/config"
	"github.com/GriffinCanCode/framewatch/internal/logging"
	"github.com/GriffinCanCode/framewatch/internal/metadata"
	"github.com/GriffinCanCode/framewatch/internal/orchestrator"
	"github.com/GriffinCanCode/framewatch/internal/screen"
	"github.com/GriffinCanCode/framewatch/internal/server"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg)

	platform := screen.NewPlatform()
	defer func() {
		if c, ok := platform.Capturer.(interface{ Close() }); ok {
			c.Close()
		}
	}()

	resolver := metadata.NewResolver(platform.Displays, platform.Windows, cfg.MetadataTTL)

	orch := orchestrator.New(platform, resolver, orchestrator.Callbacks{
		OnPermissionWarning: func() {
			slog.Warn("accessibility permission denied; frames will lack window metadata")
		},
		OnStoppedUnexpectedly: func() {
			slog.Error("capture stopped by the OS; restart via /api/capture/start")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	captureCfg := orchestrator.Config{
		Interval:              cfg.CaptureInterval,
		DedupEnabled:          cfg.DedupEnabled,
		DedupThreshold:        cfg.DedupThreshold,
		ExcludedApps:          cfg.ExcludedApps,
		AllDisplays:           cfg.AllDisplays,
		MaxDimension:          cfg.MaxDimension,
		CaptureOnWindowChange: cfg.CaptureOnWindowChange,
		IncludeBrowserURL:     cfg.IncludeBrowserURL,
		BatchWindow:           cfg.BatchWindow,
		Debounce:              cfg.Debounce,
	}

	srv := server.New(orch, ctx, captureCfg)

	if err := orch.Start(ctx, captureCfg); err != nil {
		slog.Error("capture start failed", "error", err)
		os.Exit(1)
	}
	go srv.Broadcast(orch.Frames())

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("framewatch starting", "http", cfg.HTTPAddr, "interval", cfg.CaptureInterval)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	orch.Stop()
	slog.Info("shutdown complete")
}
