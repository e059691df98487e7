package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wearable-sync/internal/config"
	"wearable-sync/internal/logger"
	"wearable-sync/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.ServiceName)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	zapLogger.Info("Starting wearable-sync service",
		zap.String("device_source", cfg.Device.Source),
		zap.String("device_id", cfg.Device.ID),
		zap.String("preferences_backend", cfg.Preferences.Backend),
		zap.Bool("events_enabled", cfg.Events.Enabled),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, err := service.NewWearableSyncService(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create wearable-sync service", zap.Error(err))
	}

	group, gCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return svc.Start(gCtx)
	})
	go func() {
		<-ctx.Done()
		zapLogger.Info("Received signal, shutting down")
	}()

	if err := group.Wait(); err != nil {
		zapLogger.Fatal("Service failed", zap.Error(err))
	}
	zapLogger.Info("Service stopped")
}
