// kiosk serves the locker-side pickup endpoints, over HTTP and gRPC, on top of
// the shared order store.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/app"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/kiosk"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	client, err := app.NewClient(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to build backend client", zap.Error(err))
	}
	defer client.Close()
	if err := client.Session.Restore(ctx); err != nil {
		log.Warn("no usable stored session, checkout will fail until login", zap.Error(err))
	}

	database, err := app.OpenDatabase(ctx, cfg, log)
	if err != nil {
		log.Fatal("database init error", zap.Error(err))
	}
	defer database.Close()

	producer := app.NewProducer(cfg, log)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Warn("failed to close producer", zap.Error(err))
		}
	}()

	lifecycle, err := app.NewLifecycle(ctx, database, client.API, producer, cfg, log)
	if err != nil {
		log.Fatal("failed to start order lifecycle", zap.Error(err))
	}

	if err := kiosk.New(lifecycle, log).Run(ctx, cfg.KioskPort, cfg.KioskGRPCPort); err != nil {
		log.Error("kiosk server stopped", zap.Error(err))
		return
	}
	log.Info("kiosk server gracefully stopped")
}
