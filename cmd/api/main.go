package main

import (
	"context"
	"os/signal"
	"syscall"

	"booking-service/internal/bootstrap"
	"booking-service/internal/infrastructure/logx"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() { _ = godotenv.Load() }

func main() {
	logger := logx.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := bootstrap.InitApp(ctx)
	if err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}
	defer cleanup()

	logger.Info("booking service starting",
		zap.String("env", app.Config.Env),
		zap.String("storage", app.Config.Storage),
		zap.String("invalidation", app.Config.InvalidationBackend),
	)
	if err := app.Run(ctx); err != nil {
		logger.Error("server exited", zap.Error(err))
	}
}
