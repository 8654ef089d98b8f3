package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"stocksync/internal/app/server/api"
	"stocksync/internal/app/server/config"
	"stocksync/internal/domain/activity"
	"stocksync/internal/domain/license"
	"stocksync/internal/domain/sync"
	"stocksync/internal/infrastructure/storage/postgres"
	"stocksync/internal/utils/logger"

	"golang.org/x/exp/slog"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env, cfg.Logger.LogLevel)

	log.Info("starting relay", slog.String("env", cfg.Env), slog.String("address", cfg.Server.RunAddress))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to init storage", logger.Err(err))
		os.Exit(1)
	}
	defer storage.Close()

	syncRepo := postgres.NewSyncRepository(storage.Pool(), log)
	licenseRepo := postgres.NewLicenseRepository(storage.Pool(), log)
	activityRepo := postgres.NewActivityRepository(storage.Pool(), log)

	// Журнал активности переживает сигнал и останавливается после сервера
	dispatcher := activity.NewDispatcher(activityRepo, log, cfg.Activity.Buffer)
	dispatcher.Start(context.Background())

	licenseService := license.NewService(licenseRepo, log)
	syncService := sync.NewService(syncRepo, dispatcher, log, &sync.ServiceConfig{
		PullPageSize: cfg.Sync.PullPageSize,
		Thresholds: sync.Thresholds{
			Online: cfg.Sync.OnlineWindow,
			Idle:   cfg.Sync.IdleWindow,
		},
	})

	router := api.New(api.Dependencies{
		Sync:       syncService,
		Authorizer: licenseService,
		Storage:    storage,
	}, log)

	srv := &http.Server{
		Addr:    cfg.Server.RunAddress,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", logger.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", logger.Err(err))
	}

	dispatcher.Stop()

	written, dropped, failed := dispatcher.Metrics()
	log.Info("relay stopped",
		slog.Uint64("activity_written", written),
		slog.Uint64("activity_dropped", dropped),
		slog.Uint64("activity_failed", failed),
	)
}
