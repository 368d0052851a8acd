package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"pulse/internal/amqp"
	"pulse/internal/backend"
	"pulse/internal/cache"
	"pulse/internal/cli"
	"pulse/internal/dataset"
	apphttp "pulse/internal/http"
	plog "pulse/internal/log"
	"pulse/internal/pipeline"
	"pulse/internal/services"
	"pulse/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), plog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(bootLogger.Logger)
	logger := cli.SetupLogger(cfg.LogLevel, plog.ComponentApp)
	base := logger.Base()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", plog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(base).CreateSource(backendCfg)
	if err != nil {
		logger.Error("Failed to create data source", plog.FieldError, err, plog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	store := dataset.NewStore(result.Source, base)
	startCtx, startCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if snap, _, err := store.Reload(startCtx, true); err != nil {
		// The store keeps its placeholder snapshot; readiness stays 503.
		logger.Error("Initial load failed", plog.FieldOperation, plog.OpStartup, plog.FieldError, err)
	} else {
		logger.Info("Initial load finished",
			plog.FieldOperation, plog.OpStartup,
			plog.FieldVersion, snap.Version,
			plog.FieldRecords, len(snap.Records),
			"degraded", snap.Degraded())
	}
	startCancel()

	dashboards := cache.NewLRUCache[pipeline.Dashboard](cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager(logger.WithComponent(plog.ComponentCache).Logger)
	cacheManager.Register(dashboards)
	cacheManager.StartCleanup(cfg.CacheTTL)

	dashboardService := services.NewDashboardService(store, dashboards, base)
	srv := apphttp.NewServer(":"+cfg.Port, dashboardService, logger, apphttp.Options{})

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, base)
		if err != nil {
			// Reload notifications are optional; the dashboard serves without them.
			logger.Warn("AMQP unavailable, reload notifications disabled", plog.FieldError, err)
			amqpClient = nil
		}
	}

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", plog.FieldOperation, plog.OpShutdown, plog.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", plog.FieldError, err)
			}
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", plog.FieldError, err)
			}
		}
	})

	reloadWorker := worker.NewReloadWorker(store, base)
	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeReload(ctx, reloadWorker.HandleReloadMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Reload consumer stopped", plog.FieldOperation, plog.OpConsume, plog.FieldError, err)
			}
		}()
		logger.Info("Listening for reload notifications", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}
	if cfg.ReloadInterval > 0 {
		go reloadWorker.RunPeriodic(ctx, cfg.ReloadInterval)
		logger.Info("Periodic reload enabled", "interval", cfg.ReloadInterval)
	}

	logger.Info("Starting pulse server", "port", cfg.Port, plog.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", plog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
