package main

import (
	"context"
	"errors"
	"os"
	"time"

	"pmpm/internal/amqp"
	"pmpm/internal/cache"
	"pmpm/internal/cli"
	apphttp "pmpm/internal/http"
	applog "pmpm/internal/log"
	"pmpm/internal/middleware/ratelimit"
	"pmpm/internal/services"
)

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	logger.Info("Starting pmpm dashboard", "backend", cfg.DataBackend, "port", cfg.Port)

	be, err := cli.OpenBackend(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer be.Close()

	panels, err := cli.LoadPanels(cfg)
	if err != nil {
		logger.Error("Failed to load panel definitions", applog.FieldError, err, "path", cfg.PanelsFile)
		os.Exit(1)
	}

	metrics := apphttp.NewMetrics()
	cacheManager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Slog())
	snapshots := cli.NewSnapshotCache(be.Reader, cfg, cacheManager)
	snapshots.OnLookup(metrics.ObserveCacheLookup)
	cacheManager.StartCleanup(cfg.CacheCleanupInterval)

	dashboard := services.NewDashboardService(snapshots, panels, logger)

	srv, err := apphttp.NewServer(dashboard, apphttp.Options{
		Addr:      ":" + cfg.Port,
		Logger:    logger,
		Metrics:   metrics,
		RateLimit: ratelimit.DefaultConfig(),
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	// Refresh notifications are optional; without them snapshots expire by TTL.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
	}

	parent, fail := context.WithCancel(context.Background())
	defer fail()

	ctx, done := cli.GracefulShutdown(parent, logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			amqpClient.Close()
		}
	})

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeWithRetry(ctx, dashboard.HandleRefresh)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Refresh consumer stopped", applog.FieldError, err)
			}
		}()
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
			fail()
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
