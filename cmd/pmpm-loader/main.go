package main

import (
	"context"
	"errors"
	"os"
	"time"

	"pmpm/internal/amqp"
	"pmpm/internal/cli"
	applog "pmpm/internal/log"
	"pmpm/internal/storage"
	"pmpm/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	logger.Info("Starting pmpm-loader",
		"source", cfg.DataBackend,
		"interval", cfg.LoadInterval,
		"concurrency", cfg.LoadConcurrency)

	source, err := cli.OpenLoadSource(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to open extract source", applog.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Publishing is optional; the loader only declares the exchange.
	var publisher worker.Publisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, "")
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		publisher = amqpClient
	} else {
		logger.Info("AMQP disabled, refreshes will not be announced")
	}

	loader := worker.NewLoader(source, repo, publisher, cfg.LoadConcurrency, logger)

	parent, stop := context.WithCancel(context.Background())
	defer stop()

	ctx, done := cli.GracefulShutdown(parent, logger, 30*time.Second, func(context.Context) {
		if amqpClient != nil {
			amqpClient.Close()
		}
	})

	if err := loader.Run(ctx, cfg.LoadInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Loader stopped", applog.FieldError, err)
	}
	stop()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Loader stopped gracefully")
}
