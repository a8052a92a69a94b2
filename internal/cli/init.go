// Package cli provides the initialization shared by cmd/pmpm, cmd/pmpm-loader
// and cmd/pmpmctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pmpm/internal/backend"
	"pmpm/internal/cache"
	"pmpm/internal/config"
	"pmpm/internal/core"
	"pmpm/internal/dataset"
	"pmpm/internal/dataset/file"
	"pmpm/internal/dataset/google"
	applog "pmpm/internal/log"
	"pmpm/internal/panel"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT values
// and installs it as the slog default.
func SetupLogger(level, format string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(level)
	if format == "json" {
		cfg.Format = "json"
	}
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// A missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", applog.FieldError, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenBackend builds the extract reader selected by DATA_BACKEND.
func OpenBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog()).CreateBackend(ctx, bcfg)
}

// OpenLoadSource returns the reader the loader copies from: the workbook for
// the sheets backend, the extract directory otherwise.
func OpenLoadSource(ctx context.Context, cfg *config.Config) (dataset.Reader, error) {
	if cfg.DataBackend == config.BackendSheets {
		client, err := google.New(ctx, google.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		}, dataset.DefaultRules)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	if _, err := os.Stat(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("extract directory: %w", err)
	}
	return file.New(cfg.DataDir, dataset.DefaultRules), nil
}

// NewSnapshotCache wraps reader in an LRU of coerced snapshots and registers
// the LRU for periodic expiry.
func NewSnapshotCache(reader dataset.Reader, cfg *config.Config, manager *cache.Manager) *dataset.CachedReader {
	lru := cache.NewLRUCache[core.Dataset](cfg.CacheSize, cfg.CacheTTL)
	if manager != nil {
		manager.Register(lru)
	}
	return dataset.NewCachedReader(reader, lru)
}

// LoadPanels reads PANELS_FILE, or the built-in panels when it is unset.
func LoadPanels(cfg *config.Config) (*panel.Registry, error) {
	if cfg.PanelsFile == "" {
		return panel.DefaultRegistry(), nil
	}
	return panel.LoadFile(cfg.PanelsFile)
}

// GracefulShutdown cancels the returned context on SIGINT, SIGTERM or when
// parent is done, then runs cleanup bounded by timeout. done closes once
// cleanup has returned or the timeout has passed.
func GracefulShutdown(parent context.Context, logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		if cleanup == nil {
			return
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			cleanup(shutdownCtx)
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is over.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
