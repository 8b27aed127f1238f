// Package cli provides common CLI initialization utilities shared by
// cmd/findash, cmd/findash-worker and cmd/findash-snapshot.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"findash/internal/config"
	"findash/internal/log"
	"findash/internal/remote"
	"findash/internal/services"
)

// SetupLogger builds the process logger from cfg and sets it as the
// default slog logger.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     cfg.SlogLevel(),
		Component: component,
		Format:    cfg.LogFormat,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(component string) (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// NewFetcher connects to the configured bucket. Objects are decrypted with
// DATA_KEY when it is set.
func NewFetcher(ctx context.Context, cfg *config.Config) (*remote.Fetcher, error) {
	client, err := remote.NewS3Client(ctx, remote.S3Config{
		URL:       cfg.R2URL,
		AccessKey: cfg.R2AccountID,
		SecretKey: cfg.R2AccessKey,
	})
	if err != nil {
		return nil, err
	}
	f := &remote.Fetcher{Store: client, Bucket: cfg.R2Bucket}
	if cfg.DataKey != "" {
		if f.Key, err = remote.ParseKey(cfg.DataKey); err != nil {
			return nil, fmt.Errorf("DATA_KEY: %w", err)
		}
	}
	return f, nil
}

// NewRemoteLoader downloads the configured objects into CACHE_DIR.
func NewRemoteLoader(ctx context.Context, cfg *config.Config) (services.RemoteLoader, error) {
	f, err := NewFetcher(ctx, cfg)
	if err != nil {
		return services.RemoteLoader{}, err
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return services.RemoteLoader{}, fmt.Errorf("create cache dir: %w", err)
	}
	return services.RemoteLoader{
		Fetcher:  f,
		DBObject: cfg.R2DBObject,
		KVObject: cfg.R2KVObject,
		Dir:      cfg.CacheDir,
	}, nil
}

// NewLoader picks the snapshot loader for the configured source mode.
func NewLoader(ctx context.Context, cfg *config.Config) (services.Loader, error) {
	if cfg.SourceMode() == config.SourceFile {
		return services.FileLoader{DBPath: cfg.DataFile, KVPath: cfg.DataJSON}, nil
	}
	return NewRemoteLoader(ctx, cfg)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
