package main

import (
	"context"
	"os"
	"time"

	"findash/internal/amqp"
	"findash/internal/cli"
	"findash/internal/config"
	"findash/internal/log"
	"findash/internal/worker"
)

// findash-worker keeps CACHE_DIR in sync with the bucket so a server
// started with DATA_FILE pointing there always reads a recent snapshot.
func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)

	if cfg.SourceMode() != config.SourceRemote {
		logger.Error("findash-worker needs the R2 bucket settings; unset DATA_FILE")
		os.Exit(1)
	}

	loader, err := cli.NewRemoteLoader(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize remote loader", "error", err)
		os.Exit(1)
	}

	var consumer worker.Consumer
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		consumer = amqpClient
	} else {
		logger.Info("AMQP disabled - refreshing on the interval only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
	})

	dbPath, kvPath := loader.Paths()
	logger.Info("Starting findash-worker",
		"interval", cfg.RefreshInterval.String(),
		"bucket", cfg.R2Bucket,
		"db_path", dbPath,
		"kv_path", kvPath,
		log.FieldOperation, log.OpStartup)

	w := worker.NewRefreshWorker(loader, cfg.RefreshInterval)
	if err := w.Run(ctx, consumer); err != nil {
		logger.Error("Refresh worker stopped", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	if last, _ := w.Status(); !last.IsZero() {
		logger.Info("Worker stopped", "last_refresh", last.Format(time.RFC3339))
	}
}
