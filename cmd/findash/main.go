package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"findash/internal/amqp"
	"findash/internal/cache"
	"findash/internal/cli"
	"findash/internal/dept"
	apphttp "findash/internal/http"
	"findash/internal/log"
	"findash/internal/middleware/ratelimit"
	"findash/internal/services"
	"findash/internal/statement"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)

	logger.Info("Starting findash server",
		"port", cfg.Port,
		"source", cfg.SourceMode(),
		log.FieldOperation, log.OpStartup)

	loader, err := cli.NewLoader(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize snapshot loader", "error", err, "source", cfg.SourceMode())
		os.Exit(1)
	}

	var opts []services.DashboardOption
	if cfg.StatementDefinition != "" {
		def, err := statement.LoadDefinition(cfg.StatementDefinition)
		if err != nil {
			logger.Error("Failed to load statement definition", "error", err, "path", cfg.StatementDefinition)
			os.Exit(1)
		}
		opts = append(opts, services.WithDefinition(def))
		logger.Info("Loaded statement definition", "path", cfg.StatementDefinition)
	}

	provider := services.NewSourceProvider(loader, cfg.SourceTTL())
	dash := services.NewDashboardService(provider, dept.Default(), opts...)

	janitor := cache.NewJanitor()
	janitor.Register(provider.Cache())
	janitor.Register(dash.ResultCache())
	janitor.Start(5 * time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, dash, apphttp.Options{
		Logger:          logger,
		AdminToken:      cfg.AdminToken,
		RateLimit:       ratelimit.DefaultConfig(),
		BlockSuspicious: cfg.BlockSuspicious,
		Caches: map[string]apphttp.Sizer{
			"source": provider.Cache(),
			"result": dash.ResultCache(),
		},
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		janitor.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
	})

	if amqpClient != nil {
		amqpLogger := logger.WithComponent(log.ComponentAMQP)
		go func() {
			err := amqpClient.ConsumeSnapshotUpdated(ctx, func(ctx context.Context, msg *amqp.SnapshotUpdatedMessage) error {
				provider.Invalidate()
				amqpLogger.InfoContext(ctx, "Snapshot cache invalidated",
					"id", msg.ID,
					log.FieldObject, msg.Object,
					"updated_at", msg.UpdatedAt)
				return nil
			})
			if err != nil && ctx.Err() == nil {
				amqpLogger.Error("Snapshot update consumer stopped", "error", err)
			}
		}()
	}

	// Warm the snapshot cache so the first request does not pay for the load.
	go func() {
		if err := dash.Ready(ctx); err != nil {
			logger.Warn("Initial snapshot load failed", "error", err)
			return
		}
		unresolved, err := dash.ValidateDefinition(ctx)
		if err != nil {
			return
		}
		for _, u := range unresolved {
			logger.Warn("Statement total references no rows",
				"total", u.Total,
				"ref", u.Ref,
				log.FieldOperation, log.OpValidate)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
