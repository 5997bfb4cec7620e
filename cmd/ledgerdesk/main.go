package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"ledgerdesk/internal/amqp"
	"ledgerdesk/internal/cli"
	apphttp "ledgerdesk/internal/http"
	"ledgerdesk/internal/log"
	"ledgerdesk/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	taxes, err := cfg.TaxTable()
	if err != nil {
		logger.Error("Invalid tax table", log.FieldError, err)
		os.Exit(1)
	}

	store := cli.OpenBackend(context.Background(), logger, cfg)

	// Without AMQP documents are still saved; the worker's pending sweep
	// exports them later.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = client
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	ledger := services.NewLedgerService(store.Store, publisher, taxes, logger)
	sessions := services.NewEmployeeSessions(store.Store, publisher, cli.FieldBox(logger, cfg),
		services.SessionConfig{
			TTL:        cfg.SessionTTL,
			Capacity:   cfg.SessionCapacity,
			Completion: cfg.Completion(),
		}, logger)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:   ledger,
		Sessions: sessions,
		Store:    store.Store,
		Logger:   logger,
	}, apphttp.Options{
		ReportCacheTTL:     cfg.ReportCacheTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to create server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		// Closes the store and the AMQP connection
		if err := ledger.Close(); err != nil {
			logger.Error("Close error", log.FieldError, err)
		}
	})
	defer cancel()

	logger.Info("Starting ledgerdesk server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"config_file", cfg.File)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		cancel()
		<-done
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
