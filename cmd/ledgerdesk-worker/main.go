package main

import (
	"context"
	"errors"
	"os"
	"time"

	"ledgerdesk/internal/amqp"
	"ledgerdesk/internal/cli"
	"ledgerdesk/internal/log"
	"ledgerdesk/internal/sheets"
	gsheet "ledgerdesk/internal/sheets/google"
	memjournal "ledgerdesk/internal/sheets/memory"
	"ledgerdesk/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting ledgerdesk-worker")
	if cfg.DataBackend != "sqlite" {
		logger.Warn("Worker is not sharing a store with the server", "backend", cfg.DataBackend)
	}

	store := cli.OpenBackend(context.Background(), logger, cfg)
	defer store.Close()

	var journal sheets.JournalWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID: cfg.GoogleSpreadsheetID,
			SheetName:     cfg.GoogleSheetName,
			ClientFile:    cfg.GoogleOAuthClientFile,
			ClientJSON:    cfg.GoogleOAuthClientJSON,
			TokenFile:     cfg.GoogleOAuthTokenFile,
			TokenJSON:     cfg.GoogleOAuthTokenJSON,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		journal = client
		logger.Info("Google Sheets journal initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		journal = memjournal.New()
		logger.Info("Google Sheets disabled - journal rows are kept in memory")
	}

	jw := worker.NewJournalWorker(store.Store, journal, cfg.ExportBatchSize, logger)
	sweeper := worker.NewSweeper(jw, worker.SweeperConfig{Interval: cfg.ExportInterval}, logger)

	ctx, cancel, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := sweeper.Stop(ctx); err != nil {
			logger.Error("Sweeper stop error", log.FieldError, err)
		}
	})
	defer cancel()

	// Documents whose message was lost while the worker was down
	logger.Info("Performing startup export check...")
	if err := jw.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup export check", log.FieldError, err)
	}

	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start sweeper", log.FieldError, err)
		os.Exit(1)
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		go func() {
			if err := client.Consume(ctx, jw.Handlers()); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
				cancel()
			}
		}()
	} else {
		logger.Info("AMQP disabled - relying on the pending export sweep")
	}

	<-ctx.Done()
	<-done
	logger.Info("Worker stopped")
}
