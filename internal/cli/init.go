// Package cli holds the start-up steps shared by the ledgerdesk commands.
package cli

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledgerdesk/internal/backend"
	"ledgerdesk/internal/config"
	"ledgerdesk/internal/fieldcrypt"
	"ledgerdesk/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from the configured level and
// format and installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	lc.Component = component
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadConfig loads and validates the configuration. It prints the problems
// and exits when the configuration is invalid.
func LoadConfig() *config.Config {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

// OpenBackend creates the configured store. Exits on failure.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", bc.Type)
		os.Exit(1)
	}
	return res
}

// FieldBox derives the bank account encryption key. Without a passphrase a
// random key is used, so sealed values do not survive a restart; Validate
// only allows that for the memory backend.
func FieldBox(logger *log.Logger, cfg *config.Config) *fieldcrypt.Box {
	var (
		box *fieldcrypt.Box
		err error
	)
	if cfg.FieldKeyPassphrase != "" {
		box, err = fieldcrypt.FromPassphrase(cfg.FieldKeyPassphrase, []byte(cfg.FieldKeySalt))
	} else {
		logger.Warn("FIELD_KEY_PASSPHRASE not set, using an ephemeral field key")
		key := make([]byte, fieldcrypt.KeySize)
		if _, err = rand.Read(key); err == nil {
			box, err = fieldcrypt.New(key)
		}
	}
	if err != nil {
		logger.Error("Failed to initialize field encryption", log.FieldError, err)
		os.Exit(1)
	}
	return box
}

// GracefulShutdown returns a context cancelled on SIGINT, SIGTERM or a call
// to the returned cancel func. The channel closes once cleanup has run or
// timeout expired.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, context.CancelFunc, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
			logger.Info("Context cancelled")
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
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

	return ctx, cancel, done
}
