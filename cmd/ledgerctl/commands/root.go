// Package commands implements the ledgerctl subcommands.
package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"ledgerdesk/internal/apiclient"
	"ledgerdesk/internal/cli"
	"ledgerdesk/internal/config"
	"ledgerdesk/internal/log"
)

var errMissingCompany = errors.New("--company is required")

// Set with -ldflags "-X ledgerdesk/cmd/ledgerctl/commands.version=..."
var version = "dev"

var (
	cfg    *config.Config
	logger *log.Logger

	configFile string
	apiURL     string
	companyID  string
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate a ledgerdesk installation",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cli.LoadEnvFile()
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}
			if configFile != "" {
				if err := cfg.LoadFile(configFile); err != nil {
					return err
				}
			}
			if apiURL != "" {
				cfg.APIURL = apiURL
			}
			lc := log.DefaultConfig()
			lc.Level = log.ParseLevel(cfg.LogLevel)
			lc.Component = log.ComponentCLI
			lc.Output = cmd.ErrOrStderr()
			logger = log.New(lc)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "TOML config file (overrides LEDGERDESK_CONFIG)")
	root.PersistentFlags().StringVar(&apiURL, "api", "", "ledgerdesk API base URL (default from LEDGERDESK_API_URL)")
	root.PersistentFlags().StringVar(&companyID, "company", "", "company ID")

	root.AddCommand(
		migrateCmd(),
		reconcileCmd(),
		agingCmd(),
		dashboardCmd(),
		sheetsCmd(),
		versionCmd(),
	)
	return root
}

func client() *apiclient.Client {
	return apiclient.New(cfg.APIURL, cfg.APITimeout)
}

func requireCompany() error {
	if companyID == "" {
		return errMissingCompany
	}
	return nil
}
