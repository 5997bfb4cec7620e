package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledgerdesk/internal/storage"
)

func migrateCmd() *cobra.Command {
	var (
		dbPath string
		down   int
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or roll back) the sqlite schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = cfg.SQLiteDBPath
			}
			if down > 0 {
				if err := storage.RollbackMigrations(dbPath, down); err != nil {
					return err
				}
			} else if err := storage.RunMigrations(dbPath); err != nil {
				return err
			}
			v, dirty, err := storage.MigrationVersion(dbPath)
			if err != nil {
				return err
			}
			logger.Info("Migrations applied", "db_path", dbPath, "version", v, "dirty", dirty)
			fmt.Fprintf(cmd.OutOrStdout(), "%s at schema version %d\n", dbPath, v)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path (default from SQLITE_DB_PATH)")
	cmd.Flags().IntVar(&down, "down", 0, "roll back this many migrations instead of applying")
	return cmd
}
