package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/export"
)

func agingCmd() *cobra.Command {
	var (
		out  string
		asOf string
	)
	cmd := &cobra.Command{
		Use:   "aging",
		Short: "Write the receivables aging workbook for a company",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireCompany(); err != nil {
				return err
			}
			at := time.Now()
			if asOf != "" {
				d, err := core.ParseDate(asOf)
				if err != nil {
					return fmt.Errorf("--as-of: %w", err)
				}
				at = d.Time
			}

			invoices, err := client().OutstandingInvoices(cmd.Context(), companyID)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := export.AgingReport(f, invoices, at); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			logger.Info("Aging report written", "company_id", companyID, "invoices", len(invoices), "path", out)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d open invoices)\n", out, len(invoices))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "aging.xlsx", "output workbook path")
	cmd.Flags().StringVar(&asOf, "as-of", "", "age invoices as of this date (YYYY-MM-DD, default today)")
	return cmd
}
