package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/dashboard"
)

func dashboardCmd() *cobra.Command {
	var (
		dateRange string
		asJSON    bool
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Load and print a company's dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireCompany(); err != nil {
				return err
			}
			if _, err := core.ParseDateRange(dateRange, time.Now()); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			board := dashboard.NewBoard(dashboard.NewAggregator(client()), companyID, dateRange)
			defer board.Close()
			v, err := board.Wait(ctx, board.Refresh(ctx))
			if err != nil {
				return err
			}
			if v.Phase == dashboard.PhaseError {
				logger.Warn("Dashboard load failed", "company_id", companyID, "error", v.Err)
				return errors.New(v.Message)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(v.Snapshot)
			}
			printSnapshot(cmd.OutOrStdout(), v.Snapshot)
			return nil
		},
	}
	cmd.Flags().StringVar(&dateRange, "range", "this_month", "date range: this_month, last_month, this_quarter, this_year or last_30_days")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw snapshot as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long")
	return cmd
}

func printSnapshot(w io.Writer, s *dashboard.Snapshot) {
	rep := s.Report
	fmt.Fprintf(w, "%s  %s .. %s\n\n", s.CompanyID, rep.From, rep.To)
	stat := func(label string, st dashboard.Stat) {
		fmt.Fprintf(w, "%-16s %14s  %+6.1f%% %s\n", label, st.Value, st.Change, st.Trend)
	}
	stat("Income", rep.Stats.TotalIncome)
	stat("Expenses", rep.Stats.TotalExpenses)
	stat("Net income", rep.Stats.NetIncome)
	fmt.Fprintf(w, "%-16s %14s\n\n", "Receivables", rep.AccountsReceivable.Total())

	fmt.Fprintf(w, "Recent transactions (%d)\n", len(s.Recent))
	for _, t := range s.Recent {
		fmt.Fprintf(w, "  %s  %-10s %-24s %14s\n", t.Date, t.Type, t.Party, t.Amount)
	}
	fmt.Fprintf(w, "\nOutstanding invoices (%d)\n", len(s.Outstanding))
	for _, inv := range s.Outstanding {
		fmt.Fprintf(w, "  %-10s %-24s due %s %14s\n", inv.Number, inv.Customer, inv.DueDate, inv.Balance)
	}
	fmt.Fprintf(w, "\nAlerts (%d)\n", len(s.Alerts))
	for _, a := range s.Alerts {
		fmt.Fprintf(w, "  [%s] %s\n", a.Severity, a.Title)
	}
}
