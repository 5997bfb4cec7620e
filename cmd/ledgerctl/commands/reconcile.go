package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ledgerdesk/internal/core"
)

var errNotReconciled = errors.New("statement does not reconcile")

func reconcileCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check a bank statement against its cleared transactions",
		Long: "Reads a statement JSON file (account, balances, transactions and the\n" +
			"ids marked cleared) and prints the reconciliation summary. Exits non-zero\n" +
			"when a difference remains.",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read statement: %w", err)
			}
			var st core.Statement
			if err := json.Unmarshal(raw, &st); err != nil {
				return fmt.Errorf("parse statement %s: %w", file, err)
			}
			r, err := st.Reconciliation()
			if err != nil {
				return err
			}
			sum := r.Summary()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Account:           %s\n", st.Account)
			fmt.Fprintf(out, "Beginning balance: %s\n", st.BeginningBalance)
			fmt.Fprintf(out, "Cleared deposits:  %s\n", sum.ClearedDeposits)
			fmt.Fprintf(out, "Cleared payments:  %s\n", sum.ClearedPayments)
			fmt.Fprintf(out, "Cleared balance:   %s\n", sum.ClearedBalance)
			fmt.Fprintf(out, "Statement ending:  %s\n", st.StatementEndBalance)
			fmt.Fprintf(out, "Difference:        %s\n", sum.Difference)
			if !sum.IsReconciled {
				return errNotReconciled
			}
			fmt.Fprintln(out, "Reconciled.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "statement JSON file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
