// Package dashboard loads the home screen: a summary report, recent
// activity, outstanding invoices and alerts, fetched together and shown
// only when every slice arrived.
package dashboard

import (
	"time"

	"github.com/shopspring/decimal"

	"ledgerdesk/internal/core"
)

type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Stat is a headline figure compared with the previous period. Change is a
// percentage rounded to one decimal.
type Stat struct {
	Value  core.Money `json:"value"`
	Change float64    `json:"change"`
	Trend  Trend      `json:"trend"`
}

type Stats struct {
	TotalIncome   Stat `json:"total_income"`
	TotalExpenses Stat `json:"total_expenses"`
	NetIncome     Stat `json:"net_income"`
}

// Report is the body of GET /reports/dashboard.
type Report struct {
	DateRange          string               `json:"date_range"`
	From               core.Date            `json:"from"`
	To                 core.Date            `json:"to"`
	Stats              Stats                `json:"stats"`
	AccountsReceivable core.AgingBuckets    `json:"accounts_receivable"`
	TopExpenses        []core.AccountAmount `json:"top_expenses,omitempty"`
}

const topExpenses = 5

// BuildReport summarizes txns over r against the previous period and ages
// invoices as of asOf.
func BuildReport(txns []core.Transaction, invoices []core.Invoice, r core.DateRange, asOf time.Time) Report {
	cur := core.Summarize(txns, r)
	prev := core.Summarize(txns, r.Previous())
	rep := Report{
		DateRange: r.Name,
		From:      r.From,
		To:        r.To,
		Stats: Stats{
			TotalIncome:   Compare(cur.Income, prev.Income),
			TotalExpenses: Compare(cur.Expenses, prev.Expenses),
			NetIncome:     Compare(cur.Net(), prev.Net()),
		},
		AccountsReceivable: core.AgeInvoices(invoices, asOf),
	}
	exp := core.ExpensesByAccount(txns, r)
	if len(exp) > topExpenses {
		exp = exp[:topExpenses]
	}
	rep.TopExpenses = exp
	return rep
}

// Compare builds a Stat for cur against prev. With no previous figure the
// change is 100% in the direction of cur, or 0 when both are zero.
func Compare(cur, prev core.Money) Stat {
	s := Stat{Value: cur, Trend: TrendFlat}
	switch {
	case cur.Cents > prev.Cents:
		s.Trend = TrendUp
	case cur.Cents < prev.Cents:
		s.Trend = TrendDown
	}
	switch {
	case prev.IsZero() && cur.IsZero():
		s.Change = 0
	case prev.IsZero():
		s.Change = 100
		if cur.IsNegative() {
			s.Change = -100
		}
	default:
		diff := decimal.NewFromInt(cur.Cents - prev.Cents)
		pct := diff.Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(prev.Abs().Cents)).Round(1)
		s.Change = pct.InexactFloat64()
	}
	return s
}
