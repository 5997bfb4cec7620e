package core

import "sort"

// AccountAmount is an amount aggregated by account name.
type AccountAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// PeriodTotals summarises register activity inside a date range.
type PeriodTotals struct {
	Income   Money `json:"income"`
	Expenses Money `json:"expenses"`
}

// Net is income minus expenses.
func (p PeriodTotals) Net() Money { return p.Income.Sub(p.Expenses) }

// Summarize splits register entries within r into income (positive amounts)
// and expenses (negative amounts, reported as a positive figure).
func Summarize(txns []Transaction, r DateRange) PeriodTotals {
	var p PeriodTotals
	for _, t := range txns {
		if !r.Contains(t.Date.Time) {
			continue
		}
		if t.Amount.IsNegative() {
			p.Expenses = p.Expenses.Add(t.Amount.Neg())
		} else {
			p.Income = p.Income.Add(t.Amount)
		}
	}
	return p
}

// ExpensesByAccount totals outflows within r per account, largest first.
func ExpensesByAccount(txns []Transaction, r DateRange) []AccountAmount {
	byName := make(map[string]Money)
	for _, t := range txns {
		if !t.Amount.IsNegative() || !r.Contains(t.Date.Time) {
			continue
		}
		byName[t.Account] = byName[t.Account].Add(t.Amount.Neg())
	}
	out := make([]AccountAmount, 0, len(byName))
	for name, amt := range byName {
		out = append(out, AccountAmount{Name: name, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}
