package core

import (
	"testing"
	"time"
)

func TestParseDateRange(t *testing.T) {
	now := time.Date(2025, 5, 14, 10, 30, 0, 0, time.UTC)
	cases := []struct {
		name     string
		from, to string
		prevFrom string
		prevTo   string
	}{
		{"", "2025-05-01", "2025-05-31", "2025-04-01", "2025-04-30"},
		{"this_month", "2025-05-01", "2025-05-31", "2025-04-01", "2025-04-30"},
		{"last_month", "2025-04-01", "2025-04-30", "2025-03-01", "2025-03-31"},
		{"this_quarter", "2025-04-01", "2025-06-30", "2025-01-01", "2025-03-31"},
		{"this_year", "2025-01-01", "2025-12-31", "2024-01-01", "2024-12-31"},
		{"last_30_days", "2025-04-15", "2025-05-14", "2025-03-16", "2025-04-14"},
	}
	for _, tc := range cases {
		r, err := ParseDateRange(tc.name, now)
		if err != nil {
			t.Fatalf("%q: %v", tc.name, err)
		}
		if r.From.String() != tc.from || r.To.String() != tc.to {
			t.Errorf("%q: got %s..%s", tc.name, r.From, r.To)
		}
		p := r.Previous()
		if p.From.String() != tc.prevFrom || p.To.String() != tc.prevTo {
			t.Errorf("%q previous: got %s..%s", tc.name, p.From, p.To)
		}
	}
	if _, err := ParseDateRange("next_decade", now); err == nil {
		t.Fatalf("expected error for unknown range")
	}
}

func TestDateRangeLastMonthAcrossYear(t *testing.T) {
	r, err := ParseDateRange("last_month", time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if r.From.String() != "2024-12-01" || r.To.String() != "2024-12-31" {
		t.Fatalf("got %s..%s", r.From, r.To)
	}
}

func TestDateRangeContains(t *testing.T) {
	r := DateRange{From: NewDate(2025, 5, 1), To: NewDate(2025, 5, 31)}
	cases := []struct {
		t    time.Time
		want bool
	}{
		{time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2025, 5, 31, 23, 59, 0, 0, time.UTC), true},
		{time.Date(2025, 4, 30, 23, 59, 0, 0, time.UTC), false},
		{time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		if got := r.Contains(tc.t); got != tc.want {
			t.Errorf("Contains(%s) = %v", tc.t, got)
		}
	}
	if r.Days() != 31 {
		t.Fatalf("days = %d", r.Days())
	}
}

func TestSummarize(t *testing.T) {
	r := DateRange{From: NewDate(2025, 5, 1), To: NewDate(2025, 5, 31)}
	txns := []Transaction{
		{Date: NewDate(2025, 5, 2), Account: "Sales", Amount: Cents(10000)},
		{Date: NewDate(2025, 5, 3), Account: "Rent", Amount: Cents(-4000)},
		{Date: NewDate(2025, 5, 4), Account: "Utilities", Amount: Cents(-500)},
		{Date: NewDate(2025, 5, 5), Account: "Rent", Amount: Cents(-1000)},
		{Date: NewDate(2025, 6, 1), Account: "Rent", Amount: Cents(-9999)},
	}
	p := Summarize(txns, r)
	if p.Income.Cents != 10000 || p.Expenses.Cents != 5500 || p.Net().Cents != 4500 {
		t.Fatalf("unexpected totals %+v", p)
	}
	by := ExpensesByAccount(txns, r)
	if len(by) != 2 || by[0].Name != "Rent" || by[0].Amount.Cents != 5000 || by[1].Name != "Utilities" {
		t.Fatalf("unexpected breakdown %+v", by)
	}
}
