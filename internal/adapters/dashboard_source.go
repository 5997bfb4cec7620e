// Package adapters connects the persistence ports to the consumers that
// need a different shape of the same data.
package adapters

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/dashboard"
	"ledgerdesk/internal/storage"
)

// Ledger is the part of a Store the dashboard reads.
type Ledger interface {
	storage.LedgerStore
	storage.AlertStore
}

// DashboardSource computes the dashboard slices directly from storage.
type DashboardSource struct {
	store Ledger
	now   func() time.Time
}

var _ dashboard.Source = (*DashboardSource)(nil)

func NewDashboardSource(store Ledger, now func() time.Time) *DashboardSource {
	if now == nil {
		now = time.Now
	}
	return &DashboardSource{store: store, now: now}
}

// Report implements dashboard.Source
func (a *DashboardSource) Report(ctx context.Context, companyID, dateRange string) (dashboard.Report, error) {
	now := a.now()
	r, err := core.ParseDateRange(dateRange, now)
	if err != nil {
		return dashboard.Report{}, err
	}
	txns, err := a.store.Transactions(ctx, companyID)
	if err != nil {
		return dashboard.Report{}, fmt.Errorf("read transactions: %w", err)
	}
	invoices, err := a.store.Invoices(ctx, companyID)
	if err != nil {
		return dashboard.Report{}, fmt.Errorf("read invoices: %w", err)
	}
	return dashboard.BuildReport(txns, invoices, r, now), nil
}

// RecentTransactions implements dashboard.Source: newest first.
func (a *DashboardSource) RecentTransactions(ctx context.Context, companyID string, limit int) ([]core.Transaction, error) {
	txns, err := a.store.Transactions(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	sort.SliceStable(txns, func(i, j int) bool {
		if !txns[i].Date.Equal(txns[j].Date.Time) {
			return txns[i].Date.After(txns[j].Date.Time)
		}
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}

// OutstandingInvoices implements dashboard.Source. Open invoices past due
// are reported as overdue.
func (a *DashboardSource) OutstandingInvoices(ctx context.Context, companyID string) ([]core.Invoice, error) {
	invoices, err := a.store.Invoices(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("read invoices: %w", err)
	}
	now := a.now()
	out := make([]core.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if !inv.Outstanding() {
			continue
		}
		inv.Status = inv.EffectiveStatus(now)
		out = append(out, inv)
	}
	return out, nil
}

// Alerts implements dashboard.Source; dismissed alerts are left out.
func (a *DashboardSource) Alerts(ctx context.Context, companyID string) ([]core.Alert, error) {
	alerts, err := a.store.Alerts(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("read alerts: %w", err)
	}
	out := alerts[:0]
	for _, al := range alerts {
		if !al.Dismissed {
			out = append(out, al)
		}
	}
	return out, nil
}
