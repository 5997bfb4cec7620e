package dashboard

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ledgerdesk/internal/core"
)

// Source supplies the four independent slices of the dashboard.
type Source interface {
	Report(ctx context.Context, companyID, dateRange string) (Report, error)
	RecentTransactions(ctx context.Context, companyID string, limit int) ([]core.Transaction, error)
	OutstandingInvoices(ctx context.Context, companyID string) ([]core.Invoice, error)
	Alerts(ctx context.Context, companyID string) ([]core.Alert, error)
}

// Snapshot is a fully loaded dashboard. It is never partially filled.
type Snapshot struct {
	CompanyID   string             `json:"company_id"`
	DateRange   string             `json:"date_range"`
	Report      Report             `json:"report"`
	Recent      []core.Transaction `json:"recent_transactions"`
	Outstanding []core.Invoice     `json:"outstanding_invoices"`
	Alerts      []core.Alert       `json:"alerts"`
	LoadedAt    time.Time          `json:"loaded_at"`
}

// SliceError names the slice whose fetch failed.
type SliceError struct {
	Slice string
	Err   error
}

func (e *SliceError) Error() string { return fmt.Sprintf("load %s: %v", e.Slice, e.Err) }
func (e *SliceError) Unwrap() error { return e.Err }

const DefaultRecentLimit = 10

type Aggregator struct {
	src    Source
	recent int
	now    func() time.Time
}

type AggregatorOption func(*Aggregator)

// WithRecentLimit sets how many recent transactions are requested.
func WithRecentLimit(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.recent = n
		}
	}
}

func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(src Source, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{src: src, recent: DefaultRecentLimit, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load fetches every slice concurrently. The first failure cancels the
// others and Load returns that error with no snapshot.
func (a *Aggregator) Load(ctx context.Context, companyID, dateRange string) (Snapshot, error) {
	var (
		rep      Report
		recent   []core.Transaction
		invoices []core.Invoice
		alerts   []core.Alert
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := a.src.Report(gctx, companyID, dateRange)
		if err != nil {
			return &SliceError{Slice: "report", Err: err}
		}
		rep = r
		return nil
	})
	g.Go(func() error {
		t, err := a.src.RecentTransactions(gctx, companyID, a.recent)
		if err != nil {
			return &SliceError{Slice: "recent transactions", Err: err}
		}
		recent = t
		return nil
	})
	g.Go(func() error {
		inv, err := a.src.OutstandingInvoices(gctx, companyID)
		if err != nil {
			return &SliceError{Slice: "outstanding invoices", Err: err}
		}
		invoices = inv
		return nil
	})
	g.Go(func() error {
		al, err := a.src.Alerts(gctx, companyID)
		if err != nil {
			return &SliceError{Slice: "alerts", Err: err}
		}
		alerts = al
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		CompanyID:   companyID,
		DateRange:   dateRange,
		Report:      rep,
		Recent:      recent,
		Outstanding: invoices,
		Alerts:      alerts,
		LoadedAt:    a.now().UTC(),
	}, nil
}
