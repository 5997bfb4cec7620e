// Package storage defines the persistence ports of the application and the
// SQLite implementation of them.
package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/documents"
	"ledgerdesk/internal/employee"
)

var (
	// ErrNotFound is returned when a record does not exist for the company.
	ErrNotFound = core.ErrNotFound
	// ErrDuplicateNumber is returned when a document number is already used
	// by another document of the same kind.
	ErrDuplicateNumber = errors.New("duplicate document number")
	// ErrCreditExceeded is returned when more credit is applied than the
	// credit memo has left.
	ErrCreditExceeded = errors.New("credit memo has less credit left")
)

// Posting is everything one saved document writes atomically.
type Posting struct {
	Document    documents.Document
	Transaction *core.Transaction
	Invoice     *core.Invoice
}

// DocumentStore persists transaction forms.
type DocumentStore interface {
	// NextNumber reserves the next sequence number for a kind, e.g. INV-1001.
	NextNumber(ctx context.Context, companyID string, kind documents.Kind) (string, error)
	SavePosting(ctx context.Context, p Posting) error
	GetDocument(ctx context.Context, companyID, id string) (documents.Document, error)
	// PendingExport lists posted documents not yet in the journal, oldest first.
	PendingExport(ctx context.Context, limit int) ([]documents.Document, error)
	MarkExported(ctx context.Context, id string, at time.Time) error
}

// LedgerStore reads the registers and receivables the list screens show.
type LedgerStore interface {
	Transactions(ctx context.Context, companyID string) ([]core.Transaction, error)
	Invoices(ctx context.Context, companyID string) ([]core.Invoice, error)
	// SaveCreditApplication adds Applied to the credit memo's applied credit
	// and replaces the invoices' balance and status, all or nothing.
	SaveCreditApplication(ctx context.Context, a CreditApplication) error
	Bills(ctx context.Context, companyID string) ([]core.Bill, error)
	Items(ctx context.Context, companyID string) ([]core.Item, error)
}

// CreditApplication is one use of a credit memo against open invoices.
type CreditApplication struct {
	CompanyID string
	MemoID    string
	Applied   core.Money
	Invoices  []core.Invoice
}

// AlertUpdate changes the flags of one alert; nil fields are untouched.
type AlertUpdate struct {
	Read      *bool `json:"read,omitempty"`
	Dismissed *bool `json:"dismissed,omitempty"`
}

// AlertStore holds dashboard alerts.
type AlertStore interface {
	Alerts(ctx context.Context, companyID string) ([]core.Alert, error)
	UpdateAlert(ctx context.Context, companyID, id string, u AlertUpdate) (core.Alert, error)
}

// EmployeeStore holds employees created by the setup wizard.
type EmployeeStore interface {
	SaveEmployee(ctx context.Context, e employee.Employee) error
	GetEmployee(ctx context.Context, companyID, id string) (employee.Employee, error)
}

// SavedReconciliation is a stored bank reconciliation.
type SavedReconciliation struct {
	ID        string                     `json:"id"`
	CompanyID string                     `json:"company_id"`
	Statement core.Statement             `json:"statement"`
	Summary   core.ReconciliationSummary `json:"summary"`
	CreatedAt time.Time                  `json:"created_at"`
}

// ReconciliationStore holds bank reconciliations.
type ReconciliationStore interface {
	SaveReconciliation(ctx context.Context, r SavedReconciliation) error
	GetReconciliation(ctx context.Context, companyID, id string) (SavedReconciliation, error)
}

// Store is a complete persistence backend.
type Store interface {
	DocumentStore
	LedgerStore
	AlertStore
	EmployeeStore
	ReconciliationStore
	Ping(ctx context.Context) error
	Close() error
}

// FormatNumber renders a document number from its kind prefix and sequence.
func FormatNumber(kind documents.Kind, seq int64) string {
	return kind.NumberPrefix() + "-" + strconv.FormatInt(seq, 10)
}

// FirstNumber is the sequence value of the first document of each kind.
const FirstNumber = 1001
