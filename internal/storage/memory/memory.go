// Package memory is the process-lifetime Store, optionally seeded from a
// YAML fixture file.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/documents"
	"ledgerdesk/internal/employee"
	"ledgerdesk/internal/storage"
)

type company struct {
	transactions    []core.Transaction
	invoices        []core.Invoice
	bills           []core.Bill
	items           []core.Item
	alerts          []core.Alert
	employees       map[string]employee.Employee
	reconciliations map[string]storage.SavedReconciliation
}

// Store keeps every company's records in maps guarded by one mutex.
type Store struct {
	mu        sync.Mutex
	companies map[string]*company
	docs      map[string]documents.Document
	docOrder  []string
	numbers   map[string]int64
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		companies: make(map[string]*company),
		docs:      make(map[string]documents.Document),
		numbers:   make(map[string]int64),
	}
}

// company returns the bucket for id, creating it. Caller holds s.mu.
func (s *Store) company(id string) *company {
	c, ok := s.companies[id]
	if !ok {
		c = &company{
			employees:       make(map[string]employee.Employee),
			reconciliations: make(map[string]storage.SavedReconciliation),
		}
		s.companies[id] = c
	}
	return c
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// ─── Documents ──────────────────────────────────────────────────────────────

// NextNumber skips sequence values already typed by hand on a saved
// document.
func (s *Store) NextNumber(_ context.Context, companyID string, kind documents.Kind) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := companyID + "|" + string(kind)
	for {
		next, ok := s.numbers[key]
		if !ok {
			next = storage.FirstNumber
		} else {
			next++
		}
		s.numbers[key] = next
		if number := storage.FormatNumber(kind, next); !s.numberTaken(companyID, kind, number) {
			return number, nil
		}
	}
}

// numberTaken reports whether a saved document already uses number. Caller
// holds s.mu.
func (s *Store) numberTaken(companyID string, kind documents.Kind, number string) bool {
	for _, id := range s.docOrder {
		other := s.docs[id]
		if other.CompanyID == companyID && other.Kind == kind && other.Number == number {
			return true
		}
	}
	return false
}

func (s *Store) SavePosting(_ context.Context, p storage.Posting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := p.Document
	if _, dup := s.docs[doc.ID]; dup {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	if s.numberTaken(doc.CompanyID, doc.Kind, doc.Number) {
		return fmt.Errorf("%w: %s %s", storage.ErrDuplicateNumber, doc.Kind, doc.Number)
	}

	c := s.company(doc.CompanyID)
	s.docs[doc.ID] = cloneDocument(doc)
	s.docOrder = append(s.docOrder, doc.ID)
	if p.Transaction != nil {
		c.transactions = append(c.transactions, *p.Transaction)
	}
	if p.Invoice != nil {
		c.invoices = append(c.invoices, *p.Invoice)
	}
	return nil
}

func (s *Store) GetDocument(_ context.Context, companyID, id string) (documents.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.CompanyID != companyID {
		return documents.Document{}, fmt.Errorf("document %s: %w", id, storage.ErrNotFound)
	}
	return cloneDocument(doc), nil
}

func (s *Store) PendingExport(_ context.Context, limit int) ([]documents.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []documents.Document
	for _, id := range s.docOrder {
		if len(out) >= limit {
			break
		}
		if doc := s.docs[id]; doc.Status == documents.StatusPosted {
			out = append(out, cloneDocument(doc))
		}
	}
	return out, nil
}

func (s *Store) MarkExported(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, storage.ErrNotFound)
	}
	at = at.UTC()
	doc.Status = documents.StatusExported
	doc.ExportedAt = &at
	s.docs[id] = doc
	return nil
}

func cloneDocument(d documents.Document) documents.Document {
	d.Lines = append([]core.LineItem(nil), d.Lines...)
	if d.ExportedAt != nil {
		t := *d.ExportedAt
		d.ExportedAt = &t
	}
	return d
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

func (s *Store) Transactions(_ context.Context, companyID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Transaction(nil), s.company(companyID).transactions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *Store) Invoices(_ context.Context, companyID string) ([]core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Invoice(nil), s.company(companyID).invoices...), nil
}

func (s *Store) SaveCreditApplication(_ context.Context, a storage.CreditApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	memo, ok := s.docs[a.MemoID]
	if !ok || memo.CompanyID != a.CompanyID || memo.Kind != documents.KindCreditMemo {
		return fmt.Errorf("credit memo %s: %w", a.MemoID, storage.ErrNotFound)
	}
	if left := memo.CreditRemaining(); a.Applied.Cents > left.Cents {
		return fmt.Errorf("%w: %s left on %s", storage.ErrCreditExceeded, left, memo.Number)
	}

	// Resolve every index first so a missing invoice changes nothing.
	c := s.company(a.CompanyID)
	idx := make([]int, len(a.Invoices))
	for n, inv := range a.Invoices {
		idx[n] = -1
		for i, have := range c.invoices {
			if have.ID == inv.ID {
				idx[n] = i
				break
			}
		}
		if idx[n] < 0 {
			return fmt.Errorf("invoice %s: %w", inv.ID, storage.ErrNotFound)
		}
	}
	for n, inv := range a.Invoices {
		stored := &c.invoices[idx[n]]
		stored.Balance = inv.Balance
		stored.Status = inv.Status
	}
	memo.CreditApplied = memo.CreditApplied.Add(a.Applied)
	s.docs[a.MemoID] = memo
	return nil
}

func (s *Store) Bills(_ context.Context, companyID string) ([]core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Bill(nil), s.company(companyID).bills...), nil
}

func (s *Store) Items(_ context.Context, companyID string) ([]core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Item(nil), s.company(companyID).items...), nil
}

// ─── Alerts ─────────────────────────────────────────────────────────────────

func (s *Store) Alerts(_ context.Context, companyID string) ([]core.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Alert(nil), s.company(companyID).alerts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateAlert(_ context.Context, companyID, id string, u storage.AlertUpdate) (core.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alerts := s.company(companyID).alerts
	for i := range alerts {
		if alerts[i].ID != id {
			continue
		}
		if u.Read != nil {
			alerts[i].Read = *u.Read
		}
		if u.Dismissed != nil {
			alerts[i].Dismissed = *u.Dismissed
		}
		return alerts[i], nil
	}
	return core.Alert{}, fmt.Errorf("alert %s: %w", id, storage.ErrNotFound)
}

// ─── Employees ──────────────────────────────────────────────────────────────

func (s *Store) SaveEmployee(_ context.Context, e employee.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.company(e.CompanyID)
	if _, dup := c.employees[e.ID]; dup {
		return fmt.Errorf("employee %s already exists", e.ID)
	}
	c.employees[e.ID] = e
	return nil
}

func (s *Store) GetEmployee(_ context.Context, companyID, id string) (employee.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.company(companyID).employees[id]
	if !ok {
		return employee.Employee{}, fmt.Errorf("employee %s: %w", id, storage.ErrNotFound)
	}
	return e, nil
}

// ─── Reconciliations ────────────────────────────────────────────────────────

func (s *Store) SaveReconciliation(_ context.Context, r storage.SavedReconciliation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.company(r.CompanyID).reconciliations[r.ID] = r
	return nil
}

func (s *Store) GetReconciliation(_ context.Context, companyID, id string) (storage.SavedReconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.company(companyID).reconciliations[id]
	if !ok {
		return storage.SavedReconciliation{}, fmt.Errorf("reconciliation %s: %w", id, storage.ErrNotFound)
	}
	return r, nil
}
