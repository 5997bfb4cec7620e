package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/documents"
	"ledgerdesk/internal/storage"
)

func TestNewFromFile(t *testing.T) {
	s, err := NewFromFile("testdata/seed.yaml")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	txns, _ := s.Transactions(ctx, "c1")
	if len(txns) != 2 {
		t.Fatalf("transactions = %d", len(txns))
	}
	// Sorted by date: the April check comes first.
	if txns[0].ID != "t2" || txns[0].Amount.Cents != -14510 || txns[0].Status != core.TxnStatusOpen {
		t.Fatalf("first txn = %+v", txns[0])
	}
	if txns[1].Amount.Cents != 125000 {
		t.Fatalf("deposit amount = %d", txns[1].Amount.Cents)
	}

	invs, _ := s.Invoices(ctx, "c1")
	if len(invs) != 2 || invs[0].Balance.Cents != 20000 || invs[1].Balance.Cents != 90000 {
		t.Fatalf("invoices = %+v", invs)
	}
	if invs[0].Status != core.InvoiceOpen {
		t.Fatalf("default status = %s", invs[0].Status)
	}

	alerts, _ := s.Alerts(ctx, "c1")
	if len(alerts) != 1 || alerts[0].CreatedAt.Hour() != 9 {
		t.Fatalf("alerts = %+v", alerts)
	}

	if items, _ := s.Items(ctx, "c1"); len(items) != 1 || items[0].Status != "active" || items[0].OnHand != 40 {
		t.Fatalf("items = %+v", items)
	}
	if txns, _ := s.Transactions(ctx, "c2"); len(txns) != 0 {
		t.Fatalf("c2 should be empty, got %d", len(txns))
	}
}

func TestReadFixtureRejectsUnknownFields(t *testing.T) {
	_, err := ReadFixture(strings.NewReader("companies:\n  - id: c1\n    colour: blue\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestSeedIsAllOrNothing(t *testing.T) {
	f := Fixture{Companies: []CompanyFixture{{
		ID: "c1",
		Invoices: []InvoiceFixture{
			{ID: "i1", IssueDate: "2025-01-01", Total: "10.00"},
			{ID: "i2", IssueDate: "not a date", Total: "10.00"},
		},
	}}}
	s := New()
	if err := s.Seed(f); err == nil {
		t.Fatal("expected error")
	}
	if invs, _ := s.Invoices(context.Background(), "c1"); len(invs) != 0 {
		t.Fatalf("partial seed applied: %d invoices", len(invs))
	}
}

func TestPostingLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	n1, _ := s.NextNumber(ctx, "c1", documents.KindInvoice)
	n2, _ := s.NextNumber(ctx, "c1", documents.KindInvoice)
	if n1 != "INV-1001" || n2 != "INV-1002" {
		t.Fatalf("numbers = %s, %s", n1, n2)
	}

	doc := documents.Document{
		ID: "d1", CompanyID: "c1", Kind: documents.KindInvoice, Number: n1,
		Date: core.NewDate(2025, 5, 1), DueDate: core.NewDate(2025, 5, 31), Party: "Acme Corp",
		Totals: core.Totals{Subtotal: core.Cents(1000), Total: core.Cents(1000)},
		Status: documents.StatusPosted, CreatedAt: time.Now(),
	}
	inv, _ := doc.Invoice()
	if err := s.SavePosting(ctx, storage.Posting{Document: doc, Invoice: &inv}); err != nil {
		t.Fatal(err)
	}

	dup := doc
	dup.ID = "d2"
	if err := s.SavePosting(ctx, storage.Posting{Document: dup}); !errors.Is(err, storage.ErrDuplicateNumber) {
		t.Fatalf("duplicate number: %v", err)
	}

	if invs, _ := s.Invoices(ctx, "c1"); len(invs) != 1 || invs[0].Number != n1 {
		t.Fatalf("invoices = %+v", invs)
	}

	pending, _ := s.PendingExport(ctx, 10)
	if len(pending) != 1 {
		t.Fatalf("pending = %d", len(pending))
	}
	if err := s.MarkExported(ctx, "d1", time.Now()); err != nil {
		t.Fatal(err)
	}
	if pending, _ := s.PendingExport(ctx, 10); len(pending) != 0 {
		t.Fatalf("still pending: %d", len(pending))
	}
	if _, err := s.GetDocument(ctx, "c2", "d1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("cross-company read: %v", err)
	}
}

func postMemo(t *testing.T, s *Store, id string, total int64) {
	t.Helper()
	memo := documents.Document{
		ID: id, CompanyID: "c1", Kind: documents.KindCreditMemo, Number: "CM-" + id,
		Date: core.NewDate(2025, 5, 3), Party: "Acme Corp",
		Totals: core.Totals{Subtotal: core.Cents(total), Total: core.Cents(total)},
		Status: documents.StatusPosted, CreatedAt: time.Now(),
	}
	if err := s.SavePosting(context.Background(), storage.Posting{Document: memo}); err != nil {
		t.Fatal(err)
	}
}

func TestSaveCreditApplication(t *testing.T) {
	s, err := NewFromFile("testdata/seed.yaml")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	postMemo(t, s, "m1", 5000)
	invs, _ := s.Invoices(ctx, "c1")

	reduced := invs[0]
	reduced.Balance = reduced.Balance.Sub(core.Cents(5000))
	a := storage.CreditApplication{CompanyID: "c1", MemoID: "m1", Applied: core.Cents(5000), Invoices: []core.Invoice{reduced}}
	if err := s.SaveCreditApplication(ctx, a); err != nil {
		t.Fatal(err)
	}
	memo, _ := s.GetDocument(ctx, "c1", "m1")
	if memo.CreditApplied.Cents != 5000 || !memo.CreditRemaining().IsZero() {
		t.Fatalf("memo = %+v", memo)
	}

	if err := s.SaveCreditApplication(ctx, a); !errors.Is(err, storage.ErrCreditExceeded) {
		t.Fatalf("reapplying a spent memo: %v", err)
	}
	a.MemoID = invs[0].ID
	if err := s.SaveCreditApplication(ctx, a); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("invoice id as memo: %v", err)
	}
	after, _ := s.Invoices(ctx, "c1")
	if after[0].Balance.Cents != 15000 {
		t.Fatalf("balance = %s", after[0].Balance)
	}
}

func TestCreditApplicationMissingInvoiceChangesNothing(t *testing.T) {
	s, err := NewFromFile("testdata/seed.yaml")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	postMemo(t, s, "m1", 50000)
	invs, _ := s.Invoices(ctx, "c1")

	paid := invs[0]
	paid.Balance = core.Cents(0)
	paid.Status = core.InvoicePaid
	ghost := core.Invoice{ID: "nope", CompanyID: "c1"}

	a := storage.CreditApplication{CompanyID: "c1", MemoID: "m1", Applied: core.Cents(20000), Invoices: []core.Invoice{paid, ghost}}
	if err := s.SaveCreditApplication(ctx, a); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	after, _ := s.Invoices(ctx, "c1")
	if after[0].Status != core.InvoiceOpen {
		t.Fatal("first invoice changed despite the failed batch")
	}
	if memo, _ := s.GetDocument(ctx, "c1", "m1"); !memo.CreditApplied.IsZero() {
		t.Fatalf("failed batch applied %s", memo.CreditApplied)
	}
}

func TestNextNumberSkipsTypedNumbers(t *testing.T) {
	s := New()
	ctx := context.Background()
	typed := documents.Document{ID: "d1", CompanyID: "c1", Kind: documents.KindInvoice, Number: "INV-1001", Status: documents.StatusPosted}
	if err := s.SavePosting(ctx, storage.Posting{Document: typed}); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.NextNumber(ctx, "c1", documents.KindInvoice); n != "INV-1002" {
		t.Fatalf("next = %s, want INV-1002", n)
	}
	if n, _ := s.NextNumber(ctx, "c2", documents.KindInvoice); n != "INV-1001" {
		t.Fatalf("other company = %s", n)
	}
}

func TestUpdateAlert(t *testing.T) {
	s, err := NewFromFile("testdata/seed.yaml")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	yes := true
	a, err := s.UpdateAlert(ctx, "c1", "a1", storage.AlertUpdate{Dismissed: &yes})
	if err != nil {
		t.Fatal(err)
	}
	if !a.Dismissed || a.Read {
		t.Fatalf("alert = %+v", a)
	}
	if _, err := s.UpdateAlert(ctx, "c1", "zzz", storage.AlertUpdate{}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}
}
