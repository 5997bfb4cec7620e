package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/documents"
	"ledgerdesk/internal/employee"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func samplePosting(id, number string) Posting {
	created := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	doc := documents.Document{
		ID:        id,
		CompanyID: "c1",
		Kind:      documents.KindSalesReceipt,
		Number:    number,
		Date:      core.NewDate(2025, 5, 2),
		Party:     "Acme Corp",
		Account:   "Checking",
		Lines: []core.LineItem{
			{ID: 1, Account: "Sales", Description: "Widgets", Quantity: decimal.NewFromInt(3), Rate: core.Cents(1000), Amount: core.Cents(3000), TaxCode: "CA"},
		},
		Totals:    core.Totals{Subtotal: core.Cents(3000), Tax: core.Cents(218), Total: core.Cents(3218)},
		Status:    documents.StatusPosted,
		CreatedAt: created,
	}
	txn, _ := doc.Register()
	return Posting{Document: doc, Transaction: &txn}
}

func TestNextNumberIsSequentialPerKind(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	want := []string{"INV-1001", "INV-1002"}
	for _, w := range want {
		got, err := repo.NextNumber(ctx, "c1", documents.KindInvoice)
		if err != nil {
			t.Fatal(err)
		}
		if got != w {
			t.Fatalf("got %s, want %s", got, w)
		}
	}
	got, err := repo.NextNumber(ctx, "c1", documents.KindCheck)
	if err != nil {
		t.Fatal(err)
	}
	if got != "CHK-1001" {
		t.Fatalf("check sequence = %s", got)
	}
	if got, _ := repo.NextNumber(ctx, "c2", documents.KindInvoice); got != "INV-1001" {
		t.Fatalf("other company sequence = %s", got)
	}
}

func TestSavePostingRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := samplePosting("d1", "SR-1001")
	if err := repo.SavePosting(ctx, p); err != nil {
		t.Fatal(err)
	}

	doc, err := repo.GetDocument(ctx, "c1", "d1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Totals.Total.Cents != 3218 || len(doc.Lines) != 1 || doc.Lines[0].Quantity.String() != "3" {
		t.Fatalf("document = %+v", doc)
	}
	if doc.Date.String() != "2025-05-02" || doc.DueDate.String() != "" {
		t.Fatalf("dates = %s / %q", doc.Date, doc.DueDate.String())
	}

	txns, err := repo.Transactions(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(txns) != 1 || txns[0].Amount.Cents != 3218 || txns[0].DocumentID != "d1" {
		t.Fatalf("transactions = %+v", txns)
	}

	if _, err := repo.GetDocument(ctx, "c2", "d1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other company read: %v", err)
	}
}

func TestSavePostingDuplicateNumberRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SavePosting(ctx, samplePosting("d1", "SR-1001")); err != nil {
		t.Fatal(err)
	}
	err := repo.SavePosting(ctx, samplePosting("d2", "SR-1001"))
	if !errors.Is(err, ErrDuplicateNumber) {
		t.Fatalf("err = %v", err)
	}
	txns, _ := repo.Transactions(ctx, "c1")
	if len(txns) != 1 {
		t.Fatalf("failed posting left %d transactions", len(txns))
	}
}

func TestPendingExportAndMarkExported(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i, id := range []string{"d1", "d2"} {
		p := samplePosting(id, "SR-100"+string(rune('1'+i)))
		p.Document.CreatedAt = p.Document.CreatedAt.Add(time.Duration(i) * time.Minute)
		p.Transaction.ID = id
		p.Transaction.DocumentID = id
		if err := repo.SavePosting(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := repo.PendingExport(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].ID != "d1" {
		t.Fatalf("pending = %v", pending)
	}

	at := time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC)
	if err := repo.MarkExported(ctx, "d1", at); err != nil {
		t.Fatal(err)
	}
	pending, _ = repo.PendingExport(ctx, 10)
	if len(pending) != 1 || pending[0].ID != "d2" {
		t.Fatalf("pending after export = %v", pending)
	}
	doc, _ := repo.GetDocument(ctx, "c1", "d1")
	if doc.Status != documents.StatusExported || doc.ExportedAt == nil || !doc.ExportedAt.Equal(at) {
		t.Fatalf("exported doc = %+v", doc)
	}
	if err := repo.MarkExported(ctx, "missing", at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing doc: %v", err)
	}
}

func memoPosting(id, number string, total int64) Posting {
	return Posting{Document: documents.Document{
		ID:        id,
		CompanyID: "c1",
		Kind:      documents.KindCreditMemo,
		Number:    number,
		Date:      core.NewDate(2025, 5, 3),
		Party:     "Acme Corp",
		Totals:    core.Totals{Subtotal: core.Cents(total), Total: core.Cents(total)},
		Status:    documents.StatusPosted,
		CreatedAt: time.Date(2025, 5, 3, 9, 0, 0, 0, time.UTC),
	}}
}

func TestSaveCreditApplication(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inv := core.Invoice{
		ID: "i1", CompanyID: "c1", Number: "INV-1001", Customer: "Acme Corp",
		IssueDate: core.NewDate(2025, 4, 1), DueDate: core.NewDate(2025, 5, 1),
		Total: core.Cents(50000), Balance: core.Cents(50000), Status: core.InvoiceOpen,
	}
	if err := repo.InsertInvoice(ctx, inv); err != nil {
		t.Fatal(err)
	}
	if err := repo.SavePosting(ctx, memoPosting("m1", "CM-1001", 30000)); err != nil {
		t.Fatal(err)
	}

	inv.Balance = core.Cents(20000)
	a := CreditApplication{CompanyID: "c1", MemoID: "m1", Applied: core.Cents(30000), Invoices: []core.Invoice{inv}}
	if err := repo.SaveCreditApplication(ctx, a); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.Invoices(ctx, "c1")
	if len(got) != 1 || got[0].Balance.Cents != 20000 || got[0].Status != core.InvoiceOpen {
		t.Fatalf("invoices = %+v", got)
	}
	memo, _ := repo.GetDocument(ctx, "c1", "m1")
	if memo.CreditApplied.Cents != 30000 || !memo.CreditRemaining().IsZero() {
		t.Fatalf("memo applied = %s, remaining = %s", memo.CreditApplied, memo.CreditRemaining())
	}

	// The memo is spent: a second application changes nothing.
	inv.Balance = core.Cents(0)
	inv.Status = core.InvoicePaid
	a = CreditApplication{CompanyID: "c1", MemoID: "m1", Applied: core.Cents(1), Invoices: []core.Invoice{inv}}
	if err := repo.SaveCreditApplication(ctx, a); !errors.Is(err, ErrCreditExceeded) {
		t.Fatalf("spent memo: %v", err)
	}
	if got, _ := repo.Invoices(ctx, "c1"); got[0].Balance.Cents != 20000 {
		t.Fatalf("rejected application changed the invoice: %+v", got[0])
	}

	a.MemoID = "nope"
	if err := repo.SaveCreditApplication(ctx, a); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing memo: %v", err)
	}
	a.MemoID, a.CompanyID = "m1", "c2"
	if err := repo.SaveCreditApplication(ctx, a); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other company memo: %v", err)
	}

	// A missing invoice rolls the memo back.
	if err := repo.SavePosting(ctx, memoPosting("m2", "CM-1002", 10000)); err != nil {
		t.Fatal(err)
	}
	a = CreditApplication{CompanyID: "c1", MemoID: "m2", Applied: core.Cents(5000), Invoices: []core.Invoice{{ID: "missing"}}}
	if err := repo.SaveCreditApplication(ctx, a); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing invoice: %v", err)
	}
	if m2, _ := repo.GetDocument(ctx, "c1", "m2"); !m2.CreditApplied.IsZero() {
		t.Fatalf("failed application left %s applied", m2.CreditApplied)
	}
}

func TestNextNumberSkipsTypedNumbers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, n := range []string{"SR-1001", "SR-1002"} {
		if err := repo.SavePosting(ctx, samplePosting("d-"+n, n)); err != nil {
			t.Fatal(err)
		}
	}
	got, err := repo.NextNumber(ctx, "c1", documents.KindSalesReceipt)
	if err != nil {
		t.Fatal(err)
	}
	if got != "SR-1003" {
		t.Fatalf("next = %s, want SR-1003", got)
	}
}

func TestUpdateAlert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := core.Alert{ID: "a1", CompanyID: "c1", Severity: "warning", Title: "3 invoices overdue", CreatedAt: time.Now().UTC()}
	if err := repo.InsertAlert(ctx, a); err != nil {
		t.Fatal(err)
	}

	yes := true
	got, err := repo.UpdateAlert(ctx, "c1", "a1", AlertUpdate{Read: &yes})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Read || got.Dismissed {
		t.Fatalf("alert = %+v", got)
	}

	got, err = repo.UpdateAlert(ctx, "c1", "a1", AlertUpdate{Dismissed: &yes})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Read || !got.Dismissed {
		t.Fatalf("alert after dismiss = %+v", got)
	}

	if _, err := repo.UpdateAlert(ctx, "c1", "nope", AlertUpdate{Read: &yes}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing alert: %v", err)
	}
	if _, err := repo.UpdateAlert(ctx, "c1", "nope", AlertUpdate{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing alert without changes: %v", err)
	}
}

func TestEmployeeKeepsSealedAccount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := employee.Employee{
		ID: "e1", CompanyID: "c1", FirstName: "Ada", LastName: "Lovelace",
		PaymentMethod: employee.MethodDirectDeposit,
		Bank: &employee.BankAccount{
			BankName: "First Bank", RoutingNumber: "021000021", AccountType: "checking",
			AccountLast4: "6789", AccountSealed: []byte{0x01, 0x02, 0x03},
		},
		CreatedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := repo.SaveEmployee(ctx, e); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetEmployee(ctx, "c1", "e1")
	if err != nil {
		t.Fatal(err)
	}
	if got.FullName() != "Ada Lovelace" || got.Bank == nil || string(got.Bank.AccountSealed) != "\x01\x02\x03" {
		t.Fatalf("employee = %+v", got)
	}
	if _, err := repo.GetEmployee(ctx, "c1", "e2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing employee: %v", err)
	}
}

func TestReconciliationRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	stmt := core.Statement{
		Account:             "Checking",
		StatementDate:       core.NewDate(2025, 4, 30),
		BeginningBalance:    core.Cents(100000),
		StatementEndBalance: core.Cents(120000),
		Transactions: []core.BankTransaction{
			{ID: "t1", Kind: core.BankDeposit, Amount: core.Cents(50000)},
			{ID: "t2", Kind: core.BankPayment, Amount: core.Cents(30000)},
		},
		Cleared: []string{"t1", "t2"},
	}
	recon, err := stmt.Reconciliation()
	if err != nil {
		t.Fatal(err)
	}
	saved := SavedReconciliation{ID: "r1", CompanyID: "c1", Statement: stmt, Summary: recon.Summary(), CreatedAt: time.Now().UTC()}
	if err := repo.SaveReconciliation(ctx, saved); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetReconciliation(ctx, "c1", "r1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Summary.IsReconciled || got.Summary.ClearedCount != 2 {
		t.Fatalf("summary = %+v", got.Summary)
	}
	if _, err := repo.GetReconciliation(ctx, "c2", "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other company: %v", err)
	}
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	if v, _, err := MigrationVersion(path); err != nil || v != 0 {
		t.Fatalf("fresh db version = %d, %v", v, err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatal(err)
	}
	if v, dirty, err := MigrationVersion(path); err != nil || v != 1 || dirty {
		t.Fatalf("version = %d dirty=%v err=%v", v, dirty, err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second run should be a no-op: %v", err)
	}
	if err := RollbackMigrations(path, 1); err != nil {
		t.Fatal(err)
	}
	if v, _, _ := MigrationVersion(path); v != 0 {
		t.Fatalf("after rollback version = %d", v)
	}
}
