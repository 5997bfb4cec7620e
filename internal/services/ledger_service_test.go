package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledgerdesk/internal/amqp"
	"ledgerdesk/internal/core"
	"ledgerdesk/internal/documents"
	"ledgerdesk/internal/storage"
	"ledgerdesk/internal/storage/memory"
)

var fixedNow = time.Date(2025, 5, 14, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

type fakePublisher struct {
	mu        sync.Mutex
	documents []*amqp.DocumentPostedMessage
	employees []*amqp.EmployeeCreatedMessage
	err       error
}

func (f *fakePublisher) PublishDocumentPosted(_ context.Context, msg *amqp.DocumentPostedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, msg)
	return f.err
}

func (f *fakePublisher) PublishEmployeeCreated(_ context.Context, msg *amqp.EmployeeCreatedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.employees = append(f.employees, msg)
	return f.err
}

// failingStore rejects every posting.
type failingStore struct {
	*memory.Store
}

func (failingStore) SavePosting(context.Context, storage.Posting) error {
	return errors.New("disk full")
}

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	s, err := memory.NewFromFile("../storage/memory/testdata/seed.yaml")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func taxes() core.TaxTable {
	return core.TaxTable{"CA": decimal.RequireFromString("0.0725")}
}

func newLedger(store storage.Store, pub Publisher) *LedgerService {
	return NewLedgerService(store, pub, taxes(), nil, WithClock(clock), WithIDGenerator(sequentialIDs("doc-")))
}

func invoiceDraft() documents.Draft {
	return documents.Draft{
		Kind:    documents.KindInvoice,
		Date:    "2025-05-10",
		DueDate: "2025-06-09",
		Party:   "Acme Corp",
		Lines: []documents.LineInput{
			{Account: "Consulting", Quantity: "2", Rate: "50", TaxCode: "CA"},
		},
	}
}

func TestPostAssignsNumberAndPublishes(t *testing.T) {
	store := seeded(t)
	pub := &fakePublisher{}
	svc := newLedger(store, pub)
	ctx := context.Background()

	doc, err := svc.Post(ctx, "c1", invoiceDraft())
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if doc.Number != "INV-1001" || doc.ID != "doc-1" {
		t.Errorf("doc = %s %s", doc.ID, doc.Number)
	}
	if doc.Totals.Total.Cents != 10725 {
		t.Errorf("total = %d, want 10725", doc.Totals.Total.Cents)
	}

	saved, err := svc.Document(ctx, "c1", doc.ID)
	if err != nil || saved.Number != "INV-1001" {
		t.Fatalf("Document = %+v, %v", saved, err)
	}
	invoices, _ := store.Invoices(ctx, "c1")
	found := false
	for _, inv := range invoices {
		if inv.ID == doc.ID && inv.Balance.Cents == 10725 {
			found = true
		}
	}
	if !found {
		t.Error("invoice receivable not opened")
	}

	if len(pub.documents) != 1 {
		t.Fatalf("published %d messages", len(pub.documents))
	}
	if m := pub.documents[0]; m.DocumentID != doc.ID || m.Kind != "invoice" || m.TotalCents != 10725 {
		t.Errorf("message = %+v", m)
	}

	second, err := svc.Post(ctx, "c1", invoiceDraft())
	if err != nil || second.Number != "INV-1002" {
		t.Fatalf("second post = %q, %v", second.Number, err)
	}
}

func TestPostKeepsTypedNumber(t *testing.T) {
	svc := newLedger(seeded(t), nil)
	d := invoiceDraft()
	d.Number = " 7001 "

	doc, err := svc.Post(context.Background(), "c1", d)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Number != "7001" {
		t.Errorf("number = %q", doc.Number)
	}
}

func TestPostValidationFailure(t *testing.T) {
	pub := &fakePublisher{}
	svc := newLedger(seeded(t), pub)
	d := invoiceDraft()
	d.Party = ""
	d.DueDate = "2025-05-01"

	_, err := svc.Post(context.Background(), "c1", d)
	var fe core.FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if fe["party"] == "" || fe["due_date"] == "" {
		t.Errorf("errors = %v", fe)
	}
	if len(pub.documents) != 0 {
		t.Error("nothing should be published for a rejected form")
	}
}

func TestPostPublishFailureStillSaves(t *testing.T) {
	store := seeded(t)
	svc := newLedger(store, &fakePublisher{err: errors.New("broker down")})

	doc, err := svc.Post(context.Background(), "c1", invoiceDraft())
	if err != nil {
		t.Fatalf("publish failure must not fail the post: %v", err)
	}
	if _, err := store.GetDocument(context.Background(), "c1", doc.ID); err != nil {
		t.Errorf("document not saved: %v", err)
	}
}

func TestPostStoreFailure(t *testing.T) {
	pub := &fakePublisher{}
	svc := newLedger(failingStore{seeded(t)}, pub)

	_, err := svc.Post(context.Background(), "c1", invoiceDraft())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(pub.documents) != 0 {
		t.Error("unsaved documents must not be announced")
	}
}

func TestPreviewNeverFails(t *testing.T) {
	svc := newLedger(seeded(t), nil)
	p := svc.Preview(documents.Draft{Kind: documents.KindCheck, Lines: []documents.LineInput{{Amount: "12.50"}}})
	if p.Valid {
		t.Fatal("incomplete check should not be valid")
	}
	if p.Totals.Subtotal.Cents != 1250 {
		t.Errorf("subtotal = %d", p.Totals.Subtotal.Cents)
	}
}

func TestPreviewBillPayment(t *testing.T) {
	svc := newLedger(seeded(t), nil)
	p, err := svc.PreviewBillPayment(context.Background(), "c1", []string{"b1", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Count != 1 || p.Total.Cents != 14510 {
		t.Errorf("preview = %+v", p)
	}
}

func creditMemoDraft(party, amount string) documents.Draft {
	return documents.Draft{
		Kind:  documents.KindCreditMemo,
		Date:  "2025-05-12",
		Party: party,
		Lines: []documents.LineInput{{Account: "Returns", Amount: documents.Text(amount)}},
	}
}

func TestApplyCredit(t *testing.T) {
	store := seeded(t)
	svc := newLedger(store, nil)
	ctx := context.Background()

	memo, err := svc.Post(ctx, "c1", creditMemoDraft("Acme Corp", "250.00"))
	if err != nil {
		t.Fatal(err)
	}
	p, settled, err := svc.ApplyCredit(ctx, "c1", memo.ID, []string{"i1"})
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalApplied.Cents != 20000 || p.Remaining.Cents != 5000 {
		t.Errorf("preview = %+v", p)
	}
	if len(settled) != 1 || settled[0].Status != core.InvoicePaid {
		t.Fatalf("settled = %+v", settled)
	}

	// Only the 50.00 left on the memo reaches the next invoice.
	inv, err := svc.Post(ctx, "c1", invoiceDraft())
	if err != nil {
		t.Fatal(err)
	}
	p, settled, err = svc.ApplyCredit(ctx, "c1", memo.ID, []string{inv.ID})
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalApplied.Cents != 5000 || !p.Remaining.IsZero() || len(settled) != 1 || settled[0].Balance.Cents != 5725 {
		t.Errorf("second application = %+v, %+v", p, settled)
	}
	saved, _ := svc.Document(ctx, "c1", memo.ID)
	if saved.CreditApplied.Cents != 25000 || !saved.CreditRemaining().IsZero() {
		t.Errorf("memo applied = %s", saved.CreditApplied)
	}

	var fe core.FieldErrors
	if _, _, err := svc.ApplyCredit(ctx, "c1", memo.ID, []string{inv.ID}); !errors.As(err, &fe) || fe["credit_memo_id"] == "" {
		t.Errorf("spent memo = %v", err)
	}
	invoices, _ := store.Invoices(ctx, "c1")
	for _, i := range invoices {
		if i.ID == inv.ID && i.Balance.Cents != 5725 {
			t.Errorf("invoice balance after rejected application = %s", i.Balance)
		}
	}
}

func TestApplyCreditRejects(t *testing.T) {
	svc := newLedger(seeded(t), nil)
	ctx := context.Background()

	memo, err := svc.Post(ctx, "c1", creditMemoDraft("Acme Corp", "100"))
	if err != nil {
		t.Fatal(err)
	}
	inv, err := svc.Post(ctx, "c1", invoiceDraft())
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		memoID string
	}{
		{"no memo", ""},
		{"not a credit memo", inv.ID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var fe core.FieldErrors
			if _, _, err := svc.ApplyCredit(ctx, "c1", tc.memoID, []string{"i1"}); !errors.As(err, &fe) || fe["credit_memo_id"] == "" {
				t.Fatalf("err = %v", err)
			}
		})
	}

	if _, _, err := svc.ApplyCredit(ctx, "c1", "missing", []string{"i1"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown memo = %v", err)
	}
	if _, _, err := svc.ApplyCredit(ctx, "c2", memo.ID, []string{"i1"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign memo = %v", err)
	}

	// i2 belongs to Globex; an Acme credit never lands on it.
	p, settled, err := svc.ApplyCredit(ctx, "c1", memo.ID, []string{"i2"})
	if err != nil || !p.TotalApplied.IsZero() || len(settled) != 0 {
		t.Errorf("other customer = %+v, %v, %v", p, settled, err)
	}
}

func TestPostSkipsTypedNumber(t *testing.T) {
	svc := newLedger(seeded(t), nil)
	ctx := context.Background()

	typed := invoiceDraft()
	typed.Number = "INV-1001"
	if _, err := svc.Post(ctx, "c1", typed); err != nil {
		t.Fatal(err)
	}
	doc, err := svc.Post(ctx, "c1", invoiceDraft())
	if err != nil {
		t.Fatalf("auto-numbered post after a typed number: %v", err)
	}
	if doc.Number != "INV-1002" {
		t.Errorf("number = %s, want INV-1002", doc.Number)
	}
}

func TestReconcile(t *testing.T) {
	svc := newLedger(seeded(t), nil)
	ctx := context.Background()

	st := core.Statement{
		Account:             "Checking",
		StatementDate:       core.NewDate(2025, 4, 30),
		BeginningBalance:    core.Cents(100000),
		StatementEndBalance: core.Cents(110000),
		Transactions: []core.BankTransaction{
			{ID: "d1", Kind: core.BankDeposit, Amount: core.Cents(15000)},
			{ID: "p1", Kind: core.BankPayment, Amount: core.Cents(5000)},
		},
		Cleared: []string{"d1", "p1"},
	}
	saved, err := svc.Reconcile(ctx, "c1", st)
	if err != nil {
		t.Fatal(err)
	}
	if !saved.Summary.IsReconciled {
		t.Errorf("summary = %+v", saved.Summary)
	}
	back, err := svc.Reconciliation(ctx, "c1", saved.ID)
	if err != nil || back.ID != saved.ID {
		t.Fatalf("Reconciliation = %+v, %v", back, err)
	}
	if _, err := svc.Reconciliation(ctx, "c2", saved.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign company read = %v", err)
	}

	st.Cleared = []string{"nope"}
	_, err = svc.Reconcile(ctx, "c1", st)
	var fe core.FieldErrors
	if !errors.As(err, &fe) || fe["cleared"] == "" {
		t.Errorf("unknown cleared id = %v", err)
	}
}

func TestCustomerStatement(t *testing.T) {
	svc := newLedger(seeded(t), nil)
	ctx := context.Background()

	all, err := svc.CustomerStatement(ctx, "c1", "Acme Corp", core.Date{}, core.Date{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Invoices) != 1 || all.Invoiced.Cents != 50000 {
		t.Errorf("invoices = %+v", all.Invoices)
	}
	if len(all.Receipts) != 1 || all.Received.Cents != 125000 {
		t.Errorf("receipts = %+v", all.Receipts)
	}
	if all.BalanceDue.Cents != 20000 || all.Aging.Days31To60.Cents != 20000 {
		t.Errorf("balance due = %s aging = %+v", all.BalanceDue, all.Aging)
	}

	may, _ := svc.CustomerStatement(ctx, "c1", "Acme Corp", core.NewDate(2025, 5, 1), core.NewDate(2025, 5, 31))
	if len(may.Invoices) != 0 || may.BalanceDue.Cents != 20000 {
		t.Errorf("period statement = %+v", may)
	}
}

func TestLedgerServiceClose(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		svc := &LedgerService{}
		if err := svc.Close(); err != nil {
			t.Fatalf("Close should not return error with nil components: %v", err)
		}
	})
}
