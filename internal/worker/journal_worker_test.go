package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"ledgerdesk/internal/amqp"
	"ledgerdesk/internal/core"
	"ledgerdesk/internal/documents"
	"ledgerdesk/internal/sheets"
	sheetsmem "ledgerdesk/internal/sheets/memory"
	"ledgerdesk/internal/storage"
	"ledgerdesk/internal/storage/memory"
)

type failingJournal struct{ calls int }

func (f *failingJournal) AppendRows(context.Context, []sheets.JournalRow) (string, error) {
	f.calls++
	return "", errors.New("quota exceeded")
}

func post(t *testing.T, store *memory.Store, id, number string) documents.Document {
	t.Helper()
	doc := documents.Document{
		ID:        id,
		CompanyID: "c1",
		Kind:      documents.KindCheck,
		Number:    number,
		Date:      core.NewDate(2025, 5, 2),
		Party:     "Power Co",
		Account:   "Checking",
		Lines: []core.LineItem{
			{ID: 1, Account: "Utilities", Amount: core.Cents(10000)},
			{ID: 2, Account: "Fees", Amount: core.Cents(450)},
		},
		Totals:    core.Totals{Subtotal: core.Cents(10450), Total: core.Cents(10450)},
		Status:    documents.StatusPosted,
		CreatedAt: time.Now(),
	}
	if err := store.SavePosting(context.Background(), storage.Posting{Document: doc}); err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestHandleDocumentPosted(t *testing.T) {
	store := memory.New()
	journal := sheetsmem.New()
	w := NewJournalWorker(store, journal, 10, nil)
	ctx := context.Background()
	doc := post(t, store, "d1", "CHK-1001")

	msg := amqp.NewDocumentPostedMessage("c1", doc.ID, string(doc.Kind), doc.Number, doc.Totals.Total.Cents)
	if err := w.HandleDocumentPosted(ctx, msg); err != nil {
		t.Fatal(err)
	}
	if rows := journal.DocumentRows("d1"); len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	got, _ := store.GetDocument(ctx, "c1", "d1")
	if got.Status != documents.StatusExported || got.ExportedAt == nil {
		t.Errorf("document not marked exported: %+v", got)
	}

	// Redelivery must not duplicate rows
	if err := w.HandleDocumentPosted(ctx, msg); err != nil {
		t.Fatal(err)
	}
	if rows := journal.Rows(); len(rows) != 2 {
		t.Errorf("redelivery appended again: %d rows", len(rows))
	}
}

func TestHandleDocumentPostedUnknownIsDropped(t *testing.T) {
	w := NewJournalWorker(memory.New(), sheetsmem.New(), 10, nil)
	msg := amqp.NewDocumentPostedMessage("c1", "ghost", "check", "CHK-1", 100)
	if err := w.HandleDocumentPosted(context.Background(), msg); err != nil {
		t.Errorf("unknown document should be acked, got %v", err)
	}
}

func TestHandleDocumentPostedJournalFailureRequeues(t *testing.T) {
	store := memory.New()
	journal := &failingJournal{}
	w := NewJournalWorker(store, journal, 10, nil)
	doc := post(t, store, "d1", "CHK-1001")

	msg := amqp.NewDocumentPostedMessage("c1", doc.ID, string(doc.Kind), doc.Number, 0)
	if err := w.HandleDocumentPosted(context.Background(), msg); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	got, _ := store.GetDocument(context.Background(), "c1", "d1")
	if got.Status != documents.StatusPosted {
		t.Errorf("status = %s", got.Status)
	}
}

func TestProcessPending(t *testing.T) {
	store := memory.New()
	journal := sheetsmem.New()
	w := NewJournalWorker(store, journal, 2, nil)
	ctx := context.Background()
	for i, n := range []string{"CHK-1001", "CHK-1002", "CHK-1003"} {
		post(t, store, "d"+string(rune('1'+i)), n)
	}

	n, err := w.ProcessPending(ctx)
	if err != nil || n != 2 {
		t.Fatalf("first sweep = %d, %v", n, err)
	}
	n, _ = w.ProcessPending(ctx)
	if n != 1 {
		t.Fatalf("second sweep = %d", n)
	}
	n, _ = w.ProcessPending(ctx)
	if n != 0 {
		t.Fatalf("third sweep = %d", n)
	}
	if got := len(journal.Rows()); got != 6 {
		t.Errorf("journal rows = %d", got)
	}
}

func TestProcessPendingContinuesPastFailures(t *testing.T) {
	store := memory.New()
	journal := &failingJournal{}
	w := NewJournalWorker(store, journal, 10, nil)
	post(t, store, "d1", "CHK-1001")
	post(t, store, "d2", "CHK-1002")

	n, err := w.ProcessPending(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("sweep = %d, %v", n, err)
	}
	if journal.calls != 2 {
		t.Errorf("journal calls = %d, want 2", journal.calls)
	}
}

func TestStartupCheck(t *testing.T) {
	store := memory.New()
	journal := sheetsmem.New()
	w := NewJournalWorker(store, journal, 1, nil)
	for _, id := range []string{"d1", "d2", "d3"} {
		post(t, store, id, "CHK-"+id)
	}

	if err := w.StartupCheck(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(journal.Rows()); got != 6 {
		t.Errorf("startup check uses a larger batch; rows = %d", got)
	}
}

func TestHandleEmployeeCreated(t *testing.T) {
	w := NewJournalWorker(memory.New(), sheetsmem.New(), 0, nil)
	if err := w.HandleEmployeeCreated(context.Background(), amqp.NewEmployeeCreatedMessage("c1", "e1")); err != nil {
		t.Fatal(err)
	}
	if w.batchSize != 25 {
		t.Errorf("default batch size = %d", w.batchSize)
	}
}
