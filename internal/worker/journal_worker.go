package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ledgerdesk/internal/amqp"
	"ledgerdesk/internal/documents"
	"ledgerdesk/internal/log"
	"ledgerdesk/internal/metrics"
	"ledgerdesk/internal/sheets"
	"ledgerdesk/internal/storage"
)

// Documents is the part of the store the worker needs.
type Documents interface {
	GetDocument(ctx context.Context, companyID, id string) (documents.Document, error)
	PendingExport(ctx context.Context, limit int) ([]documents.Document, error)
	MarkExported(ctx context.Context, id string, at time.Time) error
}

var _ Documents = (storage.DocumentStore)(nil)

// JournalWorker exports posted documents to the journal, one row per line.
type JournalWorker struct {
	store     Documents
	journal   sheets.JournalWriter
	batchSize int
	logger    *log.Logger
	now       func() time.Time

	// serializes exports between the AMQP handler and the pending sweep
	mu sync.Mutex
}

func NewJournalWorker(store Documents, journal sheets.JournalWriter, batchSize int, logger *log.Logger) *JournalWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if batchSize <= 0 {
		batchSize = 25
	}
	return &JournalWorker{
		store:     store,
		journal:   journal,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
		now:       time.Now,
	}
}

// Handlers returns the AMQP handlers served by the worker.
func (w *JournalWorker) Handlers() amqp.Handlers {
	return amqp.Handlers{
		DocumentPosted:  w.HandleDocumentPosted,
		EmployeeCreated: w.HandleEmployeeCreated,
	}
}

// HandleDocumentPosted processes a single document.posted message. A
// returned error requeues the message.
func (w *JournalWorker) HandleDocumentPosted(ctx context.Context, msg *amqp.DocumentPostedMessage) error {
	w.logger.InfoContext(ctx, "Processing document message",
		log.FieldCompanyID, msg.CompanyID,
		log.FieldDocumentID, msg.DocumentID,
		log.FieldDocNumber, msg.Number)

	err := w.export(ctx, msg.CompanyID, msg.DocumentID)
	if errors.Is(err, storage.ErrNotFound) {
		// Redelivery cannot help
		w.logger.WarnContext(ctx, "Dropping message for unknown document",
			log.FieldDocumentID, msg.DocumentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("export document: %w", err)
	}
	return nil
}

// HandleEmployeeCreated only records the event; employees have no journal
// rows.
func (w *JournalWorker) HandleEmployeeCreated(ctx context.Context, msg *amqp.EmployeeCreatedMessage) error {
	w.logger.InfoContext(ctx, "Employee created",
		log.FieldCompanyID, msg.CompanyID,
		log.FieldEmployeeID, msg.EmployeeID)
	return nil
}

// ProcessPending exports documents that were posted but never reached the
// journal, e.g. because the broker was down. It returns how many were
// exported.
func (w *JournalWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupCheck is ProcessPending with a larger batch, run once when the
// worker boots.
func (w *JournalWorker) StartupCheck(ctx context.Context) error {
	n, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup export check: %w", err)
	}
	if n == 0 {
		w.logger.InfoContext(ctx, "No pending documents found on startup")
	}
	return nil
}

func (w *JournalWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.PendingExport(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending documents: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending documents", "count", len(pending))

	exported, failed := 0, 0
	for _, doc := range pending {
		if ctx.Err() != nil {
			return exported, ctx.Err()
		}
		if err := w.export(ctx, doc.CompanyID, doc.ID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export document",
				log.FieldDocumentID, doc.ID, log.FieldError, err)
			failed++
			continue
		}
		exported++
	}

	w.logger.InfoContext(ctx, "Pending export completed",
		"total", len(pending),
		"exported", exported,
		"errors", failed)
	return exported, nil
}

// export reads the document under the lock so that a document exported by
// the other path in the meantime is skipped.
func (w *JournalWorker) export(ctx context.Context, companyID, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	current, err := w.store.GetDocument(ctx, companyID, id)
	if err != nil {
		return fmt.Errorf("get document from storage: %w", err)
	}
	if current.Status == documents.StatusExported {
		w.logger.DebugContext(ctx, "Document already exported", log.FieldDocumentID, id)
		return nil
	}

	rows := sheets.Rows(current)
	ref, err := w.journal.AppendRows(ctx, rows)
	if err != nil {
		metrics.ExportFailures.Inc()
		return fmt.Errorf("append to journal: %w", err)
	}
	metrics.JournalRows.Add(float64(len(rows)))

	if err := w.store.MarkExported(ctx, current.ID, w.now()); err != nil {
		// The rows are in the journal; the next sweep appends them again
		w.logger.ErrorContext(ctx, "Failed to mark document as exported",
			log.FieldDocumentID, current.ID, log.FieldError, err)
		return fmt.Errorf("mark exported: %w", err)
	}

	w.logger.InfoContext(ctx, "Exported document to journal",
		log.FieldDocumentID, current.ID,
		log.FieldDocNumber, current.Number,
		log.FieldRows, len(rows),
		"journal_ref", ref)
	return nil
}
