package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ledgerdesk/internal/amqp"
	"ledgerdesk/internal/core"
	"ledgerdesk/internal/documents"
	"ledgerdesk/internal/filter"
	"ledgerdesk/internal/log"
	"ledgerdesk/internal/metrics"
	"ledgerdesk/internal/storage"
)

// Publisher announces saved records to the posting pipeline. *amqp.Client
// implements it.
type Publisher interface {
	PublishDocumentPosted(ctx context.Context, msg *amqp.DocumentPostedMessage) error
	PublishEmployeeCreated(ctx context.Context, msg *amqp.EmployeeCreatedMessage) error
}

var _ Publisher = (*amqp.Client)(nil)

// Option tunes a service. Tests use them to pin the clock and ids.
type Option func(*settings)

type settings struct {
	now   func() time.Time
	newID func() string
}

func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *settings) { s.newID = fn }
}

func newSettings(opts []Option) settings {
	s := settings{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// LedgerService orchestrates transaction forms across storage and AMQP.
type LedgerService struct {
	store     storage.Store
	publisher Publisher
	taxes     core.TaxTable
	logger    *log.Logger
	events    *log.StructuredLogger
	settings
}

// NewLedgerService wires the service. publisher may be nil, in which case
// nothing is announced and the journal relies on the pending export sweep.
func NewLedgerService(store storage.Store, publisher Publisher, taxes core.TaxTable, logger *log.Logger, opts ...Option) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerService{
		store:     store,
		publisher: publisher,
		taxes:     taxes,
		logger:    logger.WithComponent(log.ComponentLedger),
		events:    log.NewStructuredLogger(logger),
		settings:  newSettings(opts),
	}
}

// Taxes returns the tax table used for previews and postings.
func (s *LedgerService) Taxes() core.TaxTable { return s.taxes }

// Preview derives totals for an unsaved form. It never fails: validation
// problems travel inside the preview.
func (s *LedgerService) Preview(d documents.Draft) documents.Preview {
	return documents.BuildPreview(d, s.taxes)
}

// Post validates and saves a form, assigning the next number for its kind
// when none was typed. Validation errors are core.FieldErrors.
func (s *LedgerService) Post(ctx context.Context, companyID string, d documents.Draft) (documents.Document, error) {
	doc, err := documents.Build(d, s.taxes, s.newID(), companyID, s.now())
	if err != nil {
		metrics.ValidationFailures.WithLabelValues(formLabel(d.Kind)).Inc()
		return documents.Document{}, err
	}

	if doc.Number == "" {
		n, err := s.store.NextNumber(ctx, companyID, doc.Kind)
		if err != nil {
			return documents.Document{}, fmt.Errorf("reserve number: %w", err)
		}
		doc.Number = n
	}

	p := storage.Posting{Document: doc}
	if txn, ok := doc.Register(); ok {
		p.Transaction = &txn
	}
	if inv, ok := doc.Invoice(); ok {
		p.Invoice = &inv
	}

	// Save locally first; the journal export follows asynchronously
	if err := s.store.SavePosting(ctx, p); err != nil {
		return documents.Document{}, fmt.Errorf("save document: %w", err)
	}

	metrics.DocumentsPosted.WithLabelValues(string(doc.Kind)).Inc()
	s.events.LogDocumentPosted(ctx, companyID, doc.ID, string(doc.Kind), doc.Number, doc.Totals.Total.Cents)

	msg := amqp.NewDocumentPostedMessage(companyID, doc.ID, string(doc.Kind), doc.Number, doc.Totals.Total.Cents)
	if err := s.publishDocument(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish document message",
			log.FieldDocumentID, doc.ID, log.FieldError, err)
		// Don't fail the request - the document is saved
	}

	return doc, nil
}

func (s *LedgerService) publishDocument(ctx context.Context, msg *amqp.DocumentPostedMessage) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not available, skipping document message")
		return nil
	}
	return s.publisher.PublishDocumentPosted(ctx, msg)
}

func formLabel(k documents.Kind) string {
	if k.Valid() {
		return string(k)
	}
	return "document"
}

func (s *LedgerService) Document(ctx context.Context, companyID, id string) (documents.Document, error) {
	return s.store.GetDocument(ctx, companyID, id)
}

// PreviewBillPayment pays the selected bills in full. Unknown or settled
// bill ids are ignored.
func (s *LedgerService) PreviewBillPayment(ctx context.Context, companyID string, billIDs []string) (documents.BillPaymentPreview, error) {
	bills, err := s.store.Bills(ctx, companyID)
	if err != nil {
		return documents.BillPaymentPreview{}, fmt.Errorf("load bills: %w", err)
	}
	return documents.PayBills(bills, core.NewSelection(billIDs...)), nil
}

// PreviewCredit spreads a hypothetical credit over the selected invoices
// without saving.
func (s *LedgerService) PreviewCredit(ctx context.Context, companyID string, credit core.Money, invoiceIDs []string) (documents.CreditPreview, error) {
	invoices, err := s.store.Invoices(ctx, companyID)
	if err != nil {
		return documents.CreditPreview{}, fmt.Errorf("load invoices: %w", err)
	}
	return documents.ApplyCredit(credit, invoices, core.NewSelection(invoiceIDs...)), nil
}

// ApplyCredit spends what is left of a posted credit memo on the selected
// invoices of the memo's customer, in input order. The memo's applied credit
// and the reduced invoice balances are saved together. It returns the
// invoices that changed.
func (s *LedgerService) ApplyCredit(ctx context.Context, companyID, memoID string, invoiceIDs []string) (documents.CreditPreview, []core.Invoice, error) {
	errs := core.FieldErrors{}
	if memoID == "" {
		errs.Add("credit_memo_id", "Credit memo is required")
		return documents.CreditPreview{}, nil, errs
	}
	memo, err := s.store.GetDocument(ctx, companyID, memoID)
	if err != nil {
		return documents.CreditPreview{}, nil, fmt.Errorf("load credit memo: %w", err)
	}
	switch {
	case memo.Kind != documents.KindCreditMemo:
		errs.Add("credit_memo_id", "Document is not a credit memo")
	case memo.CreditRemaining().Cents <= 0:
		errs.Add("credit_memo_id", "Credit memo has no credit left")
	}
	if len(errs) > 0 {
		return documents.CreditPreview{}, nil, errs
	}

	all, err := s.store.Invoices(ctx, companyID)
	if err != nil {
		return documents.CreditPreview{}, nil, fmt.Errorf("load invoices: %w", err)
	}
	var invoices []core.Invoice
	for _, inv := range all {
		if inv.Customer == memo.Party {
			invoices = append(invoices, inv)
		}
	}
	p := documents.ApplyCredit(memo.CreditRemaining(), invoices, core.NewSelection(invoiceIDs...))
	settled := p.Settle(invoices)
	if len(settled) == 0 {
		return p, nil, nil
	}
	err = s.store.SaveCreditApplication(ctx, storage.CreditApplication{
		CompanyID: companyID,
		MemoID:    memo.ID,
		Applied:   p.TotalApplied,
		Invoices:  settled,
	})
	if err != nil {
		return documents.CreditPreview{}, nil, fmt.Errorf("save credit application: %w", err)
	}
	s.logger.InfoContext(ctx, "Credit applied",
		log.FieldCompanyID, companyID,
		log.FieldDocumentID, memo.ID,
		log.FieldAmountCents, p.TotalApplied.Cents,
		"invoices", len(settled))
	return p, settled, nil
}

// Reconcile validates a bank statement and stores it with its summary.
// Statement problems are returned as core.FieldErrors.
func (s *LedgerService) Reconcile(ctx context.Context, companyID string, st core.Statement) (storage.SavedReconciliation, error) {
	r, err := st.Reconciliation()
	if err != nil {
		metrics.ValidationFailures.WithLabelValues("reconciliation").Inc()
		return storage.SavedReconciliation{}, statementErrors(err)
	}
	saved := storage.SavedReconciliation{
		ID:        s.newID(),
		CompanyID: companyID,
		Statement: r.Statement(),
		Summary:   r.Summary(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.SaveReconciliation(ctx, saved); err != nil {
		return storage.SavedReconciliation{}, fmt.Errorf("save reconciliation: %w", err)
	}
	return saved, nil
}

func statementErrors(err error) core.FieldErrors {
	errs := core.FieldErrors{}
	switch {
	case errors.Is(err, core.ErrUnknownTxn):
		errs.Add("cleared", err.Error())
	default:
		errs.Add("transactions", err.Error())
	}
	return errs
}

func (s *LedgerService) Reconciliation(ctx context.Context, companyID, id string) (storage.SavedReconciliation, error) {
	return s.store.GetReconciliation(ctx, companyID, id)
}

// CustomerStatement is the activity of one customer over a period.
type CustomerStatement struct {
	Customer   string             `json:"customer"`
	From       core.Date          `json:"from"`
	To         core.Date          `json:"to"`
	Invoices   []core.Invoice     `json:"invoices"`
	Receipts   []core.Transaction `json:"receipts"`
	Invoiced   core.Money         `json:"invoiced"`
	Received   core.Money         `json:"received"`
	BalanceDue core.Money         `json:"balance_due"`
	Aging      core.AgingBuckets  `json:"aging"`
}

// CustomerStatement lists invoices issued and money received from a
// customer between from and to. BalanceDue and Aging cover every open
// invoice regardless of the period.
func (s *LedgerService) CustomerStatement(ctx context.Context, companyID, customer string, from, to core.Date) (CustomerStatement, error) {
	invoices, err := s.store.Invoices(ctx, companyID)
	if err != nil {
		return CustomerStatement{}, fmt.Errorf("load invoices: %w", err)
	}
	txns, err := s.store.Transactions(ctx, companyID)
	if err != nil {
		return CustomerStatement{}, fmt.Errorf("load transactions: %w", err)
	}

	st := CustomerStatement{Customer: customer, From: from, To: to}
	asOf := s.now()

	mine := filter.Invoices(filter.InvoiceCriteria{Customer: customer}).Apply(invoices)
	open := filter.New[core.Invoice]().Where(core.Invoice.Outstanding).Apply(mine)
	st.Aging = core.AgeInvoices(open, asOf)
	st.BalanceDue = st.Aging.Total()

	st.Invoices = filter.New[core.Invoice]().
		DateRange(from, to, func(i core.Invoice) core.Date { return i.IssueDate }).
		Apply(mine)
	for _, inv := range st.Invoices {
		st.Invoiced = st.Invoiced.Add(inv.Total)
	}

	st.Receipts = filter.New[core.Transaction]().
		Where(func(t core.Transaction) bool { return t.Party == customer && t.Amount.Cents > 0 }).
		DateRange(from, to, func(t core.Transaction) core.Date { return t.Date }).
		Apply(txns)
	for _, t := range st.Receipts {
		st.Received = st.Received.Add(t.Amount)
	}
	return st, nil
}

// Close closes the store and the publisher when it can be closed.
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}

	return nil
}
