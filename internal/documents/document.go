// Package documents models the transaction forms of the application
// (sales receipts, invoices, checks, deposits...) as typed records whose
// totals are always derived from their lines.
package documents

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ledgerdesk/internal/core"
)

type Kind string

const (
	KindSalesReceipt Kind = "sales_receipt"
	KindInvoice      Kind = "invoice"
	KindCreditMemo   Kind = "credit_memo"
	KindCheck        Kind = "check"
	KindDeposit      Kind = "deposit"
	KindCreditCard   Kind = "credit_card_charge"
	KindBillPayment  Kind = "bill_payment"
)

// Kinds lists every supported document kind.
var Kinds = []Kind{KindSalesReceipt, KindInvoice, KindCreditMemo, KindCheck, KindDeposit, KindCreditCard, KindBillPayment}

func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

// NumberPrefix is used when the service assigns a document number.
func (k Kind) NumberPrefix() string {
	switch k {
	case KindSalesReceipt:
		return "SR"
	case KindInvoice:
		return "INV"
	case KindCreditMemo:
		return "CM"
	case KindCheck:
		return "CHK"
	case KindDeposit:
		return "DEP"
	case KindCreditCard:
		return "CC"
	case KindBillPayment:
		return "BP"
	default:
		return "DOC"
	}
}

type Status string

const (
	StatusPosted   Status = "posted"
	StatusExported Status = "exported"
)

// Document is a saved transaction form.
type Document struct {
	ID         string          `json:"id"`
	CompanyID  string          `json:"company_id"`
	Kind       Kind            `json:"kind"`
	Number     string          `json:"number"`
	Date       core.Date       `json:"date"`
	DueDate    core.Date       `json:"due_date"`
	Party      string          `json:"party,omitempty"`
	Account    string          `json:"account,omitempty"`
	Memo       string          `json:"memo,omitempty"`
	Lines      []core.LineItem `json:"lines"`
	Totals     core.Totals     `json:"totals"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	ExportedAt *time.Time      `json:"exported_at,omitempty"`

	// CreditApplied is how much of a credit memo has reached invoices.
	CreditApplied core.Money `json:"credit_applied"`
}

// CreditRemaining is the part of a credit memo not yet applied. Other kinds
// carry no credit.
func (doc Document) CreditRemaining() core.Money {
	if doc.Kind != KindCreditMemo {
		return core.Money{}
	}
	r := doc.Totals.Total.Sub(doc.CreditApplied)
	if r.IsNegative() {
		return core.Money{}
	}
	return r
}

// Text is a lenient JSON scalar: strings, numbers and null all decode to
// their textual form so that form input can be coerced later.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(b)
	}
	return nil
}

// LineInput is one line as typed into a form.
type LineInput struct {
	Account     string `json:"account"`
	Description string `json:"description"`
	Quantity    Text   `json:"quantity"`
	Rate        Text   `json:"rate"`
	Amount      Text   `json:"amount"`
	TaxCode     string `json:"tax_code"`
	Customer    string `json:"customer"`
	Billable    bool   `json:"billable"`
}

// Draft is the unsaved content of a form.
type Draft struct {
	Kind    Kind        `json:"kind"`
	Number  string      `json:"number"`
	Date    string      `json:"date"`
	DueDate string      `json:"due_date"`
	Party   string      `json:"party"`
	Account string      `json:"account"`
	Memo    string      `json:"memo"`
	Lines   []LineInput `json:"lines"`
}

// LineSet replays the draft lines through a core.LineSet so every amount
// obeys quantity * rate. A line with a rate uses the extension; a line with
// only an amount keeps that amount.
func (d Draft) LineSet() *core.LineSet {
	s := core.NewLineSet()
	for i, in := range d.Lines {
		id := s.Lines()[0].ID
		if i > 0 {
			id = s.AddLine()
		}
		set := func(f core.LineField, v string) { _ = s.UpdateLine(id, f, v) }
		set(core.FieldAccount, in.Account)
		set(core.FieldDescription, in.Description)
		set(core.FieldTaxCode, in.TaxCode)
		set(core.FieldCustomer, in.Customer)
		if in.Billable {
			set(core.FieldBillable, "true")
		}
		if q := strings.TrimSpace(string(in.Quantity)); q != "" {
			set(core.FieldQuantity, q)
		}
		if r := strings.TrimSpace(string(in.Rate)); r != "" {
			set(core.FieldRate, r)
		} else {
			set(core.FieldAmount, string(in.Amount))
		}
	}
	return s
}

// Preview is a draft with derived totals and any validation problems.
type Preview struct {
	Kind   Kind             `json:"kind"`
	Lines  []core.LineItem  `json:"lines"`
	Totals core.Totals      `json:"totals"`
	Errors core.FieldErrors `json:"errors,omitempty"`
	Valid  bool             `json:"valid"`
}

// BuildPreview computes totals for a draft without saving anything.
func BuildPreview(d Draft, table core.TaxTable) Preview {
	s := d.LineSet()
	p := Preview{
		Kind:   d.Kind,
		Lines:  s.Lines(),
		Totals: s.Totals(table),
	}
	if errs := Validate(d, s); len(errs) > 0 {
		p.Errors = errs
	}
	p.Valid = len(p.Errors) == 0
	return p
}

// Validate applies the per-kind rules to a draft and its replayed lines.
func Validate(d Draft, s *core.LineSet) core.FieldErrors {
	errs := core.FieldErrors{}
	if !d.Kind.Valid() {
		errs.Add("kind", fmt.Sprintf("unknown document kind %q", d.Kind))
		return errs
	}
	date, err := core.ParseDate(d.Date)
	if err != nil {
		errs.Add("date", "Date is required (YYYY-MM-DD)")
	}
	if strings.TrimSpace(d.Party) == "" && d.Kind != KindDeposit {
		errs.Add("party", partyLabel(d.Kind)+" is required")
	}
	switch d.Kind {
	case KindCheck, KindDeposit, KindCreditCard, KindBillPayment, KindSalesReceipt:
		if strings.TrimSpace(d.Account) == "" {
			errs.Add("account", accountLabel(d.Kind)+" is required")
		}
	case KindInvoice:
		due, err := core.ParseDate(d.DueDate)
		switch {
		case err != nil:
			errs.Add("due_date", "Due date is required (YYYY-MM-DD)")
		case !date.IsEmpty() && due.Before(date.Time):
			errs.Add("due_date", "Due date cannot be before the invoice date")
		}
	}
	nonZero := 0
	for i, l := range s.Lines() {
		if _, ok := core.ExtendChecked(l.Quantity, l.Rate); !ok {
			errs.Add(fmt.Sprintf("lines[%d].quantity", i), "Quantity times rate is too large")
			continue
		}
		if l.Amount.IsZero() {
			continue
		}
		nonZero++
		if l.Account == "" {
			errs.Add(fmt.Sprintf("lines[%d].account", i), "Account or item is required")
		}
	}
	if nonZero == 0 {
		errs.Add("lines", "At least one line with an amount is required")
	}
	if t := s.Totals(nil); t.Total.IsNegative() {
		errs.Add("lines", "Total cannot be negative")
	}
	return errs
}

func partyLabel(k Kind) string {
	switch k {
	case KindCheck, KindBillPayment:
		return "Payee"
	case KindCreditCard:
		return "Vendor"
	default:
		return "Customer"
	}
}

func accountLabel(k Kind) string {
	switch k {
	case KindCreditCard:
		return "Credit card account"
	case KindSalesReceipt, KindDeposit:
		return "Deposit to account"
	default:
		return "Bank account"
	}
}

// Build validates a draft and produces a posted document. Errors are
// returned as core.FieldErrors.
func Build(d Draft, table core.TaxTable, id, companyID string, now time.Time) (Document, error) {
	s := d.LineSet()
	if errs := Validate(d, s); len(errs) > 0 {
		return Document{}, errs
	}
	date, _ := core.ParseDate(d.Date)
	due, _ := core.ParseDate(d.DueDate)
	return Document{
		ID:        id,
		CompanyID: companyID,
		Kind:      d.Kind,
		Number:    strings.TrimSpace(d.Number),
		Date:      date,
		DueDate:   due,
		Party:     strings.TrimSpace(d.Party),
		Account:   strings.TrimSpace(d.Account),
		Memo:      strings.TrimSpace(d.Memo),
		Lines:     s.Lines(),
		Totals:    s.Totals(table),
		Status:    StatusPosted,
		CreatedAt: now.UTC(),
	}, nil
}

// Register returns the bank or card register entry a document creates.
// Invoices and credit memos only touch receivables and produce none.
func (doc Document) Register() (core.Transaction, bool) {
	var typ core.TxnType
	sign := int64(1)
	switch doc.Kind {
	case KindSalesReceipt:
		typ = core.TxnSalesReceipt
	case KindDeposit:
		typ = core.TxnDeposit
	case KindCheck:
		typ, sign = core.TxnCheck, -1
	case KindCreditCard:
		typ, sign = core.TxnCreditCard, -1
	case KindBillPayment:
		typ, sign = core.TxnBillPayment, -1
	default:
		return core.Transaction{}, false
	}
	return core.Transaction{
		ID:         doc.ID,
		CompanyID:  doc.CompanyID,
		Date:       doc.Date,
		Type:       typ,
		Number:     doc.Number,
		Party:      doc.Party,
		Account:    doc.Account,
		Memo:       doc.Memo,
		Amount:     core.Cents(sign * doc.Totals.Total.Cents),
		Status:     core.TxnStatusOpen,
		DocumentID: doc.ID,
		CreatedAt:  doc.CreatedAt,
	}, true
}

// Invoice returns the receivable an invoice document opens.
func (doc Document) Invoice() (core.Invoice, bool) {
	if doc.Kind != KindInvoice {
		return core.Invoice{}, false
	}
	return core.Invoice{
		ID:        doc.ID,
		CompanyID: doc.CompanyID,
		Number:    doc.Number,
		Customer:  doc.Party,
		IssueDate: doc.Date,
		DueDate:   doc.DueDate,
		Total:     doc.Totals.Total,
		Balance:   doc.Totals.Total,
		Status:    core.InvoiceOpen,
	}, true
}
