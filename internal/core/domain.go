package core

import (
	"errors"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Transaction types shown in registers and the recent-activity list.
const (
	TxnDeposit      TxnType = "deposit"
	TxnPayment      TxnType = "payment"
	TxnSalesReceipt TxnType = "sales_receipt"
	TxnCheck        TxnType = "check"
	TxnCreditCard   TxnType = "credit_card_charge"
	TxnBillPayment  TxnType = "bill_payment"
	TxnCreditMemo   TxnType = "credit_memo"
	TxnInvoicePaid  TxnType = "invoice_payment"
	TxnJournalEntry TxnType = "journal_entry"
)

// Clearing status of a register entry.
const (
	TxnStatusCleared TxnStatus = "cleared"
	TxnStatusOpen    TxnStatus = "uncleared"
	TxnReconciled    TxnStatus = "reconciled"
)

// Invoice statuses.
const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceOpen    InvoiceStatus = "open"
	InvoiceOverdue InvoiceStatus = "overdue"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceVoid    InvoiceStatus = "void"
)

type (
	TxnType       string
	TxnStatus     string
	InvoiceStatus string

	Date struct {
		time.Time
	}

	// Transaction is one register entry. Amount is signed: money in is
	// positive, money out is negative.
	Transaction struct {
		ID         string    `json:"id"`
		CompanyID  string    `json:"company_id"`
		Date       Date      `json:"date"`
		Type       TxnType   `json:"type"`
		Number     string    `json:"number,omitempty"`
		Party      string    `json:"party,omitempty"`
		Account    string    `json:"account"`
		Memo       string    `json:"memo,omitempty"`
		Amount     Money     `json:"amount"`
		Status     TxnStatus `json:"status"`
		DocumentID string    `json:"document_id,omitempty"`
		CreatedAt  time.Time `json:"created_at"`
	}

	Invoice struct {
		ID        string        `json:"id"`
		CompanyID string        `json:"company_id"`
		Number    string        `json:"number"`
		Customer  string        `json:"customer"`
		IssueDate Date          `json:"issue_date"`
		DueDate   Date          `json:"due_date"`
		Total     Money         `json:"total"`
		Balance   Money         `json:"balance"`
		Status    InvoiceStatus `json:"status"`
	}

	// Bill is a vendor bill awaiting payment.
	Bill struct {
		ID        string `json:"id"`
		CompanyID string `json:"company_id"`
		Vendor    string `json:"vendor"`
		Number    string `json:"number,omitempty"`
		DueDate   Date   `json:"due_date"`
		Amount    Money  `json:"amount"`
		Balance   Money  `json:"balance"`
	}

	Item struct {
		ID        string `json:"id"`
		CompanyID string `json:"company_id"`
		Name      string `json:"name"`
		SKU       string `json:"sku,omitempty"`
		Type      string `json:"type"`
		Category  string `json:"category"`
		Status    string `json:"status"`
		Price     Money  `json:"price"`
		OnHand    int64  `json:"on_hand"`
	}

	Alert struct {
		ID        string    `json:"id"`
		CompanyID string    `json:"company_id"`
		Severity  string    `json:"severity"`
		Title     string    `json:"title"`
		Message   string    `json:"message"`
		Read      bool      `json:"read"`
		Dismissed bool      `json:"dismissed"`
		CreatedAt time.Time `json:"created_at"`
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyParty       = errors.New("empty party")
	ErrNotFound         = errors.New("not found")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String renders the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// IsEmpty returns true if the date is zero (for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Outstanding reports whether the invoice still has an open balance.
func (i Invoice) Outstanding() bool {
	if i.Status == InvoiceVoid || i.Status == InvoiceDraft || i.Status == InvoicePaid {
		return false
	}
	return i.Balance.Cents > 0
}

// EffectiveStatus returns overdue for an open invoice past its due date.
func (i Invoice) EffectiveStatus(asOf time.Time) InvoiceStatus {
	if i.Status == InvoiceOpen && i.Balance.Cents > 0 && DateOf(asOf).After(i.DueDate.Time) {
		return InvoiceOverdue
	}
	return i.Status
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(string(t.Type)) == "" {
		return errors.New("empty transaction type")
	}
	if strings.TrimSpace(t.Account) == "" {
		return errors.New("empty account")
	}
	return nil
}
