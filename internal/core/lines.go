package core

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// LineField names an editable line item column.
type LineField string

const (
	FieldAccount     LineField = "account"
	FieldDescription LineField = "description"
	FieldQuantity    LineField = "quantity"
	FieldRate        LineField = "rate"
	FieldAmount      LineField = "amount"
	FieldTaxCode     LineField = "tax_code"
	FieldCustomer    LineField = "customer"
	FieldBillable    LineField = "billable"
)

var (
	ErrLineNotFound = errors.New("line not found")
	ErrUnknownField = errors.New("unknown line field")
)

// LineItem is one row of a transaction form.
type LineItem struct {
	ID          int             `json:"id"`
	Account     string          `json:"account"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        Money           `json:"rate"`
	Amount      Money           `json:"amount"`
	TaxCode     string          `json:"tax_code,omitempty"`
	Customer    string          `json:"customer,omitempty"`
	Billable    bool            `json:"billable,omitempty"`
}

// Quantity bounds. Coerced input outside them becomes zero.
const (
	maxQuantityLen = 32
	QuantityScale  = 6
)

// MaxQuantity is the largest quantity a line accepts.
var MaxQuantity = decimal.NewFromInt(1_000_000_000)

var maxCents = decimal.NewFromInt(math.MaxInt64)

// Extend returns quantity * rate rounded half away from zero to a cent.
// A product that does not fit in Money yields zero; see ExtendChecked.
func Extend(qty decimal.Decimal, rate Money) Money {
	m, _ := ExtendChecked(qty, rate)
	return m
}

// ExtendChecked is Extend that reports whether the product fits in Money.
func ExtendChecked(qty decimal.Decimal, rate Money) (Money, bool) {
	product := qty.Mul(decimal.NewFromInt(rate.Cents)).Round(0)
	if product.Abs().GreaterThan(maxCents) {
		return Money{}, false
	}
	return Money{Cents: product.IntPart()}, true
}

// CoerceQuantity parses a quantity, falling back to zero on invalid input.
// Only plain decimal notation is accepted: exponents, overlong input and
// magnitudes above MaxQuantity are invalid. Extra decimals are rounded to
// QuantityScale places.
func CoerceQuantity(s string) decimal.Decimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || len(s) > maxQuantityLen || strings.ContainsAny(s, "eE") {
		return decimal.Zero
	}
	q, err := decimal.NewFromString(s)
	if err != nil || q.Abs().GreaterThan(MaxQuantity) {
		return decimal.Zero
	}
	return q.Round(QuantityScale)
}

// LineSet is the ordered list of line items behind a transaction form.
// It never holds fewer than one line.
type LineSet struct {
	lines  []LineItem
	nextID int
}

// NewLineSet returns a set holding a single blank line.
func NewLineSet() *LineSet {
	s := &LineSet{}
	s.AddLine()
	return s
}

// AddLine appends a blank line (quantity 1, zero rate) and returns its id.
func (s *LineSet) AddLine() int {
	s.nextID++
	s.lines = append(s.lines, LineItem{ID: s.nextID, Quantity: decimal.NewFromInt(1)})
	return s.nextID
}

// RemoveLine deletes a line. It is a no-op returning false when the id is
// unknown or when only one line remains.
func (s *LineSet) RemoveLine(id int) bool {
	if len(s.lines) <= 1 {
		return false
	}
	for i := range s.lines {
		if s.lines[i].ID == id {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateLine sets one field of one line. Editing quantity or rate
// recomputes that line's amount and nothing else. Numeric input is coerced,
// so only an unknown id or field produces an error.
func (s *LineSet) UpdateLine(id int, field LineField, value string) error {
	idx := s.index(id)
	if idx < 0 {
		return ErrLineNotFound
	}
	l := &s.lines[idx]
	switch field {
	case FieldAccount:
		l.Account = strings.TrimSpace(value)
	case FieldDescription:
		l.Description = strings.TrimSpace(value)
	case FieldQuantity:
		l.Quantity = CoerceQuantity(value)
		l.Amount = Extend(l.Quantity, l.Rate)
	case FieldRate:
		l.Rate = CoerceCents(value)
		l.Amount = Extend(l.Quantity, l.Rate)
	case FieldAmount:
		l.Amount = CoerceCents(value)
	case FieldTaxCode:
		l.TaxCode = strings.ToUpper(strings.TrimSpace(value))
	case FieldCustomer:
		l.Customer = strings.TrimSpace(value)
	case FieldBillable:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		l.Billable = err == nil && b
	default:
		return ErrUnknownField
	}
	return nil
}

func (s *LineSet) index(id int) int {
	for i := range s.lines {
		if s.lines[i].ID == id {
			return i
		}
	}
	return -1
}

// Line returns a copy of the line with the given id.
func (s *LineSet) Line(id int) (LineItem, bool) {
	if idx := s.index(id); idx >= 0 {
		return s.lines[idx], true
	}
	return LineItem{}, false
}

// Lines returns a copy of the current lines in order.
func (s *LineSet) Lines() []LineItem {
	return append([]LineItem(nil), s.lines...)
}

func (s *LineSet) Len() int { return len(s.lines) }

// Totals computes the aggregate totals of the current lines.
func (s *LineSet) Totals(table TaxTable) Totals {
	return ComputeTotals(s.lines, table)
}

// Totals are derived from the lines on every read; nothing is cached.
type Totals struct {
	Subtotal Money `json:"subtotal"`
	Tax      Money `json:"tax"`
	Total    Money `json:"total"`
}

// ComputeTotals sums line amounts and per-line tax. Tax is rounded per line.
func ComputeTotals(lines []LineItem, table TaxTable) Totals {
	var t Totals
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.Amount)
		t.Tax = t.Tax.Add(table.TaxOn(l.Amount, l.TaxCode))
	}
	t.Total = t.Subtotal.Add(t.Tax)
	return t
}

// TaxTable maps a tax code to its rate, e.g. "CA" -> 0.0725.
type TaxTable map[string]decimal.Decimal

// ParseTaxTable builds a table from code -> rate strings.
func ParseTaxTable(raw map[string]string) (TaxTable, error) {
	t := make(TaxTable, len(raw))
	for code, rate := range raw {
		d, err := decimal.NewFromString(strings.TrimSpace(rate))
		if err != nil {
			return nil, errors.New("invalid tax rate for " + code + ": " + rate)
		}
		if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
			return nil, errors.New("tax rate out of range for " + code + ": " + rate)
		}
		t[strings.ToUpper(strings.TrimSpace(code))] = d
	}
	return t, nil
}

// Rate returns the rate for code; unknown or empty codes are untaxed.
func (t TaxTable) Rate(code string) decimal.Decimal {
	if code == "" || t == nil {
		return decimal.Zero
	}
	if r, ok := t[strings.ToUpper(code)]; ok {
		return r
	}
	return decimal.Zero
}

// TaxOn returns amount * rate(code), rounded to a cent.
func (t TaxTable) TaxOn(amount Money, code string) Money {
	r := t.Rate(code)
	if r.IsZero() {
		return Money{}
	}
	return Money{Cents: decimal.NewFromInt(amount.Cents).Mul(r).Round(0).IntPart()}
}
