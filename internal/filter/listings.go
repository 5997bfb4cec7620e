package filter

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"ledgerdesk/internal/core"
)

var ErrBadCriteria = errors.New("invalid filter criteria")

// TransactionCriteria filters the register and the income tracker.
type TransactionCriteria struct {
	Query   string
	Type    string
	Status  string
	Account string
	From    core.Date
	To      core.Date
	Min     *core.Money
	Max     *core.Money
}

func Transactions(c TransactionCriteria) *Filter[core.Transaction] {
	return New[core.Transaction]().
		Text(c.Query,
			func(t core.Transaction) string { return t.Party },
			func(t core.Transaction) string { return t.Memo },
			func(t core.Transaction) string { return t.Number },
			func(t core.Transaction) string { return t.Account },
		).
		Equals(c.Type, func(t core.Transaction) string { return string(t.Type) }).
		Equals(c.Status, func(t core.Transaction) string { return string(t.Status) }).
		Equals(c.Account, func(t core.Transaction) string { return t.Account }).
		DateRange(c.From, c.To, func(t core.Transaction) core.Date { return t.Date }).
		AmountRange(c.Min, c.Max, func(t core.Transaction) core.Money { return t.Amount.Abs() })
}

// InvoiceCriteria filters invoices. Status "outstanding" selects every
// invoice with an open balance; other statuses are compared against the
// status effective at AsOf.
type InvoiceCriteria struct {
	Query    string
	Status   string
	Customer string
	From     core.Date
	To       core.Date
	AsOf     time.Time
}

const StatusOutstanding = "outstanding"

func Invoices(c InvoiceCriteria) *Filter[core.Invoice] {
	f := New[core.Invoice]().
		Text(c.Query,
			func(i core.Invoice) string { return i.Number },
			func(i core.Invoice) string { return i.Customer },
		).
		Equals(c.Customer, func(i core.Invoice) string { return i.Customer }).
		DateRange(c.From, c.To, func(i core.Invoice) core.Date { return i.IssueDate })
	if c.Status == StatusOutstanding {
		return f.Where(core.Invoice.Outstanding)
	}
	return f.Equals(c.Status, func(i core.Invoice) string { return string(i.EffectiveStatus(c.AsOf)) })
}

// ItemCriteria filters the products and services list.
type ItemCriteria struct {
	Query    string
	Category string
	Type     string
	Status   string
}

func Items(c ItemCriteria) *Filter[core.Item] {
	return New[core.Item]().
		Text(c.Query,
			func(i core.Item) string { return i.Name },
			func(i core.Item) string { return i.SKU },
		).
		Equals(c.Category, func(i core.Item) string { return i.Category }).
		Equals(c.Type, func(i core.Item) string { return i.Type }).
		Equals(c.Status, func(i core.Item) string { return i.Status })
}

// ParseTransactionCriteria reads q, type, status, account, from, to, min
// and max. Malformed dates or amounts are reported rather than dropped.
func ParseTransactionCriteria(v url.Values) (TransactionCriteria, error) {
	c := TransactionCriteria{
		Query:   v.Get("q"),
		Type:    v.Get("type"),
		Status:  v.Get("status"),
		Account: v.Get("account"),
	}
	var err error
	if c.From, c.To, err = parseDates(v); err != nil {
		return c, err
	}
	if c.Min, err = parseAmount(v, "min"); err != nil {
		return c, err
	}
	if c.Max, err = parseAmount(v, "max"); err != nil {
		return c, err
	}
	return c, nil
}

func ParseInvoiceCriteria(v url.Values, asOf time.Time) (InvoiceCriteria, error) {
	c := InvoiceCriteria{
		Query:    v.Get("q"),
		Status:   v.Get("status"),
		Customer: v.Get("customer"),
		AsOf:     asOf,
	}
	var err error
	c.From, c.To, err = parseDates(v)
	return c, err
}

func ParseItemCriteria(v url.Values) ItemCriteria {
	return ItemCriteria{
		Query:    v.Get("q"),
		Category: v.Get("category"),
		Type:     v.Get("type"),
		Status:   v.Get("status"),
	}
}

func parseDates(v url.Values) (from, to core.Date, err error) {
	if s := v.Get("from"); s != "" {
		if from, err = core.ParseDate(s); err != nil {
			return from, to, fmt.Errorf("%w: from=%q", ErrBadCriteria, s)
		}
	}
	if s := v.Get("to"); s != "" {
		if to, err = core.ParseDate(s); err != nil {
			return from, to, fmt.Errorf("%w: to=%q", ErrBadCriteria, s)
		}
	}
	if !from.IsEmpty() && !to.IsEmpty() && to.Before(from.Time) {
		return from, to, fmt.Errorf("%w: to before from", ErrBadCriteria)
	}
	return from, to, nil
}

func parseAmount(v url.Values, key string) (*core.Money, error) {
	s := v.Get(key)
	if s == "" {
		return nil, nil
	}
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", ErrBadCriteria, key, s)
	}
	m := core.Cents(cents)
	return &m, nil
}

// SortTransactions orders txns in place by "date" or "amount"; a leading
// "-" reverses. Empty keeps the input order. Ties keep input order.
func SortTransactions(txns []core.Transaction, by string) error {
	desc := strings.HasPrefix(by, "-")
	key := strings.TrimPrefix(by, "-")
	var less func(a, b core.Transaction) bool
	switch key {
	case "":
		return nil
	case "date":
		less = func(a, b core.Transaction) bool { return a.Date.Before(b.Date.Time) }
	case "amount":
		less = func(a, b core.Transaction) bool { return a.Amount.Cents < b.Amount.Cents }
	default:
		return fmt.Errorf("%w: sort_by=%q", ErrBadCriteria, by)
	}
	sort.SliceStable(txns, func(i, j int) bool {
		if desc {
			return less(txns[j], txns[i])
		}
		return less(txns[i], txns[j])
	})
	return nil
}

// PageSize parses page_size, falling back to def and capping at limit.
func PageSize(v url.Values, def, limit int) int {
	n, err := strconv.Atoi(v.Get("page_size"))
	if err != nil || n <= 0 {
		return def
	}
	if n > limit {
		return limit
	}
	return n
}

// Head returns at most n leading items.
func Head[T any](items []T, n int) []T {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}
