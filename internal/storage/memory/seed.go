package memory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ledgerdesk/internal/core"
)

// Fixture is the YAML seed format. Dates are YYYY-MM-DD and amounts are
// decimal strings ("1,250.00" is accepted).
type Fixture struct {
	Companies []CompanyFixture `yaml:"companies"`
}

type CompanyFixture struct {
	ID           string               `yaml:"id"`
	Transactions []TransactionFixture `yaml:"transactions"`
	Invoices     []InvoiceFixture     `yaml:"invoices"`
	Bills        []BillFixture        `yaml:"bills"`
	Items        []ItemFixture        `yaml:"items"`
	Alerts       []AlertFixture       `yaml:"alerts"`
}

type TransactionFixture struct {
	ID      string `yaml:"id"`
	Date    string `yaml:"date"`
	Type    string `yaml:"type"`
	Number  string `yaml:"number"`
	Party   string `yaml:"party"`
	Account string `yaml:"account"`
	Memo    string `yaml:"memo"`
	Amount  string `yaml:"amount"`
	Status  string `yaml:"status"`
}

type InvoiceFixture struct {
	ID        string `yaml:"id"`
	Number    string `yaml:"number"`
	Customer  string `yaml:"customer"`
	IssueDate string `yaml:"issue_date"`
	DueDate   string `yaml:"due_date"`
	Total     string `yaml:"total"`
	// Balance defaults to Total.
	Balance string `yaml:"balance"`
	Status  string `yaml:"status"`
}

type BillFixture struct {
	ID      string `yaml:"id"`
	Vendor  string `yaml:"vendor"`
	Number  string `yaml:"number"`
	DueDate string `yaml:"due_date"`
	Amount  string `yaml:"amount"`
	Balance string `yaml:"balance"`
}

type ItemFixture struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	SKU      string `yaml:"sku"`
	Type     string `yaml:"type"`
	Category string `yaml:"category"`
	Status   string `yaml:"status"`
	Price    string `yaml:"price"`
	OnHand   int64  `yaml:"on_hand"`
}

type AlertFixture struct {
	ID        string `yaml:"id"`
	Severity  string `yaml:"severity"`
	Title     string `yaml:"title"`
	Message   string `yaml:"message"`
	Read      bool   `yaml:"read"`
	Dismissed bool   `yaml:"dismissed"`
	CreatedAt string `yaml:"created_at"`
}

// ReadFixture decodes a YAML fixture.
func ReadFixture(r io.Reader) (Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	return f, nil
}

// NewFromFile builds a store seeded from the fixture at path.
func NewFromFile(path string) (*Store, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer fh.Close()

	f, err := ReadFixture(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s := New()
	if err := s.Seed(f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Seed adds the fixture records to the store. Nothing is added when any
// record is invalid.
func (s *Store) Seed(f Fixture) error {
	type parsed struct {
		id     string
		txns   []core.Transaction
		invs   []core.Invoice
		bills  []core.Bill
		items  []core.Item
		alerts []core.Alert
	}
	var all []parsed
	for _, cf := range f.Companies {
		if strings.TrimSpace(cf.ID) == "" {
			return errors.New("company without id")
		}
		p := parsed{id: cf.ID}
		for _, tf := range cf.Transactions {
			t, err := tf.build(cf.ID)
			if err != nil {
				return fmt.Errorf("company %s transaction %s: %w", cf.ID, tf.ID, err)
			}
			p.txns = append(p.txns, t)
		}
		for _, inf := range cf.Invoices {
			inv, err := inf.build(cf.ID)
			if err != nil {
				return fmt.Errorf("company %s invoice %s: %w", cf.ID, inf.ID, err)
			}
			p.invs = append(p.invs, inv)
		}
		for _, bf := range cf.Bills {
			b, err := bf.build(cf.ID)
			if err != nil {
				return fmt.Errorf("company %s bill %s: %w", cf.ID, bf.ID, err)
			}
			p.bills = append(p.bills, b)
		}
		for _, itf := range cf.Items {
			it, err := itf.build(cf.ID)
			if err != nil {
				return fmt.Errorf("company %s item %s: %w", cf.ID, itf.ID, err)
			}
			p.items = append(p.items, it)
		}
		for _, af := range cf.Alerts {
			a, err := af.build(cf.ID)
			if err != nil {
				return fmt.Errorf("company %s alert %s: %w", cf.ID, af.ID, err)
			}
			p.alerts = append(p.alerts, a)
		}
		all = append(all, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range all {
		c := s.company(p.id)
		c.transactions = append(c.transactions, p.txns...)
		c.invoices = append(c.invoices, p.invs...)
		c.bills = append(c.bills, p.bills...)
		c.items = append(c.items, p.items...)
		c.alerts = append(c.alerts, p.alerts...)
	}
	return nil
}

func money(s string) (core.Money, error) {
	if strings.TrimSpace(s) == "" {
		return core.Money{}, nil
	}
	c, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("amount %q: %w", s, err)
	}
	return core.Cents(c), nil
}

func date(s string, required bool) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		if required {
			return core.Date{}, core.ErrInvalidDate
		}
		return core.Date{}, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, fmt.Errorf("date %q: %w", s, err)
	}
	return d, nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("missing id")
	}
	return nil
}

func (tf TransactionFixture) build(companyID string) (core.Transaction, error) {
	if err := requireID(tf.ID); err != nil {
		return core.Transaction{}, err
	}
	d, err := date(tf.Date, true)
	if err != nil {
		return core.Transaction{}, err
	}
	amt, err := money(tf.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	status := core.TxnStatus(tf.Status)
	if status == "" {
		status = core.TxnStatusOpen
	}
	t := core.Transaction{
		ID:        tf.ID,
		CompanyID: companyID,
		Date:      d,
		Type:      core.TxnType(tf.Type),
		Number:    tf.Number,
		Party:     tf.Party,
		Account:   tf.Account,
		Memo:      tf.Memo,
		Amount:    amt,
		Status:    status,
		CreatedAt: d.Time,
	}
	return t, t.Validate()
}

func (inf InvoiceFixture) build(companyID string) (core.Invoice, error) {
	if err := requireID(inf.ID); err != nil {
		return core.Invoice{}, err
	}
	issue, err := date(inf.IssueDate, true)
	if err != nil {
		return core.Invoice{}, err
	}
	due, err := date(inf.DueDate, false)
	if err != nil {
		return core.Invoice{}, err
	}
	total, err := money(inf.Total)
	if err != nil {
		return core.Invoice{}, err
	}
	balance := total
	if inf.Balance != "" {
		if balance, err = money(inf.Balance); err != nil {
			return core.Invoice{}, err
		}
	}
	status := core.InvoiceStatus(inf.Status)
	if status == "" {
		status = core.InvoiceOpen
	}
	return core.Invoice{
		ID:        inf.ID,
		CompanyID: companyID,
		Number:    inf.Number,
		Customer:  inf.Customer,
		IssueDate: issue,
		DueDate:   due,
		Total:     total,
		Balance:   balance,
		Status:    status,
	}, nil
}

func (bf BillFixture) build(companyID string) (core.Bill, error) {
	if err := requireID(bf.ID); err != nil {
		return core.Bill{}, err
	}
	due, err := date(bf.DueDate, false)
	if err != nil {
		return core.Bill{}, err
	}
	amt, err := money(bf.Amount)
	if err != nil {
		return core.Bill{}, err
	}
	balance := amt
	if bf.Balance != "" {
		if balance, err = money(bf.Balance); err != nil {
			return core.Bill{}, err
		}
	}
	return core.Bill{
		ID:        bf.ID,
		CompanyID: companyID,
		Vendor:    bf.Vendor,
		Number:    bf.Number,
		DueDate:   due,
		Amount:    amt,
		Balance:   balance,
	}, nil
}

func (itf ItemFixture) build(companyID string) (core.Item, error) {
	if err := requireID(itf.ID); err != nil {
		return core.Item{}, err
	}
	price, err := money(itf.Price)
	if err != nil {
		return core.Item{}, err
	}
	status := itf.Status
	if status == "" {
		status = "active"
	}
	return core.Item{
		ID:        itf.ID,
		CompanyID: companyID,
		Name:      itf.Name,
		SKU:       itf.SKU,
		Type:      itf.Type,
		Category:  itf.Category,
		Status:    status,
		Price:     price,
		OnHand:    itf.OnHand,
	}, nil
}

func (af AlertFixture) build(companyID string) (core.Alert, error) {
	if err := requireID(af.ID); err != nil {
		return core.Alert{}, err
	}
	var created time.Time
	if af.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339, af.CreatedAt)
		if err != nil {
			return core.Alert{}, fmt.Errorf("created_at %q: %w", af.CreatedAt, err)
		}
		created = t.UTC()
	}
	severity := af.Severity
	if severity == "" {
		severity = "info"
	}
	return core.Alert{
		ID:        af.ID,
		CompanyID: companyID,
		Severity:  severity,
		Title:     af.Title,
		Message:   af.Message,
		Read:      af.Read,
		Dismissed: af.Dismissed,
		CreatedAt: created,
	}, nil
}
