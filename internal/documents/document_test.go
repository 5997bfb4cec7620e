package documents

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledgerdesk/internal/core"
)

var now = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

var caTax = core.TaxTable{"CA": decimal.RequireFromString("0.0725")}

func receiptDraft() Draft {
	return Draft{
		Kind:    KindSalesReceipt,
		Date:    "2025-05-20",
		Party:   "Acme",
		Account: "Undeposited Funds",
		Lines: []LineInput{
			{Account: "Widgets", Quantity: "3", Rate: "10.00", TaxCode: "CA"},
			{Account: "Shipping", Amount: "4.99"},
		},
	}
}

func TestDraftJSONIsLenient(t *testing.T) {
	var d Draft
	body := `{"kind":"check","lines":[{"account":"Rent","quantity":2,"rate":"1,000.50","amount":null}]}`
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Lines[0].Quantity != "2" || d.Lines[0].Rate != "1,000.50" || d.Lines[0].Amount != "" {
		t.Fatalf("unexpected line %+v", d.Lines[0])
	}
	l := d.LineSet().Lines()[0]
	if l.Amount.Cents != 200100 {
		t.Fatalf("amount = %d", l.Amount.Cents)
	}
}

func TestBuildPreview(t *testing.T) {
	p := BuildPreview(receiptDraft(), caTax)
	if !p.Valid {
		t.Fatalf("unexpected errors %v", p.Errors)
	}
	// 3 * 10.00 = 30.00 taxed at 7.25% = 2.175 -> 2.18; shipping untaxed
	if p.Totals.Subtotal.Cents != 3499 || p.Totals.Tax.Cents != 218 || p.Totals.Total.Cents != 3717 {
		t.Fatalf("unexpected totals %+v", p.Totals)
	}
	if len(p.Lines) != 2 || p.Lines[0].Amount.Cents != 3000 {
		t.Fatalf("unexpected lines %+v", p.Lines)
	}
}

func TestPreviewCoercesGarbageToZero(t *testing.T) {
	d := receiptDraft()
	d.Lines = append(d.Lines, LineInput{Account: "Misc", Quantity: "abc", Rate: "xyz"})
	p := BuildPreview(d, caTax)
	if !p.Valid || p.Lines[2].Amount.Cents != 0 {
		t.Fatalf("garbage line should coerce to zero: %+v %v", p.Lines[2], p.Errors)
	}
}

func TestValidateRules(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*Draft)
		field string
	}{
		{"unknown kind", func(d *Draft) { d.Kind = "quote" }, "kind"},
		{"missing date", func(d *Draft) { d.Date = "" }, "date"},
		{"missing party", func(d *Draft) { d.Party = " " }, "party"},
		{"missing account", func(d *Draft) { d.Account = "" }, "account"},
		{"no amounts", func(d *Draft) { d.Lines = []LineInput{{Account: "X"}} }, "lines"},
		{"line without account", func(d *Draft) { d.Lines[1].Account = "" }, "lines[1].account"},
		{"invoice without due date", func(d *Draft) { d.Kind = KindInvoice }, "due_date"},
		{"invoice due before date", func(d *Draft) { d.Kind = KindInvoice; d.DueDate = "2025-05-01" }, "due_date"},
		{"extension too large", func(d *Draft) { d.Lines[1].Quantity = "1000000000"; d.Lines[1].Rate = "$10,000,000,000" }, "lines[1].quantity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := receiptDraft()
			tc.edit(&d)
			errs := Validate(d, d.LineSet())
			if errs[tc.field] == "" {
				t.Fatalf("expected error on %s, got %v", tc.field, errs)
			}
		})
	}
}

func TestDepositNeedsNoParty(t *testing.T) {
	d := Draft{Kind: KindDeposit, Date: "2025-05-20", Account: "Checking", Lines: []LineInput{{Account: "Undeposited Funds", Amount: "100"}}}
	if errs := Validate(d, d.LineSet()); len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
}

func TestBuildAndRegister(t *testing.T) {
	doc, err := Build(receiptDraft(), caTax, "doc-1", "co-1", now)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if doc.Status != StatusPosted || doc.Totals.Total.Cents != 3717 || doc.Date.String() != "2025-05-20" {
		t.Fatalf("unexpected document %+v", doc)
	}
	txn, ok := doc.Register()
	if !ok || txn.Amount.Cents != 3717 || txn.Type != core.TxnSalesReceipt || txn.DocumentID != "doc-1" {
		t.Fatalf("unexpected register entry %+v", txn)
	}
	if _, ok := doc.Invoice(); ok {
		t.Fatalf("sales receipt must not open an invoice")
	}

	chk := receiptDraft()
	chk.Kind = KindCheck
	chk.Lines[0].TaxCode = ""
	doc, _ = Build(chk, caTax, "doc-2", "co-1", now)
	txn, _ = doc.Register()
	if txn.Amount.Cents != -3499 {
		t.Fatalf("checks are money out, got %d", txn.Amount.Cents)
	}
}

func TestBuildInvoice(t *testing.T) {
	d := receiptDraft()
	d.Kind = KindInvoice
	d.DueDate = "2025-06-19"
	doc, err := Build(d, caTax, "inv-1", "co-1", now)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	inv, ok := doc.Invoice()
	if !ok || inv.Balance != doc.Totals.Total || inv.Status != core.InvoiceOpen || inv.DueDate.String() != "2025-06-19" {
		t.Fatalf("unexpected invoice %+v", inv)
	}
	if _, ok := doc.Register(); ok {
		t.Fatalf("invoices do not hit a register")
	}
}

func TestBuildReturnsFieldErrors(t *testing.T) {
	d := receiptDraft()
	d.Party = ""
	_, err := Build(d, caTax, "x", "co", now)
	var fe core.FieldErrors
	if !errors.As(err, &fe) || fe["party"] == "" {
		t.Fatalf("expected field errors, got %v", err)
	}
}

func TestKinds(t *testing.T) {
	for _, k := range Kinds {
		if !k.Valid() || k.NumberPrefix() == "DOC" {
			t.Fatalf("kind %s misconfigured", k)
		}
	}
	if Kind("estimate").Valid() {
		t.Fatalf("unexpected valid kind")
	}
}
