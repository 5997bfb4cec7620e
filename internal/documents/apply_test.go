package documents

import (
	"testing"

	"ledgerdesk/internal/core"
)

func openBills() []core.Bill {
	return []core.Bill{
		{ID: "b1", Vendor: "Power Co", Number: "PW-9", Balance: core.Cents(12000)},
		{ID: "b2", Vendor: "Acme Supply", Balance: core.Cents(4550)},
		{ID: "b3", Vendor: "Power Co", Balance: core.Cents(800)},
		{ID: "b4", Vendor: "Landlord", Balance: core.Cents(250000)},
	}
}

func TestPayBills(t *testing.T) {
	sel := core.NewSelection("b1", "b2", "b3")
	p := PayBills(openBills(), sel)
	if p.Total.Cents != 17350 || p.Count != 3 {
		t.Fatalf("total=%d count=%d", p.Total.Cents, p.Count)
	}
	if len(p.ByVendor) != 2 || p.ByVendor[0].Vendor != "Acme Supply" || p.ByVendor[1].Amount.Cents != 12800 || p.ByVendor[1].Bills != 2 {
		t.Fatalf("unexpected vendor totals %+v", p.ByVendor)
	}
	sel.Toggle("b2")
	sel.Toggle("b2")
	if again := PayBills(openBills(), sel); again.Total != p.Total {
		t.Fatalf("toggling twice should restore the total")
	}
	if empty := PayBills(openBills(), core.NewSelection[string]()); !empty.Total.IsZero() || empty.Count != 0 {
		t.Fatalf("empty selection should pay nothing")
	}
}

func TestBillPaymentDrafts(t *testing.T) {
	p := PayBills(openBills(), core.NewSelection("b1", "b2", "b3"))
	drafts := p.Drafts("Checking", "2025-05-20")
	if len(drafts) != 2 || drafts[0].Party != "Power Co" || len(drafts[0].Lines) != 2 {
		t.Fatalf("unexpected drafts %+v", drafts)
	}
	if drafts[0].Lines[0].Description != "Bill PW-9" || drafts[0].Lines[1].Description != "Bill b3" {
		t.Fatalf("unexpected descriptions %+v", drafts[0].Lines)
	}
	pv := BuildPreview(drafts[0], nil)
	if !pv.Valid || pv.Totals.Total.Cents != 12800 {
		t.Fatalf("draft should be postable: %+v", pv)
	}
}

func invoicesFor() []core.Invoice {
	return []core.Invoice{
		{ID: "i1", Number: "1001", Status: core.InvoiceOpen, Balance: core.Cents(3000)},
		{ID: "i2", Number: "1002", Status: core.InvoicePaid, Balance: core.Cents(0)},
		{ID: "i3", Number: "1003", Status: core.InvoiceOpen, Balance: core.Cents(5000)},
		{ID: "i4", Number: "1004", Status: core.InvoiceOverdue, Balance: core.Cents(1000)},
	}
}

func TestApplyCredit(t *testing.T) {
	cases := []struct {
		name      string
		credit    int64
		sel       []string
		applied   map[string]int64
		remaining int64
	}{
		{"covers all", 10000, []string{"i1", "i3", "i4"}, map[string]int64{"i1": 3000, "i3": 5000, "i4": 1000}, 1000},
		{"runs out in order", 4000, []string{"i1", "i3", "i4"}, map[string]int64{"i1": 3000, "i3": 1000}, 0},
		{"skips paid", 500, []string{"i2", "i4"}, map[string]int64{"i4": 500}, 0},
		{"nothing selected", 500, nil, map[string]int64{}, 500},
		{"zero credit", 0, []string{"i1"}, map[string]int64{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := ApplyCredit(core.Cents(tc.credit), invoicesFor(), core.NewSelection(tc.sel...))
			if len(p.Applications) != len(tc.applied) {
				t.Fatalf("applications %+v", p.Applications)
			}
			var sum int64
			for _, a := range p.Applications {
				if a.Applied.Cents != tc.applied[a.InvoiceID] {
					t.Fatalf("%s applied %d", a.InvoiceID, a.Applied.Cents)
				}
				if a.Applied.Cents > a.Balance.Cents {
					t.Fatalf("applied more than the open balance")
				}
				sum += a.Applied.Cents
			}
			if p.TotalApplied.Cents != sum || p.Remaining.Cents != tc.remaining {
				t.Fatalf("total=%d remaining=%d", p.TotalApplied.Cents, p.Remaining.Cents)
			}
		})
	}
}

func TestSettle(t *testing.T) {
	p := ApplyCredit(core.Cents(4000), invoicesFor(), core.NewSelection("i1", "i3"))
	out := p.Settle(invoicesFor())
	if len(out) != 2 {
		t.Fatalf("expected 2 invoices, got %d", len(out))
	}
	if out[0].Status != core.InvoicePaid || !out[0].Balance.IsZero() {
		t.Fatalf("i1 should be paid: %+v", out[0])
	}
	if out[1].Balance.Cents != 4000 || out[1].Status != core.InvoiceOpen {
		t.Fatalf("i3 should be partially paid: %+v", out[1])
	}
}
