package documents

import (
	"sort"

	"ledgerdesk/internal/core"
)

// BillPaymentLine is one bill paid by a payment run.
type BillPaymentLine struct {
	BillID  string     `json:"bill_id"`
	Vendor  string     `json:"vendor"`
	Number  string     `json:"number,omitempty"`
	DueDate core.Date  `json:"due_date"`
	Amount  core.Money `json:"amount"`
}

// VendorTotal sums the payment going to one vendor.
type VendorTotal struct {
	Vendor string     `json:"vendor"`
	Amount core.Money `json:"amount"`
	Bills  int        `json:"bills"`
}

// BillPaymentPreview is the derived state of the pay bills screen.
type BillPaymentPreview struct {
	Lines    []BillPaymentLine `json:"lines"`
	ByVendor []VendorTotal     `json:"by_vendor"`
	Total    core.Money        `json:"total"`
	Count    int               `json:"count"`
}

// PayBills pays every selected bill in full of its open balance. Bills are
// listed in input order; vendors alphabetically.
func PayBills(bills []core.Bill, sel *core.Selection[string]) BillPaymentPreview {
	var p BillPaymentPreview
	byVendor := map[string]*VendorTotal{}
	for _, b := range bills {
		if !sel.Has(b.ID) || b.Balance.Cents <= 0 {
			continue
		}
		p.Lines = append(p.Lines, BillPaymentLine{BillID: b.ID, Vendor: b.Vendor, Number: b.Number, DueDate: b.DueDate, Amount: b.Balance})
		v, ok := byVendor[b.Vendor]
		if !ok {
			v = &VendorTotal{Vendor: b.Vendor}
			byVendor[b.Vendor] = v
		}
		v.Amount = v.Amount.Add(b.Balance)
		v.Bills++
		p.Total = p.Total.Add(b.Balance)
	}
	p.Count = len(p.Lines)
	for _, v := range byVendor {
		p.ByVendor = append(p.ByVendor, *v)
	}
	sort.Slice(p.ByVendor, func(i, j int) bool { return p.ByVendor[i].Vendor < p.ByVendor[j].Vendor })
	return p
}

// Drafts turns a bill payment run into one bill_payment draft per vendor,
// paid from account on date.
func (p BillPaymentPreview) Drafts(account, date string) []Draft {
	byVendor := map[string][]LineInput{}
	var order []string
	for _, l := range p.Lines {
		if _, ok := byVendor[l.Vendor]; !ok {
			order = append(order, l.Vendor)
		}
		desc := "Bill " + l.BillID
		if l.Number != "" {
			desc = "Bill " + l.Number
		}
		byVendor[l.Vendor] = append(byVendor[l.Vendor], LineInput{
			Account:     "Accounts Payable",
			Description: desc,
			Amount:      Text(l.Amount.Decimal()),
		})
	}
	out := make([]Draft, 0, len(order))
	for _, v := range order {
		out = append(out, Draft{Kind: KindBillPayment, Date: date, Party: v, Account: account, Lines: byVendor[v]})
	}
	return out
}

// CreditApplication is how much of a credit lands on one invoice.
type CreditApplication struct {
	InvoiceID string     `json:"invoice_id"`
	Number    string     `json:"number"`
	Balance   core.Money `json:"balance"`
	Applied   core.Money `json:"applied"`
}

// CreditPreview is the derived state of the apply credit screen.
type CreditPreview struct {
	Credit       core.Money          `json:"credit"`
	Applications []CreditApplication `json:"applications"`
	TotalApplied core.Money          `json:"total_applied"`
	Remaining    core.Money          `json:"remaining"`
}

// ApplyCredit spreads credit over the selected outstanding invoices in
// input order. No invoice receives more than its open balance and the total
// never exceeds the credit.
func ApplyCredit(credit core.Money, invoices []core.Invoice, sel *core.Selection[string]) CreditPreview {
	p := CreditPreview{Credit: credit, Remaining: credit}
	if credit.Cents <= 0 {
		p.Remaining = core.Money{}
		return p
	}
	for _, inv := range invoices {
		if !sel.Has(inv.ID) || !inv.Outstanding() {
			continue
		}
		amt := core.Min(p.Remaining, inv.Balance)
		p.Applications = append(p.Applications, CreditApplication{
			InvoiceID: inv.ID,
			Number:    inv.Number,
			Balance:   inv.Balance,
			Applied:   amt,
		})
		p.TotalApplied = p.TotalApplied.Add(amt)
		p.Remaining = p.Remaining.Sub(amt)
		if p.Remaining.IsZero() {
			break
		}
	}
	return p
}

// Settle returns the invoices after applying p. Fully paid invoices become
// paid.
func (p CreditPreview) Settle(invoices []core.Invoice) []core.Invoice {
	applied := make(map[string]core.Money, len(p.Applications))
	for _, a := range p.Applications {
		applied[a.InvoiceID] = a.Applied
	}
	out := make([]core.Invoice, 0, len(applied))
	for _, inv := range invoices {
		amt, ok := applied[inv.ID]
		if !ok {
			continue
		}
		inv.Balance = inv.Balance.Sub(amt)
		if inv.Balance.Cents <= 0 {
			inv.Balance = core.Money{}
			inv.Status = core.InvoicePaid
		}
		out = append(out, inv)
	}
	return out
}
