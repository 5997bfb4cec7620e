// Package sheets defines the journal export port and the row layout shared
// by its adapters.
package sheets

import (
	"context"
	"fmt"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/documents"
)

// JournalWriter appends rows to the external journal.
type JournalWriter interface {
	AppendRows(ctx context.Context, rows []JournalRow) (rangeRef string, err error)
}

// JournalRow is one document line as exported to the journal.
type JournalRow struct {
	Date        core.Date
	CompanyID   string
	DocumentID  string
	Kind        documents.Kind
	Number      string
	Party       string
	Account     string
	Description string
	Amount      core.Money
	TaxCode     string
	Memo        string
}

// Header is the journal's first row; Values follows the same order.
var Header = []string{"Date", "Company", "Document", "Kind", "Number", "Party", "Account", "Description", "Amount", "Tax code", "Memo"}

// Values renders the row in Header order. Amounts are plain decimals so the
// spreadsheet can sum them.
func (r JournalRow) Values() []any {
	return []any{
		r.Date.String(),
		r.CompanyID,
		r.DocumentID,
		string(r.Kind),
		r.Number,
		r.Party,
		r.Account,
		r.Description,
		r.Amount.Decimal(),
		r.TaxCode,
		r.Memo,
	}
}

// Rows expands a document into one row per line with a non-zero amount.
// Lines without an account fall back to the document's account.
func Rows(doc documents.Document) []JournalRow {
	rows := make([]JournalRow, 0, len(doc.Lines))
	for i, l := range doc.Lines {
		if l.Amount.IsZero() {
			continue
		}
		account := l.Account
		if account == "" {
			account = doc.Account
		}
		desc := l.Description
		if desc == "" {
			desc = fmt.Sprintf("%s line %d", doc.Number, i+1)
		}
		rows = append(rows, JournalRow{
			Date:        doc.Date,
			CompanyID:   doc.CompanyID,
			DocumentID:  doc.ID,
			Kind:        doc.Kind,
			Number:      doc.Number,
			Party:       doc.Party,
			Account:     account,
			Description: desc,
			Amount:      l.Amount,
			TaxCode:     l.TaxCode,
			Memo:        doc.Memo,
		})
	}
	return rows
}
