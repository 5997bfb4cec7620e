package google

import (
	"fmt"
	"strings"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/documents"
	ports "ledgerdesk/internal/sheets"
)

// Column positions, matching ports.Header.
const (
	colDate = iota
	colCompany
	colDocument
	colKind
	colNumber
	colParty
	colAccount
	colDescription
	colAmount
	colTaxCode
	colMemo
)

func headerValues() []any {
	out := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		out[i] = h
	}
	return out
}

func journalValues(rows []ports.JournalRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = r.Values()
	}
	return out
}

// checkHeader accepts a header that names the journal columns in order,
// ignoring case and surrounding space.
func checkHeader(got []string) error {
	var missing []string
	for i, want := range ports.Header {
		if !strings.EqualFold(strings.TrimSpace(safeGet(got, i)), want) {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("unexpected journal header: missing %s; got headers=%v", strings.Join(missing, ","), got)
	}
	return nil
}

// parseJournal converts a values matrix (as returned by the Sheets API)
// back into rows. The header row and blank rows are skipped.
func parseJournal(values [][]any) ([]ports.JournalRow, error) {
	if len(values) == 0 {
		return nil, nil
	}
	if err := checkHeader(toStrings(values[0])); err != nil {
		return nil, err
	}
	var out []ports.JournalRow
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if strings.Join(row, "") == "" {
			continue
		}
		date, err := core.ParseDate(safeGet(row, colDate))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		cents, err := core.ParseDecimalToCents(safeGet(row, colAmount))
		if err != nil {
			return nil, fmt.Errorf("row %d amount: %w", i+1, err)
		}
		out = append(out, ports.JournalRow{
			Date:        date,
			CompanyID:   safeGet(row, colCompany),
			DocumentID:  safeGet(row, colDocument),
			Kind:        documents.Kind(safeGet(row, colKind)),
			Number:      safeGet(row, colNumber),
			Party:       safeGet(row, colParty),
			Account:     safeGet(row, colAccount),
			Description: safeGet(row, colDescription),
			Amount:      core.Cents(cents),
			TaxCode:     safeGet(row, colTaxCode),
			Memo:        safeGet(row, colMemo),
		})
	}
	return out, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
