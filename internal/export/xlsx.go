// Package export renders reports as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"ledgerdesk/internal/core"
)

const (
	SheetSummary      = "Summary"
	SheetDetail       = "Detail"
	SheetTransactions = "Transactions"

	// ContentType is the media type of the workbooks written here.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// currency format: #,##0.00 with negatives in parentheses
const moneyFormat = 40

var bucketLabels = map[core.Bucket]string{
	core.BucketCurrent: "Current",
	core.Bucket1To30:   "1 - 30 days",
	core.Bucket31To60:  "31 - 60 days",
	core.Bucket61To90:  "61 - 90 days",
	core.BucketOver90:  "Over 90 days",
}

type workbook struct {
	f     *excelize.File
	money int
	bold  int
}

func newWorkbook(first string) (*workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", first); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: moneyFormat})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("money style: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	return &workbook{f: f, money: money, bold: bold}, nil
}

// row writes values starting at column A. core.Money is written as a number
// in currency format.
func (wb *workbook) row(sheet string, n int, values ...any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, n)
		if err != nil {
			return err
		}
		switch x := v.(type) {
		case core.Money:
			if err := wb.f.SetCellFloat(sheet, cell, x.Float(), -1, 64); err != nil {
				return err
			}
			if err := wb.f.SetCellStyle(sheet, cell, cell, wb.money); err != nil {
				return err
			}
		case core.Date:
			if err := wb.f.SetCellStr(sheet, cell, x.String()); err != nil {
				return err
			}
		default:
			if err := wb.f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (wb *workbook) header(sheet string, titles ...string) error {
	values := make([]any, len(titles))
	for i, t := range titles {
		values[i] = t
	}
	if err := wb.row(sheet, 1, values...); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(titles), 1)
	if err != nil {
		return err
	}
	if err := wb.f.SetCellStyle(sheet, "A1", last, wb.bold); err != nil {
		return err
	}
	return wb.f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (wb *workbook) finish(w io.Writer) error {
	defer wb.f.Close()
	if err := wb.f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// AgingReport writes the accounts receivable aging as of asOf: bucket
// totals on the first sheet, one row per open invoice on the second.
func AgingReport(w io.Writer, invoices []core.Invoice, asOf time.Time) error {
	wb, err := newWorkbook(SheetSummary)
	if err != nil {
		return err
	}
	if _, err := wb.f.NewSheet(SheetDetail); err != nil {
		wb.f.Close()
		return fmt.Errorf("add sheet: %w", err)
	}

	if err := wb.writeAging(invoices, asOf); err != nil {
		wb.f.Close()
		return err
	}
	return wb.finish(w)
}

func (wb *workbook) writeAging(invoices []core.Invoice, asOf time.Time) error {
	if err := wb.header(SheetSummary, "Bucket", "Open balance"); err != nil {
		return err
	}
	buckets := core.AgeInvoices(invoices, asOf)
	n := 2
	for _, b := range core.Buckets {
		if err := wb.row(SheetSummary, n, bucketLabels[b], buckets.Get(b)); err != nil {
			return err
		}
		n++
	}
	if err := wb.row(SheetSummary, n, "Total", buckets.Total()); err != nil {
		return err
	}
	if err := wb.row(SheetSummary, n+2, "As of", core.DateOf(asOf)); err != nil {
		return err
	}
	if err := wb.f.SetColWidth(SheetSummary, "A", "B", 16); err != nil {
		return err
	}

	if err := wb.header(SheetDetail, "Invoice", "Customer", "Issued", "Due", "Days overdue", "Bucket", "Total", "Balance"); err != nil {
		return err
	}
	for i, r := range core.AgingDetail(invoices, asOf) {
		inv := r.Invoice
		if err := wb.row(SheetDetail, i+2, inv.Number, inv.Customer, inv.IssueDate, inv.DueDate,
			r.DaysOverdue, bucketLabels[r.Bucket], inv.Total, inv.Balance); err != nil {
			return err
		}
	}
	return wb.f.SetColWidth(SheetDetail, "A", "H", 14)
}

// Transactions writes a register listing in the given order.
func Transactions(w io.Writer, txns []core.Transaction) error {
	wb, err := newWorkbook(SheetTransactions)
	if err != nil {
		return err
	}
	if err := wb.writeTransactions(txns); err != nil {
		wb.f.Close()
		return err
	}
	return wb.finish(w)
}

func (wb *workbook) writeTransactions(txns []core.Transaction) error {
	if err := wb.header(SheetTransactions, "Date", "Type", "Number", "Party", "Account", "Memo", "Amount", "Status"); err != nil {
		return err
	}
	var total core.Money
	for i, t := range txns {
		if err := wb.row(SheetTransactions, i+2, t.Date, string(t.Type), t.Number, t.Party, t.Account, t.Memo, t.Amount, string(t.Status)); err != nil {
			return err
		}
		total = total.Add(t.Amount)
	}
	if err := wb.row(SheetTransactions, len(txns)+2, "Total", "", "", "", "", "", total); err != nil {
		return err
	}
	return wb.f.SetColWidth(SheetTransactions, "A", "H", 14)
}
