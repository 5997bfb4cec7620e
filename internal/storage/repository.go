package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/documents"
	"ledgerdesk/internal/employee"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// SQLiteRepository is the sqlite Store.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection serializes them.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ─── Documents ──────────────────────────────────────────────────────────────

// NextNumber skips sequence values already typed by hand on a saved
// document.
func (r *SQLiteRepository) NextNumber(ctx context.Context, companyID string, kind documents.Kind) (string, error) {
	for {
		var seq int64
		err := r.db.QueryRowContext(ctx, `
			INSERT INTO document_numbers (company_id, kind, last) VALUES (?, ?, ?)
			ON CONFLICT (company_id, kind) DO UPDATE SET last = last + 1
			RETURNING last`, companyID, string(kind), FirstNumber).Scan(&seq)
		if err != nil {
			return "", fmt.Errorf("reserve %s number: %w", kind, err)
		}
		number := FormatNumber(kind, seq)

		var one int
		err = r.db.QueryRowContext(ctx,
			`SELECT 1 FROM documents WHERE company_id = ? AND kind = ? AND number = ?`,
			companyID, string(kind), number).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return number, nil
		case err != nil:
			return "", fmt.Errorf("check %s number: %w", kind, err)
		}
	}
}

func (r *SQLiteRepository) SavePosting(ctx context.Context, p Posting) error {
	doc := p.Document
	lines, err := json.Marshal(doc.Lines)
	if err != nil {
		return fmt.Errorf("encode lines: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin posting: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, company_id, kind, number, date, due_date, party, account, memo,
			lines, subtotal_cents, tax_cents, total_cents, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.CompanyID, string(doc.Kind), doc.Number, doc.Date.String(), doc.DueDate.String(),
		doc.Party, doc.Account, doc.Memo, string(lines),
		doc.Totals.Subtotal.Cents, doc.Totals.Tax.Cents, doc.Totals.Total.Cents,
		string(doc.Status), doc.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s", ErrDuplicateNumber, doc.Kind, doc.Number)
		}
		return fmt.Errorf("insert document: %w", err)
	}

	if t := p.Transaction; t != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transactions (id, company_id, date, type, number, party, account, memo,
				amount_cents, status, document_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.CompanyID, t.Date.String(), string(t.Type), t.Number, t.Party, t.Account, t.Memo,
			t.Amount.Cents, string(t.Status), t.DocumentID, t.CreatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}

	if inv := p.Invoice; inv != nil {
		if err := insertInvoice(ctx, tx, *inv); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit posting: %w", err)
	}
	return nil
}

const documentColumns = `id, company_id, kind, number, date, due_date, party, account, memo,
	lines, subtotal_cents, tax_cents, total_cents, credit_applied_cents, status, created_at, exported_at`

func (r *SQLiteRepository) GetDocument(ctx context.Context, companyID, id string) (documents.Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE company_id = ? AND id = ?`, companyID, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return documents.Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return doc, err
}

func (r *SQLiteRepository) PendingExport(ctx context.Context, limit int) ([]documents.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE status = ? ORDER BY created_at, id LIMIT ?`,
		string(documents.StatusPosted), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending documents: %w", err)
	}
	defer rows.Close()

	var out []documents.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, exported_at = ? WHERE id = ?`,
		string(documents.StatusExported), at.UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return requireRow(res, "document", id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (documents.Document, error) {
	var (
		doc                     documents.Document
		kind, status            string
		date, due, lines, creat string
		exported                sql.NullString
	)
	err := s.Scan(&doc.ID, &doc.CompanyID, &kind, &doc.Number, &date, &due, &doc.Party, &doc.Account,
		&doc.Memo, &lines, &doc.Totals.Subtotal.Cents, &doc.Totals.Tax.Cents, &doc.Totals.Total.Cents,
		&doc.CreditApplied.Cents, &status, &creat, &exported)
	if err != nil {
		return documents.Document{}, err
	}
	doc.Kind = documents.Kind(kind)
	doc.Status = documents.Status(status)
	doc.Date = parseDate(date)
	doc.DueDate = parseDate(due)
	doc.CreatedAt = parseTime(creat)
	if exported.Valid {
		t := parseTime(exported.String)
		doc.ExportedAt = &t
	}
	if err := json.Unmarshal([]byte(lines), &doc.Lines); err != nil {
		return documents.Document{}, fmt.Errorf("decode lines of %s: %w", doc.ID, err)
	}
	return doc, nil
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

func (r *SQLiteRepository) Transactions(ctx context.Context, companyID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, company_id, date, type, number, party, account, memo, amount_cents, status,
			document_id, created_at
		FROM transactions WHERE company_id = ? ORDER BY date, created_at, id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t                       core.Transaction
			date, typ, status, crea string
		)
		if err := rows.Scan(&t.ID, &t.CompanyID, &date, &typ, &t.Number, &t.Party, &t.Account, &t.Memo,
			&t.Amount.Cents, &status, &t.DocumentID, &crea); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Date = parseDate(date)
		t.Type = core.TxnType(typ)
		t.Status = core.TxnStatus(status)
		t.CreatedAt = parseTime(crea)
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertTransaction adds a register entry that no document produced, such
// as an imported bank line.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, company_id, date, type, number, party, account, memo,
			amount_cents, status, document_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.CompanyID, t.Date.String(), string(t.Type), t.Number, t.Party, t.Account, t.Memo,
		t.Amount.Cents, string(t.Status), t.DocumentID, t.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Invoices(ctx context.Context, companyID string) ([]core.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, company_id, number, customer, issue_date, due_date, total_cents, balance_cents, status
		FROM invoices WHERE company_id = ? ORDER BY issue_date, number`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	var out []core.Invoice
	for rows.Next() {
		var (
			inv               core.Invoice
			issue, due, state string
		)
		if err := rows.Scan(&inv.ID, &inv.CompanyID, &inv.Number, &inv.Customer, &issue, &due,
			&inv.Total.Cents, &inv.Balance.Cents, &state); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		inv.IssueDate = parseDate(issue)
		inv.DueDate = parseDate(due)
		inv.Status = core.InvoiceStatus(state)
		out = append(out, inv)
	}
	return out, rows.Err()
}

// InsertInvoice adds an invoice that did not come from a posted document.
func (r *SQLiteRepository) InsertInvoice(ctx context.Context, inv core.Invoice) error {
	return insertInvoice(ctx, r.db, inv)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertInvoice(ctx context.Context, db execer, inv core.Invoice) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO invoices (id, company_id, number, customer, issue_date, due_date, total_cents,
			balance_cents, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.CompanyID, inv.Number, inv.Customer, inv.IssueDate.String(), inv.DueDate.String(),
		inv.Total.Cents, inv.Balance.Cents, string(inv.Status))
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SaveCreditApplication(ctx context.Context, a CreditApplication) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin credit application: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE documents SET credit_applied_cents = credit_applied_cents + ?
		WHERE company_id = ? AND id = ? AND kind = ? AND total_cents - credit_applied_cents >= ?`,
		a.Applied.Cents, a.CompanyID, a.MemoID, string(documents.KindCreditMemo), a.Applied.Cents)
	if err != nil {
		return fmt.Errorf("update credit memo %s: %w", a.MemoID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM documents WHERE company_id = ? AND id = ? AND kind = ?`,
			a.CompanyID, a.MemoID, string(documents.KindCreditMemo)).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("credit memo %s: %w", a.MemoID, ErrNotFound)
		case err != nil:
			return fmt.Errorf("read credit memo %s: %w", a.MemoID, err)
		}
		return fmt.Errorf("%w: %s", ErrCreditExceeded, a.MemoID)
	}

	for _, inv := range a.Invoices {
		res, err := tx.ExecContext(ctx,
			`UPDATE invoices SET balance_cents = ?, status = ? WHERE company_id = ? AND id = ?`,
			inv.Balance.Cents, string(inv.Status), a.CompanyID, inv.ID)
		if err != nil {
			return fmt.Errorf("update invoice %s: %w", inv.ID, err)
		}
		if err := requireRow(res, "invoice", inv.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) Bills(ctx context.Context, companyID string) ([]core.Bill, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, company_id, vendor, number, due_date, amount_cents, balance_cents
		FROM bills WHERE company_id = ? ORDER BY due_date, vendor, id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query bills: %w", err)
	}
	defer rows.Close()

	var out []core.Bill
	for rows.Next() {
		var (
			b   core.Bill
			due string
		)
		if err := rows.Scan(&b.ID, &b.CompanyID, &b.Vendor, &b.Number, &due, &b.Amount.Cents, &b.Balance.Cents); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		b.DueDate = parseDate(due)
		out = append(out, b)
	}
	return out, rows.Err()
}

// InsertBill adds a vendor bill.
func (r *SQLiteRepository) InsertBill(ctx context.Context, b core.Bill) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bills (id, company_id, vendor, number, due_date, amount_cents, balance_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.CompanyID, b.Vendor, b.Number, b.DueDate.String(), b.Amount.Cents, b.Balance.Cents)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Items(ctx context.Context, companyID string) ([]core.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, company_id, name, sku, type, category, status, price_cents, on_hand
		FROM items WHERE company_id = ? ORDER BY name, id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []core.Item
	for rows.Next() {
		var it core.Item
		if err := rows.Scan(&it.ID, &it.CompanyID, &it.Name, &it.SKU, &it.Type, &it.Category, &it.Status,
			&it.Price.Cents, &it.OnHand); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// InsertItem adds a product or service.
func (r *SQLiteRepository) InsertItem(ctx context.Context, it core.Item) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO items (id, company_id, name, sku, type, category, status, price_cents, on_hand)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.CompanyID, it.Name, it.SKU, it.Type, it.Category, it.Status, it.Price.Cents, it.OnHand)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// ─── Alerts ─────────────────────────────────────────────────────────────────

const alertColumns = `id, company_id, severity, title, message, read, dismissed, created_at`

func scanAlert(s scanner) (core.Alert, error) {
	var (
		a       core.Alert
		created string
	)
	if err := s.Scan(&a.ID, &a.CompanyID, &a.Severity, &a.Title, &a.Message, &a.Read, &a.Dismissed, &created); err != nil {
		return core.Alert{}, err
	}
	a.CreatedAt = parseTime(created)
	return a, nil
}

func (r *SQLiteRepository) Alerts(ctx context.Context, companyID string) ([]core.Alert, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE company_id = ? ORDER BY created_at DESC, id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []core.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertAlert adds a dashboard alert.
func (r *SQLiteRepository) InsertAlert(ctx context.Context, a core.Alert) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts (`+alertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CompanyID, a.Severity, a.Title, a.Message, a.Read, a.Dismissed, a.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateAlert(ctx context.Context, companyID, id string, u AlertUpdate) (core.Alert, error) {
	var (
		sets []string
		args []any
	)
	if u.Read != nil {
		sets = append(sets, "read = ?")
		args = append(args, *u.Read)
	}
	if u.Dismissed != nil {
		sets = append(sets, "dismissed = ?")
		args = append(args, *u.Dismissed)
	}
	if len(sets) > 0 {
		args = append(args, companyID, id)
		res, err := r.db.ExecContext(ctx,
			`UPDATE alerts SET `+strings.Join(sets, ", ")+` WHERE company_id = ? AND id = ?`, args...)
		if err != nil {
			return core.Alert{}, fmt.Errorf("update alert: %w", err)
		}
		if err := requireRow(res, "alert", id); err != nil {
			return core.Alert{}, err
		}
	}

	a, err := scanAlert(r.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE company_id = ? AND id = ?`, companyID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Alert{}, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Alert{}, fmt.Errorf("read alert: %w", err)
	}
	return a, nil
}

// ─── Employees ──────────────────────────────────────────────────────────────

func (r *SQLiteRepository) SaveEmployee(ctx context.Context, e employee.Employee) error {
	record, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode employee: %w", err)
	}
	var sealed []byte
	if e.Bank != nil {
		sealed = e.Bank.AccountSealed
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO employees (id, company_id, record, bank_account_sealed, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.CompanyID, string(record), sealed, e.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetEmployee(ctx context.Context, companyID, id string) (employee.Employee, error) {
	var (
		record string
		sealed []byte
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT record, bank_account_sealed FROM employees WHERE company_id = ? AND id = ?`,
		companyID, id).Scan(&record, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return employee.Employee{}, fmt.Errorf("employee %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return employee.Employee{}, fmt.Errorf("read employee: %w", err)
	}

	var e employee.Employee
	if err := json.Unmarshal([]byte(record), &e); err != nil {
		return employee.Employee{}, fmt.Errorf("decode employee %s: %w", id, err)
	}
	if e.Bank != nil {
		e.Bank.AccountSealed = sealed
	}
	return e, nil
}

// ─── Reconciliations ────────────────────────────────────────────────────────

func (r *SQLiteRepository) SaveReconciliation(ctx context.Context, rec SavedReconciliation) error {
	stmt, err := json.Marshal(rec.Statement)
	if err != nil {
		return fmt.Errorf("encode statement: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO reconciliations (id, company_id, account, statement, difference_cents, reconciled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CompanyID, rec.Statement.Account, string(stmt), rec.Summary.Difference.Cents,
		rec.Summary.IsReconciled, rec.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert reconciliation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetReconciliation(ctx context.Context, companyID, id string) (SavedReconciliation, error) {
	rec := SavedReconciliation{ID: id, CompanyID: companyID}
	var stmt, created string
	err := r.db.QueryRowContext(ctx,
		`SELECT statement, created_at FROM reconciliations WHERE company_id = ? AND id = ?`,
		companyID, id).Scan(&stmt, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedReconciliation{}, fmt.Errorf("reconciliation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return SavedReconciliation{}, fmt.Errorf("read reconciliation: %w", err)
	}
	if err := json.Unmarshal([]byte(stmt), &rec.Statement); err != nil {
		return SavedReconciliation{}, fmt.Errorf("decode statement %s: %w", id, err)
	}
	// The summary is derived, so it is rebuilt rather than stored.
	recon, err := rec.Statement.Reconciliation()
	if err != nil {
		return SavedReconciliation{}, fmt.Errorf("replay statement %s: %w", id, err)
	}
	rec.Summary = recon.Summary()
	rec.CreatedAt = parseTime(created)
	return rec, nil
}

// ─── helpers ────────────────────────────────────────────────────────────────

func requireRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func parseDate(s string) core.Date {
	if s == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
