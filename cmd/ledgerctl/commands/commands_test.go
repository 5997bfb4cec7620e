package commands

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"ledgerdesk/internal/export"
	apphttp "ledgerdesk/internal/http"
	"ledgerdesk/internal/services"
	"ledgerdesk/internal/storage/memory"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	companyID, apiURL, configFile = "", "", ""
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// apiServer serves the seeded ledger over the real router.
func apiServer(t *testing.T) string {
	t.Helper()
	store, err := memory.NewFromFile("../../../internal/storage/memory/testdata/seed.yaml")
	if err != nil {
		t.Fatal(err)
	}
	srv, err := apphttp.NewServer(":0", apphttp.Deps{
		Ledger: services.NewLedgerService(store, nil, nil, nil),
		Store:  store,
	}, apphttp.Options{})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return ts.URL
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "ledgerctl dev") {
		t.Errorf("out = %q", out)
	}
}

const statementJSON = `{
  "account": "Checking",
  "statement_date": "2025-04-30",
  "beginning_balance": 1000,
  "statement_end_balance": %s,
  "transactions": [
    {"id": "d1", "kind": "deposit", "amount": 150},
    {"id": "p1", "kind": "payment", "amount": 50}
  ],
  "cleared": ["d1", "p1"]
}`

func writeStatement(t *testing.T, endBalance string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statement.json")
	body := strings.Replace(statementJSON, "%s", endBalance, 1)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReconcile(t *testing.T) {
	out, err := run(t, "reconcile", "-f", writeStatement(t, "1100"))
	if err != nil {
		t.Fatalf("reconcile: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Difference:        $0.00") || !strings.Contains(out, "Reconciled.") {
		t.Errorf("out = %s", out)
	}

	out, err = run(t, "reconcile", "-f", writeStatement(t, "1100.01"))
	if !errors.Is(err, errNotReconciled) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(out, "Difference:        $0.01") {
		t.Errorf("a one cent gap must be reported: %s", out)
	}
}

func TestReconcileRequiresFile(t *testing.T) {
	if _, err := run(t, "reconcile"); err == nil {
		t.Fatal("expected missing flag error")
	}
}

func TestAging(t *testing.T) {
	url := apiServer(t)
	path := filepath.Join(t.TempDir(), "aging.xlsx")

	out, err := run(t, "aging", "--api", url, "--company", "c1", "--as-of", "2025-05-14", "--out", path)
	if err != nil {
		t.Fatalf("aging: %v", err)
	}
	if !strings.Contains(out, "2 open invoices") {
		t.Errorf("out = %q", out)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	total, err := f.GetCellValue(export.SheetSummary, "B7", excelize.Options{RawCellValue: true})
	if err != nil || total != "1100" {
		t.Errorf("total = %q, %v", total, err)
	}
}

func TestAgingRequiresCompany(t *testing.T) {
	if _, err := run(t, "aging"); !errors.Is(err, errMissingCompany) {
		t.Fatalf("err = %v", err)
	}
}

func TestDashboard(t *testing.T) {
	url := apiServer(t)

	out, err := run(t, "dashboard", "--api", url, "--company", "c1", "--range", "this_year")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	for _, want := range []string{"Recent transactions (2)", "Outstanding invoices (2)", "INV-0998", "[warning] 1 invoice overdue"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, "dashboard", "--api", url, "--company", "c1", "--range", "someday"); err == nil {
		t.Error("expected unknown range error")
	}
}

func TestDashboardErrorState(t *testing.T) {
	out, err := run(t, "dashboard", "--api", "http://127.0.0.1:1", "--company", "c1")
	if err == nil || err.Error() != "Failed to load dashboard data" {
		t.Fatalf("err = %v, out = %s", err, out)
	}
}
