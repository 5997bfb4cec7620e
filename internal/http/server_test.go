package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledgerdesk/internal/adapters"
	"ledgerdesk/internal/core"
	"ledgerdesk/internal/dashboard"
	"ledgerdesk/internal/fieldcrypt"
	"ledgerdesk/internal/services"
	"ledgerdesk/internal/storage/memory"
)

var fixedNow = time.Date(2025, 5, 14, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

type testServer struct {
	*Server
	store *memory.Store
}

func newTestServer(t *testing.T, opts Options, source func(*memory.Store) dashboard.Source) *testServer {
	t.Helper()
	store, err := memory.NewFromFile("../storage/memory/testdata/seed.yaml")
	if err != nil {
		t.Fatal(err)
	}
	box, err := fieldcrypt.FromPassphrase("correct horse", []byte("ledgerdesk-test"))
	if err != nil {
		t.Fatal(err)
	}
	taxes := core.TaxTable{"CA": decimal.RequireFromString("0.0725")}
	ledger := services.NewLedgerService(store, nil, taxes, nil,
		services.WithClock(clock), services.WithIDGenerator(sequentialIDs("doc-")))
	sessions := services.NewEmployeeSessions(store, nil, box, services.SessionConfig{}, nil,
		services.WithClock(clock), services.WithIDGenerator(sequentialIDs("s-")))

	deps := Deps{Ledger: ledger, Sessions: sessions, Store: store}
	if source != nil {
		deps.Source = source(store)
	}
	if opts.Now == nil {
		opts.Now = clock
	}
	srv, err := NewServer(":0", deps, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{Server: srv, store: store}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	e, _ := decode(t, rr)["error"].(map[string]any)
	s, _ := e["type"].(string)
	return s
}

func TestServiceRoutes(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := ts.do(t, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}
	rr := ts.do(t, http.MethodGet, "/healthz", nil)
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("security headers missing, X-Content-Type-Options = %q", got)
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestUnknownRoutesAnswerJSON(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)

	rr := ts.do(t, http.MethodGet, "/nope", nil)
	if rr.Code != http.StatusNotFound || errorType(t, rr) != "not_found_error" {
		t.Errorf("unknown route = %d %s", rr.Code, rr.Body.String())
	}
	rr = ts.do(t, http.MethodDelete, "/companies/c1/dashboard", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method = %d", rr.Code)
	}
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)

	for _, body := range []string{"{", `{"kind":"invoice"} {}`, `[1,2]`} {
		rr := ts.do(t, http.MethodPost, "/companies/c1/documents/preview", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d", body, rr.Code)
		}
	}
}

func TestRateLimitAppliesToMutationsOnly(t *testing.T) {
	ts := newTestServer(t, Options{RateLimitPerMinute: 2}, nil)
	draft := map[string]any{"kind": "check"}

	for i := 0; i < 2; i++ {
		if rr := ts.do(t, http.MethodPost, "/companies/c1/documents/preview", draft); rr.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rr.Code)
		}
	}
	rr := ts.do(t, http.MethodPost, "/companies/c1/documents/preview", draft)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third mutation status = %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" || errorType(t, rr) != "rate_limit_error" {
		t.Errorf("rejection = %v %s", rr.Header(), rr.Body.String())
	}

	for i := 0; i < 5; i++ {
		if rr := ts.do(t, http.MethodGet, "/companies/c1/items/", nil); rr.Code != http.StatusOK {
			t.Fatalf("reads must not be limited, status = %d", rr.Code)
		}
	}
}

// countingSource counts report computations.
type countingSource struct {
	dashboard.Source
	reports atomic.Int32
}

func (c *countingSource) Report(ctx context.Context, companyID, dateRange string) (dashboard.Report, error) {
	c.reports.Add(1)
	return c.Source.Report(ctx, companyID, dateRange)
}

func TestReportCache(t *testing.T) {
	src := &countingSource{}
	ts := newTestServer(t, Options{ReportCacheTTL: time.Minute}, func(s *memory.Store) dashboard.Source {
		src.Source = adapters.NewDashboardSource(s, clock)
		return src
	})

	for i := 0; i < 3; i++ {
		if rr := ts.do(t, http.MethodGet, "/companies/c1/reports/dashboard?date_range=this_month", nil); rr.Code != http.StatusOK {
			t.Fatalf("status = %d %s", rr.Code, rr.Body.String())
		}
	}
	if got := src.reports.Load(); got != 1 {
		t.Fatalf("report computed %d times, want 1", got)
	}

	rr := ts.do(t, http.MethodPost, "/companies/c1/documents", invoiceDraft())
	if rr.Code != http.StatusCreated {
		t.Fatalf("post status = %d %s", rr.Code, rr.Body.String())
	}
	ts.do(t, http.MethodGet, "/companies/c1/reports/dashboard?date_range=this_month", nil)
	if got := src.reports.Load(); got != 2 {
		t.Errorf("posting must drop cached reports, computed %d times", got)
	}
}

type failingSource struct {
	dashboard.Source
}

func (failingSource) Alerts(context.Context, string) ([]core.Alert, error) {
	return nil, errors.New("alerts service down")
}

func TestDashboardAggregate(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)

	rr := ts.do(t, http.MethodGet, "/companies/c1/dashboard?date_range=this_month", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	if _, ok := body["report"].(map[string]any); !ok {
		t.Errorf("report missing: %v", body)
	}
	if recent, _ := body["recent_transactions"].([]any); len(recent) != 2 {
		t.Errorf("recent = %v", body["recent_transactions"])
	}
	if alerts, _ := body["alerts"].([]any); len(alerts) != 1 {
		t.Errorf("alerts = %v", body["alerts"])
	}

	rr = ts.do(t, http.MethodGet, "/companies/c1/dashboard?date_range=next_century", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown range status = %d", rr.Code)
	}
}

func TestDashboardAggregateIsAllOrNothing(t *testing.T) {
	ts := newTestServer(t, Options{}, func(s *memory.Store) dashboard.Source {
		return failingSource{Source: adapters.NewDashboardSource(s, clock)}
	})

	rr := ts.do(t, http.MethodGet, "/companies/c1/dashboard", nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decode(t, rr)
	if _, ok := body["report"]; ok {
		t.Error("failed load must not return partial data")
	}
	e := body["error"].(map[string]any)
	if e["message"] != dashboard.LoadFailedMessage || e["retry"] != true {
		t.Errorf("error = %v", e)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)
	if err := ts.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := ts.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}
