// Package apiclient is a typed client for the ledgerdesk REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/dashboard"
)

// APIError is returned for transport failures, non-2xx responses and
// undecodable bodies. The client never retries.
type APIError struct {
	Op         string
	StatusCode int
	Type       string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

type Client struct {
	Base string
	HTTP *http.Client
}

// New returns a client for the API rooted at base
// (for example http://localhost:8080).
func New(base string, timeout time.Duration) *Client {
	return &Client{
		Base: strings.TrimRight(base, "/"),
		HTTP: &http.Client{Timeout: timeout},
	}
}

var _ dashboard.Source = (*Client)(nil)

type itemsEnvelope[T any] struct {
	Items []T `json:"items"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Client) companyPath(companyID, path string) string {
	return c.Base + "/companies/" + url.PathEscape(companyID) + path
}

func (c *Client) do(ctx context.Context, op, method, u string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &APIError{Op: op, Err: err}
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode}
		var env errorEnvelope
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&env) == nil {
			apiErr.Message = env.Error.Message
			apiErr.Type = env.Error.Type
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Report fetches GET /reports/dashboard.
func (c *Client) Report(ctx context.Context, companyID, dateRange string) (dashboard.Report, error) {
	var rep dashboard.Report
	q := url.Values{}
	if dateRange != "" {
		q.Set("date_range", dateRange)
	}
	u := c.companyPath(companyID, "/reports/dashboard")
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	err := c.do(ctx, "fetch dashboard report", http.MethodGet, u, nil, &rep)
	return rep, err
}

func (c *Client) RecentTransactions(ctx context.Context, companyID string, limit int) ([]core.Transaction, error) {
	q := url.Values{"recent": {"true"}, "sort_by": {"-date"}}
	if limit > 0 {
		q.Set("page_size", strconv.Itoa(limit))
	}
	var env itemsEnvelope[core.Transaction]
	err := c.do(ctx, "fetch recent transactions", http.MethodGet, c.companyPath(companyID, "/transactions/?"+q.Encode()), nil, &env)
	return env.Items, err
}

// Transactions runs a filtered register query; q carries the list
// criteria as query parameters.
func (c *Client) Transactions(ctx context.Context, companyID string, q url.Values) ([]core.Transaction, error) {
	var env itemsEnvelope[core.Transaction]
	err := c.do(ctx, "fetch transactions", http.MethodGet, c.companyPath(companyID, "/transactions/?"+q.Encode()), nil, &env)
	return env.Items, err
}

func (c *Client) OutstandingInvoices(ctx context.Context, companyID string) ([]core.Invoice, error) {
	var env itemsEnvelope[core.Invoice]
	err := c.do(ctx, "fetch outstanding invoices", http.MethodGet, c.companyPath(companyID, "/invoices/?status=outstanding"), nil, &env)
	return env.Items, err
}

func (c *Client) Alerts(ctx context.Context, companyID string) ([]core.Alert, error) {
	var env itemsEnvelope[core.Alert]
	err := c.do(ctx, "fetch alerts", http.MethodGet, c.companyPath(companyID, "/dashboard/alerts"), nil, &env)
	return env.Items, err
}

// AlertUpdate is the body of PUT /dashboard/alerts/{id}. Nil fields are
// left unchanged.
type AlertUpdate struct {
	Read      *bool `json:"read,omitempty"`
	Dismissed *bool `json:"dismissed,omitempty"`
}

func (c *Client) UpdateAlert(ctx context.Context, companyID, alertID string, upd AlertUpdate) (core.Alert, error) {
	var a core.Alert
	u := c.companyPath(companyID, "/dashboard/alerts/"+url.PathEscape(alertID))
	err := c.do(ctx, "update alert", http.MethodPut, u, upd, &a)
	return a, err
}

// Dashboard fetches the server-side aggregate in one call.
func (c *Client) Dashboard(ctx context.Context, companyID, dateRange string) (dashboard.Snapshot, error) {
	var snap dashboard.Snapshot
	u := c.companyPath(companyID, "/dashboard?date_range="+url.QueryEscape(dateRange))
	err := c.do(ctx, "fetch dashboard", http.MethodGet, u, nil, &snap)
	return snap, err
}
