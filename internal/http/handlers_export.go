package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/export"
	"ledgerdesk/internal/log"
)

// writeWorkbook buffers the whole workbook; render failures are answered
// with a JSON error.
func (s *Server) writeWorkbook(w http.ResponseWriter, r *http.Request, filename string, render func(buf *bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleAgingExport downloads the receivables aging, as of today or the
// as_of query date.
func (s *Server) handleAgingExport(w http.ResponseWriter, r *http.Request) {
	asOf := s.now()
	d, err := queryDate(r.URL.Query(), "as_of")
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}
	if !d.IsEmpty() {
		asOf = d.Time
	}
	company := companyID(r)
	invoices, err := s.store.Invoices(r.Context(), company)
	if err != nil {
		s.fail(w, r, log.OpExport, fmt.Errorf("load invoices: %w", err))
		return
	}
	filename := fmt.Sprintf("aging-%s-%s.xlsx", company, core.DateOf(asOf))
	s.writeWorkbook(w, r, filename, func(buf *bytes.Buffer) error {
		return export.AgingReport(buf, invoices, asOf)
	})
}

// handleTransactionsExport downloads every register row matching the list
// criteria, without paging.
func (s *Server) handleTransactionsExport(w http.ResponseWriter, r *http.Request) {
	txns, err := s.queryTransactions(r)
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}
	filename := fmt.Sprintf("transactions-%s.xlsx", companyID(r))
	s.writeWorkbook(w, r, filename, func(buf *bytes.Buffer) error {
		return export.Transactions(buf, txns)
	})
}
