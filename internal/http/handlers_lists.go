package http

import (
	"fmt"
	"net/http"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/filter"
	"ledgerdesk/internal/log"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// queryTransactions returns the register rows matching the request's
// criteria in the requested order. recent=true without sort_by means
// newest first.
func (s *Server) queryTransactions(r *http.Request) ([]core.Transaction, error) {
	q := r.URL.Query()
	crit, err := filter.ParseTransactionCriteria(q)
	if err != nil {
		return nil, err
	}
	txns, err := s.store.Transactions(r.Context(), companyID(r))
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	matched := filter.Transactions(crit).Apply(txns)

	sortBy := q.Get("sort_by")
	if sortBy == "" && queryBool(q, "recent") {
		sortBy = "-date"
	}
	if err := filter.SortTransactions(matched, sortBy); err != nil {
		return nil, err
	}
	return matched, nil
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	matched, err := s.queryTransactions(r)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	size := filter.PageSize(r.URL.Query(), defaultPageSize, maxPageSize)
	writeJSON(w, http.StatusOK, newList(filter.Head(matched, size), len(matched)))
}

func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.now()
	crit, err := filter.ParseInvoiceCriteria(q, now)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	invoices, err := s.store.Invoices(r.Context(), companyID(r))
	if err != nil {
		s.fail(w, r, log.OpList, fmt.Errorf("load invoices: %w", err))
		return
	}
	matched := filter.Invoices(crit).Apply(invoices)
	for i := range matched {
		matched[i].Status = matched[i].EffectiveStatus(now)
	}
	size := filter.PageSize(q, defaultPageSize, maxPageSize)
	writeJSON(w, http.StatusOK, newList(filter.Head(matched, size), len(matched)))
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := s.store.Items(r.Context(), companyID(r))
	if err != nil {
		s.fail(w, r, log.OpList, fmt.Errorf("load items: %w", err))
		return
	}
	matched := filter.Items(filter.ParseItemCriteria(q)).Apply(items)
	size := filter.PageSize(q, defaultPageSize, maxPageSize)
	writeJSON(w, http.StatusOK, newList(filter.Head(matched, size), len(matched)))
}

func (s *Server) handleCustomerStatement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := queryDate(q, "from")
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	to, err := queryDate(q, "to")
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	if !from.IsEmpty() && !to.IsEmpty() && to.Before(from.Time) {
		s.fail(w, r, log.OpRead, fmt.Errorf("%w: to before from", filter.ErrBadCriteria))
		return
	}
	st, err := s.ledger.CustomerStatement(r.Context(), companyID(r), pathParam(r, "customerID"), from, to)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
