package http

import (
	"net/http"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/documents"
	"ledgerdesk/internal/log"
)

func (s *Server) handlePreviewDocument(w http.ResponseWriter, r *http.Request) {
	var d documents.Draft
	if err := decodeJSON(w, r, &d, false); err != nil {
		s.fail(w, r, log.OpValidate, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ledger.Preview(d))
}

func (s *Server) handlePostDocument(w http.ResponseWriter, r *http.Request) {
	var d documents.Draft
	if err := decodeJSON(w, r, &d, false); err != nil {
		s.fail(w, r, log.OpPost, err)
		return
	}
	company := companyID(r)
	doc, err := s.ledger.Post(r.Context(), company, d)
	if err != nil {
		s.fail(w, r, log.OpPost, err)
		return
	}
	s.invalidateReports(company)
	w.Header().Set("Location", location(r, doc.ID))
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ledger.Document(r.Context(), companyID(r), pathParam(r, "documentID"))
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type billPaymentRequest struct {
	BillIDs []string `json:"bill_ids"`
	// Account and Date fill the returned bill payment drafts.
	Account string `json:"account"`
	Date    string `json:"date"`
}

type billPaymentResponse struct {
	documents.BillPaymentPreview
	Drafts []documents.Draft `json:"drafts"`
}

func (s *Server) handleBillPaymentPreview(w http.ResponseWriter, r *http.Request) {
	var req billPaymentRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, log.OpValidate, err)
		return
	}
	p, err := s.ledger.PreviewBillPayment(r.Context(), companyID(r), req.BillIDs)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	date := req.Date
	if date == "" {
		date = core.DateOf(s.now()).String()
	}
	writeJSON(w, http.StatusOK, billPaymentResponse{BillPaymentPreview: p, Drafts: p.Drafts(req.Account, date)})
}

type creditRequest struct {
	Credit     core.Money `json:"credit"`
	InvoiceIDs []string   `json:"invoice_ids"`
}

func (s *Server) handleCreditPreview(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, log.OpValidate, err)
		return
	}
	p, err := s.ledger.PreviewCredit(r.Context(), companyID(r), req.Credit, req.InvoiceIDs)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type creditApplied struct {
	Preview  documents.CreditPreview `json:"preview"`
	Invoices []core.Invoice          `json:"invoices"`
}

type applyCreditRequest struct {
	CreditMemoID string   `json:"credit_memo_id"`
	InvoiceIDs   []string `json:"invoice_ids"`
}

func (s *Server) handleApplyCredit(w http.ResponseWriter, r *http.Request) {
	var req applyCreditRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	company := companyID(r)
	p, invoices, err := s.ledger.ApplyCredit(r.Context(), company, req.CreditMemoID, req.InvoiceIDs)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	if invoices == nil {
		invoices = []core.Invoice{}
	}
	s.invalidateReports(company)
	writeJSON(w, http.StatusOK, creditApplied{Preview: p, Invoices: invoices})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var st core.Statement
	if err := decodeJSON(w, r, &st, false); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	saved, err := s.ledger.Reconcile(r.Context(), companyID(r), st)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	w.Header().Set("Location", location(r, saved.ID))
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleGetReconciliation(w http.ResponseWriter, r *http.Request) {
	saved, err := s.ledger.Reconciliation(r.Context(), companyID(r), pathParam(r, "reconciliationID"))
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
