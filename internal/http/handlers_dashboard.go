package http

import (
	"net/http"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/dashboard"
	"ledgerdesk/internal/log"
	"ledgerdesk/internal/metrics"
	"ledgerdesk/internal/storage"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.source.Report(r.Context(), companyID(r), r.URL.Query().Get("date_range"))
	if err != nil {
		s.fail(w, r, log.OpLoad, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.source.Alerts(r.Context(), companyID(r))
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(alerts, len(alerts)))
}

func (s *Server) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	var u storage.AlertUpdate
	if err := decodeJSON(w, r, &u, false); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	if u.Read == nil && u.Dismissed == nil {
		writeFieldErrors(w, core.FieldErrors{"alert": "Set read or dismissed"})
		return
	}
	alert, err := s.store.UpdateAlert(r.Context(), companyID(r), pathParam(r, "alertID"), u)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// handleDashboard loads every dashboard slice in one batch. Any failed
// slice fails the whole response with a retry hint.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	company := companyID(r)
	dateRange := r.URL.Query().Get("date_range")
	if _, err := core.ParseDateRange(dateRange, s.now()); err != nil {
		s.fail(w, r, log.OpLoad, err)
		return
	}

	snap, err := s.agg.Load(ctx, company, dateRange)
	if err != nil {
		metrics.DashboardLoads.WithLabelValues("error").Inc()
		log.FromContext(ctx).WarnContext(ctx, "Dashboard load failed",
			log.FieldCompanyID, company,
			log.FieldDateRange, dateRange,
			log.FieldError, err)
		w.Header().Set("Retry-After", "5")
		writeJSON(w, http.StatusBadGateway, errorBody{Error: errorDetail{
			Message: dashboard.LoadFailedMessage,
			Type:    log.ErrorTypeUpstream,
			Retry:   true,
		}})
		return
	}
	metrics.DashboardLoads.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, snap)
}
