package http

import (
	"net/http"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/employee"
	"ledgerdesk/internal/log"
)

// Setup session bodies are flat field maps, e.g. {"first_name": "Ada"}.

func (s *Server) handleStartSetup(w http.ResponseWriter, r *http.Request) {
	var values map[employee.Field]string
	if err := decodeJSON(w, r, &values, true); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	v, err := s.sessions.Start(r.Context(), companyID(r), values)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	w.Header().Set("Location", location(r, v.ID))
	writeJSON(w, http.StatusCreated, v)
}

func sessionID(r *http.Request) string { return pathParam(r, "sessionID") }

func (s *Server) handleGetSetup(w http.ResponseWriter, r *http.Request) {
	v, err := s.sessions.Get(r.Context(), companyID(r), sessionID(r))
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePatchSetup(w http.ResponseWriter, r *http.Request) {
	var values map[employee.Field]string
	if err := decodeJSON(w, r, &values, false); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	v, err := s.sessions.Patch(r.Context(), companyID(r), sessionID(r), values)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleSetupNext answers 422 with the step's field errors when the current
// step does not validate; the session stays on that step.
func (s *Server) handleSetupNext(w http.ResponseWriter, r *http.Request) {
	v, err := s.sessions.Next(r.Context(), companyID(r), sessionID(r))
	if err != nil {
		s.fail(w, r, log.OpValidate, err)
		return
	}
	if len(v.Errors) > 0 {
		writeFieldErrors(w, v.Errors)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleSetupPrevious(w http.ResponseWriter, r *http.Request) {
	v, err := s.sessions.Previous(r.Context(), companyID(r), sessionID(r))
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type jumpRequest struct {
	Step *int `json:"step"`
}

func (s *Server) handleSetupJump(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	if req.Step == nil {
		writeFieldErrors(w, core.FieldErrors{"step": "Step is required"})
		return
	}
	v, err := s.sessions.Jump(r.Context(), companyID(r), sessionID(r), *req.Step)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleSetupSubmit(w http.ResponseWriter, r *http.Request) {
	e, err := s.sessions.Submit(r.Context(), companyID(r), sessionID(r))
	if err != nil {
		s.fail(w, r, log.OpSubmit, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}
