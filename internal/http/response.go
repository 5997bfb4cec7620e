package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/employee"
	"ledgerdesk/internal/filter"
	"ledgerdesk/internal/log"
	"ledgerdesk/internal/services"
	"ledgerdesk/internal/storage"
	"ledgerdesk/internal/wizard"
)

// errorBody is the shape of every error response:
// {"error": {"message": ..., "type": ...}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string           `json:"message"`
	Type    string           `json:"type"`
	Fields  core.FieldErrors `json:"fields,omitempty"`
	// Retry tells the caller the same request may succeed later.
	Retry bool `json:"retry,omitempty"`
}

// listBody wraps list results; Total counts matches before paging.
type listBody[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func newList[T any](items []T, total int) listBody[T] {
	if items == nil {
		items = []T{}
	}
	return listBody[T]{Items: items, Total: total}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, errType string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Message: message, Type: errType}})
}

func writeFieldErrors(w http.ResponseWriter, fields core.FieldErrors) {
	writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: errorDetail{
		Message: "Please correct the highlighted fields",
		Type:    log.ErrorTypeValidation,
		Fields:  fields,
	}})
}

// fail maps a service error to its response. Unexpected errors are logged
// and answered with a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var fields core.FieldErrors
	switch {
	case errors.As(err, &fields):
		writeFieldErrors(w, fields)
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, services.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error(), log.ErrorTypeNotFound)
	case errors.Is(err, storage.ErrDuplicateNumber),
		errors.Is(err, storage.ErrCreditExceeded),
		errors.Is(err, wizard.ErrAlreadySubmitted):
		writeError(w, http.StatusConflict, err.Error(), log.ErrorTypeConflict)
	case errors.Is(err, errBadBody),
		errors.Is(err, filter.ErrBadCriteria),
		errors.Is(err, core.ErrUnknownRange),
		errors.Is(err, employee.ErrUnknownField),
		errors.Is(err, wizard.ErrStepOutOfRange),
		errors.Is(err, wizard.ErrNotFinalStep):
		writeError(w, http.StatusBadRequest, err.Error(), log.ErrorTypeValidation)
	default:
		s.events.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()))
		writeError(w, http.StatusInternalServerError, "internal server error", log.ErrorTypeInternal)
	}
}
