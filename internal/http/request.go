package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/filter"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

var errBadBody = errors.New("malformed request body")

// decodeJSON reads one JSON value into dst. An empty body leaves dst
// untouched when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errBadBody)
	}
	return nil
}

// pathParam returns a path segment with any percent-encoding removed.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

// location is the URL of a resource created under the request path.
func location(r *http.Request, id string) string {
	return strings.TrimSuffix(r.URL.Path, "/") + "/" + url.PathEscape(id)
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(v url.Values, key string) (core.Date, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %s=%q", filter.ErrBadCriteria, key, s)
	}
	return d, nil
}

func queryBool(v url.Values, key string) bool {
	switch strings.ToLower(strings.TrimSpace(v.Get(key))) {
	case "1", "true", "yes":
		return true
	}
	return false
}
