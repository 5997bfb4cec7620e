// Package trace logs and measures every HTTP request.
package trace

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"ledgerdesk/internal/log"
	"ledgerdesk/internal/metrics"
)

// Middleware handles request tracing and logging
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *log.Logger
	now       func() time.Time

	total    int64
	lastMics int64
}

// Metrics is a point-in-time view of the traced traffic.
type Metrics struct {
	TotalRequests int64
	// LastResponseTime is the duration of the most recent request in
	// microseconds.
	LastResponseTime int64
}

// NewMiddleware creates a trace middleware. extractIP may be nil.
func NewMiddleware(logger *log.Logger, extractIP func(*http.Request) string) *Middleware {
	return &Middleware{
		extractIP: extractIP,
		logger:    logger,
		now:       time.Now,
	}
}

// Middleware returns HTTP middleware for request tracing. It expects chi's
// RequestID middleware to run first.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := m.now()
		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		logger := m.logger
		if id := chimw.GetReqID(r.Context()); id != "" {
			logger = logger.With(log.FieldRequestID, id)
		}
		ctx := log.NewContext(r.Context(), logger)
		r = r.WithContext(ctx)

		logger.WithComponent(log.ComponentTrace).DebugContext(ctx, "HTTP request started",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		elapsed := m.now().Sub(start)
		atomic.AddInt64(&m.total, 1)
		atomic.StoreInt64(&m.lastMics, elapsed.Microseconds())

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		metrics.ObserveHTTP(route, r.Method, rw.statusCode, elapsed)
		log.NewStructuredLogger(logger).LogHTTPEnd(ctx, r, rw.statusCode, elapsed.Milliseconds(), clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:    atomic.LoadInt64(&m.total),
		LastResponseTime: atomic.LoadInt64(&m.lastMics),
	}
}
