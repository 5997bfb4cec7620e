// Package http exposes the ledger as a JSON REST API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ledgerdesk/internal/adapters"
	"ledgerdesk/internal/cache"
	"ledgerdesk/internal/dashboard"
	"ledgerdesk/internal/log"
	"ledgerdesk/internal/metrics"
	"ledgerdesk/internal/middleware/ratelimit"
	"ledgerdesk/internal/middleware/security"
	"ledgerdesk/internal/middleware/trace"
	"ledgerdesk/internal/services"
	"ledgerdesk/internal/storage"
)

// Deps are the collaborators behind the handlers.
type Deps struct {
	Ledger   *services.LedgerService
	Sessions *services.EmployeeSessions
	Store    storage.Store
	// Source replaces the dashboard data source. By default the slices are
	// computed from Store.
	Source dashboard.Source
	Logger *log.Logger
}

// Options tune the server. Zero values take the defaults.
type Options struct {
	// ReportCacheTTL is how long a dashboard report is reused; zero
	// disables the cache.
	ReportCacheTTL     time.Duration
	ReportCacheSize    int
	RateLimitPerMinute int
	// TrustedProxies are CIDRs whose forwarding headers are believed.
	TrustedProxies []string
	// CleanupInterval is how often expired cache entries are purged.
	CleanupInterval time.Duration
	Now             func() time.Time
}

// Server is the REST API over the ledger.
type Server struct {
	http.Server

	ledger   *services.LedgerService
	sessions *services.EmployeeSessions
	store    storage.Store
	source   dashboard.Source
	reports  *reportCache
	agg      *dashboard.Aggregator

	caches   *cache.Manager
	limiter  *ratelimit.Limiter
	detector *security.Detector

	logger *log.Logger
	events *log.StructuredLogger
	now    func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
// Its cleanup goroutines stop on Shutdown.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReportCacheSize <= 0 {
		opts.ReportCacheSize = 256
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}

	s := &Server{
		ledger:   deps.Ledger,
		sessions: deps.Sessions,
		store:    deps.Store,
		detector: security.NewDetector(),
		logger:   logger.WithComponent(log.ComponentHTTP),
		events:   log.NewStructuredLogger(logger),
		now:      opts.Now,
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s.source = deps.Source
	if s.source == nil {
		s.source = adapters.NewDashboardSource(deps.Store, opts.Now)
	}
	s.caches = cache.NewManager(func(n int) {
		s.logger.Debug("Expired cache entries purged", "entries", n)
	})
	if opts.ReportCacheTTL > 0 {
		s.reports = &reportCache{
			Source:  s.source,
			reports: cache.NewLRUCache[dashboard.Report](opts.ReportCacheSize, opts.ReportCacheTTL, cache.Options{Now: opts.Now}),
		}
		s.source = s.reports
		s.caches.Register(s.reports.reports)
	}
	if deps.Sessions != nil {
		s.caches.Register(deps.Sessions.Cache())
	}
	s.caches.StartCleanup(opts.CleanupInterval)

	s.agg = dashboard.NewAggregator(s.source, dashboard.WithClock(opts.Now))
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: opts.RateLimitPerMinute,
		Now:               opts.Now,
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware(s.logger))
	r.Use(trace.NewMiddleware(s.logger, s.detector.ExtractClientIP).Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found", log.ErrorTypeNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", log.ErrorTypeValidation)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/companies/{companyID}", func(r chi.Router) {
		r.Use(s.limitMutations)

		r.Get("/reports/dashboard", s.handleReport)
		r.Get("/reports/aging.xlsx", s.handleAgingExport)
		r.Get("/reports/transactions.xlsx", s.handleTransactionsExport)

		r.Get("/transactions", s.handleTransactions)
		r.Get("/transactions/", s.handleTransactions)
		r.Get("/invoices", s.handleInvoices)
		r.Get("/invoices/", s.handleInvoices)
		r.Get("/items", s.handleItems)
		r.Get("/items/", s.handleItems)
		r.Get("/customers/{customerID}/statement", s.handleCustomerStatement)

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/dashboard/alerts", s.handleAlerts)
		r.Put("/dashboard/alerts/{alertID}", s.handleUpdateAlert)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", s.handlePostDocument)
			r.Post("/preview", s.handlePreviewDocument)
			r.Get("/{documentID}", s.handleGetDocument)
		})
		r.Post("/bills/payment-preview", s.handleBillPaymentPreview)
		r.Post("/credit-memos/apply-preview", s.handleCreditPreview)
		r.Post("/credit-memos/apply", s.handleApplyCredit)
		r.Post("/reconciliations", s.handleReconcile)
		r.Get("/reconciliations/{reconciliationID}", s.handleGetReconciliation)

		r.Route("/employee-setup", func(r chi.Router) {
			r.Post("/", s.handleStartSetup)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetSetup)
				r.Patch("/", s.handlePatchSetup)
				r.Post("/next", s.handleSetupNext)
				r.Post("/previous", s.handleSetupPrevious)
				r.Post("/jump", s.handleSetupJump)
				r.Post("/submit", s.handleSetupSubmit)
			})
		})
	})
	return r
}

// limitMutations applies the per-client rate limit to every method that
// changes state.
func (s *Server) limitMutations(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", log.ErrorTypeRateLimit)
	})(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

func companyID(r *http.Request) string { return chi.URLParam(r, "companyID") }

// invalidateReports drops cached reports after a write changed the ledger.
func (s *Server) invalidateReports(companyID string) {
	if s.reports != nil {
		s.reports.invalidate(companyID)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown stops accepting requests, waits for in-flight ones and stops the
// background cleanup. Closing the services is left to the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		if err := s.Server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("shutdown http server: %w", err)
		}
	})
	return shutdownErr
}
