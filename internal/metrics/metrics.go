// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ledgerdesk"

// ─── HTTP ───────────────────────────────────────────────────────────────────

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by route pattern, method and status code.",
}, []string{"route", "method", "code"})

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route pattern.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route"})

var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Requests rejected by the per-IP rate limiter.",
})

// ─── Ledger ─────────────────────────────────────────────────────────────────

var DocumentsPosted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "documents_posted_total",
	Help:      "Transaction forms saved, by kind.",
}, []string{"kind"})

var ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "validation_failures_total",
	Help:      "Rejected submissions by form.",
}, []string{"form"})

// ─── Wizard ─────────────────────────────────────────────────────────────────

var WizardSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "wizard",
	Name:      "sessions",
	Help:      "Employee setup sessions currently held.",
})

var WizardSubmitted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "wizard",
	Name:      "submitted_total",
	Help:      "Employee setup wizards submitted successfully.",
})

var WizardEvicted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "wizard",
	Name:      "sessions_evicted_total",
	Help:      "Wizard sessions dropped before submission, by reason.",
}, []string{"reason"})

// ─── Dashboard ──────────────────────────────────────────────────────────────

var DashboardLoads = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "dashboard",
	Name:      "loads_total",
	Help:      "Dashboard batch loads by outcome (ok, error).",
}, []string{"outcome"})

var DashboardStale = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "dashboard",
	Name:      "stale_batches_total",
	Help:      "Dashboard batches discarded because a newer refresh superseded them.",
})

var ReportCache = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "dashboard",
	Name:      "report_cache_total",
	Help:      "Dashboard report cache lookups by result (hit, miss).",
}, []string{"result"})

// ─── Pipeline ───────────────────────────────────────────────────────────────

var MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "amqp",
	Name:      "published_total",
	Help:      "Messages published by type and outcome.",
}, []string{"type", "outcome"})

var JournalRows = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "worker",
	Name:      "journal_rows_total",
	Help:      "Rows appended to the journal.",
})

var ExportFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "worker",
	Name:      "export_failures_total",
	Help:      "Documents whose journal export failed.",
})

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// ObserveHTTP records one finished request.
func ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
