package http

import (
	"context"

	"ledgerdesk/internal/cache"
	"ledgerdesk/internal/dashboard"
	"ledgerdesk/internal/metrics"
)

// reportCache serves dashboard reports from a short-lived LRU and passes
// the other slices through. Postings drop the company's entries.
type reportCache struct {
	dashboard.Source
	reports *cache.LRUCache[dashboard.Report]
}

func reportKey(companyID, dateRange string) string { return companyID + "/" + dateRange }

func (c *reportCache) Report(ctx context.Context, companyID, dateRange string) (dashboard.Report, error) {
	key := reportKey(companyID, dateRange)
	if rep, ok := c.reports.Get(key); ok {
		metrics.ReportCache.WithLabelValues("hit").Inc()
		return rep, nil
	}
	metrics.ReportCache.WithLabelValues("miss").Inc()
	rep, err := c.Source.Report(ctx, companyID, dateRange)
	if err != nil {
		return rep, err
	}
	c.reports.Set(key, rep)
	return rep, nil
}

func (c *reportCache) invalidate(companyID string) int {
	return c.reports.DeletePrefix(companyID + "/")
}
