package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/ftahirops/queryguard/alert"
	"github.com/ftahirops/queryguard/internal/errs"
	"github.com/ftahirops/queryguard/model"
)

// EventSummarizer is the EventRepo.Summary contract backing the
// daily-summary job.
type EventSummarizer interface {
	Summary(ctx context.Context, since, until time.Time) (newCount, ackCount, resolvedCount int, bySeverity map[model.Severity]int, err error)
}

// AuditCounter counts remediation outcomes in a window for the daily
// summary.
type AuditCounter interface {
	CountsInWindow(ctx context.Context, since, until time.Time) (executed, refused int, err error)
}

// BuildDailySummary assembles the scheduled daily-summary payload:
// event counts over the last 24 hours by status and severity, the top
// hotspots from the most recent analysis pass, and remediation
// executed/refused counts.
func BuildDailySummary(ctx context.Context, events EventSummarizer, audits AuditCounter, topHotspots []model.Hotspot, now time.Time) (alert.DailySummary, error) {
	since := now.Add(-24 * time.Hour)
	summary := alert.DailySummary{
		WindowStartUTC: since,
		WindowEndUTC:   now,
		TopHotspots:    topHotspots,
	}

	newCount, ackCount, resolvedCount, bySeverity, err := events.Summary(ctx, since, now)
	if err != nil {
		return summary, &errs.StoreError{Op: "event summary", Cause: err}
	}
	summary.NewCount = newCount
	summary.AcknowledgedCount = ackCount
	summary.ResolvedCount = resolvedCount
	summary.BySeverity = bySeverity

	if audits != nil {
		executed, refused, err := audits.CountsInWindow(ctx, since, now)
		if err != nil {
			return summary, &errs.StoreError{Op: "audit counts", Cause: err}
		}
		summary.RemediationsExecuted = executed
		summary.RemediationsRefused = refused
	}
	return summary, nil
}

// LatestHotspots remembers the hotspot ranking of the most recent
// analysis run so the daily summary can report it without re-reading
// a day of samples. The analysis job writes, the summary job reads.
type LatestHotspots struct {
	mu       sync.Mutex
	hotspots []model.Hotspot
}

// Set replaces the held ranking.
func (h *LatestHotspots) Set(hotspots []model.Hotspot) {
	h.mu.Lock()
	h.hotspots = hotspots
	h.mu.Unlock()
}

// Get returns the most recent ranking, truncated to n entries.
func (h *LatestHotspots) Get(n int) []model.Hotspot {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 || n > len(h.hotspots) {
		n = len(h.hotspots)
	}
	out := make([]model.Hotspot, n)
	copy(out, h.hotspots[:n])
	return out
}
