package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/ftahirops/queryguard/model"
)

type fakeSummarizer struct{}

func (fakeSummarizer) Summary(ctx context.Context, since, until time.Time) (int, int, int, map[model.Severity]int, error) {
	return 3, 1, 2, map[model.Severity]int{model.SeverityHigh: 2, model.SeverityLow: 4}, nil
}

type fakeAuditCounter struct{}

func (fakeAuditCounter) CountsInWindow(ctx context.Context, since, until time.Time) (int, int, error) {
	return 5, 2, nil
}

func TestBuildDailySummary(t *testing.T) {
	hotspots := []model.Hotspot{{FingerprintID: "fp1", Rank: 1}}
	now := time.Date(2025, 6, 10, 7, 0, 0, 0, time.UTC)

	summary, err := BuildDailySummary(context.Background(), fakeSummarizer{}, fakeAuditCounter{}, hotspots, now)
	if err != nil {
		t.Fatalf("BuildDailySummary: %v", err)
	}
	if summary.NewCount != 3 || summary.AcknowledgedCount != 1 || summary.ResolvedCount != 2 {
		t.Errorf("counts = (%d,%d,%d), want (3,1,2)", summary.NewCount, summary.AcknowledgedCount, summary.ResolvedCount)
	}
	if summary.RemediationsExecuted != 5 || summary.RemediationsRefused != 2 {
		t.Errorf("remediations = (%d,%d), want (5,2)", summary.RemediationsExecuted, summary.RemediationsRefused)
	}
	if summary.WindowEndUTC.Sub(summary.WindowStartUTC) != 24*time.Hour {
		t.Error("summary window must span 24 hours")
	}
	if len(summary.TopHotspots) != 1 {
		t.Error("hotspots not carried through")
	}
}

func TestLatestHotspotsTruncates(t *testing.T) {
	var h LatestHotspots
	h.Set([]model.Hotspot{{Rank: 1}, {Rank: 2}, {Rank: 3}})
	if got := h.Get(2); len(got) != 2 || got[1].Rank != 2 {
		t.Fatalf("Get(2) = %v", got)
	}
	if got := h.Get(0); len(got) != 3 {
		t.Fatalf("Get(0) should return everything, got %d", len(got))
	}
}

func TestIncidentRecorderDedupesPerFingerprint(t *testing.T) {
	dir := t.TempDir()
	rec := NewIncidentRecorder(dir)

	critical := model.RegressionEvent{
		FingerprintID: "fp1",
		Target:        model.Target{InstanceName: "sql01", DatabaseName: "orders"},
		DetectedAtUTC: time.Now().UTC(),
		Type:          model.RegressionDuration,
		Severity:      model.SeverityCritical,
		ChangePercent: 950,
	}
	low := critical
	low.FingerprintID = "fp2"
	low.Severity = model.SeverityLow

	rec.Observe([]model.RegressionEvent{critical, low})
	rec.Observe([]model.RegressionEvent{critical}) // second critical for same fingerprint: deduped

	records, err := ReadIncidentLog(rec.path)
	if err != nil {
		t.Fatalf("ReadIncidentLog: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("incident records = %d, want 1 (critical only, deduped)", len(records))
	}
	if records[0].FingerprintID != "fp1" {
		t.Errorf("recorded fingerprint = %s, want fp1", records[0].FingerprintID)
	}

	// After Forget, a fresh critical records again.
	rec.Forget("fp1")
	rec.Observe([]model.RegressionEvent{critical})
	records, _ = ReadIncidentLog(rec.path)
	if len(records) != 2 {
		t.Fatalf("incident records after Forget = %d, want 2", len(records))
	}
}
