package detect

import (
	"testing"
	"time"

	"github.com/ftahirops/queryguard/model"
)

func TestDetectDurationRegressionScenario(t *testing.T) {
	// baseline p95=1,000,000; recent p95=1,600,000;
	// threshold 50%; expect change_percent=60, severity low.
	baseline := model.Baseline{SampleCount: 20, P95DurationUs: 1_000_000}
	recent := AggregatedRecent{TotalExecutions: 10, P95DurationUs: 1_600_000}

	events := Detect(baseline, recent, DefaultRules(), "fp1", model.Target{}, time.Now())
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	evt := events[0]
	if evt.Type != model.RegressionDuration {
		t.Errorf("Type = %s, want duration", evt.Type)
	}
	if diff := evt.ChangePercent - 60; diff > 0.01 || diff < -0.01 {
		t.Errorf("ChangePercent = %v, want 60", evt.ChangePercent)
	}
	if evt.Severity != model.SeverityLow {
		t.Errorf("Severity = %s, want low", evt.Severity)
	}
}

func TestDetectNoRegressionBelowThreshold(t *testing.T) {
	baseline := model.Baseline{SampleCount: 20, P95DurationUs: 1_000_000}
	recent := AggregatedRecent{TotalExecutions: 10, P95DurationUs: 1_200_000}

	if events := Detect(baseline, recent, DefaultRules(), "fp1", model.Target{}, time.Now()); events != nil {
		t.Fatalf("expected no events below threshold, got %v", events)
	}
}

func TestDetectRefusesBelowMinimums(t *testing.T) {
	baseline := model.Baseline{SampleCount: 2, P95DurationUs: 1_000_000} // below MinimumBaselineSamples
	recent := AggregatedRecent{TotalExecutions: 100, P95DurationUs: 5_000_000}

	if events := Detect(baseline, recent, DefaultRules(), "fp1", model.Target{}, time.Now()); events != nil {
		t.Fatalf("expected no events when baseline sample count is too low, got %v", events)
	}
}

func TestDetectMultiMetricCollapses(t *testing.T) {
	baseline := model.Baseline{SampleCount: 20, P95DurationUs: 1_000_000, P95CPUUs: 500_000}
	recent := AggregatedRecent{TotalExecutions: 10, P95DurationUs: 2_000_000, P95CPUUs: 1_000_000}

	events := Detect(baseline, recent, DefaultRules(), "fp1", model.Target{}, time.Now())
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != model.RegressionMultiMetric {
		t.Errorf("Type = %s, want multi_metric", events[0].Type)
	}
}

func TestDetectPlanChangeAloneWithoutMetricRegression(t *testing.T) {
	baseline := model.Baseline{SampleCount: 20, P95DurationUs: 1_000_000, TypicalPlanHash: []byte{0x01}}
	recent := AggregatedRecent{TotalExecutions: 10, P95DurationUs: 1_000_000, CurrentPlanHash: []byte{0x02}}

	events := Detect(baseline, recent, DefaultRules(), "fp1", model.Target{}, time.Now())
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != model.RegressionPlanChange {
		t.Errorf("Type = %s, want plan_change", events[0].Type)
	}
	if !events[0].IsPlanChange {
		t.Error("IsPlanChange = false, want true")
	}
}

func TestSeverityMonotonicityWithChangePercent(t *testing.T) {
	prev := model.SeverityLow
	for _, pct := range []float64{10, 60, 150, 300, 600, 1200} {
		sev := Severity(pct, 0, 0)
		if sev < prev {
			t.Fatalf("severity decreased as change_percent increased: pct=%v sev=%v prev=%v", pct, sev, prev)
		}
		prev = sev
	}
}

func TestSeverityTakesWorseOfRatioAndImpact(t *testing.T) {
	// Ratio alone is "low" (1.2x) but impact crosses critical.
	sev := Severity(20, 2_000_000, 500_000)
	if sev != model.SeverityCritical {
		t.Errorf("Severity = %s, want critical (impact-driven)", sev)
	}
}

func TestRankHotspotsOrderingAndPercentage(t *testing.T) {
	aggs := []RecentAggregate{
		{FingerprintID: "a", ExecCount: 10, TotalValue: 100},
		{FingerprintID: "b", ExecCount: 10, TotalValue: 300},
		{FingerprintID: "c", ExecCount: 10, TotalValue: 600},
	}
	hotspots := RankHotspots(aggs, model.HotspotCPU, "1h", 2)

	if len(hotspots) != 2 {
		t.Fatalf("got %d hotspots, want top 2", len(hotspots))
	}
	if hotspots[0].FingerprintID != "c" || hotspots[0].Rank != 1 {
		t.Errorf("top hotspot = %+v, want fingerprint c rank 1", hotspots[0])
	}
	if diff := hotspots[0].PercentageOfTotal - 0.6; diff > 0.001 || diff < -0.001 {
		t.Errorf("PercentageOfTotal = %v, want 0.6", hotspots[0].PercentageOfTotal)
	}
}

func TestRankHotspotsTieBreak(t *testing.T) {
	aggs := []RecentAggregate{
		{FingerprintID: "zeta", ExecCount: 5, TotalValue: 100},
		{FingerprintID: "alpha", ExecCount: 5, TotalValue: 100},
	}
	hotspots := RankHotspots(aggs, model.HotspotCPU, "1h", 0)
	if hotspots[0].FingerprintID != "alpha" {
		t.Errorf("tie-break by fingerprint_id failed: got %s first", hotspots[0].FingerprintID)
	}
}
