// Package analysis drives baseline comparison and hotspot ranking per
// target, and owns the RegressionEvent lifecycle state machine.
package analysis

import (
	"context"
	"time"

	"github.com/ftahirops/queryguard/detect"
	"github.com/ftahirops/queryguard/internal/errs"
	"github.com/ftahirops/queryguard/internal/logx"
	"github.com/ftahirops/queryguard/internal/mathutil"
	"github.com/ftahirops/queryguard/model"
)

var log = logx.New("analysis")

// EventRepo is the subset of the event store the orchestrator
// and lifecycle operations need.
type EventRepo interface {
	Save(ctx context.Context, event model.RegressionEvent) error
	GetActiveByFingerprint(ctx context.Context, fingerprintID string) ([]model.RegressionEvent, error)
	Acknowledge(ctx context.Context, id, by, notes string) error
	Resolve(ctx context.Context, id, by, notes string) error
	Dismiss(ctx context.Context, id, by, notes string) error
}

// BaselineReader is the subset of BaselineRepo the orchestrator needs.
type BaselineReader interface {
	GetActive(ctx context.Context, fingerprintID string) (*model.Baseline, error)
}

// SampleReader is the subset of SampleStore the orchestrator needs.
type SampleReader interface {
	GetInWindow(ctx context.Context, fingerprintID string, target *model.Target, since, until time.Time) ([]model.Sample, error)
}

// FingerprintLister returns fingerprints with at least one sample in
// the recent window for a target.
type FingerprintLister interface {
	ActiveFingerprints(ctx context.Context, target model.Target, since, until time.Time) ([]string, error)
}

// Orchestrator is the Analysis Orchestrator: drives baseline
// comparison (detect.Detect) and hotspot ranking (detect.RankHotspots)
// for each target, honoring event deduplication.
type Orchestrator struct {
	Fingerprints FingerprintLister
	Baselines    BaselineReader
	Samples      SampleReader
	Events       EventRepo
	Rules        detect.Rules

	HotspotMetric model.HotspotMetric
	HotspotTopN   int

	// Incidents, when set, receives newly created events so critical
	// ones leave a forensic record (see IncidentRecorder).
	Incidents *IncidentRecorder
}

// NewOrchestrator returns an Orchestrator with default rules and a
// duration-based top-10 hotspot ranking when the caller leaves those
// fields zero.
func NewOrchestrator(fp FingerprintLister, baselines BaselineReader, samples SampleReader, events EventRepo) *Orchestrator {
	return &Orchestrator{
		Fingerprints:  fp,
		Baselines:     baselines,
		Samples:       samples,
		Events:        events,
		Rules:         detect.DefaultRules(),
		HotspotMetric: model.HotspotDuration,
		HotspotTopN:   10,
	}
}

// RunSummary is the outcome of one analysis tick over a set of targets.
type RunSummary struct {
	TargetsAnalyzed   int
	FingerprintsSeen  int
	EventsCreated     int
	EventsUpdated     int
	// Events holds the newly created events of this run, in detection
	// order, for downstream alert routing and remediation.
	Events            []model.RegressionEvent
	Hotspots          []model.Hotspot
	PerTargetFailures map[string]error
}

// Run analyzes every target over [now-window, now): for each active
// fingerprint it loads the active baseline, aggregates recent samples,
// runs the Regression Detector, and persists new events honoring
// dedup; it also ranks hotspots across every fingerprint/target pair
// seen in the same pass.
func (o *Orchestrator) Run(ctx context.Context, targets []model.Target, window time.Duration) RunSummary {
	summary := RunSummary{PerTargetFailures: map[string]error{}}
	now := time.Now().UTC()
	since := now.Add(-window)

	var aggregates []detect.RecentAggregate

	for _, target := range targets {
		fingerprintIDs, err := o.Fingerprints.ActiveFingerprints(ctx, target, since, now)
		if err != nil {
			summary.PerTargetFailures[target.Key()] = &errs.StoreError{Op: "active fingerprints", Cause: err}
			continue
		}
		summary.TargetsAnalyzed++

		for _, fingerprintID := range fingerprintIDs {
			summary.FingerprintsSeen++

			samples, err := o.Samples.GetInWindow(ctx, fingerprintID, &target, since, now)
			if err != nil {
				summary.PerTargetFailures[target.Key()] = &errs.StoreError{Op: "sample window", Cause: err}
				continue
			}
			if len(samples) == 0 {
				continue
			}

			recent := aggregate(samples)
			aggregates = append(aggregates, detect.RecentAggregate{
				FingerprintID: fingerprintID,
				Target:        target,
				ExecCount:     recent.TotalExecutions,
				TotalValue:    hotspotValue(o.HotspotMetric, recent, samples),
			})

			baselineRec, err := o.Baselines.GetActive(ctx, fingerprintID)
			if err != nil {
				summary.PerTargetFailures[target.Key()] = &errs.StoreError{Op: "baseline lookup", Cause: err}
				continue
			}
			if baselineRec == nil {
				continue // no baseline yet; nothing to compare against
			}

			events := detect.Detect(*baselineRec, recent, o.Rules, fingerprintID, target, now)
			for _, evt := range events {
				created, err := o.persistDeduplicated(ctx, evt)
				if err != nil {
					summary.PerTargetFailures[target.Key()] = err
					continue
				}
				if created {
					summary.EventsCreated++
					summary.Events = append(summary.Events, evt)
					if o.Incidents != nil {
						o.Incidents.Observe([]model.RegressionEvent{evt})
					}
				} else {
					summary.EventsUpdated++
				}
			}
		}
	}

	summary.Hotspots = detect.RankHotspots(aggregates, o.HotspotMetric, window.String(), o.HotspotTopN)
	return summary
}

// persistDeduplicated checks for an existing open event of the same
// (fingerprint_id, type) before creating a new one; if found, it
// updates current_value/severity only when severity increased.
func (o *Orchestrator) persistDeduplicated(ctx context.Context, evt model.RegressionEvent) (created bool, err error) {
	existing, err := o.Events.GetActiveByFingerprint(ctx, evt.FingerprintID)
	if err != nil {
		return false, &errs.StoreError{Op: "active event lookup", Cause: err}
	}
	for _, e := range existing {
		if e.Type != evt.Type {
			continue
		}
		if e.Status != model.StatusNew && e.Status != model.StatusAcknowledged {
			continue
		}
		if evt.Severity > e.Severity {
			e.CurrentValue = evt.CurrentValue
			e.ChangePercent = evt.ChangePercent
			e.Severity = evt.Severity
			if err := o.Events.Save(ctx, e); err != nil {
				return false, &errs.StoreError{Op: "event update", Cause: err}
			}
			log.Info("regression event severity escalated id=%s type=%s severity=%s", e.ID, e.Type, e.Severity)
		}
		return false, nil
	}

	if err := o.Events.Save(ctx, evt); err != nil {
		return false, &errs.StoreError{Op: "event create", Cause: err}
	}
	log.Info("regression event created fingerprint=%s type=%s severity=%s", evt.FingerprintID, evt.Type, evt.Severity)
	return true, nil
}

// aggregate reduces a fingerprint's recent samples into the
// AggregatedRecent shape the detector compares against a baseline.
func aggregate(samples []model.Sample) detect.AggregatedRecent {
	durations := make([]float64, len(samples))
	cpus := make([]float64, len(samples))
	var totalExec int64
	var totalReads float64
	latest := samples[0]

	for i, s := range samples {
		durations[i] = s.AvgDurationUs
		cpus[i] = s.AvgCPUUs
		totalExec += s.ExecCountDelta
		totalReads += s.AvgLogicalReads
		if s.SampledAtUTC.After(latest.SampledAtUTC) {
			latest = s
		}
	}

	return detect.AggregatedRecent{
		SampleCount:     len(samples),
		TotalExecutions: totalExec,
		P95DurationUs:   mathutil.Percentile(durations, 95),
		P95CPUUs:        mathutil.Percentile(cpus, 95),
		AvgLogicalReads: totalReads / float64(len(samples)),
		CurrentPlanHash: latest.PlanHash,
	}
}

// hotspotValue picks the total resource figure a given ranking metric
// is computed on.
func hotspotValue(metric model.HotspotMetric, recent detect.AggregatedRecent, samples []model.Sample) float64 {
	switch metric {
	case model.HotspotCPU:
		var total float64
		for _, s := range samples {
			total += float64(s.TotalCPUUsDelta)
		}
		return total
	case model.HotspotLogicalReads:
		var total float64
		for _, s := range samples {
			total += s.AvgLogicalReads * float64(s.ExecCountDelta)
		}
		return total
	case model.HotspotExecutions:
		return float64(recent.TotalExecutions)
	default: // model.HotspotDuration
		var total float64
		for _, s := range samples {
			total += float64(s.TotalDurationUsDelta)
		}
		return total
	}
}
