// Package baseline implements the Baseline Builder:
// aggregating historical samples into percentile/stddev baselines and
// atomically superseding the prior active baseline.
package baseline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ftahirops/queryguard/internal/errs"
	"github.com/ftahirops/queryguard/internal/mathutil"
	"github.com/ftahirops/queryguard/model"
)

// DefaultMinSamples is the minimum sample count required before a
// baseline may be built.
const DefaultMinSamples = 10

// SampleReader is the subset of collect.SampleStore the builder needs.
type SampleReader interface {
	GetInWindow(ctx context.Context, fingerprintID string, target *model.Target, since, until time.Time) ([]model.Sample, error)
}

// Repo is the subset of BaselineRepo the builder needs: atomic
// supersession of the prior active baseline plus the new insert.
type Repo interface {
	GetActive(ctx context.Context, fingerprintID string) (*model.Baseline, error)
	Save(ctx context.Context, baseline model.Baseline) error
}

// Builder is the Baseline Builder.
type Builder struct {
	Samples    SampleReader
	Repo       Repo
	MinSamples int
}

// NewBuilder returns a Builder with MinSamples defaulted when zero.
func NewBuilder(samples SampleReader, repo Repo) *Builder {
	return &Builder{Samples: samples, Repo: repo, MinSamples: DefaultMinSamples}
}

// Build aggregates samples in [now-lookback, now) for fingerprintID
// into a new active Baseline, atomically superseding any prior active
// one. Returns errs.StoreError wrapping a descriptive reason when the
// window doesn't have enough samples to build from.
func (b *Builder) Build(ctx context.Context, fingerprintID string, lookback time.Duration) (*model.Baseline, error) {
	minSamples := b.MinSamples
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}

	now := time.Now().UTC()
	windowStart := now.Add(-lookback)
	samples, err := b.Samples.GetInWindow(ctx, fingerprintID, nil, windowStart, now)
	if err != nil {
		return nil, &errs.StoreError{Op: "baseline sample read", Cause: err}
	}
	if len(samples) < minSamples {
		return nil, &errs.StoreError{Op: "baseline build", Cause: fmt.Errorf("only %d samples in window, need %d", len(samples), minSamples)}
	}

	durations := make([]float64, len(samples))
	cpus := make([]float64, len(samples))
	reads := make([]float64, len(samples))
	var totalExec int64
	execByPlan := make(map[string]int64)
	lastSeenByPlan := make(map[string]time.Time)
	planHashByKey := make(map[string][]byte)

	for i, s := range samples {
		durations[i] = s.AvgDurationUs
		cpus[i] = s.AvgCPUUs
		reads[i] = s.AvgLogicalReads
		totalExec += s.ExecCountDelta

		key := string(s.PlanHash)
		execByPlan[key] += s.ExecCountDelta
		planHashByKey[key] = s.PlanHash
		if s.SampledAtUTC.After(lastSeenByPlan[key]) {
			lastSeenByPlan[key] = s.SampledAtUTC
		}
	}

	typicalPlan := typicalPlanHash(execByPlan, lastSeenByPlan, planHashByKey)

	newBaseline := model.Baseline{
		ID:               uuid.NewString(),
		FingerprintID:    fingerprintID,
		WindowStartUTC:   windowStart,
		WindowEndUTC:     now,
		SampleCount:      len(samples),
		TotalExecutions:  totalExec,
		MedianDurationUs: mathutil.Median(durations),
		P95DurationUs:    mathutil.Percentile(durations, 95),
		P99DurationUs:    mathutil.Percentile(durations, 99),
		MedianCPUUs:      mathutil.Median(cpus),
		P95CPUUs:         mathutil.Percentile(cpus, 95),
		MedianLogicalRds: mathutil.Median(reads),
		P95LogicalRds:    mathutil.Percentile(reads, 95),
		DurationStdDev:   mathutil.StdDev(durations),
		TypicalPlanHash:  typicalPlan,
		IsActive:         true,
	}

	// Atomic supersede-then-insert: Repo.Save is the single write
	// collaborators use to guarantee at most one active baseline per
	// fingerprint ever exists.
	if err := b.Repo.Save(ctx, newBaseline); err != nil {
		return nil, &errs.StoreError{Op: "baseline save", Cause: err}
	}
	return &newBaseline, nil
}

// typicalPlanHash returns the plan hash with the largest share of
// exec_count_delta in the window, ties broken by most recent.
func typicalPlanHash(execByPlan map[string]int64, lastSeen map[string]time.Time, hashes map[string][]byte) []byte {
	var bestKey string
	var bestExec int64 = -1
	for key, exec := range execByPlan {
		if key == "" {
			continue
		}
		switch {
		case exec > bestExec:
			bestExec, bestKey = exec, key
		case exec == bestExec && lastSeen[key].After(lastSeen[bestKey]):
			bestKey = key
		}
	}
	if bestKey == "" {
		return nil
	}
	return hashes[bestKey]
}
