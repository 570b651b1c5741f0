package collect

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ftahirops/queryguard/fingerprint"
	"github.com/ftahirops/queryguard/internal/errs"
	"github.com/ftahirops/queryguard/model"
)

// CollectTarget pairs a target with its cascade-resolved effective
// settings.
type CollectTarget struct {
	Target   model.Target
	Settings TargetSettings
}

// TargetResult is the per-target outcome of one collection tick.
type TargetResult struct {
	Target         model.Target
	Err            error
	RowsObserved   int
	SamplesWritten int
	Duration       time.Duration
}

// InstanceCollectionResult aggregates every database target collected
// within a single instance.
type InstanceCollectionResult struct {
	InstanceName  string
	TargetResults []TargetResult
	// InstanceErr is set when the instance itself could not be reached
	// (an instance-connect error, isolating every target under it).
	InstanceErr error
}

// CollectionRunSummary is the final per-tick result reported to the
// scheduler and CLI operator surface.
type CollectionRunSummary struct {
	StartedAtUTC     time.Time
	FinishedAtUTC    time.Time
	Instances        []InstanceCollectionResult
	TotalTargets     int
	SucceededTargets int
	FailedTargets    int
}

// OrchestratorConfig holds the failure-isolation and concurrency policy
// knobs.
type OrchestratorConfig struct {
	ContinueOnDatabaseError bool // default true
	ContinueOnInstanceError bool // default true
	Parallelism             int  // default 4
}

// Orchestrator is the Collection Orchestrator: it fans out over
// (instance, database) targets each tick, invoking StatsSource ->
// Fingerprinter -> Delta Engine -> stores with per-target isolation.
type Orchestrator struct {
	Stats       StatsSource
	Fingerprint FingerprintRepo
	Snapshots   SnapshotStore
	Samples     SampleStore
	Config      OrchestratorConfig
}

// NewOrchestrator constructs an Orchestrator with defaulted config
// fields substituted where the caller left them zero.
func NewOrchestrator(stats StatsSource, fp FingerprintRepo, snapshots SnapshotStore, samples SampleStore, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	return &Orchestrator{Stats: stats, Fingerprint: fp, Snapshots: snapshots, Samples: samples, Config: cfg}
}

// Run executes one collection tick over the given target list. The
// caller snapshots the enabled-target set before calling; targets do
// not change mid-cycle.
func (o *Orchestrator) Run(ctx context.Context, targets []CollectTarget) CollectionRunSummary {
	summary := CollectionRunSummary{StartedAtUTC: time.Now().UTC(), TotalTargets: len(targets)}

	byInstance := make(map[string][]CollectTarget)
	var order []string
	for _, t := range targets {
		if _, ok := byInstance[t.Target.InstanceName]; !ok {
			order = append(order, t.Target.InstanceName)
		}
		byInstance[t.Target.InstanceName] = append(byInstance[t.Target.InstanceName], t)
	}

	var mu sync.Mutex
	for _, instanceName := range order {
		instanceTargets := byInstance[instanceName]
		result := o.runInstance(ctx, instanceName, instanceTargets)

		mu.Lock()
		summary.Instances = append(summary.Instances, result)
		for _, tr := range result.TargetResults {
			if tr.Err != nil {
				summary.FailedTargets++
			} else {
				summary.SucceededTargets++
			}
		}
		if result.InstanceErr != nil {
			summary.FailedTargets += len(instanceTargets) - len(result.TargetResults)
		}
		mu.Unlock()

		if result.InstanceErr != nil && !o.Config.ContinueOnInstanceError {
			break
		}
	}

	summary.FinishedAtUTC = time.Now().UTC()
	return summary
}

// runInstance collects every database target belonging to one
// instance, concurrently up to the configured parallelism cap.
func (o *Orchestrator) runInstance(ctx context.Context, instanceName string, targets []CollectTarget) InstanceCollectionResult {
	result := InstanceCollectionResult{InstanceName: instanceName}

	g, gctx := errgroup.WithContext(context.Background())
	sem := make(chan struct{}, o.Config.Parallelism)
	var mu sync.Mutex

	for _, ct := range targets {
		ct := ct
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return nil
			}

			tr := o.collectOne(ctx, gctx, ct)

			mu.Lock()
			result.TargetResults = append(result.TargetResults, tr)
			mu.Unlock()

			if tr.Err != nil {
				var connectErr *errs.TargetConnectError
				if errors.As(tr.Err, &connectErr) && !o.Config.ContinueOnDatabaseError {
					return tr.Err
				}
			}
			return nil
		})
	}

	// Per-target failures never abort the cycle: Wait returns a non-nil
	// error only for a connect error when continue_on_database_error is
	// false, and that error is reported as the instance error.
	if err := g.Wait(); err != nil {
		var connectErr *errs.TargetConnectError
		if errors.As(err, &connectErr) {
			result.InstanceErr = err
		}
	}

	return result
}

// collectOne runs the C1->C2->C5->C4 pipeline for a single target
// under a bounded timeout.
func (o *Orchestrator) collectOne(parent, cycle context.Context, ct CollectTarget) TargetResult {
	start := time.Now()
	timeout := ct.Settings.CollectionTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	tr := TargetResult{Target: ct.Target}

	rows, err := o.Stats.FetchTopByCost(ctx, ct.Target, ct.Settings.TopN, ct.Settings.Lookback, OrderByCPU)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			tr.Err = &errs.TargetTimeout{Target: ct.Target.Key(), Cause: err}
		} else {
			tr.Err = &errs.TargetQueryError{Target: ct.Target.Key(), Cause: err}
		}
		tr.Duration = time.Since(start)
		return tr
	}
	tr.RowsObserved = len(rows)

	now := time.Now().UTC()
	var samples []model.Sample
	var snapshots []model.CumulativeSnapshot
	for _, row := range rows {
		fp := fingerprint.Compute(row.SQLText)
		fingerprintID, _, err := o.Fingerprint.Upsert(ctx, ct.Target.InstanceName, ct.Target.DatabaseName, fp.Hash, fp.SampleText, fp.NormalizedText)
		if err != nil {
			tr.Err = &errs.StoreError{Op: "fingerprint upsert", Cause: err}
			continue
		}

		prev, err := o.Snapshots.GetLast(ctx, ct.Target, fingerprintID, row.PlanHash)
		if err != nil {
			tr.Err = &errs.StoreError{Op: "snapshot lookup", Cause: err}
			continue
		}

		sample, snapshot := Delta(prev, row, ct.Target, fingerprintID, now)
		samples = append(samples, sample)
		snapshots = append(snapshots, snapshot)
	}

	// Write order is strict: the sample batch is appended before any
	// snapshot is updated — partial failure after the sample
	// write only causes the next cycle to overcount by one interval.
	if len(samples) > 0 {
		if err := o.Samples.Append(ctx, samples); err != nil {
			tr.Err = &errs.StoreError{Op: "sample append", Cause: err}
		} else {
			tr.SamplesWritten = len(samples)
		}
	}
	for _, snapshot := range snapshots {
		if err := o.Snapshots.Save(ctx, snapshot); err != nil {
			tr.Err = &errs.StoreError{Op: "snapshot save", Cause: err}
		}
	}

	tr.Duration = time.Since(start)
	return tr
}
