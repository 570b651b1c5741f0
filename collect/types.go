// Package collect implements the stats-source contract, the delta
// engine, and the collection orchestrator.
package collect

import (
	"context"
	"time"

	"github.com/ftahirops/queryguard/model"
)

// ObservedRow is a single cumulative-counter observation returned by a
// StatsSource for one query within one target.
type ObservedRow struct {
	QueryHash          string // engine-native hash; a hint, never an identity
	SQLText            string
	PlanHash           []byte
	VendorPlanID       int64
	ExecCount          int64
	TotalCPUUs         int64
	TotalDurationUs    int64
	TotalLogicalReads  int64
	TotalLogicalWrites int64
	TotalPhysicalReads int64
	MinCPUUs           float64 // optional, 0 if source doesn't expose it
	MaxCPUUs           float64
	MinDurationUs      float64
	MaxDurationUs      float64
	AvgMemoryGrantKb   float64
	AvgSpillsKb        float64
	LastExecutionUTC   time.Time
}

// OrderBy selects the cost dimension a StatsSource ranks its top-N by.
type OrderBy string

const (
	OrderByCPU           OrderBy = "cpu"
	OrderByDuration      OrderBy = "duration"
	OrderByLogicalReads  OrderBy = "logical_reads"
	OrderByExecutions    OrderBy = "executions"
)

// StatsSource is the external collaborator returning current cumulative
// per-query counters for a target. Implementations are
// not assumed to speak any particular SQL dialect; the core only
// requires a bounded, cost-ordered list with monotonic counters between
// observations (except on restart/reset).
type StatsSource interface {
	FetchTopByCost(ctx context.Context, target model.Target, topN int, window time.Duration, orderBy OrderBy) ([]ObservedRow, error)

	// IsHistoricalStoreAvailable is a logging/quality hint only; the
	// core never branches control flow on its result.
	IsHistoricalStoreAvailable(ctx context.Context, target model.Target) bool
}

// SecretResolver maps a target to the connection string used to reach
// it. Implementations typically consult environment
// variables or a secret manager; the resolved string never appears in
// logs or summaries.
type SecretResolver interface {
	GetConnectionString(target model.Target) (string, error)
}

// FingerprintRepo is the atomic upsert contract backing the
// fingerprint identity layer. Concurrent callers racing on
// the same hash observe a single winning id.
type FingerprintRepo interface {
	Upsert(ctx context.Context, instance, database string, hash []byte, sampleText, normalizedText string) (fingerprintID string, isNew bool, err error)
}

// SnapshotStore persists the most recent cumulative counters per
// (target, fingerprint, plan) for delta computation.
type SnapshotStore interface {
	GetLast(ctx context.Context, target model.Target, fingerprintID string, planHash []byte) (*model.CumulativeSnapshot, error)
	Save(ctx context.Context, snapshot model.CumulativeSnapshot) error
}

// SampleStore persists per-cycle delta samples, indexed by time.
type SampleStore interface {
	Append(ctx context.Context, samples []model.Sample) error
	GetInWindow(ctx context.Context, fingerprintID string, target *model.Target, since, until time.Time) ([]model.Sample, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
