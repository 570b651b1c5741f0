package model

import "time"

// CumulativeSnapshot is the most recently observed cumulative counter
// set for a (target, fingerprint, plan) lineage, used by the Delta
// Engine to compute interval samples. Exactly one row exists per
// (target, fingerprint_id, plan_hash).
type CumulativeSnapshot struct {
	Target            Target
	FingerprintID     string
	PlanHash          []byte // optional
	SnapshotTimeUTC   time.Time
	ExecCount         int64
	TotalCPUUs        int64
	TotalDurationUs   int64
	TotalLogicalReads int64
	TotalLogicalWrite int64
	TotalPhysicalRead int64
}

// Sample is an immutable, append-only interval-metrics record produced
// once per collection cycle for a (target, fingerprint, plan) lineage.
type Sample struct {
	ID                string
	FingerprintID     string
	Target            Target
	SampledAtUTC      time.Time
	PlanHash          []byte // optional

	ExecCountDelta       int64
	TotalCPUUsDelta      int64
	AvgCPUUs             float64
	MinCPUUs             float64
	MaxCPUUs             float64
	TotalDurationUsDelta int64
	AvgDurationUs        float64
	MinDurationUs        float64
	MaxDurationUs        float64
	AvgLogicalReads      float64
	AvgLogicalWrites     float64
	AvgPhysicalReads     float64
	AvgMemoryGrantKb     float64 // optional, 0 if unavailable
	AvgSpillsKb          float64 // optional, 0 if unavailable

	// WasReset is true when the source's cumulative counter decreased
	// since the last observation (target restart or cache eviction);
	// in that case the deltas equal the raw cumulative values rather
	// than a true difference. See collect.Delta.
	WasReset bool
}
