package collect

import (
	"time"

	"github.com/ftahirops/queryguard/internal/logx"
	"github.com/ftahirops/queryguard/internal/mathutil"
	"github.com/ftahirops/queryguard/model"
)

var deltaLog = logx.New("collect")

// Delta converts a cumulative ObservedRow into an interval Sample using
// the last stored CumulativeSnapshot for the same (target, fingerprint,
// plan) lineage.
//
// Write order is the caller's responsibility: the sample this function
// returns must be appended before the returned snapshot is saved:
// partial failure after the sample write only overcounts one interval.
func Delta(prev *model.CumulativeSnapshot, row ObservedRow, target model.Target, fingerprintID string, sampledAt time.Time) (model.Sample, model.CumulativeSnapshot) {
	sample := model.Sample{
		FingerprintID: fingerprintID,
		Target:        target,
		SampledAtUTC:  sampledAt,
		PlanHash:      row.PlanHash,
	}

	if prev == nil {
		// Bootstrap: no prior snapshot, deltas equal the cumulative totals.
		sample.ExecCountDelta = row.ExecCount
		sample.TotalCPUUsDelta = row.TotalCPUUs
		sample.TotalDurationUsDelta = row.TotalDurationUs
		sample.AvgLogicalReads = divide(row.TotalLogicalReads, row.ExecCount)
		sample.AvgLogicalWrites = divide(row.TotalLogicalWrites, row.ExecCount)
		sample.AvgPhysicalReads = divide(row.TotalPhysicalReads, row.ExecCount)
	} else {
		execDelta, execReset := mathutil.DeltaInt64(prev.ExecCount, row.ExecCount)
		if execReset {
			deltaLog.Info("counter reset target=%s fingerprint=%s prev_exec=%d curr_exec=%d",
				target.Key(), fingerprintID, prev.ExecCount, row.ExecCount)
			sample.ExecCountDelta = row.ExecCount
			sample.TotalCPUUsDelta = row.TotalCPUUs
			sample.TotalDurationUsDelta = row.TotalDurationUs
			sample.AvgLogicalReads = divide(row.TotalLogicalReads, row.ExecCount)
			sample.AvgLogicalWrites = divide(row.TotalLogicalWrites, row.ExecCount)
			sample.AvgPhysicalReads = divide(row.TotalPhysicalReads, row.ExecCount)
		} else {
			cpuDelta := clampNonNegative(row.TotalCPUUs-prev.TotalCPUUs, target, fingerprintID, "total_cpu_us")
			durDelta := clampNonNegative(row.TotalDurationUs-prev.TotalDurationUs, target, fingerprintID, "total_duration_us")
			readsDelta := clampNonNegative(row.TotalLogicalReads-prev.TotalLogicalReads, target, fingerprintID, "total_logical_reads")
			writesDelta := clampNonNegative(row.TotalLogicalWrites-prev.TotalLogicalWrite, target, fingerprintID, "total_logical_writes")
			physDelta := clampNonNegative(row.TotalPhysicalReads-prev.TotalPhysicalRead, target, fingerprintID, "total_physical_reads")

			sample.ExecCountDelta = execDelta
			sample.TotalCPUUsDelta = cpuDelta
			sample.TotalDurationUsDelta = durDelta
			sample.AvgLogicalReads = divide(readsDelta, execDelta)
			sample.AvgLogicalWrites = divide(writesDelta, execDelta)
			sample.AvgPhysicalReads = divide(physDelta, execDelta)
		}
	}

	sample.AvgCPUUs = divide(sample.TotalCPUUsDelta, sample.ExecCountDelta)
	sample.AvgDurationUs = divide(sample.TotalDurationUsDelta, sample.ExecCountDelta)
	sample.AvgMemoryGrantKb = row.AvgMemoryGrantKb
	sample.AvgSpillsKb = row.AvgSpillsKb

	if row.MinCPUUs != 0 || row.MaxCPUUs != 0 {
		sample.MinCPUUs, sample.MaxCPUUs = row.MinCPUUs, row.MaxCPUUs
	} else {
		sample.MinCPUUs, sample.MaxCPUUs = sample.AvgCPUUs, sample.AvgCPUUs
	}
	if row.MinDurationUs != 0 || row.MaxDurationUs != 0 {
		sample.MinDurationUs, sample.MaxDurationUs = row.MinDurationUs, row.MaxDurationUs
	} else {
		sample.MinDurationUs, sample.MaxDurationUs = sample.AvgDurationUs, sample.AvgDurationUs
	}
	sample.WasReset = prev != nil && row.ExecCount < prev.ExecCount

	snapshot := model.CumulativeSnapshot{
		Target:            target,
		FingerprintID:     fingerprintID,
		PlanHash:          row.PlanHash,
		SnapshotTimeUTC:   sampledAt,
		ExecCount:         row.ExecCount,
		TotalCPUUs:        row.TotalCPUUs,
		TotalDurationUs:   row.TotalDurationUs,
		TotalLogicalReads: row.TotalLogicalReads,
		TotalLogicalWrite: row.TotalLogicalWrites,
		TotalPhysicalRead: row.TotalPhysicalReads,
	}
	return sample, snapshot
}

func divide(total, count int64) float64 {
	if count <= 0 {
		return 0
	}
	return float64(total) / float64(count)
}

func clampNonNegative(delta int64, target model.Target, fingerprintID, field string) int64 {
	if delta < 0 {
		deltaLog.Warn("negative delta clamped to 0 target=%s fingerprint=%s field=%s delta=%d",
			target.Key(), fingerprintID, field, delta)
		return 0
	}
	return delta
}
