package litestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ftahirops/queryguard/model"
)

// BaselineRepo implements baseline.Repo.
type BaselineRepo struct {
	db *sql.DB
}

// GetActive returns the current active baseline for fingerprintID, or
// nil if none has been built yet.
func (r *BaselineRepo) GetActive(ctx context.Context, fingerprintID string) (*model.Baseline, error) {
	var b model.Baseline
	b.FingerprintID = fingerprintID
	b.IsActive = true
	var windowStart, windowEnd int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, window_start_us, window_end_us, sample_count, total_executions,
		       median_duration_us, p95_duration_us, p99_duration_us, median_cpu_us, p95_cpu_us,
		       median_logical_rds, p95_logical_rds, duration_stddev, typical_plan_hash
		FROM baselines
		WHERE fingerprint_id = ? AND is_active
	`, fingerprintID).Scan(
		&b.ID, &windowStart, &windowEnd, &b.SampleCount, &b.TotalExecutions,
		&b.MedianDurationUs, &b.P95DurationUs, &b.P99DurationUs, &b.MedianCPUUs, &b.P95CPUUs,
		&b.MedianLogicalRds, &b.P95LogicalRds, &b.DurationStdDev, &b.TypicalPlanHash,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.WindowStartUTC = fromMicros(windowStart)
	b.WindowEndUTC = fromMicros(windowEnd)
	return &b, nil
}

// Save supersedes any prior active baseline for baseline.FingerprintID
// and inserts baseline as the new active one, in a single transaction.
func (r *BaselineRepo) Save(ctx context.Context, baseline model.Baseline) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE baselines SET is_active = 0, superseded_at_us = ?
			WHERE fingerprint_id = ? AND is_active
		`, toMicros(time.Now().UTC()), baseline.FingerprintID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO baselines (
				id, fingerprint_id, window_start_us, window_end_us, sample_count, total_executions,
				median_duration_us, p95_duration_us, p99_duration_us, median_cpu_us, p95_cpu_us,
				median_logical_rds, p95_logical_rds, duration_stddev, typical_plan_hash, is_active
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,1)
		`, baseline.ID, baseline.FingerprintID, toMicros(baseline.WindowStartUTC), toMicros(baseline.WindowEndUTC),
			baseline.SampleCount, baseline.TotalExecutions, baseline.MedianDurationUs, baseline.P95DurationUs,
			baseline.P99DurationUs, baseline.MedianCPUUs, baseline.P95CPUUs, baseline.MedianLogicalRds,
			baseline.P95LogicalRds, baseline.DurationStdDev, baseline.TypicalPlanHash)
		return err
	})
}

// GetStale returns fingerprint ids whose active baseline's window end
// precedes cutoff, or which have no baseline at all.
func (r *BaselineRepo) GetStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT f.id
		FROM fingerprints f
		LEFT JOIN baselines b ON b.fingerprint_id = f.id AND b.is_active
		WHERE b.id IS NULL OR b.window_end_us < ?
	`, toMicros(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
