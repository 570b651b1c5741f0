package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ftahirops/queryguard/model"
)

// BaselineRepo implements baseline.Repo.
type BaselineRepo struct {
	pool *pgxpool.Pool
}

// GetActive returns the current active baseline for fingerprintID, or
// nil if none has been built yet.
func (r *BaselineRepo) GetActive(ctx context.Context, fingerprintID string) (*model.Baseline, error) {
	var b model.Baseline
	b.FingerprintID = fingerprintID
	b.IsActive = true
	err := r.pool.QueryRow(ctx, `
		SELECT id, window_start_utc, window_end_utc, sample_count, total_executions,
		       median_duration_us, p95_duration_us, p99_duration_us, median_cpu_us, p95_cpu_us,
		       median_logical_rds, p95_logical_rds, duration_stddev, typical_plan_hash
		FROM baselines
		WHERE fingerprint_id = $1 AND is_active
	`, fingerprintID).Scan(
		&b.ID, &b.WindowStartUTC, &b.WindowEndUTC, &b.SampleCount, &b.TotalExecutions,
		&b.MedianDurationUs, &b.P95DurationUs, &b.P99DurationUs, &b.MedianCPUUs, &b.P95CPUUs,
		&b.MedianLogicalRds, &b.P95LogicalRds, &b.DurationStdDev, &b.TypicalPlanHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Save supersedes any prior active baseline for baseline.FingerprintID
// and inserts baseline as the new active one, in a single transaction.
func (r *BaselineRepo) Save(ctx context.Context, baseline model.Baseline) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE baselines SET is_active = FALSE, superseded_at_utc = now()
		WHERE fingerprint_id = $1 AND is_active
	`, baseline.FingerprintID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO baselines (
			id, fingerprint_id, window_start_utc, window_end_utc, sample_count, total_executions,
			median_duration_us, p95_duration_us, p99_duration_us, median_cpu_us, p95_cpu_us,
			median_logical_rds, p95_logical_rds, duration_stddev, typical_plan_hash, is_active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,TRUE)
	`, baseline.ID, baseline.FingerprintID, baseline.WindowStartUTC, baseline.WindowEndUTC, baseline.SampleCount,
		baseline.TotalExecutions, baseline.MedianDurationUs, baseline.P95DurationUs, baseline.P99DurationUs,
		baseline.MedianCPUUs, baseline.P95CPUUs, baseline.MedianLogicalRds, baseline.P95LogicalRds,
		baseline.DurationStdDev, baseline.TypicalPlanHash); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetStale returns fingerprint ids whose active baseline's window_end
// precedes cutoff, or which have no baseline at all, backing the
// `rebuild-baselines` operator command.
func (r *BaselineRepo) GetStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT f.id
		FROM fingerprints f
		LEFT JOIN baselines b ON b.fingerprint_id = f.id AND b.is_active
		WHERE b.id IS NULL OR b.window_end_utc < $1
	`, cutoff)
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
