package litestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/ftahirops/queryguard/model"
)

// SampleStore implements collect.SampleStore.
type SampleStore struct {
	db *sql.DB
}

// Append inserts samples in one transaction, preserving the "sample
// append happens before snapshot save" ordering the orchestrator
// relies on.
func (s *SampleStore) Append(ctx context.Context, samples []model.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO samples (
				id, fingerprint_id, instance_name, database_name, sampled_at_us, plan_hash,
				exec_count_delta, total_cpu_us_delta, avg_cpu_us, min_cpu_us, max_cpu_us,
				total_duration_us_delta, avg_duration_us, min_duration_us, max_duration_us,
				avg_logical_reads, avg_logical_writes, avg_physical_reads,
				avg_memory_grant_kb, avg_spills_kb, was_reset
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, sample := range samples {
			id := sample.ID
			if id == "" {
				id = uuid.NewString()
			}
			planHash := sample.PlanHash
			if planHash == nil {
				planHash = []byte{}
			}
			if _, err := stmt.ExecContext(ctx,
				id, sample.FingerprintID, sample.Target.InstanceName, sample.Target.DatabaseName,
				toMicros(sample.SampledAtUTC), planHash,
				sample.ExecCountDelta, sample.TotalCPUUsDelta, sample.AvgCPUUs, sample.MinCPUUs, sample.MaxCPUUs,
				sample.TotalDurationUsDelta, sample.AvgDurationUs, sample.MinDurationUs, sample.MaxDurationUs,
				sample.AvgLogicalReads, sample.AvgLogicalWrites, sample.AvgPhysicalReads,
				sample.AvgMemoryGrantKb, sample.AvgSpillsKb, sample.WasReset,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetInWindow returns samples for fingerprintID (optionally scoped to
// target) sampled in [since, until), ordered by time.
func (s *SampleStore) GetInWindow(ctx context.Context, fingerprintID string, target *model.Target, since, until time.Time) ([]model.Sample, error) {
	query := `
		SELECT fingerprint_id, instance_name, database_name, sampled_at_us, plan_hash,
		       exec_count_delta, total_cpu_us_delta, avg_cpu_us, min_cpu_us, max_cpu_us,
		       total_duration_us_delta, avg_duration_us, min_duration_us, max_duration_us,
		       avg_logical_reads, avg_logical_writes, avg_physical_reads,
		       avg_memory_grant_kb, avg_spills_kb, was_reset
		FROM samples
		WHERE fingerprint_id = ? AND sampled_at_us >= ? AND sampled_at_us < ?`
	args := []interface{}{fingerprintID, toMicros(since), toMicros(until)}
	if target != nil {
		query += ` AND instance_name = ? AND database_name = ?`
		args = append(args, target.InstanceName, target.DatabaseName)
	}
	query += ` ORDER BY sampled_at_us`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Sample
	for rows.Next() {
		var sample model.Sample
		var sampledAt int64
		if err := rows.Scan(
			&sample.FingerprintID, &sample.Target.InstanceName, &sample.Target.DatabaseName, &sampledAt, &sample.PlanHash,
			&sample.ExecCountDelta, &sample.TotalCPUUsDelta, &sample.AvgCPUUs, &sample.MinCPUUs, &sample.MaxCPUUs,
			&sample.TotalDurationUsDelta, &sample.AvgDurationUs, &sample.MinDurationUs, &sample.MaxDurationUs,
			&sample.AvgLogicalReads, &sample.AvgLogicalWrites, &sample.AvgPhysicalReads,
			&sample.AvgMemoryGrantKb, &sample.AvgSpillsKb, &sample.WasReset,
		); err != nil {
			return nil, err
		}
		sample.SampledAtUTC = fromMicros(sampledAt)
		out = append(out, sample)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes samples sampled before cutoff, returning the
// count removed.
func (s *SampleStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM samples WHERE sampled_at_us < ?`, toMicros(cutoff))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
