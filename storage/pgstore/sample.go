package pgstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ftahirops/queryguard/model"
)

// SampleStore implements collect.SampleStore.
type SampleStore struct {
	pool *pgxpool.Pool
}

// Append batch-inserts samples in a single round trip via pgx.Batch,
// preserving the "sample append happens before snapshot save" write
// order the Collection Orchestrator relies on.
func (s *SampleStore) Append(ctx context.Context, samples []model.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, sample := range samples {
		id := sample.ID
		if id == "" {
			id = uuid.NewString()
		}
		planHash := sample.PlanHash
		if planHash == nil {
			planHash = []byte{}
		}
		batch.Queue(`
			INSERT INTO samples (
				id, fingerprint_id, instance_name, database_name, sampled_at_utc, plan_hash,
				exec_count_delta, total_cpu_us_delta, avg_cpu_us, min_cpu_us, max_cpu_us,
				total_duration_us_delta, avg_duration_us, min_duration_us, max_duration_us,
				avg_logical_reads, avg_logical_writes, avg_physical_reads,
				avg_memory_grant_kb, avg_spills_kb, was_reset
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		`, id, sample.FingerprintID, sample.Target.InstanceName, sample.Target.DatabaseName, sample.SampledAtUTC, planHash,
			sample.ExecCountDelta, sample.TotalCPUUsDelta, sample.AvgCPUUs, sample.MinCPUUs, sample.MaxCPUUs,
			sample.TotalDurationUsDelta, sample.AvgDurationUs, sample.MinDurationUs, sample.MaxDurationUs,
			sample.AvgLogicalReads, sample.AvgLogicalWrites, sample.AvgPhysicalReads,
			sample.AvgMemoryGrantKb, sample.AvgSpillsKb, sample.WasReset)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range samples {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// GetInWindow returns samples for fingerprintID (optionally scoped to
// target) sampled in [since, until).
func (s *SampleStore) GetInWindow(ctx context.Context, fingerprintID string, target *model.Target, since, until time.Time) ([]model.Sample, error) {
	var rows pgx.Rows
	var err error
	if target != nil {
		rows, err = s.pool.Query(ctx, `
			SELECT fingerprint_id, instance_name, database_name, sampled_at_utc, plan_hash,
			       exec_count_delta, total_cpu_us_delta, avg_cpu_us, min_cpu_us, max_cpu_us,
			       total_duration_us_delta, avg_duration_us, min_duration_us, max_duration_us,
			       avg_logical_reads, avg_logical_writes, avg_physical_reads,
			       avg_memory_grant_kb, avg_spills_kb, was_reset
			FROM samples
			WHERE fingerprint_id = $1 AND instance_name = $2 AND database_name = $3
			      AND sampled_at_utc >= $4 AND sampled_at_utc < $5
			ORDER BY sampled_at_utc
		`, fingerprintID, target.InstanceName, target.DatabaseName, since, until)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT fingerprint_id, instance_name, database_name, sampled_at_utc, plan_hash,
			       exec_count_delta, total_cpu_us_delta, avg_cpu_us, min_cpu_us, max_cpu_us,
			       total_duration_us_delta, avg_duration_us, min_duration_us, max_duration_us,
			       avg_logical_reads, avg_logical_writes, avg_physical_reads,
			       avg_memory_grant_kb, avg_spills_kb, was_reset
			FROM samples
			WHERE fingerprint_id = $1 AND sampled_at_utc >= $2 AND sampled_at_utc < $3
			ORDER BY sampled_at_utc
		`, fingerprintID, since, until)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Sample
	for rows.Next() {
		var sample model.Sample
		if err := rows.Scan(
			&sample.FingerprintID, &sample.Target.InstanceName, &sample.Target.DatabaseName, &sample.SampledAtUTC, &sample.PlanHash,
			&sample.ExecCountDelta, &sample.TotalCPUUsDelta, &sample.AvgCPUUs, &sample.MinCPUUs, &sample.MaxCPUUs,
			&sample.TotalDurationUsDelta, &sample.AvgDurationUs, &sample.MinDurationUs, &sample.MaxDurationUs,
			&sample.AvgLogicalReads, &sample.AvgLogicalWrites, &sample.AvgPhysicalReads,
			&sample.AvgMemoryGrantKb, &sample.AvgSpillsKb, &sample.WasReset,
		); err != nil {
			return nil, err
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes samples sampled before cutoff, returning the
// count removed.
func (s *SampleStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM samples WHERE sampled_at_utc < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
