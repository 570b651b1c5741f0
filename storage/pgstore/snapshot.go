package pgstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ftahirops/queryguard/model"
)

// SnapshotStore implements collect.SnapshotStore.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// GetLast returns the most recent cumulative snapshot for
// (target, fingerprintID, planHash), or nil if none exists yet.
func (s *SnapshotStore) GetLast(ctx context.Context, target model.Target, fingerprintID string, planHash []byte) (*model.CumulativeSnapshot, error) {
	var snap model.CumulativeSnapshot
	snap.Target = target
	snap.FingerprintID = fingerprintID
	if planHash == nil {
		planHash = []byte{}
	}
	err := s.pool.QueryRow(ctx, `
		SELECT plan_hash, snapshot_time_utc, exec_count, total_cpu_us, total_duration_us,
		       total_logical_reads, total_logical_write, total_physical_read
		FROM cumulative_snapshots
		WHERE instance_name = $1 AND database_name = $2 AND fingerprint_id = $3 AND plan_hash = $4
	`, target.InstanceName, target.DatabaseName, fingerprintID, planHash).Scan(
		&snap.PlanHash, &snap.SnapshotTimeUTC, &snap.ExecCount, &snap.TotalCPUUs, &snap.TotalDurationUs,
		&snap.TotalLogicalReads, &snap.TotalLogicalWrite, &snap.TotalPhysicalRead,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save upserts the cumulative snapshot for its (target, fingerprint,
// plan) key, replacing whatever was there before.
func (s *SnapshotStore) Save(ctx context.Context, snapshot model.CumulativeSnapshot) error {
	planHash := snapshot.PlanHash
	if planHash == nil {
		planHash = []byte{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cumulative_snapshots (
			instance_name, database_name, fingerprint_id, plan_hash, snapshot_time_utc,
			exec_count, total_cpu_us, total_duration_us, total_logical_reads, total_logical_write, total_physical_read
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (instance_name, database_name, fingerprint_id, plan_hash) DO UPDATE SET
			snapshot_time_utc = EXCLUDED.snapshot_time_utc,
			exec_count = EXCLUDED.exec_count,
			total_cpu_us = EXCLUDED.total_cpu_us,
			total_duration_us = EXCLUDED.total_duration_us,
			total_logical_reads = EXCLUDED.total_logical_reads,
			total_logical_write = EXCLUDED.total_logical_write,
			total_physical_read = EXCLUDED.total_physical_read
	`, snapshot.Target.InstanceName, snapshot.Target.DatabaseName, snapshot.FingerprintID, planHash,
		snapshot.SnapshotTimeUTC, snapshot.ExecCount, snapshot.TotalCPUUs, snapshot.TotalDurationUs,
		snapshot.TotalLogicalReads, snapshot.TotalLogicalWrite, snapshot.TotalPhysicalRead)
	return err
}
