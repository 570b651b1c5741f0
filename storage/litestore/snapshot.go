package litestore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ftahirops/queryguard/model"
)

// SnapshotStore implements collect.SnapshotStore.
type SnapshotStore struct {
	db *sql.DB
}

// GetLast returns the most recent cumulative snapshot for
// (target, fingerprintID, planHash), or nil if none exists yet.
func (s *SnapshotStore) GetLast(ctx context.Context, target model.Target, fingerprintID string, planHash []byte) (*model.CumulativeSnapshot, error) {
	if planHash == nil {
		planHash = []byte{}
	}
	var snap model.CumulativeSnapshot
	snap.Target = target
	snap.FingerprintID = fingerprintID
	var snapTime int64
	err := s.db.QueryRowContext(ctx, `
		SELECT plan_hash, snapshot_time_us, exec_count, total_cpu_us, total_duration_us,
		       total_logical_reads, total_logical_write, total_physical_read
		FROM cumulative_snapshots
		WHERE instance_name = ? AND database_name = ? AND fingerprint_id = ? AND plan_hash = ?
	`, target.InstanceName, target.DatabaseName, fingerprintID, planHash).Scan(
		&snap.PlanHash, &snapTime, &snap.ExecCount, &snap.TotalCPUUs, &snap.TotalDurationUs,
		&snap.TotalLogicalReads, &snap.TotalLogicalWrite, &snap.TotalPhysicalRead,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap.SnapshotTimeUTC = fromMicros(snapTime)
	return &snap, nil
}

// Save upserts the cumulative snapshot for its (target, fingerprint,
// plan) key.
func (s *SnapshotStore) Save(ctx context.Context, snapshot model.CumulativeSnapshot) error {
	planHash := snapshot.PlanHash
	if planHash == nil {
		planHash = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cumulative_snapshots (
			instance_name, database_name, fingerprint_id, plan_hash, snapshot_time_us,
			exec_count, total_cpu_us, total_duration_us, total_logical_reads, total_logical_write, total_physical_read
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (instance_name, database_name, fingerprint_id, plan_hash) DO UPDATE SET
			snapshot_time_us = excluded.snapshot_time_us,
			exec_count = excluded.exec_count,
			total_cpu_us = excluded.total_cpu_us,
			total_duration_us = excluded.total_duration_us,
			total_logical_reads = excluded.total_logical_reads,
			total_logical_write = excluded.total_logical_write,
			total_physical_read = excluded.total_physical_read
	`, snapshot.Target.InstanceName, snapshot.Target.DatabaseName, snapshot.FingerprintID, planHash,
		toMicros(snapshot.SnapshotTimeUTC), snapshot.ExecCount, snapshot.TotalCPUUs, snapshot.TotalDurationUs,
		snapshot.TotalLogicalReads, snapshot.TotalLogicalWrite, snapshot.TotalPhysicalRead)
	return err
}
