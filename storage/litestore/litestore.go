// Package litestore is a single-file embedded implementation of the
// store contracts, backed by SQLite. It serves the one-shot operator
// commands (collect-once, analyze-once) and tests that want a real
// store without a running Postgres; pgstore is the deployment-grade
// twin with the same surface.
package litestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite handle every repo view is built from.
type Store struct {
	db *sql.DB
}

// Open opens (creating if missing) the SQLite database at path and
// applies the schema. ":memory:" gives a throwaway in-process store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open litestore %s: %w", path, err)
	}
	// A single writer keeps the serialized write ordering the
	// collection pipeline relies on; SQLite locks the whole file anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply litestore schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Fingerprints returns the FingerprintRepo view of this store.
func (s *Store) Fingerprints() *FingerprintRepo { return &FingerprintRepo{db: s.db} }

// Snapshots returns the SnapshotStore view of this store.
func (s *Store) Snapshots() *SnapshotStore { return &SnapshotStore{db: s.db} }

// Samples returns the SampleStore view of this store.
func (s *Store) Samples() *SampleStore { return &SampleStore{db: s.db} }

// Baselines returns the BaselineRepo view of this store.
func (s *Store) Baselines() *BaselineRepo { return &BaselineRepo{db: s.db} }

// Events returns the EventRepo view of this store.
func (s *Store) Events() *EventRepo { return &EventRepo{db: s.db} }

// Audits returns the AuditRepo view of this store.
func (s *Store) Audits() *AuditRepo { return &AuditRepo{db: s.db} }

// Timestamps are stored as integer microseconds since the Unix epoch:
// cheap to index, immune to text-format drift between drivers.

func toMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func fromMicros(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

const schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
	id              TEXT PRIMARY KEY,
	instance_name   TEXT NOT NULL,
	database_name   TEXT NOT NULL,
	hash            BLOB NOT NULL,
	sample_text     TEXT NOT NULL,
	normalized_text TEXT NOT NULL,
	first_seen_us   INTEGER NOT NULL,
	last_seen_us    INTEGER NOT NULL,
	UNIQUE (instance_name, database_name, hash)
);

CREATE TABLE IF NOT EXISTS cumulative_snapshots (
	instance_name       TEXT NOT NULL,
	database_name       TEXT NOT NULL,
	fingerprint_id      TEXT NOT NULL,
	plan_hash           BLOB NOT NULL DEFAULT x'',
	snapshot_time_us    INTEGER NOT NULL,
	exec_count          INTEGER NOT NULL,
	total_cpu_us        INTEGER NOT NULL,
	total_duration_us   INTEGER NOT NULL,
	total_logical_reads INTEGER NOT NULL,
	total_logical_write INTEGER NOT NULL,
	total_physical_read INTEGER NOT NULL,
	PRIMARY KEY (instance_name, database_name, fingerprint_id, plan_hash)
);

CREATE TABLE IF NOT EXISTS samples (
	id                      TEXT PRIMARY KEY,
	fingerprint_id          TEXT NOT NULL,
	instance_name           TEXT NOT NULL,
	database_name           TEXT NOT NULL,
	sampled_at_us           INTEGER NOT NULL,
	plan_hash               BLOB NOT NULL DEFAULT x'',
	exec_count_delta        INTEGER NOT NULL,
	total_cpu_us_delta      INTEGER NOT NULL,
	avg_cpu_us              REAL NOT NULL,
	min_cpu_us              REAL NOT NULL,
	max_cpu_us              REAL NOT NULL,
	total_duration_us_delta INTEGER NOT NULL,
	avg_duration_us         REAL NOT NULL,
	min_duration_us         REAL NOT NULL,
	max_duration_us         REAL NOT NULL,
	avg_logical_reads       REAL NOT NULL,
	avg_logical_writes      REAL NOT NULL,
	avg_physical_reads      REAL NOT NULL,
	avg_memory_grant_kb     REAL NOT NULL DEFAULT 0,
	avg_spills_kb           REAL NOT NULL DEFAULT 0,
	was_reset               INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_samples_fingerprint_time ON samples (fingerprint_id, sampled_at_us);

CREATE TABLE IF NOT EXISTS baselines (
	id                 TEXT PRIMARY KEY,
	fingerprint_id     TEXT NOT NULL,
	window_start_us    INTEGER NOT NULL,
	window_end_us      INTEGER NOT NULL,
	sample_count       INTEGER NOT NULL,
	total_executions   INTEGER NOT NULL,
	median_duration_us REAL NOT NULL,
	p95_duration_us    REAL NOT NULL,
	p99_duration_us    REAL NOT NULL,
	median_cpu_us      REAL NOT NULL,
	p95_cpu_us         REAL NOT NULL,
	median_logical_rds REAL NOT NULL,
	p95_logical_rds    REAL NOT NULL,
	duration_stddev    REAL NOT NULL,
	typical_plan_hash  BLOB,
	is_active          INTEGER NOT NULL,
	superseded_at_us   INTEGER
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_baselines_one_active ON baselines (fingerprint_id) WHERE is_active;

CREATE TABLE IF NOT EXISTS regression_events (
	id                  TEXT PRIMARY KEY,
	fingerprint_id      TEXT NOT NULL,
	instance_name       TEXT NOT NULL,
	database_name       TEXT NOT NULL,
	detected_at_us      INTEGER NOT NULL,
	type                TEXT NOT NULL,
	metric_name         TEXT NOT NULL,
	baseline_value      REAL NOT NULL,
	current_value       REAL NOT NULL,
	change_percent      REAL NOT NULL,
	severity            INTEGER NOT NULL,
	is_plan_change      INTEGER NOT NULL DEFAULT 0,
	baseline_plan       BLOB,
	current_plan        BLOB,
	status              TEXT NOT NULL,
	acknowledged_by     TEXT NOT NULL DEFAULT '',
	acknowledged_at_us  INTEGER NOT NULL DEFAULT 0,
	resolved_by         TEXT NOT NULL DEFAULT '',
	resolved_at_us      INTEGER NOT NULL DEFAULT 0,
	notes               TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_fingerprint_status ON regression_events (fingerprint_id, status);

CREATE TABLE IF NOT EXISTS remediation_audits (
	id            TEXT PRIMARY KEY,
	timestamp_us  INTEGER NOT NULL,
	instance_name TEXT NOT NULL,
	database_name TEXT NOT NULL,
	fingerprint_id TEXT NOT NULL,
	type          TEXT NOT NULL,
	script        TEXT NOT NULL,
	is_dry_run    INTEGER NOT NULL,
	success       INTEGER NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	duration_ms   INTEGER NOT NULL,
	initiated_by  TEXT NOT NULL
);
`
