package pgstore

// Schema is the DDL this package's queries assume. Applying it is an
// operator concern (e.g. a migrate step ahead of `run`); the package
// itself never issues DDL at runtime.
const Schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
	id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	instance_name   TEXT NOT NULL,
	database_name   TEXT NOT NULL,
	hash            BYTEA NOT NULL,
	sample_text     TEXT NOT NULL,
	normalized_text TEXT NOT NULL,
	first_seen_utc  TIMESTAMPTZ NOT NULL,
	last_seen_utc   TIMESTAMPTZ NOT NULL,
	UNIQUE (instance_name, database_name, hash)
);

CREATE TABLE IF NOT EXISTS cumulative_snapshots (
	instance_name       TEXT NOT NULL,
	database_name       TEXT NOT NULL,
	fingerprint_id      UUID NOT NULL REFERENCES fingerprints(id),
	plan_hash           BYTEA NOT NULL DEFAULT '',
	snapshot_time_utc   TIMESTAMPTZ NOT NULL,
	exec_count          BIGINT NOT NULL,
	total_cpu_us        BIGINT NOT NULL,
	total_duration_us   BIGINT NOT NULL,
	total_logical_reads BIGINT NOT NULL,
	total_logical_write BIGINT NOT NULL,
	total_physical_read BIGINT NOT NULL,
	PRIMARY KEY (instance_name, database_name, fingerprint_id, plan_hash)
);

CREATE TABLE IF NOT EXISTS samples (
	id                      UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	fingerprint_id          UUID NOT NULL REFERENCES fingerprints(id),
	instance_name           TEXT NOT NULL,
	database_name           TEXT NOT NULL,
	sampled_at_utc          TIMESTAMPTZ NOT NULL,
	plan_hash               BYTEA NOT NULL DEFAULT '',
	exec_count_delta        BIGINT NOT NULL,
	total_cpu_us_delta      BIGINT NOT NULL,
	avg_cpu_us              DOUBLE PRECISION NOT NULL,
	min_cpu_us              DOUBLE PRECISION NOT NULL,
	max_cpu_us              DOUBLE PRECISION NOT NULL,
	total_duration_us_delta BIGINT NOT NULL,
	avg_duration_us         DOUBLE PRECISION NOT NULL,
	min_duration_us         DOUBLE PRECISION NOT NULL,
	max_duration_us         DOUBLE PRECISION NOT NULL,
	avg_logical_reads       DOUBLE PRECISION NOT NULL,
	avg_logical_writes      DOUBLE PRECISION NOT NULL,
	avg_physical_reads      DOUBLE PRECISION NOT NULL,
	avg_memory_grant_kb     DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_spills_kb           DOUBLE PRECISION NOT NULL DEFAULT 0,
	was_reset               BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_samples_fingerprint_time ON samples (fingerprint_id, sampled_at_utc);

CREATE TABLE IF NOT EXISTS baselines (
	id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	fingerprint_id     UUID NOT NULL REFERENCES fingerprints(id),
	window_start_utc   TIMESTAMPTZ NOT NULL,
	window_end_utc     TIMESTAMPTZ NOT NULL,
	sample_count       INTEGER NOT NULL,
	total_executions   BIGINT NOT NULL,
	median_duration_us DOUBLE PRECISION NOT NULL,
	p95_duration_us    DOUBLE PRECISION NOT NULL,
	p99_duration_us    DOUBLE PRECISION NOT NULL,
	median_cpu_us      DOUBLE PRECISION NOT NULL,
	p95_cpu_us         DOUBLE PRECISION NOT NULL,
	median_logical_rds DOUBLE PRECISION NOT NULL,
	p95_logical_rds    DOUBLE PRECISION NOT NULL,
	duration_stddev    DOUBLE PRECISION NOT NULL,
	typical_plan_hash  BYTEA,
	is_active          BOOLEAN NOT NULL,
	superseded_at_utc  TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_baselines_one_active ON baselines (fingerprint_id) WHERE is_active;

CREATE TABLE IF NOT EXISTS regression_events (
	id                   UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	fingerprint_id       UUID NOT NULL REFERENCES fingerprints(id),
	instance_name        TEXT NOT NULL,
	database_name        TEXT NOT NULL,
	detected_at_utc      TIMESTAMPTZ NOT NULL,
	type                 TEXT NOT NULL,
	metric_name          TEXT NOT NULL,
	baseline_value       DOUBLE PRECISION NOT NULL,
	current_value        DOUBLE PRECISION NOT NULL,
	change_percent       DOUBLE PRECISION NOT NULL,
	severity             SMALLINT NOT NULL,
	is_plan_change        BOOLEAN NOT NULL DEFAULT FALSE,
	baseline_plan        BYTEA,
	current_plan         BYTEA,
	status               TEXT NOT NULL,
	acknowledged_by      TEXT NOT NULL DEFAULT '',
	acknowledged_at_utc  TIMESTAMPTZ,
	resolved_by          TEXT NOT NULL DEFAULT '',
	resolved_at_utc      TIMESTAMPTZ,
	notes                TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_fingerprint_status ON regression_events (fingerprint_id, status);

CREATE TABLE IF NOT EXISTS remediation_audits (
	id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	timestamp_utc   TIMESTAMPTZ NOT NULL,
	instance_name   TEXT NOT NULL,
	database_name   TEXT NOT NULL,
	fingerprint_id  UUID NOT NULL,
	type            TEXT NOT NULL,
	script          TEXT NOT NULL,
	is_dry_run      BOOLEAN NOT NULL,
	success         BOOLEAN NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	duration_ms     BIGINT NOT NULL,
	initiated_by    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audits_target_fp_type ON remediation_audits (instance_name, database_name, fingerprint_id, type);
`
