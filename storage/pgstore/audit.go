package pgstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ftahirops/queryguard/model"
)

// AuditRepo implements remediate.AuditRepo.
type AuditRepo struct {
	pool *pgxpool.Pool
}

// Append appends a remediation audit record. Audits are never updated
// or deleted.
func (r *AuditRepo) Append(ctx context.Context, record model.RemediationAudit) error {
	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO remediation_audits (
			id, timestamp_utc, instance_name, database_name, fingerprint_id, type, script,
			is_dry_run, success, error, duration_ms, initiated_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, id, record.Timestamp, record.Target.InstanceName, record.Target.DatabaseName, record.FingerprintID,
		string(record.Type), record.Script, record.IsDryRun, record.Success, record.Error,
		record.Duration.Milliseconds(), record.InitiatedBy)
	return err
}

// CountsInWindow returns how many non-dry-run executions in
// [since, until) succeeded versus were refused or failed, feeding the
// daily summary (analysis.AuditCounter).
func (r *AuditRepo) CountsInWindow(ctx context.Context, since, until time.Time) (executed, refused int, err error) {
	rows, err := r.pool.Query(ctx, `
		SELECT success, count(*)
		FROM remediation_audits
		WHERE timestamp_utc >= $1 AND timestamp_utc < $2 AND NOT is_dry_run
		GROUP BY success
	`, since, until)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var success bool
		var n int
		if err := rows.Scan(&success, &n); err != nil {
			return 0, 0, err
		}
		if success {
			executed += n
		} else {
			refused += n
		}
	}
	return executed, refused, rows.Err()
}

// HasSucceeded reports whether type t has a prior successful,
// non-dry-run execution against (target, fingerprintID) — remediation
// executor gate 6.
func (r *AuditRepo) HasSucceeded(ctx context.Context, target model.Target, fingerprintID string, t model.RemediationType) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM remediation_audits
			WHERE instance_name = $1 AND database_name = $2 AND fingerprint_id = $3
			      AND type = $4 AND success AND NOT is_dry_run
		)
	`, target.InstanceName, target.DatabaseName, fingerprintID, string(t)).Scan(&exists)
	return exists, err
}
