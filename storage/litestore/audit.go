package litestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/ftahirops/queryguard/model"
)

// AuditRepo implements remediate.AuditRepo.
type AuditRepo struct {
	db *sql.DB
}

// Append appends a remediation audit record. Audits are never updated
// or deleted.
func (r *AuditRepo) Append(ctx context.Context, record model.RemediationAudit) error {
	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO remediation_audits (
			id, timestamp_us, instance_name, database_name, fingerprint_id, type, script,
			is_dry_run, success, error, duration_ms, initiated_by
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
	`, id, toMicros(record.Timestamp), record.Target.InstanceName, record.Target.DatabaseName,
		record.FingerprintID, string(record.Type), record.Script, record.IsDryRun, record.Success,
		record.Error, record.Duration.Milliseconds(), record.InitiatedBy)
	return err
}

// HasSucceeded reports whether type t has a prior successful,
// non-dry-run execution against (target, fingerprintID).
func (r *AuditRepo) HasSucceeded(ctx context.Context, target model.Target, fingerprintID string, t model.RemediationType) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FROM remediation_audits
		WHERE instance_name = ? AND database_name = ? AND fingerprint_id = ?
		      AND type = ? AND success AND NOT is_dry_run
	`, target.InstanceName, target.DatabaseName, fingerprintID, string(t)).Scan(&n)
	return n > 0, err
}

// CountsInWindow returns how many non-dry-run executions in
// [since, until) succeeded versus were refused or failed
// (analysis.AuditCounter).
func (r *AuditRepo) CountsInWindow(ctx context.Context, since, until time.Time) (executed, refused int, err error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT success, count(*)
		FROM remediation_audits
		WHERE timestamp_us >= ? AND timestamp_us < ? AND NOT is_dry_run
		GROUP BY success
	`, toMicros(since), toMicros(until))
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
