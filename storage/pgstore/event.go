package pgstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ftahirops/queryguard/model"
)

// EventRepo implements analysis.EventRepo.
type EventRepo struct {
	pool *pgxpool.Pool
}

// Save inserts event if it has no ID yet, otherwise updates the
// mutable fields of an existing row.
func (r *EventRepo) Save(ctx context.Context, event model.RegressionEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
		if event.Status == "" {
			event.Status = model.StatusNew
		}
		_, err := r.pool.Exec(ctx, `
			INSERT INTO regression_events (
				id, fingerprint_id, instance_name, database_name, detected_at_utc, type, metric_name,
				baseline_value, current_value, change_percent, severity, is_plan_change,
				baseline_plan, current_plan, status
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		`, event.ID, event.FingerprintID, event.Target.InstanceName, event.Target.DatabaseName, event.DetectedAtUTC,
			string(event.Type), event.MetricName, event.BaselineValue, event.CurrentValue, event.ChangePercent,
			int(event.Severity), event.IsPlanChange, event.BaselinePlan, event.CurrentPlan, string(event.Status))
		return err
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE regression_events
		SET current_value = $2, change_percent = $3, severity = $4, status = $5,
		    acknowledged_by = $6, acknowledged_at_utc = $7, resolved_by = $8, resolved_at_utc = $9, notes = $10
		WHERE id = $1
	`, event.ID, event.CurrentValue, event.ChangePercent, int(event.Severity), string(event.Status),
		event.AcknowledgedBy, nullTime(event.AcknowledgedAtUTC), event.ResolvedBy, nullTime(event.ResolvedAtUTC), event.Notes)
	return err
}

// GetActiveByFingerprint returns every non-terminal event for
// fingerprintID (status new or acknowledged), used for dedup.
func (r *EventRepo) GetActiveByFingerprint(ctx context.Context, fingerprintID string) ([]model.RegressionEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, fingerprint_id, instance_name, database_name, detected_at_utc, type, metric_name,
		       baseline_value, current_value, change_percent, severity, is_plan_change,
		       baseline_plan, current_plan, status, acknowledged_by, acknowledged_at_utc,
		       resolved_by, resolved_at_utc, notes
		FROM regression_events
		WHERE fingerprint_id = $1 AND status IN ('new', 'acknowledged')
	`, fingerprintID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RegressionEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Acknowledge transitions id from new to acknowledged.
func (r *EventRepo) Acknowledge(ctx context.Context, id, by, notes string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE regression_events SET status = 'acknowledged', acknowledged_by = $2, acknowledged_at_utc = now(), notes = $3
		WHERE id = $1
	`, id, by, notes)
	return err
}

// Resolve transitions id to resolved.
func (r *EventRepo) Resolve(ctx context.Context, id, by, notes string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE regression_events SET status = 'resolved', resolved_by = $2, resolved_at_utc = now(), notes = $3
		WHERE id = $1
	`, id, by, notes)
	return err
}

// Dismiss transitions id to dismissed.
func (r *EventRepo) Dismiss(ctx context.Context, id, by, notes string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE regression_events SET status = 'dismissed', resolved_by = $2, resolved_at_utc = now(), notes = $3
		WHERE id = $1
	`, id, by, notes)
	return err
}

// Summary aggregates event counts in [since, until) for the daily
// summary job.
func (r *EventRepo) Summary(ctx context.Context, since, until time.Time) (newCount, ackCount, resolvedCount int, bySeverity map[model.Severity]int, err error) {
	bySeverity = map[model.Severity]int{}
	rows, err := r.pool.Query(ctx, `
		SELECT status, severity, count(*)
		FROM regression_events
		WHERE detected_at_utc >= $1 AND detected_at_utc < $2
		GROUP BY status, severity
	`, since, until)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var severity int
		var n int
		if err := rows.Scan(&status, &severity, &n); err != nil {
			return 0, 0, 0, nil, err
		}
		switch status {
		case string(model.StatusNew):
			newCount += n
		case string(model.StatusAcknowledged):
			ackCount += n
		case string(model.StatusResolved):
			resolvedCount += n
		}
		bySeverity[model.Severity(severity)] += n
	}
	return newCount, ackCount, resolvedCount, bySeverity, rows.Err()
}

func scanEvent(rows pgx.Rows) (model.RegressionEvent, error) {
	var e model.RegressionEvent
	var typ, status string
	var severity int
	var ackAt, resAt *time.Time
	err := rows.Scan(
		&e.ID, &e.FingerprintID, &e.Target.InstanceName, &e.Target.DatabaseName, &e.DetectedAtUTC, &typ, &e.MetricName,
		&e.BaselineValue, &e.CurrentValue, &e.ChangePercent, &severity, &e.IsPlanChange,
		&e.BaselinePlan, &e.CurrentPlan, &status, &e.AcknowledgedBy, &ackAt, &e.ResolvedBy, &resAt, &e.Notes,
	)
	e.Type = model.RegressionType(typ)
	e.Status = model.EventStatus(status)
	e.Severity = model.Severity(severity)
	if ackAt != nil {
		e.AcknowledgedAtUTC = *ackAt
	}
	if resAt != nil {
		e.ResolvedAtUTC = *resAt
	}
	return e, err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
