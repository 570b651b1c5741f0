package litestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/ftahirops/queryguard/model"
)

// EventRepo implements analysis.EventRepo.
type EventRepo struct {
	db *sql.DB
}

// Save inserts event if it has no ID yet, otherwise updates the
// mutable fields of an existing row.
func (r *EventRepo) Save(ctx context.Context, event model.RegressionEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
		if event.Status == "" {
			event.Status = model.StatusNew
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO regression_events (
				id, fingerprint_id, instance_name, database_name, detected_at_us, type, metric_name,
				baseline_value, current_value, change_percent, severity, is_plan_change,
				baseline_plan, current_plan, status
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		`, event.ID, event.FingerprintID, event.Target.InstanceName, event.Target.DatabaseName,
			toMicros(event.DetectedAtUTC), string(event.Type), event.MetricName,
			event.BaselineValue, event.CurrentValue, event.ChangePercent, int(event.Severity),
			event.IsPlanChange, event.BaselinePlan, event.CurrentPlan, string(event.Status))
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE regression_events
		SET current_value = ?, change_percent = ?, severity = ?, status = ?,
		    acknowledged_by = ?, acknowledged_at_us = ?, resolved_by = ?, resolved_at_us = ?, notes = ?
		WHERE id = ?
	`, event.CurrentValue, event.ChangePercent, int(event.Severity), string(event.Status),
		event.AcknowledgedBy, toMicros(event.AcknowledgedAtUTC), event.ResolvedBy, toMicros(event.ResolvedAtUTC),
		event.Notes, event.ID)
	return err
}

// GetActiveByFingerprint returns every non-terminal event for
// fingerprintID (status new or acknowledged).
func (r *EventRepo) GetActiveByFingerprint(ctx context.Context, fingerprintID string) ([]model.RegressionEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, fingerprint_id, instance_name, database_name, detected_at_us, type, metric_name,
		       baseline_value, current_value, change_percent, severity, is_plan_change,
		       baseline_plan, current_plan, status, acknowledged_by, acknowledged_at_us,
		       resolved_by, resolved_at_us, notes
		FROM regression_events
		WHERE fingerprint_id = ? AND status IN ('new', 'acknowledged')
	`, fingerprintID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RegressionEvent
	for rows.Next() {
		var e model.RegressionEvent
		var typ, status string
		var severity int
		var detectedAt, ackAt, resAt int64
		if err := rows.Scan(
			&e.ID, &e.FingerprintID, &e.Target.InstanceName, &e.Target.DatabaseName, &detectedAt, &typ, &e.MetricName,
			&e.BaselineValue, &e.CurrentValue, &e.ChangePercent, &severity, &e.IsPlanChange,
			&e.BaselinePlan, &e.CurrentPlan, &status, &e.AcknowledgedBy, &ackAt, &e.ResolvedBy, &resAt, &e.Notes,
		); err != nil {
			return nil, err
		}
		e.Type = model.RegressionType(typ)
		e.Status = model.EventStatus(status)
		e.Severity = model.Severity(severity)
		e.DetectedAtUTC = fromMicros(detectedAt)
		e.AcknowledgedAtUTC = fromMicros(ackAt)
		e.ResolvedAtUTC = fromMicros(resAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Acknowledge transitions id from new to acknowledged.
func (r *EventRepo) Acknowledge(ctx context.Context, id, by, notes string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE regression_events SET status = 'acknowledged', acknowledged_by = ?, acknowledged_at_us = ?, notes = ?
		WHERE id = ?
	`, by, toMicros(time.Now().UTC()), notes, id)
	return err
}

// Resolve transitions id to resolved.
func (r *EventRepo) Resolve(ctx context.Context, id, by, notes string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE regression_events SET status = 'resolved', resolved_by = ?, resolved_at_us = ?, notes = ?
		WHERE id = ?
	`, by, toMicros(time.Now().UTC()), notes, id)
	return err
}

// Dismiss transitions id to dismissed.
func (r *EventRepo) Dismiss(ctx context.Context, id, by, notes string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE regression_events SET status = 'dismissed', resolved_by = ?, resolved_at_us = ?, notes = ?
		WHERE id = ?
	`, by, toMicros(time.Now().UTC()), notes, id)
	return err
}

// Summary aggregates event counts in [since, until) for the daily
// summary job (analysis.EventSummarizer).
func (r *EventRepo) Summary(ctx context.Context, since, until time.Time) (newCount, ackCount, resolvedCount int, bySeverity map[model.Severity]int, err error) {
	bySeverity = map[model.Severity]int{}
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, severity, count(*)
		FROM regression_events
		WHERE detected_at_us >= ? AND detected_at_us < ?
		GROUP BY status, severity
	`, toMicros(since), toMicros(until))
	if err != nil {
		return 0, 0, 0, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var severity, n int
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
