package litestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ftahirops/queryguard/model"
)

// FingerprintRepo implements collect.FingerprintRepo.
type FingerprintRepo struct {
	db *sql.DB
}

// Upsert inserts a new fingerprint row or touches last_seen on an
// existing one. The insert-then-select runs in one transaction on a
// single-connection handle, so racing callers for the same hash
// observe a single winning id.
func (r *FingerprintRepo) Upsert(ctx context.Context, instance, database string, hash []byte, sampleText, normalizedText string) (string, bool, error) {
	now := toMicros(time.Now().UTC())
	var id string
	var isNew bool

	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO fingerprints (id, instance_name, database_name, hash, sample_text, normalized_text, first_seen_us, last_seen_us)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_name, database_name, hash) DO NOTHING
		`, uuid.NewString(), instance, database, hash, sampleText, normalizedText, now, now)
		if err != nil {
			return err
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return err
		}
		isNew = inserted == 1

		if !isNew {
			if _, err := tx.ExecContext(ctx, `
				UPDATE fingerprints SET last_seen_us = ?
				WHERE instance_name = ? AND database_name = ? AND hash = ?
			`, now, instance, database, hash); err != nil {
				return err
			}
		}
		return tx.QueryRowContext(ctx, `
			SELECT id FROM fingerprints WHERE instance_name = ? AND database_name = ? AND hash = ?
		`, instance, database, hash).Scan(&id)
	})
	if err != nil {
		return "", false, err
	}
	return id, isNew, nil
}

// Get returns the fingerprint with the given id, or nil if unknown.
func (r *FingerprintRepo) Get(ctx context.Context, id string) (*model.Fingerprint, error) {
	var fp model.Fingerprint
	var firstSeen, lastSeen int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, instance_name, database_name, hash, sample_text, normalized_text, first_seen_us, last_seen_us
		FROM fingerprints WHERE id = ?
	`, id).Scan(&fp.ID, &fp.InstanceName, &fp.DatabaseName, &fp.Hash, &fp.SampleText, &fp.NormalizedText, &firstSeen, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fp.FirstSeenUTC = fromMicros(firstSeen)
	fp.LastSeenUTC = fromMicros(lastSeen)
	return &fp, nil
}

// ActiveFingerprints returns fingerprint ids with at least one sample
// in [since, until) for target, backing analysis.FingerprintLister.
func (r *FingerprintRepo) ActiveFingerprints(ctx context.Context, target model.Target, since, until time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT fingerprint_id
		FROM samples
		WHERE instance_name = ? AND database_name = ?
			AND sampled_at_us >= ? AND sampled_at_us < ?
	`, target.InstanceName, target.DatabaseName, toMicros(since), toMicros(until))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
