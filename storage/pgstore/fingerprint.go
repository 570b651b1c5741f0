package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ftahirops/queryguard/model"
)

// FingerprintRepo implements collect.FingerprintRepo.
type FingerprintRepo struct {
	pool *pgxpool.Pool
}

// Upsert inserts a new fingerprint row or touches last_seen_utc on an
// existing one, atomically, via INSERT ... ON CONFLICT.
func (r *FingerprintRepo) Upsert(ctx context.Context, instance, database string, hash []byte, sampleText, normalizedText string) (string, bool, error) {
	now := time.Now().UTC()
	var id string
	var isNew bool
	err := r.pool.QueryRow(ctx, `
		INSERT INTO fingerprints (instance_name, database_name, hash, sample_text, normalized_text, first_seen_utc, last_seen_utc)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (instance_name, database_name, hash) DO UPDATE
			SET last_seen_utc = EXCLUDED.last_seen_utc
		RETURNING id, (xmax = 0)
	`, instance, database, hash, sampleText, normalizedText, now).Scan(&id, &isNew)
	if err != nil {
		return "", false, err
	}
	return id, isNew, nil
}

// Get returns the fingerprint with the given id, or nil if unknown.
func (r *FingerprintRepo) Get(ctx context.Context, id string) (*model.Fingerprint, error) {
	var fp model.Fingerprint
	err := r.pool.QueryRow(ctx, `
		SELECT id, instance_name, database_name, hash, sample_text, normalized_text, first_seen_utc, last_seen_utc
		FROM fingerprints WHERE id = $1
	`, id).Scan(&fp.ID, &fp.InstanceName, &fp.DatabaseName, &fp.Hash, &fp.SampleText, &fp.NormalizedText, &fp.FirstSeenUTC, &fp.LastSeenUTC)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fp, nil
}

// ActiveFingerprints returns fingerprint ids with at least one sample
// in [since, until) for target, backing analysis.FingerprintLister.
func (r *FingerprintRepo) ActiveFingerprints(ctx context.Context, target model.Target, since, until time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT fingerprint_id
		FROM samples
		WHERE instance_name = $1 AND database_name = $2
			AND sampled_at_utc >= $3 AND sampled_at_utc < $4
	`, target.InstanceName, target.DatabaseName, since, until)
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
