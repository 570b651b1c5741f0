// Package pgstore is a Postgres-backed implementation of the store
// contracts (fingerprint, snapshot, sample, baseline, event, and
// audit repos) plus a pg_stat_statements stats source.
package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ftahirops/queryguard/internal/logx"
)

var log = logx.New("pgstore")

// Store holds the shared connection pool every repo in this package
// is built from.
type Store struct {
	pool *pgxpool.Pool
}

// Open parses connString, builds a pool sized for a monitoring
// daemon's bursty-but-light query pattern, and verifies connectivity
// with a single Ping before returning.
func Open(ctx context.Context, connString string, maxConns int) (*Store, error) {
	if maxConns <= 0 {
		maxConns = 8
	}
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse pgstore dsn: %w", err)
	}

	poolConfig.MaxConns = int32(maxConns)
	poolConfig.MinConns = int32(maxConns / 4)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	poolConfig.ConnConfig.RuntimeParams = map[string]string{
		"application_name":  "queryguard",
		"statement_timeout": "30000",
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgstore pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pgstore: %w", err)
	}
	log.Info("pgstore connected max_conns=%d", maxConns)
	return &Store{pool: pool}, nil
}

// Close releases every pooled connection.
func (s *Store) Close() {
	s.pool.Close()
}

// Fingerprints returns the FingerprintRepo view of this store.
func (s *Store) Fingerprints() *FingerprintRepo { return &FingerprintRepo{pool: s.pool} }

// Snapshots returns the SnapshotStore view of this store.
func (s *Store) Snapshots() *SnapshotStore { return &SnapshotStore{pool: s.pool} }

// Samples returns the SampleStore view of this store.
func (s *Store) Samples() *SampleStore { return &SampleStore{pool: s.pool} }

// Baselines returns the BaselineRepo view of this store.
func (s *Store) Baselines() *BaselineRepo { return &BaselineRepo{pool: s.pool} }

// Events returns the EventRepo view of this store.
func (s *Store) Events() *EventRepo { return &EventRepo{pool: s.pool} }

// Audits returns the AuditRepo view of this store.
func (s *Store) Audits() *AuditRepo { return &AuditRepo{pool: s.pool} }
