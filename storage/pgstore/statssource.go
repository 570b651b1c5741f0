package pgstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ftahirops/queryguard/collect"
	"github.com/ftahirops/queryguard/internal/errs"
	"github.com/ftahirops/queryguard/model"
)

// StatsSource implements collect.StatsSource against pg_stat_statements.
// Per-instance pools are created lazily from the SecretResolver and
// reused across cycles; a pool that fails to open surfaces as a
// TargetConnectError so the orchestrator isolates the instance.
//
// pg_stat_statements reports times in milliseconds; the contract's
// counters are microseconds, converted here at the boundary.
type StatsSource struct {
	Secrets collect.SecretResolver

	mu    sync.Mutex
	pools map[string]*pgxpool.Pool
}

// NewStatsSource returns a StatsSource resolving connection strings
// through secrets.
func NewStatsSource(secrets collect.SecretResolver) *StatsSource {
	return &StatsSource{Secrets: secrets, pools: make(map[string]*pgxpool.Pool)}
}

// Close releases every per-instance pool.
func (s *StatsSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pool := range s.pools {
		pool.Close()
	}
	s.pools = make(map[string]*pgxpool.Pool)
}

func (s *StatsSource) poolFor(ctx context.Context, target model.Target) (*pgxpool.Pool, error) {
	s.mu.Lock()
	if pool, ok := s.pools[target.InstanceName]; ok {
		s.mu.Unlock()
		return pool, nil
	}
	s.mu.Unlock()

	dsn, err := s.Secrets.GetConnectionString(target)
	if err != nil {
		return nil, &errs.TargetConnectError{Target: target.Key(), Cause: err}
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, &errs.TargetConnectError{Target: target.Key(), Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.pools[target.InstanceName]; ok {
		pool.Close()
		return existing, nil
	}
	s.pools[target.InstanceName] = pool
	return pool, nil
}

// orderColumn maps the cost dimension to the pg_stat_statements
// column the top-N is ranked by. The input is a closed enum, never
// raw operator text, so interpolating the returned literal is safe.
func orderColumn(orderBy collect.OrderBy) string {
	switch orderBy {
	case collect.OrderByDuration:
		return "total_exec_time"
	case collect.OrderByLogicalReads:
		return "shared_blks_hit + shared_blks_read"
	case collect.OrderByExecutions:
		return "calls"
	default: // collect.OrderByCPU: pg has no separate CPU counter, execution time is the closest dimension
		return "total_exec_time"
	}
}

// FetchTopByCost returns the top-N statements for target's database
// ranked by the chosen cost dimension, with cumulative counters.
func (s *StatsSource) FetchTopByCost(ctx context.Context, target model.Target, topN int, window time.Duration, orderBy collect.OrderBy) ([]collect.ObservedRow, error) {
	pool, err := s.poolFor(ctx, target)
	if err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = 50
	}

	query := `
		SELECT s.queryid::text, s.query, s.calls,
		       (s.total_exec_time * 1000)::bigint,
		       s.shared_blks_hit + s.shared_blks_read,
		       s.shared_blks_written + s.shared_blks_dirtied,
		       s.blk_read_time,
		       (s.min_exec_time * 1000), (s.max_exec_time * 1000)
		FROM pg_stat_statements s
		JOIN pg_database d ON d.oid = s.dbid
		WHERE d.datname = $1
		ORDER BY ` + orderColumn(orderBy) + ` DESC
		LIMIT $2
	`
	rows, err := pool.Query(ctx, query, target.DatabaseName, topN)
	if err != nil {
		return nil, &errs.TargetQueryError{Target: target.Key(), Cause: err}
	}
	defer rows.Close()

	var out []collect.ObservedRow
	for rows.Next() {
		var r collect.ObservedRow
		var totalTimeUs int64
		var blkReadTimeMs float64
		if err := rows.Scan(&r.QueryHash, &r.SQLText, &r.ExecCount, &totalTimeUs,
			&r.TotalLogicalReads, &r.TotalLogicalWrites, &blkReadTimeMs,
			&r.MinDurationUs, &r.MaxDurationUs); err != nil {
			return nil, &errs.TargetQueryError{Target: target.Key(), Cause: err}
		}
		r.TotalDurationUs = totalTimeUs
		// Execution time less block-read wait approximates CPU; block
		// reads stand in for physical reads (pg counts blocks, not bytes).
		r.TotalCPUUs = totalTimeUs - int64(blkReadTimeMs*1000)
		if r.TotalCPUUs < 0 {
			r.TotalCPUUs = 0
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.TargetQueryError{Target: target.Key(), Cause: err}
	}
	return out, nil
}

// IsHistoricalStoreAvailable reports whether pg_stat_statements is
// installed and readable. A logging/quality hint only; the core never
// branches on it.
func (s *StatsSource) IsHistoricalStoreAvailable(ctx context.Context, target model.Target) bool {
	pool, err := s.poolFor(ctx, target)
	if err != nil {
		return false
	}
	var one int
	err = pool.QueryRow(ctx, `SELECT 1 FROM pg_extension WHERE extname = 'pg_stat_statements'`).Scan(&one)
	if err != nil && !strings.Contains(err.Error(), "no rows") {
		return false
	}
	return err == nil
}
