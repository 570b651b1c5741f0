package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ftahirops/queryguard/collect"
	"github.com/ftahirops/queryguard/model"
)

// ScriptExecutor implements remediate.ScriptExecutor by running a
// remediation's action_script directly against the pool, under a
// per-call statement_timeout.
type ScriptExecutor struct {
	pool *pgxpool.Pool
}

// NewScriptExecutor returns a ScriptExecutor bound to the store's pool.
func (s *Store) NewScriptExecutor() *ScriptExecutor { return &ScriptExecutor{pool: s.pool} }

// Execute runs script under timeout, returning the affected row count
// where applicable. target is accepted for interface conformance and
// audit context; connection routing to per-instance endpoints is an
// operator/config concern outside this reference implementation.
func (e *ScriptExecutor) Execute(ctx context.Context, target model.Target, script string, timeout time.Duration) (int64, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tag, err := e.pool.Exec(execCtx, script)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// TargetExecutor implements remediate.ScriptExecutor by opening a
// short-lived connection to the target itself, resolved through the
// SecretResolver. Remediation is rare enough that pooling per target
// would only hold idle connections open against production databases.
type TargetExecutor struct {
	Secrets collect.SecretResolver
}

// NewTargetExecutor returns a ScriptExecutor connecting per call.
func NewTargetExecutor(secrets collect.SecretResolver) *TargetExecutor {
	return &TargetExecutor{Secrets: secrets}
}

// Execute connects to target, runs script under timeout, and returns
// the affected row count.
func (e *TargetExecutor) Execute(ctx context.Context, target model.Target, script string, timeout time.Duration) (int64, error) {
	dsn, err := e.Secrets.GetConnectionString(target)
	if err != nil {
		return 0, err
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := pgx.Connect(execCtx, dsn)
	if err != nil {
		return 0, err
	}
	defer conn.Close(context.Background())

	tag, err := conn.Exec(execCtx, script)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
