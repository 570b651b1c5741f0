package remediate

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ftahirops/queryguard/internal/errs"
	"github.com/ftahirops/queryguard/model"
)

// denylistTokens are case-insensitive substrings that refuse a script
// outright regardless of type or flags.
var denylistTokens = []string{
	"DROP", "TRUNCATE", "SHUTDOWN", "XP_CMDSHELL", "SP_CONFIGURE",
	"OPENROWSET", "OPENDATASOURCE",
}

var deleteWithoutWhereRe = regexp.MustCompile(`(?is)\bDELETE\s+FROM\s+[^\s;]+\s*(;|$)`)

// ScriptExecutor runs a validated remediation script against a
// target's database. Implementations own their
// own connection lifecycle.
type ScriptExecutor interface {
	Execute(ctx context.Context, target model.Target, script string, timeout time.Duration) (rowsAffected int64, err error)
}

// AuditRepo is the append-only audit contract, extended with the
// lookup the executor needs for gate 6 ("has not been applied before").
type AuditRepo interface {
	Append(ctx context.Context, record model.RemediationAudit) error
	HasSucceeded(ctx context.Context, target model.Target, fingerprintID string, t model.RemediationType) (bool, error)
}

// ExecutorConfig holds the Executor's static policy, snapshotted once
// per invocation rather than hot-reloaded.
type ExecutorConfig struct {
	EnableRemediation           bool
	AllowProductionRemediation  bool
	AutoExecuteTypes            map[model.RemediationType]bool
	CommandTimeout              time.Duration // default 60s
	AllowReapply                bool          // explicit override of gate 6
}

// Executor is the Remediation Executor.
type Executor struct {
	Runner ScriptExecutor
	Audit  AuditRepo
	Config ExecutorConfig
}

// NewExecutor returns an Executor, defaulting CommandTimeout to 60s
// when the caller leaves it zero.
func NewExecutor(runner ScriptExecutor, audit AuditRepo, cfg ExecutorConfig) *Executor {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 60 * time.Second
	}
	return &Executor{Runner: runner, Audit: audit, Config: cfg}
}

// ExecutionResult is the outcome of one ExecuteAsync call.
type ExecutionResult struct {
	Success      bool
	RowsAffected int64
	Duration     time.Duration
	RefusalCode  errs.RefusalCode // empty unless refused
	Err          error
}

// ExecuteAsync runs the gate sequence and, if every gate
// passes, executes the suggestion's action_script under
// CommandTimeout. Every call — including refusals and dry runs —
// produces exactly one RemediationAudit entry.
func (x *Executor) ExecuteAsync(ctx context.Context, target model.Target, fingerprintID string, s model.RemediationSuggestion, initiatedBy string, dryRun bool) ExecutionResult {
	start := time.Now()

	if refusal := x.checkGates(ctx, target, fingerprintID, s); refusal != "" {
		result := ExecutionResult{RefusalCode: refusal, Err: &errs.RemediationRefused{Code: refusal}}
		x.audit(ctx, target, fingerprintID, s, initiatedBy, false, false, result.Err.Error(), 0)
		return result
	}

	if dryRun {
		x.audit(ctx, target, fingerprintID, s, initiatedBy, true, false, "", 0)
		return ExecutionResult{Success: false}
	}

	timeout := x.Config.CommandTimeout
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := x.Runner.Execute(execCtx, target, s.ActionScript, timeout)
	duration := time.Since(start)

	if err != nil {
		execErr := &errs.RemediationExecError{Cause: err}
		x.audit(ctx, target, fingerprintID, s, initiatedBy, false, false, execErr.Error(), duration)
		return ExecutionResult{Success: false, Duration: duration, Err: execErr}
	}

	x.audit(ctx, target, fingerprintID, s, initiatedBy, false, true, "", duration)
	return ExecutionResult{Success: true, RowsAffected: rows, Duration: duration}
}

// checkGates runs the gate sequence in order and returns the
// first failing gate's refusal code, or "" if every gate passes.
func (x *Executor) checkGates(ctx context.Context, target model.Target, fingerprintID string, s model.RemediationSuggestion) errs.RefusalCode {
	if !x.Config.EnableRemediation {
		return errs.RefusalRemediationDisabled
	}
	if target.IsProduction() && !x.Config.AllowProductionRemediation {
		return errs.RefusalProductionBlocked
	}
	if s.Safety != model.SafetySafe {
		return errs.RefusalUnsafeType
	}
	if !x.Config.AutoExecuteTypes[s.Type] {
		return errs.RefusalTypeNotAllowed
	}
	if strings.TrimSpace(s.ActionScript) == "" {
		return errs.RefusalEmptyScript
	}
	if reason := containsDenylistedToken(s.ActionScript); reason {
		return errs.RefusalDenylisted
	}
	if !x.Config.AllowReapply {
		applied, err := x.Audit.HasSucceeded(ctx, target, fingerprintID, s.Type)
		if err == nil && applied {
			return errs.RefusalAlreadyApplied
		}
	}
	return ""
}

// containsDenylistedToken reports whether script contains any
// denylisted token (case-insensitive substring) or an unqualified
// DELETE FROM <table> with no WHERE clause.
func containsDenylistedToken(script string) bool {
	upper := strings.ToUpper(script)
	for _, token := range denylistTokens {
		if strings.Contains(upper, token) {
			return true
		}
	}
	return deleteWithoutWhereRe.MatchString(script)
}

func (x *Executor) audit(ctx context.Context, target model.Target, fingerprintID string, s model.RemediationSuggestion, initiatedBy string, dryRun, success bool, errMsg string, duration time.Duration) {
	record := model.RemediationAudit{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Target:        target,
		FingerprintID: fingerprintID,
		Type:          s.Type,
		Script:        s.ActionScript,
		IsDryRun:      dryRun,
		Success:       success,
		Error:         errMsg,
		Duration:      duration,
		InitiatedBy:   initiatedBy,
	}
	_ = x.Audit.Append(ctx, record) // audit append failure has no recovery path here: it is itself the record of last resort
}
