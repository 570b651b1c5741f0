package remediate

import (
	"context"
	"testing"
	"time"

	"github.com/ftahirops/queryguard/internal/errs"
	"github.com/ftahirops/queryguard/model"
)

type fakeRunner struct {
	calls int
	err   error
	rows  int64
}

func (f *fakeRunner) Execute(ctx context.Context, target model.Target, script string, timeout time.Duration) (int64, error) {
	f.calls++
	return f.rows, f.err
}

type fakeAuditRepo struct {
	records []model.RemediationAudit
	applied bool
}

func (f *fakeAuditRepo) Append(ctx context.Context, record model.RemediationAudit) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeAuditRepo) HasSucceeded(ctx context.Context, target model.Target, fingerprintID string, t model.RemediationType) (bool, error) {
	return f.applied, nil
}

func TestExecutorRefusesWhenRemediationDisabled(t *testing.T) {
	// Disabled remediation refuses before any gate below it is consulted.
	runner := &fakeRunner{}
	audit := &fakeAuditRepo{}
	x := NewExecutor(runner, audit, ExecutorConfig{EnableRemediation: false})

	suggestion := model.RemediationSuggestion{Type: model.RemediationUpdateStatistics, Safety: model.SafetySafe, ActionScript: "UPDATE STATISTICS T;"}
	result := x.ExecuteAsync(context.Background(), model.Target{}, "fp1", suggestion, "operator", false)

	if result.RefusalCode != errs.RefusalRemediationDisabled {
		t.Fatalf("RefusalCode = %s, want %s", result.RefusalCode, errs.RefusalRemediationDisabled)
	}
	if runner.calls != 0 {
		t.Fatal("expected no execution when remediation disabled")
	}
	if len(audit.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(audit.records))
	}
	rec := audit.records[0]
	if rec.IsDryRun || rec.Success {
		t.Fatalf("audit record = %+v, want is_dry_run=false success=false", rec)
	}
}

func TestExecutorBlocksDenylistedScript(t *testing.T) {
	// A denylisted token refuses even a safe, allowlisted type.
	runner := &fakeRunner{}
	audit := &fakeAuditRepo{}
	x := NewExecutor(runner, audit, ExecutorConfig{
		EnableRemediation: true,
		AutoExecuteTypes:  map[model.RemediationType]bool{model.RemediationUpdateStatistics: true},
	})

	suggestion := model.RemediationSuggestion{
		Type:         model.RemediationUpdateStatistics,
		Safety:       model.SafetySafe,
		ActionScript: "UPDATE STATISTICS T; DROP INDEX ix;",
	}
	result := x.ExecuteAsync(context.Background(), model.Target{}, "fp1", suggestion, "operator", false)

	if result.RefusalCode != errs.RefusalDenylisted {
		t.Fatalf("RefusalCode = %s, want %s", result.RefusalCode, errs.RefusalDenylisted)
	}
	if runner.calls != 0 {
		t.Fatal("expected no execution for a denylisted script")
	}
	if len(audit.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(audit.records))
	}
}

func TestExecutorRefusesRequiresReviewSafety(t *testing.T) {
	runner := &fakeRunner{}
	audit := &fakeAuditRepo{}
	x := NewExecutor(runner, audit, ExecutorConfig{
		EnableRemediation: true,
		AutoExecuteTypes:  map[model.RemediationType]bool{model.RemediationCreateIndex: true},
	})

	suggestion := model.RemediationSuggestion{Type: model.RemediationCreateIndex, Safety: model.SafetyRequiresReview, ActionScript: "CREATE INDEX ix ON t(c);"}
	result := x.ExecuteAsync(context.Background(), model.Target{}, "fp1", suggestion, "operator", false)

	if result.RefusalCode != errs.RefusalUnsafeType {
		t.Fatalf("RefusalCode = %s, want %s", result.RefusalCode, errs.RefusalUnsafeType)
	}
}

func TestExecutorDryRunNeverExecutes(t *testing.T) {
	runner := &fakeRunner{}
	audit := &fakeAuditRepo{}
	x := NewExecutor(runner, audit, ExecutorConfig{
		EnableRemediation: true,
		AutoExecuteTypes:  map[model.RemediationType]bool{model.RemediationUpdateStatistics: true},
	})

	suggestion := model.RemediationSuggestion{Type: model.RemediationUpdateStatistics, Safety: model.SafetySafe, ActionScript: "UPDATE STATISTICS T WITH FULLSCAN;"}
	result := x.ExecuteAsync(context.Background(), model.Target{}, "fp1", suggestion, "operator", true)

	if runner.calls != 0 {
		t.Fatal("dry run must never invoke the runner")
	}
	if result.Success {
		t.Fatal("dry run result must not report success")
	}
	if len(audit.records) != 1 || !audit.records[0].IsDryRun {
		t.Fatalf("expected a single is_dry_run=true audit record, got %+v", audit.records)
	}
}

func TestExecutorSucceeds(t *testing.T) {
	runner := &fakeRunner{rows: 1}
	audit := &fakeAuditRepo{}
	x := NewExecutor(runner, audit, ExecutorConfig{
		EnableRemediation: true,
		AutoExecuteTypes:  map[model.RemediationType]bool{model.RemediationUpdateStatistics: true},
	})

	suggestion := model.RemediationSuggestion{Type: model.RemediationUpdateStatistics, Safety: model.SafetySafe, ActionScript: "UPDATE STATISTICS T WITH FULLSCAN;"}
	result := x.ExecuteAsync(context.Background(), model.Target{}, "fp1", suggestion, "operator", false)

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if runner.calls != 1 {
		t.Fatalf("runner calls = %d, want 1", runner.calls)
	}
}

func TestAdvisorNeverUpgradesSafety(t *testing.T) {
	a := NewAdvisor()
	evt := model.RegressionEvent{Type: model.RegressionLogicalReads, ChangePercent: 150}
	for _, s := range a.Propose(evt) {
		if s.Safety != model.SafetyFor(s.Type) {
			t.Errorf("suggestion %s safety = %s, want %s (fixed table value)", s.Type, s.Safety, model.SafetyFor(s.Type))
		}
	}
}
