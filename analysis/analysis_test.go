package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/ftahirops/queryguard/model"
)

type fakeEventRepo struct {
	events map[string]model.RegressionEvent
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: map[string]model.RegressionEvent{}}
}

func (f *fakeEventRepo) Save(ctx context.Context, e model.RegressionEvent) error {
	if e.ID == "" {
		e.ID = "evt-" + e.FingerprintID + "-" + string(e.Type)
	}
	f.events[e.ID] = e
	return nil
}

func (f *fakeEventRepo) GetActiveByFingerprint(ctx context.Context, fingerprintID string) ([]model.RegressionEvent, error) {
	var out []model.RegressionEvent
	for _, e := range f.events {
		if e.FingerprintID == fingerprintID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) Acknowledge(ctx context.Context, id, by, notes string) error {
	e := f.events[id]
	e.Status = model.StatusAcknowledged
	e.AcknowledgedBy = by
	f.events[id] = e
	return nil
}

func (f *fakeEventRepo) Resolve(ctx context.Context, id, by, notes string) error {
	e := f.events[id]
	e.Status = model.StatusResolved
	e.ResolvedBy = by
	f.events[id] = e
	return nil
}

func (f *fakeEventRepo) Dismiss(ctx context.Context, id, by, notes string) error {
	e := f.events[id]
	e.Status = model.StatusDismissed
	f.events[id] = e
	return nil
}

func TestLifecycleValidTransitions(t *testing.T) {
	repo := newFakeEventRepo()
	evt := model.RegressionEvent{ID: "e1", Status: model.StatusNew}
	repo.events[evt.ID] = evt
	lc := Lifecycle{Events: repo}

	if err := lc.Acknowledge(context.Background(), evt, "alice", ""); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	evt = repo.events["e1"]
	if evt.Status != model.StatusAcknowledged {
		t.Fatalf("status = %s, want acknowledged", evt.Status)
	}
	if err := lc.Resolve(context.Background(), evt, "alice", ""); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if repo.events["e1"].Status != model.StatusResolved {
		t.Fatalf("status = %s, want resolved", repo.events["e1"].Status)
	}
}

func TestLifecycleRejectsInvalidTransition(t *testing.T) {
	repo := newFakeEventRepo()
	evt := model.RegressionEvent{ID: "e1", Status: model.StatusResolved}
	repo.events[evt.ID] = evt
	lc := Lifecycle{Events: repo}

	if err := lc.Acknowledge(context.Background(), evt, "alice", ""); err == nil {
		t.Fatal("expected error transitioning out of terminal state resolved")
	}
}

func TestLifecycleDismissFromNew(t *testing.T) {
	repo := newFakeEventRepo()
	evt := model.RegressionEvent{ID: "e1", Status: model.StatusNew}
	repo.events[evt.ID] = evt
	lc := Lifecycle{Events: repo}

	if err := lc.Dismiss(context.Background(), evt, "bob", "false positive"); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	if repo.events["e1"].Status != model.StatusDismissed {
		t.Fatalf("status = %s, want dismissed", repo.events["e1"].Status)
	}
}

type fakeFingerprintLister struct {
	ids []string
}

func (f *fakeFingerprintLister) ActiveFingerprints(ctx context.Context, target model.Target, since, until time.Time) ([]string, error) {
	return f.ids, nil
}

type fakeBaselineReader struct {
	baseline *model.Baseline
}

func (f *fakeBaselineReader) GetActive(ctx context.Context, fingerprintID string) (*model.Baseline, error) {
	return f.baseline, nil
}

type fakeSampleReader struct {
	samples []model.Sample
}

func (f *fakeSampleReader) GetInWindow(ctx context.Context, fingerprintID string, target *model.Target, since, until time.Time) ([]model.Sample, error) {
	return f.samples, nil
}

func TestOrchestratorDedupesRepeatedRegression(t *testing.T) {
	target := model.Target{InstanceName: "sql01", DatabaseName: "orders"}
	baseline := &model.Baseline{SampleCount: 20, P95DurationUs: 1_000_000}
	samples := []model.Sample{
		{FingerprintID: "fp1", Target: target, ExecCountDelta: 10, AvgDurationUs: 2_000_000, SampledAtUTC: time.Now()},
	}

	events := newFakeEventRepo()
	o := NewOrchestrator(&fakeFingerprintLister{ids: []string{"fp1"}}, &fakeBaselineReader{baseline: baseline}, &fakeSampleReader{samples: samples}, events)

	first := o.Run(context.Background(), []model.Target{target}, time.Hour)
	if first.EventsCreated != 1 {
		t.Fatalf("first run EventsCreated = %d, want 1", first.EventsCreated)
	}

	second := o.Run(context.Background(), []model.Target{target}, time.Hour)
	if second.EventsCreated != 0 {
		t.Fatalf("second run EventsCreated = %d, want 0 (deduplicated)", second.EventsCreated)
	}
}
