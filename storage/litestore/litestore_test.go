package litestore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ftahirops/queryguard/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFingerprintUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	repo := store.Fingerprints()

	hash := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	id1, isNew, err := repo.Upsert(ctx, "inst", "db", hash, "SELECT 1", "SELECT #")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !isNew {
		t.Error("first upsert should report new")
	}

	id2, isNew, err := repo.Upsert(ctx, "inst", "db", hash, "SELECT 2", "SELECT #")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if isNew {
		t.Error("second upsert should not report new")
	}
	if id1 != id2 {
		t.Errorf("upsert returned different ids for same hash: %s vs %s", id1, id2)
	}

	// Same hash on a different target is a distinct fingerprint row.
	id3, isNew, err := repo.Upsert(ctx, "inst", "other_db", hash, "SELECT 1", "SELECT #")
	if err != nil {
		t.Fatalf("third upsert: %v", err)
	}
	if !isNew || id3 == id1 {
		t.Error("same hash on a different database should create a new row")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	snaps := store.Snapshots()
	target := model.Target{InstanceName: "inst", DatabaseName: "db"}

	got, err := snaps.GetLast(ctx, target, "fp-1", nil)
	if err != nil {
		t.Fatalf("GetLast empty: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil snapshot before first save")
	}

	snap := model.CumulativeSnapshot{
		Target:          target,
		FingerprintID:   "fp-1",
		SnapshotTimeUTC: time.Now().UTC().Truncate(time.Microsecond),
		ExecCount:       100,
		TotalCPUUs:      5000,
	}
	if err := snaps.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Upsert replaces the prior row for the same key.
	snap.ExecCount = 150
	if err := snaps.Save(ctx, snap); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err = snaps.GetLast(ctx, target, "fp-1", nil)
	if err != nil {
		t.Fatalf("GetLast: %v", err)
	}
	if got == nil || got.ExecCount != 150 {
		t.Fatalf("got %+v, want exec_count 150", got)
	}
}

func TestBaselineSupersession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	repo := store.Baselines()

	for i := 0; i < 3; i++ {
		b := model.Baseline{
			ID:            uuid.NewString(),
			FingerprintID: "fp-1",
			WindowStartUTC: time.Now().UTC().Add(-7 * 24 * time.Hour),
			WindowEndUTC:   time.Now().UTC(),
			SampleCount:    20 + i,
			IsActive:       true,
		}
		if err := repo.Save(ctx, b); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	active, err := repo.GetActive(ctx, "fp-1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active == nil {
		t.Fatal("expected an active baseline")
	}
	if active.SampleCount != 22 {
		t.Errorf("active baseline is not the most recent build: sample_count=%d", active.SampleCount)
	}

	// At most one active row may exist.
	var count int
	if err := store.db.QueryRow(`SELECT count(*) FROM baselines WHERE fingerprint_id = 'fp-1' AND is_active`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("active baseline count = %d, want 1", count)
	}
}

func TestSampleWindowAndPurge(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	samples := store.Samples()
	target := model.Target{InstanceName: "inst", DatabaseName: "db"}
	now := time.Now().UTC()

	var batch []model.Sample
	for i := 0; i < 5; i++ {
		batch = append(batch, model.Sample{
			FingerprintID:  "fp-1",
			Target:         target,
			SampledAtUTC:   now.Add(-time.Duration(i) * time.Hour),
			ExecCountDelta: int64(10 * (i + 1)),
			AvgDurationUs:  1000,
		})
	}
	if err := samples.Append(ctx, batch); err != nil {
		t.Fatalf("append: %v", err)
	}

	inWindow, err := samples.GetInWindow(ctx, "fp-1", &target, now.Add(-90*time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetInWindow: %v", err)
	}
	if len(inWindow) != 2 {
		t.Fatalf("window returned %d samples, want 2", len(inWindow))
	}
	if !inWindow[0].SampledAtUTC.Before(inWindow[1].SampledAtUTC) {
		t.Error("samples not ordered by sampled_at")
	}

	purged, err := samples.PurgeOlderThan(ctx, now.Add(-150*time.Minute))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 2 {
		t.Errorf("purged %d, want 2", purged)
	}
}

func TestEventLifecycleRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	events := store.Events()
	target := model.Target{InstanceName: "inst", DatabaseName: "db"}

	evt := model.RegressionEvent{
		FingerprintID: "fp-1",
		Target:        target,
		DetectedAtUTC: time.Now().UTC(),
		Type:          model.RegressionDuration,
		MetricName:    "p95_duration_us",
		BaselineValue: 1000,
		CurrentValue:  1600,
		ChangePercent: 60,
		Severity:      model.SeverityLow,
		Status:        model.StatusNew,
	}
	if err := events.Save(ctx, evt); err != nil {
		t.Fatalf("save: %v", err)
	}

	active, err := events.GetActiveByFingerprint(ctx, "fp-1")
	if err != nil {
		t.Fatalf("GetActiveByFingerprint: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active events = %d, want 1", len(active))
	}

	if err := events.Acknowledge(ctx, active[0].ID, "dba", "looking"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if err := events.Resolve(ctx, active[0].ID, "dba", "fixed"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	active, err = events.GetActiveByFingerprint(ctx, "fp-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("resolved event still listed as active")
	}

	newCount, ackCount, resolvedCount, _, err := events.Summary(ctx, time.Now().UTC().Add(-time.Hour), time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if newCount != 0 || ackCount != 0 || resolvedCount != 1 {
		t.Errorf("summary = (%d,%d,%d), want (0,0,1)", newCount, ackCount, resolvedCount)
	}
}

func TestAuditAppendAndCounts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	audits := store.Audits()
	target := model.Target{InstanceName: "inst", DatabaseName: "db"}
	now := time.Now().UTC()

	records := []model.RemediationAudit{
		{Timestamp: now, Target: target, FingerprintID: "fp-1", Type: model.RemediationUpdateStatistics, Success: true},
		{Timestamp: now, Target: target, FingerprintID: "fp-1", Type: model.RemediationForcePlan, Success: false, Error: "denylisted_token"},
		{Timestamp: now, Target: target, FingerprintID: "fp-2", Type: model.RemediationForcePlan, IsDryRun: true},
	}
	for _, rec := range records {
		if err := audits.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	ok, err := audits.HasSucceeded(ctx, target, "fp-1", model.RemediationUpdateStatistics)
	if err != nil || !ok {
		t.Errorf("HasSucceeded(update_statistics) = %v, %v; want true", ok, err)
	}
	ok, err = audits.HasSucceeded(ctx, target, "fp-2", model.RemediationForcePlan)
	if err != nil || ok {
		t.Errorf("dry run must not count as applied")
	}

	executed, refused, err := audits.CountsInWindow(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if executed != 1 || refused != 1 {
		t.Errorf("counts = (%d,%d), want (1,1)", executed, refused)
	}
}
