package collect

import (
	"testing"
	"time"

	"github.com/ftahirops/queryguard/model"
)

var testTarget = model.Target{InstanceName: "sql01", DatabaseName: "orders"}

func TestDeltaBootstrap(t *testing.T) {
	row := ObservedRow{ExecCount: 1000, TotalCPUUs: 2_000_000}
	sample, snapshot := Delta(nil, row, testTarget, "fp1", time.Now())

	if sample.ExecCountDelta != 1000 {
		t.Fatalf("ExecCountDelta = %d, want 1000", sample.ExecCountDelta)
	}
	if sample.AvgCPUUs != 2000 {
		t.Fatalf("AvgCPUUs = %v, want 2000", sample.AvgCPUUs)
	}
	if snapshot.ExecCount != 1000 {
		t.Fatalf("snapshot.ExecCount = %d, want 1000", snapshot.ExecCount)
	}
}

func TestDeltaCounterReset(t *testing.T) {
	prev := &model.CumulativeSnapshot{ExecCount: 5000, TotalCPUUs: 10_000_000}
	row := ObservedRow{ExecCount: 200, TotalCPUUs: 400_000}

	sample, snapshot := Delta(prev, row, testTarget, "fp1", time.Now())

	if sample.ExecCountDelta != 200 {
		t.Fatalf("ExecCountDelta = %d, want 200 (reset)", sample.ExecCountDelta)
	}
	if !sample.WasReset {
		t.Fatalf("WasReset = false, want true")
	}
	if snapshot.ExecCount != 200 {
		t.Fatalf("snapshot.ExecCount = %d, want 200", snapshot.ExecCount)
	}
}

func TestDeltaNormalInterval(t *testing.T) {
	prev := &model.CumulativeSnapshot{
		ExecCount: 100, TotalCPUUs: 1000, TotalDurationUs: 2000,
		TotalLogicalReads: 500, TotalLogicalWrite: 10, TotalPhysicalRead: 5,
	}
	row := ObservedRow{
		ExecCount: 150, TotalCPUUs: 1500, TotalDurationUs: 3000,
		TotalLogicalReads: 800, TotalLogicalWrites: 20, TotalPhysicalReads: 8,
	}

	sample, _ := Delta(prev, row, testTarget, "fp1", time.Now())

	if sample.ExecCountDelta != 50 {
		t.Fatalf("ExecCountDelta = %d, want 50", sample.ExecCountDelta)
	}
	if sample.TotalCPUUsDelta != 500 {
		t.Fatalf("TotalCPUUsDelta = %d, want 500", sample.TotalCPUUsDelta)
	}
	if sample.AvgLogicalReads != 6 {
		t.Fatalf("AvgLogicalReads = %v, want 6", sample.AvgLogicalReads)
	}
	if sample.WasReset {
		t.Fatalf("WasReset = true, want false")
	}
}

func TestDeltaClampsNegative(t *testing.T) {
	// exec_count increased but total_cpu_us somehow decreased; the CPU
	// delta must clamp to 0 rather than go negative.
	prev := &model.CumulativeSnapshot{ExecCount: 100, TotalCPUUs: 5000}
	row := ObservedRow{ExecCount: 110, TotalCPUUs: 4000}

	sample, _ := Delta(prev, row, testTarget, "fp1", time.Now())

	if sample.TotalCPUUsDelta != 0 {
		t.Fatalf("TotalCPUUsDelta = %d, want clamped 0", sample.TotalCPUUsDelta)
	}
}

func TestResolveCascade(t *testing.T) {
	global := CascadeLevel{TopN: 50, Lookback: time.Hour, CollectionTimeout: 10 * time.Second}
	instance := CascadeLevel{TopN: 100}
	database := CascadeLevel{CollectionTimeout: 30 * time.Second}

	got := ResolveCascade(global, instance, database)

	if got.TopN != 100 {
		t.Errorf("TopN = %d, want 100 (instance override)", got.TopN)
	}
	if got.Lookback != time.Hour {
		t.Errorf("Lookback = %v, want inherited global value", got.Lookback)
	}
	if got.CollectionTimeout != 30*time.Second {
		t.Errorf("CollectionTimeout = %v, want 30s (database override)", got.CollectionTimeout)
	}
}
