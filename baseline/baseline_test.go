package baseline

import (
	"context"
	"testing"
	"time"

	"github.com/ftahirops/queryguard/model"
)

type fakeSampleReader struct {
	samples []model.Sample
}

func (f *fakeSampleReader) GetInWindow(ctx context.Context, fingerprintID string, target *model.Target, since, until time.Time) ([]model.Sample, error) {
	return f.samples, nil
}

type fakeRepo struct {
	saved []model.Baseline
}

func (f *fakeRepo) GetActive(ctx context.Context, fingerprintID string) (*model.Baseline, error) {
	for i := len(f.saved) - 1; i >= 0; i-- {
		if f.saved[i].IsActive {
			return &f.saved[i], nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) Save(ctx context.Context, b model.Baseline) error {
	for i := range f.saved {
		if f.saved[i].IsActive {
			f.saved[i].IsActive = false
			f.saved[i].SupersededAtUTC = time.Now().UTC()
		}
	}
	f.saved = append(f.saved, b)
	return nil
}

func makeSamples(n int, planHash []byte) []model.Sample {
	samples := make([]model.Sample, n)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		samples[i] = model.Sample{
			AvgDurationUs:   float64(1000 + i*10),
			AvgCPUUs:        float64(500 + i*5),
			AvgLogicalReads: float64(100 + i),
			ExecCountDelta:  10,
			PlanHash:        planHash,
			SampledAtUTC:    base.Add(time.Duration(i) * time.Minute),
		}
	}
	return samples
}

func TestBuildRefusesBelowMinSamples(t *testing.T) {
	reader := &fakeSampleReader{samples: makeSamples(3, nil)}
	repo := &fakeRepo{}
	b := NewBuilder(reader, repo)

	if _, err := b.Build(context.Background(), "fp1", 7*24*time.Hour); err == nil {
		t.Fatal("expected error when sample count below minimum")
	}
}

func TestBuildComputesPercentiles(t *testing.T) {
	reader := &fakeSampleReader{samples: makeSamples(20, []byte{0xAB})}
	repo := &fakeRepo{}
	b := NewBuilder(reader, repo)

	got, err := b.Build(context.Background(), "fp1", 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !got.IsActive {
		t.Fatal("new baseline must be active")
	}
	if got.SampleCount != 20 {
		t.Errorf("SampleCount = %d, want 20", got.SampleCount)
	}
	if got.MedianDurationUs <= 0 {
		t.Errorf("MedianDurationUs = %v, want > 0", got.MedianDurationUs)
	}
	if got.P95DurationUs < got.MedianDurationUs {
		t.Errorf("P95 (%v) should be >= median (%v)", got.P95DurationUs, got.MedianDurationUs)
	}
}

func TestBuildSupersessionIsAtomicAndUnique(t *testing.T) {
	reader := &fakeSampleReader{samples: makeSamples(20, nil)}
	repo := &fakeRepo{}
	b := NewBuilder(reader, repo)

	if _, err := b.Build(context.Background(), "fp1", time.Hour); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := b.Build(context.Background(), "fp1", time.Hour); err != nil {
		t.Fatalf("second build: %v", err)
	}

	activeCount := 0
	for _, saved := range repo.saved {
		if saved.IsActive {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Fatalf("active baseline count = %d, want 1", activeCount)
	}
}
