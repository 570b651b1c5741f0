package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsJobAndStopsOnCancel(t *testing.T) {
	var calls int32
	s := New().WithBackoff(time.Millisecond)
	s.AddInterval("tick", 5*time.Millisecond, time.Second, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if atomic.LoadInt32(&calls) < 2 {
		t.Fatalf("calls = %d, want at least 2 within the test window", calls)
	}
}

func TestSchedulerFatalAfterConsecutiveFailures(t *testing.T) {
	s := New().WithBackoff(time.Millisecond).WithMaxConsecutiveFailures(3)
	s.AddInterval("always-fails", time.Millisecond, time.Second, func(ctx context.Context) error {
		return errors.New("boom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := s.Run(ctx)
	if err == nil {
		t.Fatal("expected a fatal error after repeated consecutive failures")
	}
}

func TestDailyAtComputesNextOccurrence(t *testing.T) {
	next := DailyAt(3, 0)
	now := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	d := next(now)
	want := 2 * time.Hour
	if d != want {
		t.Fatalf("DailyAt(3,0) from 01:00 = %v, want %v", d, want)
	}

	past := time.Date(2026, 1, 1, 5, 0, 0, 0, time.UTC)
	d = next(past)
	if d <= 0 || d > 24*time.Hour {
		t.Fatalf("DailyAt(3,0) from 05:00 should roll to tomorrow, got %v", d)
	}
}
