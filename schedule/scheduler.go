// Package schedule drives the recurring jobs — collection, analysis,
// baseline rebuild, daily summary — each on its own cadence, with
// no-overlap per job, linear backoff on error, and a daemon-wide
// consecutive-failure threshold.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/ftahirops/queryguard/internal/logx"
)

var log = logx.New("schedule")

// DefaultBackoff is the linear backoff applied after a job error
// before its next scheduled run.
const DefaultBackoff = 30 * time.Second

// DefaultMaxConsecutiveFailures terminates the daemon once a single
// job fails this many times in a row.
const DefaultMaxConsecutiveFailures = 10

// Job is one recurring scheduler entry. Run must honor ctx
// cancellation and return promptly once it is cancelled.
type Job struct {
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) error

	// next computes the duration to wait before the job's next tick,
	// given "now". Interval-based jobs return a constant; daily jobs
	// compute time until the configured hour.
	next func(now time.Time) time.Duration
}

// EveryInterval returns a next() schedule that fires at a fixed
// interval.
func EveryInterval(interval time.Duration) func(time.Time) time.Duration {
	return func(time.Time) time.Duration { return interval }
}

// DailyAt returns a next() schedule that fires once at hour:minute UTC
// each day.
func DailyAt(hour, minute int) func(time.Time) time.Duration {
	return func(now time.Time) time.Duration {
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next.Sub(now)
	}
}

// Scheduler runs a set of Jobs concurrently, each on its own cadence,
// with per-job no-overlap, linear backoff on error, and a daemon-wide
// failure threshold.
type Scheduler struct {
	jobs                   []Job
	backoff                time.Duration
	maxConsecutiveFailures int
}

// New returns a Scheduler with default backoff and failure threshold.
func New() *Scheduler {
	return &Scheduler{backoff: DefaultBackoff, maxConsecutiveFailures: DefaultMaxConsecutiveFailures}
}

// WithBackoff overrides the default linear backoff.
func (s *Scheduler) WithBackoff(d time.Duration) *Scheduler { s.backoff = d; return s }

// WithMaxConsecutiveFailures overrides the default fatal threshold;
// zero disables the threshold (daemon never self-terminates on job
// failures alone).
func (s *Scheduler) WithMaxConsecutiveFailures(n int) *Scheduler {
	s.maxConsecutiveFailures = n
	return s
}

// AddInterval registers a fixed-cadence job (e.g. collection every 5m).
func (s *Scheduler) AddInterval(name string, interval, timeout time.Duration, run func(ctx context.Context) error) {
	s.jobs = append(s.jobs, Job{Name: name, Timeout: timeout, Run: run, next: EveryInterval(interval)})
}

// AddDailyAt registers a once-a-day job firing at hour:minute UTC
// (e.g. baseline rebuild, daily summary).
func (s *Scheduler) AddDailyAt(name string, hour, minute int, timeout time.Duration, run func(ctx context.Context) error) {
	s.jobs = append(s.jobs, Job{Name: name, Timeout: timeout, Run: run, next: DailyAt(hour, minute)})
}

// Run blocks, driving every registered job on its own goroutine, until
// ctx is cancelled or a job's consecutive failures reach
// maxConsecutiveFailures.
func (s *Scheduler) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var fatalErr error

	for _, job := range s.jobs {
		job := job
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runJob(runCtx, job, func(err error) {
				mu.Lock()
				if fatalErr == nil {
					fatalErr = err
				}
				mu.Unlock()
				cancel()
			})
		}()
	}

	wg.Wait()
	return fatalErr
}

// runJob drives a single job's lifecycle: wait for its next tick, run
// it under its timeout (skipping if the prior run is still in flight
// is structurally impossible here since each job runs sequentially on
// its own goroutine — "jobs do not overlap with themselves" holds by
// construction), back off linearly on error, and call onFatal once
// consecutive failures reach the threshold.
func (s *Scheduler) runJob(ctx context.Context, job Job, onFatal func(error)) {
	consecutiveFailures := 0

	for {
		wait := job.next(time.Now().UTC())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		jobCtx := ctx
		var cancel context.CancelFunc
		if job.Timeout > 0 {
			jobCtx, cancel = context.WithTimeout(ctx, job.Timeout)
		}
		err := job.Run(jobCtx)
		if cancel != nil {
			cancel()
		}

		if ctx.Err() != nil {
			return
		}

		if err != nil {
			consecutiveFailures++
			log.Error("job %s failed (%d consecutive): %v", job.Name, consecutiveFailures, err)
			if s.maxConsecutiveFailures > 0 && consecutiveFailures >= s.maxConsecutiveFailures {
				onFatal(err)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.backoff):
			}
			continue
		}
		consecutiveFailures = 0
	}
}
