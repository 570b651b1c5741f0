package collect

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ftahirops/queryguard/model"
)

// BreakingStatsSource wraps a StatsSource so a consistently failing
// target stops being hammered every tick — complementing, not
// replacing, the orchestrator's per-target timeout/isolation. Each target key
// gets its own circuit breaker, lazily created on first use.
type BreakingStatsSource struct {
	inner StatsSource

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakingStatsSource returns a StatsSource decorator that opens a
// circuit for a target after repeated consecutive failures, so
// collection cycles fail fast instead of waiting out the full
// collection_timeout against a target that is consistently down.
func NewBreakingStatsSource(inner StatsSource) *BreakingStatsSource {
	return &BreakingStatsSource{
		inner:    inner,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (b *BreakingStatsSource) breakerFor(key string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[key]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	b.breakers[key] = cb
	return cb
}

func (b *BreakingStatsSource) FetchTopByCost(ctx context.Context, target model.Target, topN int, window time.Duration, orderBy OrderBy) ([]ObservedRow, error) {
	cb := b.breakerFor(target.Key())
	result, err := cb.Execute(func() (interface{}, error) {
		return b.inner.FetchTopByCost(ctx, target, topN, window, orderBy)
	})
	if err != nil {
		return nil, err
	}
	return result.([]ObservedRow), nil
}

func (b *BreakingStatsSource) IsHistoricalStoreAvailable(ctx context.Context, target model.Target) bool {
	return b.inner.IsHistoricalStoreAvailable(ctx, target)
}
