// Package mathutil holds the small numeric helpers shared by the delta
// engine and baseline builder: counter-wrap-safe deltas, percentiles,
// and standard deviation.
package mathutil

import (
	"math"
	"sort"
)

// DeltaInt64 returns curr-prev, or curr itself (treating it as the
// post-reset cumulative total) if curr < prev — a counter reset.
// Mirrors util.Delta's uint64 counter-wrap handling, generalized to
// int64 cumulative counters.
func DeltaInt64(prev, curr int64) (delta int64, wasReset bool) {
	if curr < prev {
		return curr, true
	}
	return curr - prev, false
}

// Percentile returns the p-th percentile (0..100) of values using
// linear interpolation between order statistics. values is
// not mutated; an internal sorted copy is used.
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return values[0]
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}

	rank := (p / 100) * float64(n-1)
	lo := int(rank)
	hi := lo + 1
	frac := rank - float64(lo)
	if hi >= n {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Median is Percentile(values, 50).
func Median(values []float64) float64 {
	return Percentile(values, 50)
}

// StdDev returns the population standard deviation of values, 0 for
// fewer than 2 values.
func StdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	variance := sumSq / float64(n)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}
