package detect

import "github.com/ftahirops/queryguard/model"

// RecentAggregate is one fingerprint's recent-window totals, the input
// to hotspot ranking.
type RecentAggregate struct {
	FingerprintID string
	Target        model.Target
	ExecCount     int64
	TotalValue    float64 // total of the chosen ranking metric over the window
}

// RankHotspots computes the total across all aggregates for the chosen
// metric, sorts descending, and returns the top N with
// percentage_of_total. Ties are broken by exec_count then by
// fingerprint_id.
func RankHotspots(aggregates []RecentAggregate, metric model.HotspotMetric, window string, topN int) []model.Hotspot {
	var total float64
	for _, a := range aggregates {
		total += a.TotalValue
	}

	sorted := make([]RecentAggregate, len(aggregates))
	copy(sorted, aggregates)
	sortDescending(sorted)

	if topN > 0 && len(sorted) > topN {
		sorted = sorted[:topN]
	}

	hotspots := make([]model.Hotspot, len(sorted))
	for i, a := range sorted {
		pct := 0.0
		if total > 0 {
			pct = a.TotalValue / total
		}
		avg := 0.0
		if a.ExecCount > 0 {
			avg = a.TotalValue / float64(a.ExecCount)
		}
		hotspots[i] = model.Hotspot{
			FingerprintID:     a.FingerprintID,
			Target:            a.Target,
			Window:            window,
			Rank:              i + 1,
			MetricType:        metric,
			TotalMetricValue:  a.TotalValue,
			AvgMetricValue:    avg,
			ExecCount:         a.ExecCount,
			PercentageOfTotal: pct,
		}
	}
	return hotspots
}

// sortDescending orders by TotalValue desc, then ExecCount desc, then
// FingerprintID asc. Insertion sort is
// fine: per-cycle aggregate lists are small (bounded by top_n).
func sortDescending(items []RecentAggregate) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && less(items[j], items[j-1]); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

// less reports whether a should sort before b (a ranks higher).
func less(a, b RecentAggregate) bool {
	if a.TotalValue != b.TotalValue {
		return a.TotalValue > b.TotalValue
	}
	if a.ExecCount != b.ExecCount {
		return a.ExecCount > b.ExecCount
	}
	return a.FingerprintID < b.FingerprintID
}
