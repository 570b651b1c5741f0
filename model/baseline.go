package model

import "time"

// Baseline is a percentile/stddev summary of historical samples used
// as the reference point for regression detection. At most one
// baseline per fingerprint may have IsActive == true at any time;
// supersession (flipping the old active baseline off and inserting the
// new one) is atomic (see baseline.Builder.Build).
type Baseline struct {
	ID              string
	FingerprintID   string
	WindowStartUTC  time.Time
	WindowEndUTC    time.Time
	SampleCount     int
	TotalExecutions int64

	MedianDurationUs float64
	P95DurationUs    float64
	P99DurationUs    float64
	MedianCPUUs      float64
	P95CPUUs         float64
	MedianLogicalRds float64
	P95LogicalRds    float64
	DurationStdDev   float64

	TypicalPlanHash []byte // optional

	IsActive       bool
	SupersededAtUTC time.Time // zero if never superseded
}
