// Package detect implements the regression rules engine and the
// hotspot ranker.
package detect

import (
	"bytes"
	"time"

	"github.com/ftahirops/queryguard/model"
)

// Rules are the Regression Detector's threshold parameters.
type Rules struct {
	DurationThresholdPercent     float64 // default 50
	CPUThresholdPercent          float64 // default 50
	LogicalReadsThresholdPercent float64 // default 100
	MinimumExecutions            int64   // default 5
	MinimumBaselineSamples       int     // default 10
}

// DefaultRules returns the default threshold set.
func DefaultRules() Rules {
	return Rules{
		DurationThresholdPercent:     50,
		CPUThresholdPercent:          50,
		LogicalReadsThresholdPercent: 100,
		MinimumExecutions:            5,
		MinimumBaselineSamples:       10,
	}
}

// AggregatedRecent summarizes the recent window used for comparison
// against a baseline.
type AggregatedRecent struct {
	SampleCount      int
	TotalExecutions  int64
	P95DurationUs    float64
	P95CPUUs         float64
	AvgLogicalReads  float64
	CurrentPlanHash  []byte
	// CurrentTotalCost and BaselineTotalCost are optional impact
	// figures (exec_count x cost); when both are > 0 the detector
	// additionally classifies severity by impact, taking the worse of
	// ratio- and impact-based classification.
	CurrentTotalCost float64
	BaselineTotalCost float64
}

type metricTrigger struct {
	regressionType model.RegressionType
	metricName     string
	baselineValue  float64
	currentValue   float64
	changePercent  float64
}

// Detect compares recent against the active baseline using the given
// rules and returns zero or one RegressionEvent.
func Detect(baseline model.Baseline, recent AggregatedRecent, rules Rules, fingerprintID string, target model.Target, now time.Time) []model.RegressionEvent {
	if recent.TotalExecutions < rules.MinimumExecutions || baseline.SampleCount < rules.MinimumBaselineSamples {
		return nil
	}

	var triggers []metricTrigger
	if t, ok := checkMetric(model.RegressionDuration, "p95_duration_us", baseline.P95DurationUs, recent.P95DurationUs, rules.DurationThresholdPercent); ok {
		triggers = append(triggers, t)
	}
	if t, ok := checkMetric(model.RegressionCPU, "p95_cpu_us", baseline.P95CPUUs, recent.P95CPUUs, rules.CPUThresholdPercent); ok {
		triggers = append(triggers, t)
	}
	if t, ok := checkMetric(model.RegressionLogicalReads, "avg_logical_reads", baseline.MedianLogicalRds, recent.AvgLogicalReads, rules.LogicalReadsThresholdPercent); ok {
		triggers = append(triggers, t)
	}

	isPlanChange := len(baseline.TypicalPlanHash) > 0 && len(recent.CurrentPlanHash) > 0 &&
		!bytes.Equal(baseline.TypicalPlanHash, recent.CurrentPlanHash)

	if len(triggers) == 0 {
		if !isPlanChange {
			return nil
		}
		// Plan changed but no metric crossed threshold: promote to a
		// standalone plan_change event.
		return []model.RegressionEvent{{
			FingerprintID:   fingerprintID,
			Target:          target,
			DetectedAtUTC:   now,
			Type:            model.RegressionPlanChange,
			MetricName:      "plan_hash",
			Severity:        model.SeverityLow,
			IsPlanChange:    true,
			BaselinePlan:    baseline.TypicalPlanHash,
			CurrentPlan:     recent.CurrentPlanHash,
			Status:          model.StatusNew,
		}}
	}

	evt := model.RegressionEvent{
		FingerprintID: fingerprintID,
		Target:        target,
		DetectedAtUTC: now,
		IsPlanChange:  isPlanChange,
		BaselinePlan:  baseline.TypicalPlanHash,
		CurrentPlan:   recent.CurrentPlanHash,
		Status:        model.StatusNew,
	}

	worst := triggers[0]
	for _, t := range triggers[1:] {
		if t.changePercent > worst.changePercent {
			worst = t
		}
	}
	evt.MetricName = worst.metricName
	evt.BaselineValue = worst.baselineValue
	evt.CurrentValue = worst.currentValue
	evt.ChangePercent = worst.changePercent

	if len(triggers) > 1 {
		evt.Type = model.RegressionMultiMetric
	} else {
		evt.Type = worst.regressionType
	}

	evt.Severity = Severity(worst.changePercent, recent.CurrentTotalCost, recent.BaselineTotalCost)
	return []model.RegressionEvent{evt}
}

// checkMetric reports whether current crosses baseline by
// thresholdPercent, and if so returns the trigger describing it.
// A zero baseline is treated as "no signal" rather than an infinite
// change percent.
func checkMetric(t model.RegressionType, metricName string, baselineValue, currentValue, thresholdPercent float64) (metricTrigger, bool) {
	if baselineValue <= 0 {
		return metricTrigger{}, false
	}
	changePercent := (currentValue - baselineValue) / baselineValue * 100
	if changePercent < thresholdPercent {
		return metricTrigger{}, false
	}
	return metricTrigger{
		regressionType: t,
		metricName:     metricName,
		baselineValue:  baselineValue,
		currentValue:   currentValue,
		changePercent:  changePercent,
	}, true
}

// Severity classifies the max observed change_percent and, when both
// cost figures are available, the impact (current-baseline total
// cost), taking the worse (most severe) of the two.
func Severity(changePercent, currentTotalCost, baselineTotalCost float64) model.Severity {
	ratio := 1 + changePercent/100
	ratioSeverity := severityByRatio(ratio)

	if currentTotalCost <= 0 || baselineTotalCost <= 0 {
		return ratioSeverity
	}
	impact := currentTotalCost - baselineTotalCost
	impactSeverity := severityByImpact(impact)

	if impactSeverity > ratioSeverity {
		return impactSeverity
	}
	return ratioSeverity
}

func severityByRatio(ratio float64) model.Severity {
	switch {
	case ratio >= 10:
		return model.SeverityCritical
	case ratio >= 5:
		return model.SeverityHigh
	case ratio >= 3:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func severityByImpact(impact float64) model.Severity {
	switch {
	case impact >= 1_000_000:
		return model.SeverityCritical
	case impact >= 100_000:
		return model.SeverityHigh
	case impact >= 10_000:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
