// Package remediate implements the remediation advisor and the
// gate-sequenced remediation executor.
package remediate

import "github.com/ftahirops/queryguard/model"

// Advisor proposes a prioritized, safety-classified suggestion list
// for a RegressionEvent from a fixed signal-to-action table. Safety is
// always derived from type via model.SafetyFor; the advisor never
// upgrades a type's safety.
type Advisor struct{}

// NewAdvisor returns a Remediation Advisor.
func NewAdvisor() *Advisor { return &Advisor{} }

// Propose returns the suggestions for evt, in priority order.
func (a *Advisor) Propose(evt model.RegressionEvent) []model.RemediationSuggestion {
	var out []model.RemediationSuggestion

	switch {
	case evt.Type == model.RegressionMultiMetric && evt.Severity >= model.SeverityHigh:
		out = append(out, suggestion(evt, model.RemediationConfigChange, 1,
			"Escalate to manual review",
			"Multiple metrics regressed simultaneously at high or critical severity; no automated action is proposed.",
			"", manualOnlySafety()))

	case evt.IsPlanChange:
		out = append(out, suggestion(evt, model.RemediationForcePlan, 1,
			"Force the prior execution plan",
			"The query's execution plan changed from the baseline's typical plan; forcing the earlier plan reverts the regression immediately.",
			forcePlanScript(evt), "" ))
		out = append(out, suggestion(evt, model.RemediationClearPlanCache, 2,
			"Clear the cached plan",
			"If forcing the prior plan is not viable, clearing the cached plan lets the optimizer recompile on next execution.",
			clearPlanCacheScript(evt), ""))
		if evt.Type == model.RegressionCPU {
			out = append(out, suggestion(evt, model.RemediationUpdateStatistics, 3,
				"Update statistics",
				"A CPU regression accompanied by a plan change is often caused by stale statistics feeding a worse plan.",
				updateStatisticsScript(evt), ""))
		}

	case evt.Type == model.RegressionLogicalReads:
		ratio := 1 + evt.ChangePercent/100
		if ratio >= 2 {
			out = append(out, suggestion(evt, model.RemediationCreateIndex, 1,
				"Review an index to cover this query's access pattern",
				"Logical reads at least doubled over baseline, typically caused by a missing or unused supporting index.",
				createIndexTemplate(evt), ""))
		}

	case evt.Type == model.RegressionDuration || evt.Type == model.RegressionCPU:
		ratio := 1 + evt.ChangePercent/100
		if ratio < 3 {
			out = append(out, suggestion(evt, model.RemediationUpdateStatistics, 1,
				"Update statistics",
				"A moderate duration/CPU regression (ratio < 3x) is frequently resolved by refreshing stale statistics.",
				updateStatisticsScript(evt), ""))
		}
	}

	return out
}

// suggestion builds a RemediationSuggestion, filling safety from
// model.SafetyFor unless an explicit override is given (used only for
// the manual-only escalation case, which has no RemediationType of its
// own in the mapping table).
func suggestion(evt model.RegressionEvent, t model.RemediationType, priority int, title, rationale, script string, safetyOverride model.Safety) model.RemediationSuggestion {
	safety := model.SafetyFor(t)
	if safetyOverride != "" {
		safety = safetyOverride
	}
	return model.RemediationSuggestion{
		RegressionEventID: evt.ID,
		Type:              t,
		Safety:            safety,
		Confidence:        confidenceFor(t),
		Title:             title,
		Description:       title,
		Rationale:         rationale,
		ActionScript:      script,
		Priority:          priority,
	}
}

func manualOnlySafety() model.Safety { return model.SafetyManualOnly }

func confidenceFor(t model.RemediationType) float64 {
	switch t {
	case model.RemediationForcePlan:
		return 0.8
	case model.RemediationUpdateStatistics:
		return 0.6
	case model.RemediationClearPlanCache:
		return 0.5
	case model.RemediationCreateIndex:
		return 0.4
	default:
		return 0.3
	}
}
