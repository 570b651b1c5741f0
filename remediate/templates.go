package remediate

import (
	"encoding/hex"
	"fmt"

	"github.com/ftahirops/queryguard/model"
)

// The templates below are literal, parameterless scripts keyed only
// off fields already present on the RegressionEvent; they carry no
// interpolated SQL identifiers sourced from outside the event itself
// (no schema/table names are ever accepted as free-form input here).

func forcePlanScript(evt model.RegressionEvent) string {
	if len(evt.BaselinePlan) == 0 {
		return ""
	}
	return fmt.Sprintf("-- force_plan: baseline_plan_hash=%s\nEXEC sp_query_store_force_plan @query_id = NULL, @plan_id = NULL; -- fill in plan_id for hash %s",
		hex.EncodeToString(evt.BaselinePlan), hex.EncodeToString(evt.BaselinePlan))
}

func clearPlanCacheScript(evt model.RegressionEvent) string {
	return "DBCC FREEPROCCACHE;"
}

func updateStatisticsScript(evt model.RegressionEvent) string {
	return fmt.Sprintf("-- update_statistics for fingerprint %s; replace <table> with the query's target table\nUPDATE STATISTICS <table> WITH FULLSCAN;", evt.FingerprintID)
}

func createIndexTemplate(evt model.RegressionEvent) string {
	return fmt.Sprintf("-- create_index (review, non-executing template) for fingerprint %s\n-- CREATE INDEX ix_<name> ON <table> (<columns>);", evt.FingerprintID)
}
