// Package planner runs scheduled generation passes: on a cron trigger it
// loads a scheduling snapshot, proposes meeting dates for the coming months,
// persists the admissible ones and recomputes event deadline cascades.
//
// One run is one unit of work tagged with a run ID; runs never overlap.
package planner
