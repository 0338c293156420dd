// Package recommend ranks upcoming meeting instances as targets for a new
// intake event, combining capacity headroom, SLA buffer, meeting load and
// temporal proximity into one additive score.
//
// The weights come from settings as a single ScoringCoefficients value, so
// the scoring function stays pure and testable independent of storage.
package recommend

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"quorum/internal/constraint"
	"quorum/internal/domain"
)

var (
	ErrNegativeRequests = errors.New("expected requests must be >= 0")
	ErrNegativeSLA      = errors.New("route SLA must be >= 0")
)

// Reason and warning strings carried on recommendations.
const (
	ReasonCapacity = "capacity available"
	ReasonSLAMet   = "SLA buffer available"
	ReasonNoEvents = "no events scheduled yet"
	ReasonOptimal  = "inside optimal scheduling window"
	ReasonTopPick  = "best candidate"
	WarnNoSpace    = "insufficient request capacity"
	WarnTightSLA   = "tight SLA margin"
	WarnNoSLA      = "SLA cannot be met"
	WarnMediumLoad = "moderate event load"
	WarnHighLoad   = "high event load"
	WarnFarFuture  = "far beyond the optimal window"
	WarnWeekFull   = "week already at meeting cap"
)

// Recommendation is one scored candidate meeting. Unavailable candidates are
// kept in the list: callers decide whether to hide them.
type Recommendation struct {
	MeetingID int64
	Date      time.Time
	Score     float64
	Available bool
	TopPick   bool
	Reasons   []string
	Warnings  []string
}

// Score ranks every upcoming counted meeting in the route's division as a
// target for a new event of the given expected volume. The returned list is
// sorted by descending score; scores never go below zero.
func Score(snap *domain.Snapshot, route domain.Route, expectedRequests int, today time.Time) ([]Recommendation, error) {
	if expectedRequests < 0 {
		return nil, fmt.Errorf("%d: %w", expectedRequests, ErrNegativeRequests)
	}
	if route.SLADays < 0 {
		return nil, fmt.Errorf("route %d: %w", route.ID, ErrNegativeSLA)
	}
	if _, ok := snap.DivisionByID(route.DivisionID); !ok && len(snap.Divisions) > 0 {
		return nil, fmt.Errorf("route %d: division %d not in snapshot", route.ID, route.DivisionID)
	}

	co := snap.Settings.Scoring
	v := constraint.ForSnapshot(snap)
	day := domain.Day(today)

	var out []Recommendation
	for _, m := range snap.Meetings {
		if !m.Status.Counted() || m.DivisionID != route.DivisionID {
			continue
		}
		date := domain.Day(m.Date)
		if date.Before(day) {
			continue
		}
		out = append(out, scoreOne(snap, v, co, route, m, expectedRequests, day))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].MeetingID < out[j].MeetingID
	})
	return out, nil
}

func scoreOne(snap *domain.Snapshot, v *constraint.Validator, co domain.ScoringCoefficients, route domain.Route, m domain.MeetingInstance, expectedRequests int, today time.Time) Recommendation {
	date := domain.Day(m.Date)
	rec := Recommendation{MeetingID: m.ID, Date: date, Available: true}
	score := co.BaseScore

	// Capacity headroom on the meeting date.
	available := snap.Settings.MaxRequestsPerDay - snap.RequestTotals[date]
	if available >= expectedRequests {
		score += co.SpaceBonus
		rec.Reasons = append(rec.Reasons, ReasonCapacity)
	} else {
		score -= co.NoSpacePenalty
		rec.Available = false
		rec.Warnings = append(rec.Warnings, WarnNoSpace)
	}

	// SLA buffer between today and the meeting.
	lead := int(date.Sub(today).Hours() / 24)
	sla := route.SLADays
	switch {
	case lead >= sla:
		bonus := float64(lead-sla) * 0.5
		if bonus > co.SLABonusCap {
			bonus = co.SLABonusCap
		}
		score += bonus
		rec.Reasons = append(rec.Reasons, ReasonSLAMet)
	case float64(lead) >= 0.8*float64(sla):
		score -= co.TightSLAPenalty
		rec.Warnings = append(rec.Warnings, WarnTightSLA)
	default:
		score -= co.NoSLAPenalty
		rec.Available = false
		rec.Warnings = append(rec.Warnings, WarnNoSLA)
	}

	// Existing event load on the meeting.
	switch load := snap.EventCounts[m.ID]; {
	case load == 0:
		score += co.NoEventsBonus
		rec.Reasons = append(rec.Reasons, ReasonNoEvents)
	case load <= 3:
		// fine as is
	case load <= 6:
		score -= co.MediumLoadPenalty
		rec.Warnings = append(rec.Warnings, WarnMediumLoad)
	default:
		score -= co.HighLoadPenalty
		rec.Warnings = append(rec.Warnings, WarnHighLoad)
	}

	// Optimal window relative to the SLA.
	if lead >= sla+co.OptimalStartDays && lead <= sla+co.OptimalEndDays {
		score += co.OptimalRangeBonus
		rec.Reasons = append(rec.Reasons, ReasonOptimal)
	} else if lead > sla+co.OptimalEndDays+co.FarFutureThresholdDays {
		score -= co.FarFuturePenalty
		rec.Warnings = append(rec.Warnings, WarnFarFuture)
	}

	// Weekly headroom around the meeting date.
	if v.WeekAtCap(snap, date, 0) {
		score -= co.WeekFullPenalty
		rec.Available = false
		rec.Warnings = append(rec.Warnings, WarnWeekFull)
	}

	if rec.Available && len(rec.Warnings) == 0 {
		score += co.BestBonus
		rec.TopPick = true
		rec.Reasons = append(rec.Reasons, ReasonTopPick)
	}

	if score < 0 {
		score = 0
	}
	rec.Score = score
	return rec
}
