package domain

import "time"

// ScoringCoefficients are the tunable weights the recommendation scorer
// applies on top of BaseScore. They live in settings so administrators can
// retune ranking without a code change.
type ScoringCoefficients struct {
	BaseScore float64

	// Capacity
	SpaceBonus     float64
	NoSpacePenalty float64

	// SLA buffer
	SLABonusCap     float64
	TightSLAPenalty float64
	NoSLAPenalty    float64

	// Meeting load
	NoEventsBonus     float64
	MediumLoadPenalty float64
	HighLoadPenalty   float64

	// Optimal window, in days past the route SLA.
	OptimalStartDays  int
	OptimalEndDays    int
	OptimalRangeBonus float64

	// Days past the optimal window end before the far-future penalty kicks in.
	FarFutureThresholdDays int
	FarFuturePenalty       float64

	WeekFullPenalty float64
	BestBonus       float64
}

// ConstraintSettings is one versioned configuration snapshot: the work-day
// pattern, meeting caps and scoring weights. The engine treats it as
// immutable per call; administrative tooling owns mutation.
type ConstraintSettings struct {
	Version int

	WorkDays []time.Weekday

	MaxMeetingsPerDay int
	WeeklyCap         int
	ThirdWeekCap      int
	MaxRequestsPerDay int

	Scoring ScoringCoefficients
}

// DefaultSettings returns the stock configuration: a Sunday-Thursday work
// week, one meeting per day, and the stock scoring weights.
func DefaultSettings() ConstraintSettings {
	return ConstraintSettings{
		Version: 1,
		WorkDays: []time.Weekday{
			time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		},
		MaxMeetingsPerDay: 1,
		WeeklyCap:         3,
		ThirdWeekCap:      4,
		MaxRequestsPerDay: 100,
		Scoring:           DefaultScoring(),
	}
}

// DefaultScoring returns the stock recommendation weights.
func DefaultScoring() ScoringCoefficients {
	return ScoringCoefficients{
		BaseScore:              100,
		SpaceBonus:             20,
		NoSpacePenalty:         30,
		SLABonusCap:            15,
		TightSLAPenalty:        10,
		NoSLAPenalty:           50,
		NoEventsBonus:          10,
		MediumLoadPenalty:      5,
		HighLoadPenalty:        15,
		OptimalStartDays:       5,
		OptimalEndDays:         15,
		OptimalRangeBonus:      10,
		FarFutureThresholdDays: 30,
		FarFuturePenalty:       10,
		WeekFullPenalty:        25,
		BestBonus:              5,
	}
}
