// Package cascade derives an event's milestone dates from its meeting date
// and its route's stage durations.
//
// The computation is a pure function of its inputs: callers re-invoke it (and
// overwrite stored milestones) whenever the meeting moves, the route's stage
// durations change, or an exception date lands inside the traversed span.
// Nothing is cached here.
package cascade

import (
	"errors"
	"fmt"
	"time"

	"quorum/internal/calendar"
	"quorum/internal/domain"
)

var ErrNegativeStage = errors.New("stage duration must be >= 0")

// Result holds the four milestone dates around a fixed meeting date.
type Result struct {
	CallDeadline     time.Time // publication of the call
	IntakeDeadline   time.Time // intake closes
	ReviewDeadline   time.Time // review closes
	MeetingDate      time.Time
	ResponseDeadline time.Time // committee response due
}

// Compute walks the milestone chain in business days:
//
//	response = meeting + stageD  (forward: the response follows the meeting)
//	review   = meeting - stageC
//	intake   = review  - stageB
//	call     = intake  - stageA
//
// Negative durations are rejected before any date arithmetic.
func Compute(cal *calendar.Calendar, meetingDate time.Time, stageA, stageB, stageC, stageD int) (Result, error) {
	for i, n := range []int{stageA, stageB, stageC, stageD} {
		if n < 0 {
			return Result{}, fmt.Errorf("stage %c = %d: %w", 'a'+rune(i), n, ErrNegativeStage)
		}
	}

	meeting := domain.Day(meetingDate)
	res := Result{MeetingDate: meeting}
	res.ResponseDeadline = cal.AddBusinessDays(meeting, stageD)
	res.ReviewDeadline = cal.SubBusinessDays(meeting, stageC)
	res.IntakeDeadline = cal.SubBusinessDays(res.ReviewDeadline, stageB)
	res.CallDeadline = cal.SubBusinessDays(res.IntakeDeadline, stageA)
	return res, nil
}

// ForRoute computes the cascade for a meeting date using a route's stages.
func ForRoute(cal *calendar.Calendar, meetingDate time.Time, r domain.Route) (Result, error) {
	return Compute(cal, meetingDate, r.StageA, r.StageB, r.StageC, r.StageD)
}
