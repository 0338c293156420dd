// Package schedule proposes future meeting dates per (committee type,
// division) pair and applies approved proposals back through re-validation.
//
// Generation is a simulation: it validates against a working copy of the
// snapshot and tallies its own acceptances, so one batch never proposes two
// meetings into capacity it just consumed. Nothing is persisted here; see
// ApplyProposals for the insertion step.
package schedule

import (
	"sort"
	"time"

	"quorum/internal/calendar"
	"quorum/internal/constraint"
	"quorum/internal/domain"
)

// DefaultLookaheadDays bounds how far past the window start a weekly pair is
// searched before it is reported as skipped.
const DefaultLookaheadDays = 90

// Proposal is one suggested meeting date. It is plain data: persistence and
// human approval happen elsewhere.
type Proposal struct {
	CommitteeTypeID int64
	DivisionID      int64
	Date            time.Time
	Cadence         domain.Cadence
}

// Skip reports a (committee type, division) pair that produced no proposal.
type Skip struct {
	CommitteeTypeID int64
	DivisionID      int64
	Reason          string
}

// Result is an ordered proposal list plus the pairs that came up empty.
type Result struct {
	Proposals []Proposal
	Skipped   []Skip
	Count     int
}

// Window is the generation range, inclusive on both ends.
type Window struct {
	Start time.Time
	End   time.Time
}

// MonthWindow is the common case: one calendar month.
func MonthWindow(year int, month time.Month) Window {
	start := domain.Date(year, month, 1)
	return Window{Start: start, End: start.AddDate(0, 1, -1)}
}

// Generator produces schedule proposals for a window.
type Generator struct {
	// LookaheadDays caps how far past the window start a weekly pair is
	// searched for its first admissible date. Zero means DefaultLookaheadDays.
	LookaheadDays int
}

// Generate walks every active committee type in the requested divisions (all
// active divisions when divisionIDs is empty) and proposes admissible dates.
//
// A pair that yields nothing is reported in Skipped, never as an error: one
// bad pair must not discard the rest of the batch.
func (g Generator) Generate(snap *domain.Snapshot, win Window, divisionIDs ...int64) Result {
	wanted := make(map[int64]bool, len(divisionIDs))
	for _, id := range divisionIDs {
		wanted[id] = true
	}
	lookahead := g.LookaheadDays
	if lookahead <= 0 {
		lookahead = DefaultLookaheadDays
	}

	// Work on a copy so tallied acceptances don't leak into the caller's
	// snapshot.
	work := *snap
	work.Meetings = append([]domain.MeetingInstance(nil), snap.Meetings...)

	v := constraint.ForSnapshot(&work)

	types := append([]domain.CommitteeType(nil), snap.CommitteeTypes...)
	sort.Slice(types, func(i, j int) bool {
		if types[i].DivisionID != types[j].DivisionID {
			return types[i].DivisionID < types[j].DivisionID
		}
		return types[i].ID < types[j].ID
	})

	var res Result
	for _, ct := range types {
		if !ct.Active {
			continue
		}
		if len(wanted) > 0 && !wanted[ct.DivisionID] {
			continue
		}
		if div, ok := snap.DivisionByID(ct.DivisionID); ok && !div.Active {
			continue
		}

		var accepted []Proposal
		var skipReason string
		switch ct.Cadence {
		case domain.CadenceWeekly:
			accepted, skipReason = g.generateWeekly(v, &work, ct, win, lookahead)
		case domain.CadenceMonthly:
			accepted, skipReason = g.generateMonthly(v, &work, ct, win)
		default:
			skipReason = constraint.ErrInvalidCadence.Error()
		}

		if len(accepted) == 0 {
			res.Skipped = append(res.Skipped, Skip{
				CommitteeTypeID: ct.ID,
				DivisionID:      ct.DivisionID,
				Reason:          skipReason,
			})
			continue
		}
		res.Proposals = append(res.Proposals, accepted...)
	}

	res.Count = len(res.Proposals)
	return res
}

// generateWeekly starts at the first matching weekday on/after the window
// start and advances 7 days per attempt, accepted or not. The lookahead
// bounds only the search for the pair's first acceptance; once a date is
// accepted the walk continues to the window end.
func (g Generator) generateWeekly(v *constraint.Validator, work *domain.Snapshot, ct domain.CommitteeType, win Window, lookahead int) ([]Proposal, string) {
	start := domain.Day(win.Start)
	end := domain.Day(win.End)
	deadline := start.AddDate(0, 0, lookahead)

	d := nextWeekday(start, ct.Weekday)
	var out []Proposal
	lastReason := "lookahead exhausted: no admissible date in window"
	for ; !d.After(end); d = d.AddDate(0, 0, 7) {
		if len(out) == 0 && d.After(deadline) {
			return nil, lastReason
		}
		res, err := v.Check(constraint.Candidate{
			CommitteeType: ct,
			DivisionID:    ct.DivisionID,
			Date:          d,
		}, work, constraint.Options{})
		if err != nil {
			return nil, err.Error()
		}
		if !res.Admit {
			lastReason = res.Reason
			continue
		}
		out = append(out, Proposal{
			CommitteeTypeID: ct.ID,
			DivisionID:      ct.DivisionID,
			Date:            d,
			Cadence:         domain.CadenceWeekly,
		})
		work.AddMeeting(domain.MeetingInstance{
			CommitteeTypeID: ct.ID,
			DivisionID:      ct.DivisionID,
			Date:            d,
			Status:          domain.MeetingProposed,
		})
	}
	if len(out) == 0 {
		return nil, lastReason
	}
	return out, ""
}

// generateMonthly restricts the search to each month's third-week block that
// overlaps the window. A block holds exactly one instance of the committee's
// weekday; if that date is inadmissible, the month yields no proposal.
func (g Generator) generateMonthly(v *constraint.Validator, work *domain.Snapshot, ct domain.CommitteeType, win Window) ([]Proposal, string) {
	start := domain.Day(win.Start)
	end := domain.Day(win.End)

	var out []Proposal
	lastReason := "no admissible third-week date in window"
	for month := domain.Date(start.Year(), start.Month(), 1); !month.After(end); month = month.AddDate(0, 1, 0) {
		blockStart, blockEnd := calendar.ThirdWeekBounds(month.Year(), month.Month())
		d := nextWeekday(blockStart, ct.Weekday)
		if d.After(blockEnd) || d.Before(start) || d.After(end) {
			continue
		}
		res, err := v.Check(constraint.Candidate{
			CommitteeType: ct,
			DivisionID:    ct.DivisionID,
			Date:          d,
		}, work, constraint.Options{})
		if err != nil {
			return nil, err.Error()
		}
		if !res.Admit {
			lastReason = res.Reason
			continue
		}
		out = append(out, Proposal{
			CommitteeTypeID: ct.ID,
			DivisionID:      ct.DivisionID,
			Date:            d,
			Cadence:         domain.CadenceMonthly,
		})
		work.AddMeeting(domain.MeetingInstance{
			CommitteeTypeID: ct.ID,
			DivisionID:      ct.DivisionID,
			Date:            d,
			Status:          domain.MeetingProposed,
		})
	}
	if len(out) == 0 {
		return nil, lastReason
	}
	return out, ""
}

// FindNextAvailableDate returns the first admissible date for the pair on or
// after from, or false when the lookahead is exhausted.
func (g Generator) FindNextAvailableDate(snap *domain.Snapshot, ct domain.CommitteeType, from time.Time) (time.Time, bool) {
	lookahead := g.LookaheadDays
	if lookahead <= 0 {
		lookahead = DefaultLookaheadDays
	}
	v := constraint.ForSnapshot(snap)

	start := domain.Day(from)
	end := start.AddDate(0, 0, lookahead)
	for d := nextWeekday(start, ct.Weekday); !d.After(end); d = d.AddDate(0, 0, 7) {
		if ct.Cadence == domain.CadenceMonthly && !calendar.ThirdWeekOfMonth(d) {
			continue
		}
		res, err := v.Check(constraint.Candidate{
			CommitteeType: ct,
			DivisionID:    ct.DivisionID,
			Date:          d,
		}, snap, constraint.Options{})
		if err != nil {
			return time.Time{}, false
		}
		if res.Admit {
			return d, true
		}
	}
	return time.Time{}, false
}

// nextWeekday returns the first date on/after d that falls on wd.
func nextWeekday(d time.Time, wd time.Weekday) time.Time {
	offset := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}
