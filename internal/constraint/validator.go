// Package constraint decides whether a candidate meeting date is admissible
// under the business calendar and the configured caps.
//
// Constraints come in two tiers. Hard constraints (business day, weekday,
// cadence) are never overridable. Soft constraints (daily cap, weekly cap,
// duplicate window) reject by default but administrative callers may downgrade
// them to warnings with Options.Override.
package constraint

import (
	"fmt"
	"time"

	"quorum/internal/calendar"
	"quorum/internal/domain"
)

// Tier classifies a violated constraint.
type Tier string

const (
	TierHard Tier = "hard"
	TierSoft Tier = "soft"
)

// Reason strings surfaced to callers. Kept stable: external tooling matches
// on them.
const (
	ReasonNotBusinessDay = "not a business day"
	ReasonWrongWeekday   = "wrong weekday for this committee type"
	ReasonNotThirdWeek   = "monthly committee must meet in the third week of the month"
	ReasonDailyCap       = "daily meeting cap reached"
	ReasonWeeklyCap      = "weekly meeting cap reached"
	ReasonDuplicateWeek  = "same committee type already meets within 7 days"
)

// Result is the outcome of one admissibility check.
//
// On rejection, Reason carries the first matching violation (checks
// short-circuit; reasons are not accumulated) and Tier its severity. Under
// override, soft violations land in Warnings instead and Admit stays true.
type Result struct {
	Admit    bool
	Reason   string
	Tier     Tier
	Warnings []string
}

func reject(reason string, tier Tier) Result {
	return Result{Admit: false, Reason: reason, Tier: tier}
}

// Candidate is one (committee type, division, date) to validate.
type Candidate struct {
	CommitteeType domain.CommitteeType
	DivisionID    int64
	Date          time.Time

	// ExcludeMeetingID skips one existing instance from the cap and duplicate
	// counts, for re-validating a meeting that is being moved.
	ExcludeMeetingID int64
}

// Options tunes a check.
type Options struct {
	// Override downgrades soft violations to warnings. Hard violations
	// reject regardless.
	Override bool
}

// Validator applies the constraint policy to candidates against a snapshot.
type Validator struct {
	cal      *calendar.Calendar
	settings domain.ConstraintSettings
}

// New builds a validator over a calendar and a settings snapshot.
func New(cal *calendar.Calendar, settings domain.ConstraintSettings) *Validator {
	return &Validator{cal: cal, settings: settings}
}

// ForSnapshot builds a validator whose calendar and settings both come from
// the snapshot.
func ForSnapshot(snap *domain.Snapshot) *Validator {
	return New(calendar.FromSnapshot(snap), snap.Settings)
}

// Check validates one candidate against the current meeting set.
//
// The returned error is reserved for inconsistent input (division mismatch,
// unknown cadence); constraint outcomes always travel in the Result.
func (v *Validator) Check(c Candidate, snap *domain.Snapshot, opts Options) (Result, error) {
	ct := c.CommitteeType
	if ct.Weekday < time.Sunday || ct.Weekday > time.Saturday {
		return Result{}, fmt.Errorf("committee type %d: %w", ct.ID, ErrInvalidWeekday)
	}
	if !ct.Cadence.Valid() {
		return Result{}, fmt.Errorf("committee type %d: %w", ct.ID, ErrInvalidCadence)
	}
	if ct.DivisionID != c.DivisionID {
		return Result{}, fmt.Errorf("committee type %d vs division %d: %w", ct.ID, c.DivisionID, ErrDivisionMismatch)
	}

	date := domain.Day(c.Date)

	// Hard tier: never overridable.
	if !v.cal.IsBusinessDay(date) {
		return reject(ReasonNotBusinessDay, TierHard), nil
	}
	if date.Weekday() != ct.Weekday {
		return reject(ReasonWrongWeekday, TierHard), nil
	}
	if ct.Cadence == domain.CadenceMonthly && !calendar.ThirdWeekOfMonth(date) {
		return reject(ReasonNotThirdWeek, TierHard), nil
	}

	// Soft tier: overridable by administrative callers.
	res := Result{Admit: true}
	soft := func(reason string) (Result, bool) {
		if opts.Override {
			res.Warnings = append(res.Warnings, reason)
			return res, false
		}
		return reject(reason, TierSoft), true
	}

	if v.countOnDate(snap, date, c.ExcludeMeetingID) >= v.maxMeetingsPerDay() {
		if out, done := soft(ReasonDailyCap); done {
			return out, nil
		}
	}
	if v.WeekAtCap(snap, date, c.ExcludeMeetingID) {
		if out, done := soft(ReasonWeeklyCap); done {
			return out, nil
		}
	}
	if v.hasDuplicateInWindow(snap, ct, date, c.ExcludeMeetingID) {
		if out, done := soft(ReasonDuplicateWeek); done {
			return out, nil
		}
	}

	return res, nil
}

// WeekAtCap reports whether the Sunday-Saturday week containing date already
// holds its full meeting quota. Third weeks use their own cap.
func (v *Validator) WeekAtCap(snap *domain.Snapshot, date time.Time, excludeID int64) bool {
	sunday, saturday := calendar.WeekBounds(date)
	count := 0
	for _, m := range snap.MeetingsBetween(sunday, saturday) {
		if excludeID != 0 && m.ID == excludeID {
			continue
		}
		count++
	}
	return count >= v.weeklyCapFor(date)
}

func (v *Validator) weeklyCapFor(date time.Time) int {
	if calendar.ThirdWeekOfMonth(date) {
		if v.settings.ThirdWeekCap > 0 {
			return v.settings.ThirdWeekCap
		}
	}
	if v.settings.WeeklyCap > 0 {
		return v.settings.WeeklyCap
	}
	return 3
}

func (v *Validator) maxMeetingsPerDay() int {
	if v.settings.MaxMeetingsPerDay > 0 {
		return v.settings.MaxMeetingsPerDay
	}
	return 1
}

func (v *Validator) countOnDate(snap *domain.Snapshot, date time.Time, excludeID int64) int {
	count := 0
	for _, m := range snap.MeetingsOn(date) {
		if excludeID != 0 && m.ID == excludeID {
			continue
		}
		count++
	}
	return count
}

// hasDuplicateInWindow checks the anti-duplicate rule: another counted
// instance of the same committee type and division within 7 calendar days of
// date, independent of the aggregate weekly cap.
func (v *Validator) hasDuplicateInWindow(snap *domain.Snapshot, ct domain.CommitteeType, date time.Time, excludeID int64) bool {
	for _, m := range snap.Meetings {
		if !m.Status.Counted() || m.CommitteeTypeID != ct.ID || m.DivisionID != ct.DivisionID {
			continue
		}
		if excludeID != 0 && m.ID == excludeID {
			continue
		}
		diff := domain.Day(m.Date).Sub(date)
		if diff < 0 {
			diff = -diff
		}
		// Strictly inside the window: exactly 7 days apart is the normal
		// weekly cadence and must stay admissible.
		if diff < 7*24*time.Hour {
			return true
		}
	}
	return false
}
