// Package domain holds the typed records the scheduling engine reads.
//
// The engine never mutates these: callers assemble a Snapshot from storage
// (or fixtures) and persist whatever the engine decides.
package domain

import "time"

// Cadence is how often a committee type convenes.
type Cadence string

const (
	CadenceWeekly Cadence = "weekly"
	// CadenceMonthly pins meetings to the third Sunday-aligned week of the month.
	CadenceMonthly Cadence = "monthly"
)

func (c Cadence) Valid() bool { return c == CadenceWeekly || c == CadenceMonthly }

// MeetingStatus is the lifecycle state of a meeting instance.
type MeetingStatus string

const (
	MeetingProposed  MeetingStatus = "proposed"
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingCancelled MeetingStatus = "cancelled"
)

// Counted reports whether a meeting in this status occupies calendar capacity.
// Cancelled meetings never count against daily/weekly caps.
func (s MeetingStatus) Counted() bool {
	return s == MeetingProposed || s == MeetingScheduled
}

// Division is an organizational unit. Routes, committee types and meetings
// each belong to exactly one division.
type Division struct {
	ID     int64
	Name   string
	Active bool
}

// Route is a funding/process track with an SLA and four sequential
// processing stages, all measured in business days.
//
// By convention StageA+StageB+StageC+StageD == SLADays; the engine does not
// enforce the sum (callers validate it), but every duration must be >= 0.
type Route struct {
	ID         int64
	DivisionID int64
	Name       string
	SLADays    int

	StageA int // call publication -> intake close
	StageB int // intake close -> review close
	StageC int // review close -> committee meeting
	StageD int // committee meeting -> response
}

// CommitteeType is a recurring meeting template: a fixed weekday plus a
// weekly or monthly cadence, scoped to one division.
type CommitteeType struct {
	ID         int64
	DivisionID int64
	Name       string
	Weekday    time.Weekday
	Cadence    Cadence
	Active     bool
}

// MeetingInstance is one concrete occurrence of a committee type.
type MeetingInstance struct {
	ID              int64
	CommitteeTypeID int64
	DivisionID      int64
	Date            time.Time // midnight UTC
	Status          MeetingStatus
}

// Event is an intake cycle attached to one meeting instance and one route.
// Its milestone dates are derived, not stored here; see cascade.Result.
type Event struct {
	ID                  int64
	MeetingID           int64
	RouteID             int64
	ExpectedRequests    int
	CallPublicationDate time.Time
}

// ExceptionDate marks a calendar date as non-working regardless of weekday.
type ExceptionDate struct {
	Date        time.Time // midnight UTC
	Description string
	Category    string // holiday, special, ...
}

// Day normalizes t to midnight UTC so dates can be compared and used as map
// keys regardless of the wall clock or zone they were produced in.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a midnight-UTC date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool { return Day(a).Equal(Day(b)) }
