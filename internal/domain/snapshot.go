package domain

import "time"

// Snapshot bundles the read-only inputs one engine call needs. Callers build
// it from storage (or fixtures in tests) and the engine never writes to it.
//
// Map keys are midnight-UTC dates as produced by Day().
type Snapshot struct {
	Divisions      []Division
	Routes         []Route
	CommitteeTypes []CommitteeType
	Meetings       []MeetingInstance
	Exceptions     []ExceptionDate

	// RequestTotals is the sum of expected requests of existing events,
	// grouped by meeting date.
	RequestTotals map[time.Time]int

	// EventCounts is the number of events attached to each meeting instance.
	EventCounts map[int64]int

	Settings ConstraintSettings
}

// MeetingsOn returns the counted (non-cancelled) meetings on the given date.
func (s *Snapshot) MeetingsOn(date time.Time) []MeetingInstance {
	var out []MeetingInstance
	for _, m := range s.Meetings {
		if m.Status.Counted() && SameDay(m.Date, date) {
			out = append(out, m)
		}
	}
	return out
}

// MeetingsBetween returns counted meetings with from <= date <= to.
func (s *Snapshot) MeetingsBetween(from, to time.Time) []MeetingInstance {
	lo, hi := Day(from), Day(to)
	var out []MeetingInstance
	for _, m := range s.Meetings {
		d := Day(m.Date)
		if !m.Status.Counted() || d.Before(lo) || d.After(hi) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// RouteByID looks up a route in the snapshot.
func (s *Snapshot) RouteByID(id int64) (Route, bool) {
	for _, r := range s.Routes {
		if r.ID == id {
			return r, true
		}
	}
	return Route{}, false
}

// DivisionByID looks up a division in the snapshot.
func (s *Snapshot) DivisionByID(id int64) (Division, bool) {
	for _, d := range s.Divisions {
		if d.ID == id {
			return d, true
		}
	}
	return Division{}, false
}

// AddMeeting appends a meeting to the snapshot. The generator and the
// proposal applier use this to tally accepted proposals so one batch cannot
// overfill a day or week it just filled itself.
func (s *Snapshot) AddMeeting(m MeetingInstance) {
	m.Date = Day(m.Date)
	s.Meetings = append(s.Meetings, m)
}
