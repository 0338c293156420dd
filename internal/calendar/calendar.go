// Package calendar implements the business-day arithmetic the scheduling
// engine is built on: a weekly work-day pattern layered with exception
// dates, plus the Sunday-anchored week conventions the constraint rules use.
package calendar

import (
	"time"

	"quorum/internal/domain"
)

// Calendar is a business-day predicate: a date is a business day iff its
// weekday is in the configured work-day set and it is not an exception date.
//
// A Calendar is immutable after New; rebuild it when exception dates change.
type Calendar struct {
	workDays   map[time.Weekday]bool
	exceptions map[time.Time]bool
}

// New builds a calendar from a work-day pattern and an exception-date set.
//
// An empty pattern would make every date non-working and the day walks
// non-terminating, so it falls back to the stock work week, the same way the
// validator falls back to stock caps on zero-value settings.
func New(workDays []time.Weekday, exceptions []domain.ExceptionDate) *Calendar {
	if len(workDays) == 0 {
		workDays = domain.DefaultSettings().WorkDays
	}
	c := &Calendar{
		workDays:   make(map[time.Weekday]bool, len(workDays)),
		exceptions: make(map[time.Time]bool, len(exceptions)),
	}
	for _, wd := range workDays {
		c.workDays[wd] = true
	}
	for _, e := range exceptions {
		c.exceptions[domain.Day(e.Date)] = true
	}
	return c
}

// FromSnapshot builds a calendar from snapshot settings and exceptions.
func FromSnapshot(s *domain.Snapshot) *Calendar {
	return New(s.Settings.WorkDays, s.Exceptions)
}

// IsBusinessDay reports whether t falls on a working date.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	d := domain.Day(t)
	return c.workDays[d.Weekday()] && !c.exceptions[d]
}

// AddBusinessDays walks forward one calendar day at a time until n business
// days have been crossed. n == 0 returns the start date verbatim, even when
// it is not itself a business day.
func (c *Calendar) AddBusinessDays(t time.Time, n int) time.Time {
	d := domain.Day(t)
	for crossed := 0; crossed < n; {
		d = d.AddDate(0, 0, 1)
		if c.IsBusinessDay(d) {
			crossed++
		}
	}
	return d
}

// SubBusinessDays is AddBusinessDays walking backward.
func (c *Calendar) SubBusinessDays(t time.Time, n int) time.Time {
	d := domain.Day(t)
	for crossed := 0; crossed < n; {
		d = d.AddDate(0, 0, -1)
		if c.IsBusinessDay(d) {
			crossed++
		}
	}
	return d
}

// BusinessDaysInRange enumerates business days with start <= d <= end.
func (c *Calendar) BusinessDaysInRange(start, end time.Time) []time.Time {
	lo, hi := domain.Day(start), domain.Day(end)
	var out []time.Time
	for d := lo; !d.After(hi); d = d.AddDate(0, 0, 1) {
		if c.IsBusinessDay(d) {
			out = append(out, d)
		}
	}
	return out
}

// WeekBounds returns the Sunday and Saturday of the calendar week containing t.
func WeekBounds(t time.Time) (sunday, saturday time.Time) {
	d := domain.Day(t)
	sunday = d.AddDate(0, 0, -int(d.Weekday()))
	return sunday, sunday.AddDate(0, 0, 6)
}

// firstSunday returns the first Sunday on or after the 1st of the month.
func firstSunday(year int, month time.Month) time.Time {
	d := domain.Date(year, month, 1)
	if wd := d.Weekday(); wd != time.Sunday {
		d = d.AddDate(0, 0, 7-int(wd))
	}
	return d
}

// ThirdWeekBounds returns the 7-day block that is the month's "third week":
// weeks are Sunday-to-Saturday and anchored at the first Sunday on or after
// the 1st of the month (blocks 0, 1, 2 -> index 2). The block may spill into
// the following month; that is part of the convention.
func ThirdWeekBounds(year int, month time.Month) (start, end time.Time) {
	start = firstSunday(year, month).AddDate(0, 0, 14)
	return start, start.AddDate(0, 0, 6)
}

// ThirdWeekOfMonth reports whether t falls inside its month's third week.
//
// Dates before the month's first Sunday (possible when the 1st is not a
// Sunday) belong to no block and never qualify.
func ThirdWeekOfMonth(t time.Time) bool {
	d := domain.Day(t)
	start, end := ThirdWeekBounds(d.Year(), d.Month())
	return !d.Before(start) && !d.After(end)
}
