package constraint

import (
	"errors"
	"testing"
	"time"

	"quorum/internal/calendar"
	"quorum/internal/domain"
)

func testSettings() domain.ConstraintSettings {
	s := domain.DefaultSettings()
	s.MaxMeetingsPerDay = 1
	s.WeeklyCap = 3
	s.ThirdWeekCap = 4
	return s
}

func testSnapshot(meetings ...domain.MeetingInstance) *domain.Snapshot {
	return &domain.Snapshot{
		Divisions: []domain.Division{{ID: 1, Name: "north", Active: true}},
		Meetings:  meetings,
		Settings:  testSettings(),
	}
}

func weeklyMonday() domain.CommitteeType {
	return domain.CommitteeType{
		ID: 10, DivisionID: 1, Name: "grants",
		Weekday: time.Monday, Cadence: domain.CadenceWeekly, Active: true,
	}
}

func newTestValidator(snap *domain.Snapshot) *Validator {
	return New(calendar.New(snap.Settings.WorkDays, snap.Exceptions), snap.Settings)
}

func TestCheckAdmitsFreeMonday(t *testing.T) {
	t.Parallel()
	snap := testSnapshot()
	v := newTestValidator(snap)

	res, err := v.Check(Candidate{
		CommitteeType: weeklyMonday(),
		DivisionID:    1,
		Date:          domain.Date(2025, time.June, 9),
	}, snap, Options{})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !res.Admit || res.Reason != "" || len(res.Warnings) != 0 {
		t.Fatalf("expected clean admit, got %+v", res)
	}
}

func TestCheckHardRejections(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		ct     domain.CommitteeType
		date   time.Time
		reason string
	}{
		{
			name: "friday is not a business day",
			ct:   weeklyMonday(),
			date: domain.Date(2025, time.June, 6),

			reason: ReasonNotBusinessDay,
		},
		{
			name:   "tuesday for a monday committee",
			ct:     weeklyMonday(),
			date:   domain.Date(2025, time.June, 10),
			reason: ReasonWrongWeekday,
		},
		{
			name: "monthly committee outside third week",
			ct: domain.CommitteeType{
				ID: 11, DivisionID: 1, Weekday: time.Monday, Cadence: domain.CadenceMonthly, Active: true,
			},
			// June 2025 third week is Jun 15..21; Jun 9 is a Monday outside it.
			date:   domain.Date(2025, time.June, 9),
			reason: ReasonNotThirdWeek,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			snap := testSnapshot()
			v := newTestValidator(snap)
			for _, override := range []bool{false, true} {
				res, err := v.Check(Candidate{CommitteeType: tt.ct, DivisionID: 1, Date: tt.date}, snap, Options{Override: override})
				if err != nil {
					t.Fatalf("Check error: %v", err)
				}
				if res.Admit {
					t.Fatalf("override=%v: expected rejection, got admit", override)
				}
				if res.Reason != tt.reason || res.Tier != TierHard {
					t.Fatalf("override=%v: got (%q, %s), want (%q, hard)", override, res.Reason, res.Tier, tt.reason)
				}
			}
		})
	}
}

func TestCheckDailyCap(t *testing.T) {
	t.Parallel()
	// Another committee already occupies Monday Jun 9; max_meetings_per_day=1
	// admits no second instance on the date, whatever its type.
	snap := testSnapshot(domain.MeetingInstance{
		ID: 100, CommitteeTypeID: 99, DivisionID: 1,
		Date: domain.Date(2025, time.June, 9), Status: domain.MeetingScheduled,
	})
	v := newTestValidator(snap)
	cand := Candidate{CommitteeType: weeklyMonday(), DivisionID: 1, Date: domain.Date(2025, time.June, 9)}

	res, err := v.Check(cand, snap, Options{})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if res.Admit || res.Reason != ReasonDailyCap || res.Tier != TierSoft {
		t.Fatalf("expected soft daily-cap rejection, got %+v", res)
	}

	// Administrative override: admitted with the violation as a warning.
	res, err = v.Check(cand, snap, Options{Override: true})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !res.Admit {
		t.Fatalf("expected admit under override, got %+v", res)
	}
	if len(res.Warnings) == 0 || res.Warnings[0] != ReasonDailyCap {
		t.Fatalf("expected daily-cap warning, got %v", res.Warnings)
	}
}

func TestCheckWeeklyCap(t *testing.T) {
	t.Parallel()
	// Week of Sun Jun 8 .. Sat Jun 14 already holds 3 meetings on other days.
	snap := testSnapshot(
		domain.MeetingInstance{ID: 1, CommitteeTypeID: 20, DivisionID: 1, Date: domain.Date(2025, time.June, 8), Status: domain.MeetingScheduled},
		domain.MeetingInstance{ID: 2, CommitteeTypeID: 21, DivisionID: 1, Date: domain.Date(2025, time.June, 10), Status: domain.MeetingScheduled},
		domain.MeetingInstance{ID: 3, CommitteeTypeID: 22, DivisionID: 1, Date: domain.Date(2025, time.June, 11), Status: domain.MeetingScheduled},
	)
	v := newTestValidator(snap)

	res, err := v.Check(Candidate{
		CommitteeType: weeklyMonday(), DivisionID: 1, Date: domain.Date(2025, time.June, 9),
	}, snap, Options{})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if res.Admit || res.Reason != ReasonWeeklyCap {
		t.Fatalf("expected weekly-cap rejection, got %+v", res)
	}

	// Cancelled meetings do not occupy the week.
	snap.Meetings[2].Status = domain.MeetingCancelled
	res, err = v.Check(Candidate{
		CommitteeType: weeklyMonday(), DivisionID: 1, Date: domain.Date(2025, time.June, 9),
	}, snap, Options{})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !res.Admit {
		t.Fatalf("expected admit after cancellation, got %+v", res)
	}
}

func TestCheckThirdWeekUsesOwnCap(t *testing.T) {
	t.Parallel()
	// Third week of June 2025 (Jun 15..21) with 3 existing meetings: the
	// third-week cap of 4 still has headroom where the standard cap would not.
	snap := testSnapshot(
		domain.MeetingInstance{ID: 1, CommitteeTypeID: 20, DivisionID: 1, Date: domain.Date(2025, time.June, 15), Status: domain.MeetingScheduled},
		domain.MeetingInstance{ID: 2, CommitteeTypeID: 21, DivisionID: 1, Date: domain.Date(2025, time.June, 17), Status: domain.MeetingScheduled},
		domain.MeetingInstance{ID: 3, CommitteeTypeID: 22, DivisionID: 1, Date: domain.Date(2025, time.June, 18), Status: domain.MeetingScheduled},
	)
	v := newTestValidator(snap)

	res, err := v.Check(Candidate{
		CommitteeType: weeklyMonday(), DivisionID: 1, Date: domain.Date(2025, time.June, 16),
	}, snap, Options{})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !res.Admit {
		t.Fatalf("expected admit under third-week cap, got %+v", res)
	}
}

func TestCheckDuplicateWindow(t *testing.T) {
	t.Parallel()
	// Same committee met the preceding Wednesday; the anti-duplicate rule
	// fires even though day and week caps are fine.
	snap := testSnapshot(domain.MeetingInstance{
		ID: 50, CommitteeTypeID: 10, DivisionID: 1,
		Date: domain.Date(2025, time.June, 4), Status: domain.MeetingScheduled,
	})
	v := newTestValidator(snap)

	res, err := v.Check(Candidate{
		CommitteeType: weeklyMonday(), DivisionID: 1, Date: domain.Date(2025, time.June, 9),
	}, snap, Options{})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if res.Admit || res.Reason != ReasonDuplicateWeek {
		t.Fatalf("expected duplicate-window rejection, got %+v", res)
	}

	// Exactly 7 days apart is the normal weekly cadence: admissible.
	snap2 := testSnapshot(domain.MeetingInstance{
		ID: 51, CommitteeTypeID: 10, DivisionID: 1,
		Date: domain.Date(2025, time.June, 2), Status: domain.MeetingScheduled,
	})
	res, err = newTestValidator(snap2).Check(Candidate{
		CommitteeType: weeklyMonday(), DivisionID: 1, Date: domain.Date(2025, time.June, 9),
	}, snap2, Options{})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !res.Admit {
		t.Fatalf("expected admit at 7-day spacing, got %+v", res)
	}

	// Re-validating the same instance (e.g. a move) excludes itself.
	res, err = v.Check(Candidate{
		CommitteeType: weeklyMonday(), DivisionID: 1,
		Date: domain.Date(2025, time.June, 2), ExcludeMeetingID: 50,
	}, snap, Options{})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !res.Admit {
		t.Fatalf("expected admit when excluding self, got %+v", res)
	}
}

func TestCheckOverrideAccumulatesWarnings(t *testing.T) {
	t.Parallel()
	// Occupied date and a same-committee duplicate: override keeps both as
	// warnings on a single admit.
	snap := testSnapshot(
		domain.MeetingInstance{ID: 1, CommitteeTypeID: 10, DivisionID: 1, Date: domain.Date(2025, time.June, 9), Status: domain.MeetingScheduled},
	)
	v := newTestValidator(snap)

	res, err := v.Check(Candidate{
		CommitteeType: weeklyMonday(), DivisionID: 1, Date: domain.Date(2025, time.June, 9),
	}, snap, Options{Override: true})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !res.Admit {
		t.Fatalf("expected admit under override, got %+v", res)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("expected 2 warnings (daily cap + duplicate), got %v", res.Warnings)
	}
}

func TestCheckDivisionMismatch(t *testing.T) {
	t.Parallel()
	snap := testSnapshot()
	v := newTestValidator(snap)

	_, err := v.Check(Candidate{
		CommitteeType: weeklyMonday(), DivisionID: 2, Date: domain.Date(2025, time.June, 9),
	}, snap, Options{})
	if !errors.Is(err, ErrDivisionMismatch) {
		t.Fatalf("expected ErrDivisionMismatch, got %v", err)
	}
}
