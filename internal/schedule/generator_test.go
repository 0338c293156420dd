package schedule

import (
	"testing"
	"time"

	"quorum/internal/domain"
)

func testSnapshot(types []domain.CommitteeType, meetings ...domain.MeetingInstance) *domain.Snapshot {
	return &domain.Snapshot{
		Divisions:      []domain.Division{{ID: 1, Name: "north", Active: true}},
		CommitteeTypes: types,
		Meetings:       meetings,
		Settings:       domain.DefaultSettings(),
	}
}

func weeklyMonday(id int64) domain.CommitteeType {
	return domain.CommitteeType{
		ID: id, DivisionID: 1, Name: "grants",
		Weekday: time.Monday, Cadence: domain.CadenceWeekly, Active: true,
	}
}

func TestFindNextAvailableDateFromSunday(t *testing.T) {
	t.Parallel()
	// Sun-Thu work week, no exceptions, no existing meetings: searching from
	// a Sunday lands on the following Monday.
	snap := testSnapshot([]domain.CommitteeType{weeklyMonday(10)})

	got, ok := Generator{}.FindNextAvailableDate(snap, weeklyMonday(10), domain.Date(2025, time.June, 8))
	if !ok {
		t.Fatal("expected a date")
	}
	if want := domain.Date(2025, time.June, 9); !got.Equal(want) {
		t.Fatalf("FindNextAvailableDate = %s, want %s", got.Format("2006-01-02"), want.Format("2006-01-02"))
	}
}

func TestGenerateWeeklyFillsTheMonth(t *testing.T) {
	t.Parallel()
	snap := testSnapshot([]domain.CommitteeType{weeklyMonday(10)})

	res := Generator{}.Generate(snap, MonthWindow(2025, time.June))
	// June 2025 has five Mondays: 2, 9, 16, 23, 30.
	if res.Count != 5 {
		t.Fatalf("expected 5 proposals, got %d (%+v)", res.Count, res.Proposals)
	}
	for i, want := range []int{2, 9, 16, 23, 30} {
		p := res.Proposals[i]
		if !p.Date.Equal(domain.Date(2025, time.June, want)) {
			t.Fatalf("proposal %d on %s, want June %d", i, p.Date.Format("2006-01-02"), want)
		}
		if p.Cadence != domain.CadenceWeekly || p.CommitteeTypeID != 10 || p.DivisionID != 1 {
			t.Fatalf("unexpected proposal %+v", p)
		}
	}
	if len(res.Skipped) != 0 {
		t.Fatalf("unexpected skips: %+v", res.Skipped)
	}
	// Generation must not persist into the caller's snapshot.
	if len(snap.Meetings) != 0 {
		t.Fatalf("generator leaked %d meetings into the snapshot", len(snap.Meetings))
	}
}

func TestGenerateMonthlyPicksThirdWeek(t *testing.T) {
	t.Parallel()
	monthly := domain.CommitteeType{
		ID: 20, DivisionID: 1, Name: "steering",
		Weekday: time.Wednesday, Cadence: domain.CadenceMonthly, Active: true,
	}
	snap := testSnapshot([]domain.CommitteeType{monthly})

	res := Generator{}.Generate(snap, MonthWindow(2025, time.June))
	if res.Count != 1 {
		t.Fatalf("expected 1 proposal, got %+v", res)
	}
	// June 2025 third week is Jun 15..21; its Wednesday is Jun 18.
	if want := domain.Date(2025, time.June, 18); !res.Proposals[0].Date.Equal(want) {
		t.Fatalf("proposal on %s, want %s", res.Proposals[0].Date.Format("2006-01-02"), want.Format("2006-01-02"))
	}
	if res.Proposals[0].Cadence != domain.CadenceMonthly {
		t.Fatalf("unexpected cadence %s", res.Proposals[0].Cadence)
	}
}

func TestGenerateTalliesItsOwnAcceptances(t *testing.T) {
	t.Parallel()
	// Two Monday committees in one division with max_meetings_per_day=1:
	// the first pair takes every Monday, so the second sees the daily cap on
	// each of them and comes up empty. No date may be proposed twice.
	snap := testSnapshot([]domain.CommitteeType{weeklyMonday(10), weeklyMonday(11)})
	snap.CommitteeTypes[1].Name = "audit"

	res := Generator{}.Generate(snap, MonthWindow(2025, time.June))
	seen := map[time.Time]int64{}
	for _, p := range res.Proposals {
		if prev, dup := seen[p.Date]; dup {
			t.Fatalf("date %s proposed for both %d and %d", p.Date.Format("2006-01-02"), prev, p.CommitteeTypeID)
		}
		seen[p.Date] = p.CommitteeTypeID
	}
	if res.Count != 5 {
		t.Fatalf("expected five Monday proposals, got %d", res.Count)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].CommitteeTypeID != 11 {
		t.Fatalf("expected committee 11 skipped, got %+v", res.Skipped)
	}
}

func TestGenerateSkipsPairWithNoAdmissibleDate(t *testing.T) {
	t.Parallel()
	// Friday is outside the Sun-Thu work pattern: every candidate is
	// rejected and the pair is reported as skipped, not as an error.
	friday := domain.CommitteeType{
		ID: 30, DivisionID: 1, Name: "budget",
		Weekday: time.Friday, Cadence: domain.CadenceWeekly, Active: true,
	}
	snap := testSnapshot([]domain.CommitteeType{friday})

	res := Generator{}.Generate(snap, MonthWindow(2025, time.June))
	if res.Count != 0 || len(res.Skipped) != 1 {
		t.Fatalf("expected 0 proposals and 1 skip, got %+v", res)
	}
	if res.Skipped[0].CommitteeTypeID != 30 || res.Skipped[0].Reason == "" {
		t.Fatalf("unexpected skip %+v", res.Skipped[0])
	}
}

func TestGenerateWeeklyContinuesPastLookahead(t *testing.T) {
	t.Parallel()
	// The lookahead bounds only the hunt for a pair's first acceptance. With
	// the first Monday admissible, a three-month window keeps producing
	// proposals well past the 14-day mark.
	snap := testSnapshot([]domain.CommitteeType{weeklyMonday(10)})

	res := Generator{LookaheadDays: 14}.Generate(snap, Window{
		Start: domain.Date(2025, time.June, 1),
		End:   domain.Date(2025, time.August, 31),
	})
	// Mondays Jun 2 .. Aug 25: 5 in June, 4 in July, 4 in August.
	if res.Count != 13 {
		t.Fatalf("expected 13 proposals, got %d (%+v)", res.Count, res.Proposals)
	}
	if last := res.Proposals[len(res.Proposals)-1].Date; !last.Equal(domain.Date(2025, time.August, 25)) {
		t.Fatalf("last proposal on %s, want 2025-08-25", last.Format("2006-01-02"))
	}
	if len(res.Skipped) != 0 {
		t.Fatalf("unexpected skips: %+v", res.Skipped)
	}
}

func TestGenerateWeeklyGivesUpAfterLookahead(t *testing.T) {
	t.Parallel()
	// Every Monday inside the lookahead is an exception date. The first
	// admissible Monday (Jun 16) sits past the 10-day bound, so the pair is
	// reported as skipped even though the window runs on.
	snap := testSnapshot([]domain.CommitteeType{weeklyMonday(10)})
	snap.Exceptions = []domain.ExceptionDate{
		{Date: domain.Date(2025, time.June, 2)},
		{Date: domain.Date(2025, time.June, 9)},
	}

	res := Generator{LookaheadDays: 10}.Generate(snap, Window{
		Start: domain.Date(2025, time.June, 1),
		End:   domain.Date(2025, time.July, 31),
	})
	if res.Count != 0 || len(res.Skipped) != 1 {
		t.Fatalf("expected 0 proposals and 1 skip, got %+v", res)
	}
	if res.Skipped[0].Reason == "" {
		t.Fatalf("skip carries no reason: %+v", res.Skipped[0])
	}
}

func TestGenerateHonorsDivisionFilter(t *testing.T) {
	t.Parallel()
	other := domain.CommitteeType{
		ID: 40, DivisionID: 2, Name: "south-grants",
		Weekday: time.Monday, Cadence: domain.CadenceWeekly, Active: true,
	}
	snap := testSnapshot([]domain.CommitteeType{weeklyMonday(10), other})
	snap.Divisions = append(snap.Divisions, domain.Division{ID: 2, Name: "south", Active: true})

	res := Generator{}.Generate(snap, MonthWindow(2025, time.June), 2)
	for _, p := range res.Proposals {
		if p.DivisionID != 2 {
			t.Fatalf("proposal outside requested division: %+v", p)
		}
	}
	if res.Count == 0 {
		t.Fatal("expected proposals for division 2")
	}
}

func TestGenerateSkipsInactive(t *testing.T) {
	t.Parallel()
	ct := weeklyMonday(10)
	ct.Active = false
	snap := testSnapshot([]domain.CommitteeType{ct})

	res := Generator{}.Generate(snap, MonthWindow(2025, time.June))
	if res.Count != 0 || len(res.Skipped) != 0 {
		t.Fatalf("inactive committee type should be ignored entirely, got %+v", res)
	}
}
