package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"quorum/internal/constraint"
	"quorum/internal/domain"
)

type fakeStore struct {
	nextID   int64
	inserted []domain.MeetingInstance
	failOn   time.Time
}

func (f *fakeStore) InsertMeeting(_ context.Context, m domain.MeetingInstance) (int64, error) {
	if !f.failOn.IsZero() && m.Date.Equal(f.failOn) {
		return 0, errors.New("disk full")
	}
	f.nextID++
	f.inserted = append(f.inserted, m)
	return f.nextID, nil
}

func TestApplyProposalsCreatesAndRevalidates(t *testing.T) {
	t.Parallel()
	snap := testSnapshot([]domain.CommitteeType{weeklyMonday(10)})
	store := &fakeStore{}

	// The same date twice: the second application must fail re-validation
	// because the first acceptance was tallied into the snapshot.
	proposals := []Proposal{
		{CommitteeTypeID: 10, DivisionID: 1, Date: domain.Date(2025, time.June, 9), Cadence: domain.CadenceWeekly},
		{CommitteeTypeID: 10, DivisionID: 1, Date: domain.Date(2025, time.June, 9), Cadence: domain.CadenceWeekly},
	}
	outcomes := ApplyProposals(context.Background(), snap, proposals, store, constraint.Options{})
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if !outcomes[0].Created || outcomes[0].MeetingID != 1 {
		t.Fatalf("first outcome should create meeting 1, got %+v", outcomes[0])
	}
	if outcomes[1].Created || outcomes[1].Reason == "" {
		t.Fatalf("second outcome should be rejected with a reason, got %+v", outcomes[1])
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected exactly one insert, got %d", len(store.inserted))
	}
	if store.inserted[0].Status != domain.MeetingProposed {
		t.Fatalf("inserted status = %s, want proposed", store.inserted[0].Status)
	}
}

func TestApplyProposalsStorageFailureDoesNotAbortBatch(t *testing.T) {
	t.Parallel()
	snap := testSnapshot([]domain.CommitteeType{weeklyMonday(10)})
	store := &fakeStore{failOn: domain.Date(2025, time.June, 9)}

	proposals := []Proposal{
		{CommitteeTypeID: 10, DivisionID: 1, Date: domain.Date(2025, time.June, 9), Cadence: domain.CadenceWeekly},
		{CommitteeTypeID: 10, DivisionID: 1, Date: domain.Date(2025, time.June, 16), Cadence: domain.CadenceWeekly},
	}
	outcomes := ApplyProposals(context.Background(), snap, proposals, store, constraint.Options{})
	if outcomes[0].Created || outcomes[0].Err == "" {
		t.Fatalf("expected storage error on first proposal, got %+v", outcomes[0])
	}
	if !outcomes[1].Created {
		t.Fatalf("second proposal should still be created, got %+v", outcomes[1])
	}
}

func TestApplyProposalsUnknownCommitteeType(t *testing.T) {
	t.Parallel()
	snap := testSnapshot(nil)
	store := &fakeStore{}

	outcomes := ApplyProposals(context.Background(), snap, []Proposal{
		{CommitteeTypeID: 999, DivisionID: 1, Date: domain.Date(2025, time.June, 9)},
	}, store, constraint.Options{})
	if outcomes[0].Created || outcomes[0].Err == "" {
		t.Fatalf("expected input error outcome, got %+v", outcomes[0])
	}
}

func TestApplyProposalsOverrideKeepsWarnings(t *testing.T) {
	t.Parallel()
	snap := testSnapshot([]domain.CommitteeType{weeklyMonday(10)},
		domain.MeetingInstance{ID: 1, CommitteeTypeID: 99, DivisionID: 1, Date: domain.Date(2025, time.June, 9), Status: domain.MeetingScheduled},
	)
	store := &fakeStore{}

	outcomes := ApplyProposals(context.Background(), snap, []Proposal{
		{CommitteeTypeID: 10, DivisionID: 1, Date: domain.Date(2025, time.June, 9), Cadence: domain.CadenceWeekly},
	}, store, constraint.Options{Override: true})
	if !outcomes[0].Created {
		t.Fatalf("expected creation under override, got %+v", outcomes[0])
	}
	if len(outcomes[0].Warnings) == 0 {
		t.Fatalf("expected warnings carried on the outcome, got %+v", outcomes[0])
	}
}
