package schedule

import (
	"context"
	"fmt"

	"quorum/internal/constraint"
	"quorum/internal/domain"
)

// MeetingCreator is the single write capability this package needs. The
// storage layer implements it; tests use a fake.
type MeetingCreator interface {
	InsertMeeting(ctx context.Context, m domain.MeetingInstance) (int64, error)
}

// Outcome is the per-proposal result of an apply pass.
type Outcome struct {
	Proposal  Proposal
	Created   bool
	MeetingID int64

	// Reason is the constraint rejection, Err a storage failure. At most one
	// is set; both empty means Created.
	Reason   string
	Err      string
	Warnings []string
}

// ApplyProposals turns approved proposals into meeting instances.
//
// Constraints may have changed between generation and approval, so every
// proposal is re-validated against the live snapshot immediately before
// insertion. Accepted proposals are tallied into the snapshot so the batch
// cannot overfill a day or week it just filled itself. One failure never
// aborts the batch: callers get an outcome per proposal.
func ApplyProposals(ctx context.Context, snap *domain.Snapshot, proposals []Proposal, store MeetingCreator, opts constraint.Options) []Outcome {
	v := constraint.ForSnapshot(snap)

	byID := make(map[int64]domain.CommitteeType, len(snap.CommitteeTypes))
	for _, ct := range snap.CommitteeTypes {
		byID[ct.ID] = ct
	}

	outcomes := make([]Outcome, 0, len(proposals))
	for _, p := range proposals {
		out := Outcome{Proposal: p}

		ct, ok := byID[p.CommitteeTypeID]
		if !ok {
			out.Err = fmt.Sprintf("unknown committee type %d", p.CommitteeTypeID)
			outcomes = append(outcomes, out)
			continue
		}

		res, err := v.Check(constraint.Candidate{
			CommitteeType: ct,
			DivisionID:    p.DivisionID,
			Date:          p.Date,
		}, snap, opts)
		if err != nil {
			out.Err = err.Error()
			outcomes = append(outcomes, out)
			continue
		}
		out.Warnings = res.Warnings
		if !res.Admit {
			out.Reason = res.Reason
			outcomes = append(outcomes, out)
			continue
		}

		m := domain.MeetingInstance{
			CommitteeTypeID: p.CommitteeTypeID,
			DivisionID:      p.DivisionID,
			Date:            domain.Day(p.Date),
			Status:          domain.MeetingProposed,
		}
		id, err := store.InsertMeeting(ctx, m)
		if err != nil {
			out.Err = err.Error()
			outcomes = append(outcomes, out)
			continue
		}
		m.ID = id
		snap.AddMeeting(m)

		out.Created = true
		out.MeetingID = id
		outcomes = append(outcomes, out)
	}
	return outcomes
}
