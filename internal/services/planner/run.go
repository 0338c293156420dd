package planner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"quorum/internal/calendar"
	"quorum/internal/cascade"
	"quorum/internal/constraint"
	"quorum/internal/domain"
	"quorum/internal/schedule"
	"quorum/internal/storage"
	logx "quorum/pkg/logx"
)

// planWindow is the generation range for a run starting at now: from today
// through the last day of the month monthsAhead past the current one.
func planWindow(now time.Time, monthsAhead int) schedule.Window {
	start := domain.Day(now)
	firstOfMonth := domain.Date(start.Year(), start.Month(), 1)
	return schedule.Window{
		Start: start,
		End:   firstOfMonth.AddDate(0, monthsAhead+1, -1),
	}
}

func (s *Service) runOnce(ctx context.Context) RunRecord {
	started := time.Now()
	rec := RunRecord{ID: uuid.NewString(), Started: started}

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	log := s.log.With(logx.String("run_id", rec.ID))
	win := planWindow(s.nowFn(), cfg.MonthsAhead)
	log.Info("planner run starting",
		logx.Time("from", win.Start), logx.Time("to", win.End),
		logx.Int("divisions", len(cfg.Divisions)),
	)

	// The snapshot window is padded a week on both sides so weekly-cap checks
	// at the window edges see their whole week.
	q := storage.SnapshotQuery{
		From:      win.Start.AddDate(0, 0, -7),
		To:        win.End.AddDate(0, 0, 7),
		Divisions: cfg.Divisions,
	}
	snap, err := s.store.LoadSnapshot(ctx, q)
	if err != nil {
		rec.Error = "load snapshot: " + err.Error()
		rec.Duration = time.Since(started)
		log.Error("planner run failed", logx.Err(err))
		return rec
	}

	gen := schedule.Generator{LookaheadDays: cfg.LookaheadDays}
	res := gen.Generate(snap, win, cfg.Divisions...)
	rec.Proposed = res.Count
	rec.Skipped = len(res.Skipped)
	for _, sk := range res.Skipped {
		if s.rejectLimit.Allow() {
			log.Debug("pair produced no proposal",
				logx.Int64("committee_type", sk.CommitteeTypeID),
				logx.Int64("division", sk.DivisionID),
				logx.String("reason", sk.Reason),
			)
		}
	}

	outcomes := schedule.ApplyProposals(ctx, snap, res.Proposals, s.store, constraint.Options{})
	for _, out := range outcomes {
		switch {
		case out.Created:
			rec.Created++
		case out.Err != "":
			rec.Failed++
			log.Warn("proposal failed",
				logx.Int64("committee_type", out.Proposal.CommitteeTypeID),
				logx.Time("date", out.Proposal.Date),
				logx.String("err", out.Err),
			)
		default:
			rec.Rejected++
			if s.rejectLimit.Allow() {
				log.Debug("proposal rejected",
					logx.Int64("committee_type", out.Proposal.CommitteeTypeID),
					logx.Time("date", out.Proposal.Date),
					logx.String("reason", out.Reason),
				)
			}
		}
	}

	rec.Deadlines = s.recomputeDeadlines(ctx, log, snap, q, &rec)

	rec.Duration = time.Since(started)
	s.audit(ctx, log, rec)
	log.Info("planner run finished",
		logx.Int("proposed", rec.Proposed),
		logx.Int("created", rec.Created),
		logx.Int("rejected", rec.Rejected),
		logx.Int("skipped", rec.Skipped),
		logx.Int("deadlines", rec.Deadlines),
		logx.Duration("took", rec.Duration),
	)
	return rec
}

// recomputeDeadlines rebuilds the milestone cascade of every event whose
// meeting sits inside the snapshot window. Meetings may have moved and
// exception dates may have appeared since the cascades were last stored, so
// the run always overwrites them.
func (s *Service) recomputeDeadlines(ctx context.Context, log logx.Logger, snap *domain.Snapshot, q storage.SnapshotQuery, rec *RunRecord) int {
	events, err := s.store.ListEvents(ctx, q)
	if err != nil {
		rec.Failed++
		log.Warn("list events failed", logx.Err(err))
		return 0
	}
	if len(events) == 0 {
		return 0
	}

	cal := calendar.FromSnapshot(snap)
	meetings := make(map[int64]domain.MeetingInstance, len(snap.Meetings))
	for _, m := range snap.Meetings {
		meetings[m.ID] = m
	}

	done := 0
	for _, ev := range events {
		m, ok := meetings[ev.MeetingID]
		if !ok || !m.Status.Counted() {
			continue
		}
		route, ok := snap.RouteByID(ev.RouteID)
		if !ok {
			rec.Failed++
			log.Warn("event references unknown route",
				logx.Int64("event", ev.ID), logx.Int64("route", ev.RouteID))
			continue
		}
		result, err := cascade.ForRoute(cal, m.Date, route)
		if err != nil {
			rec.Failed++
			log.Warn("cascade failed", logx.Int64("event", ev.ID), logx.Err(err))
			continue
		}
		if err := s.store.SaveEventDeadlines(ctx, ev.ID, result); err != nil {
			rec.Failed++
			log.Warn("save deadlines failed", logx.Int64("event", ev.ID), logx.Err(err))
			continue
		}
		done++
	}
	return done
}

func (s *Service) audit(ctx context.Context, log logx.Logger, rec RunRecord) {
	meta, _ := json.Marshal(map[string]int{
		"proposed":  rec.Proposed,
		"rejected":  rec.Rejected,
		"deadlines": rec.Deadlines,
	})
	err := s.store.AppendAudit(ctx, storage.AuditEntry{
		At:       rec.Started,
		RunID:    rec.ID,
		Action:   "plan",
		OK:       rec.Created,
		Fail:     rec.Failed,
		Skipped:  rec.Skipped,
		Error:    rec.Error,
		TookMS:   rec.Duration.Milliseconds(),
		MetaJSON: string(meta),
	})
	if err != nil {
		log.Warn("audit append failed", logx.Err(err))
	}
}
