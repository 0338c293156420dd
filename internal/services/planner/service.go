package planner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"quorum/internal/storage"
	logx "quorum/pkg/logx"
)

// ErrRunInProgress is returned when a manual run is requested while a
// triggered run is still executing.
var ErrRunInProgress = errors.New("planner run already in progress")

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	store storage.Store

	parser  cron.Parser
	c       *cron.Cron
	entryID cron.EntryID
	runCtx  context.Context

	running atomic.Bool

	rejectLimit *rate.Limiter

	// nowFn is swapped in tests to pin the planning window.
	nowFn func() time.Time

	hmu     sync.Mutex
	history []RunRecord
}

func New(cfg Config, log logx.Logger, store storage.Store) *Service {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg,
		log:   log,
		store: store,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser:      cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		rejectLimit: rate.NewLimiter(cfg.RejectionLogPerSec, int(cfg.RejectionLogPerSec)+1),
		nowFn:       time.Now,
	}
}

// Enabled reports the current config flag. (Thread-safe; Apply() may run concurrently.)
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.runCtx = ctx
	if !s.cfg.Enabled {
		s.log.Info("planner disabled")
		return
	}
	s.startCronLocked()
}

func (s *Service) startCronLocked() {
	loc := s.loadLocationLocked()
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))

	ctx := s.runCtx
	id, err := c.AddFunc(s.cfg.Schedule, func() { s.trigger(ctx) })
	if err != nil {
		s.log.Error("invalid planner schedule",
			logx.String("schedule", s.cfg.Schedule), logx.Err(err))
		return
	}
	s.c = c
	s.entryID = id
	c.Start()
	s.log.Info("planner started",
		logx.String("schedule", s.cfg.Schedule),
		logx.String("tz", loc.String()),
		logx.Int("months_ahead", s.cfg.MonthsAhead),
	)
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("unknown timezone; using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.runCtx = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// running job continues in background up to its own timeout
	}
	s.log.Info("planner stopped")
}

// Apply swaps the configuration. A schedule, timezone or enablement change
// restarts the cron trigger; a run already executing finishes untouched.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()

	retrigger := s.cfg.Enabled != cfg.Enabled ||
		s.cfg.Schedule != cfg.Schedule ||
		strings.TrimSpace(s.cfg.Timezone) != strings.TrimSpace(cfg.Timezone)
	s.cfg = cfg
	s.rejectLimit = rate.NewLimiter(cfg.RejectionLogPerSec, int(cfg.RejectionLogPerSec)+1)

	if s.runCtx == nil || !retrigger {
		return
	}
	if s.c != nil {
		s.c.Stop()
		s.c = nil
	}
	if cfg.Enabled {
		s.startCronLocked()
	} else {
		s.log.Info("planner disabled")
	}
}

// trigger is the cron entry point. Overlapping runs are skipped, not queued.
func (s *Service) trigger(ctx context.Context) {
	if _, err := s.RunNow(ctx); errors.Is(err, ErrRunInProgress) {
		s.log.Warn("planner run still in progress; skipping trigger")
	}
}

// RunNow executes one generation run immediately and returns its record.
func (s *Service) RunNow(ctx context.Context) (RunRecord, error) {
	if s.store == nil {
		return RunRecord{}, storage.ErrDisabled
	}
	if !s.running.CompareAndSwap(false, true) {
		return RunRecord{}, ErrRunInProgress
	}
	defer s.running.Store(false)

	s.mu.Lock()
	timeout := s.cfg.RunTimeout
	s.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rec := s.runOnce(rctx)
	s.appendHistory(rec)
	if rec.Error != "" {
		return rec, errors.New(rec.Error)
	}
	return rec, nil
}

func (s *Service) appendHistory(rec RunRecord) {
	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, rec)
	if n := len(s.history) - size; n > 0 {
		s.history = append([]RunRecord(nil), s.history[n:]...)
	}
}

// SnapshotState returns a copy of the service state for status surfaces.
func (s *Service) SnapshotState() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Enabled:  s.cfg.Enabled,
		Schedule: s.cfg.Schedule,
		Timezone: strings.TrimSpace(s.cfg.Timezone),
		Running:  s.running.Load(),
	}
	if s.c != nil {
		e := s.c.Entry(s.entryID)
		snap.Next, snap.Prev = e.Next, e.Prev
	}
	s.mu.Unlock()

	s.hmu.Lock()
	snap.History = append([]RunRecord(nil), s.history...)
	s.hmu.Unlock()
	return snap
}
