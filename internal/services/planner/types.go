package planner

import (
	"time"

	"golang.org/x/time/rate"
)

// Config controls the planner service.
type Config struct {
	Enabled  bool
	Schedule string // cron spec or descriptor, e.g. "@monthly"
	Timezone string // IANA TZ; empty means process-local

	// MonthsAhead is how many whole calendar months past the current one
	// each run generates for.
	MonthsAhead   int
	LookaheadDays int

	// Divisions restricts generation; empty means every active division.
	Divisions []int64

	RunTimeout  time.Duration
	HistorySize int

	// RejectionLogPerSec rate-limits per-candidate rejection logging.
	RejectionLogPerSec rate.Limit
}

func (c Config) withDefaults() Config {
	if c.Schedule == "" {
		c.Schedule = "@monthly"
	}
	if c.MonthsAhead <= 0 {
		c.MonthsAhead = 1
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 5 * time.Minute
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 50
	}
	if c.RejectionLogPerSec <= 0 {
		c.RejectionLogPerSec = 5
	}
	return c
}

// RunRecord summarizes one generation run.
type RunRecord struct {
	ID       string
	Started  time.Time
	Duration time.Duration

	Proposed  int // dates the generator suggested
	Created   int // meetings persisted
	Rejected  int // proposals that failed re-validation
	Failed    int // storage or input errors
	Skipped   int // pairs that produced no proposal
	Deadlines int // event cascades recomputed

	Error string // fatal run error, empty on success
}

// Snapshot is a point-in-time view of the service for status surfaces.
type Snapshot struct {
	Enabled  bool
	Schedule string
	Timezone string
	Running  bool
	Next     time.Time
	Prev     time.Time
	History  []RunRecord
}
