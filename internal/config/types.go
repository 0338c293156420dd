package config

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Storage is required in practice: the planner reads its scheduling
	// snapshot and writes meetings/audit entries through it.
	Storage StorageConfig `json:"storage"`

	// Planner controls the automatic schedule-generation service.
	Planner PlannerConfig `json:"planner"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./quorum.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// PlannerConfig controls the automatic schedule generation runs.
//
// Schedule is a cron spec or descriptor ("0 6 1 * *", "@monthly", "@daily").
// All durations are Go duration strings (e.g. "30s", "5m").
//
// Defaults (when fields are omitted/zero):
//   - schedule: "@monthly"
//   - months_ahead: 1
//   - lookahead_days: 90
//   - run_timeout: "5m"
//   - history_size: 50
type PlannerConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`

	// Trigger timezone (IANA name). Empty means the process-local zone.
	Timezone string `json:"timezone,omitempty"`

	// MonthsAhead is how many whole calendar months past the current one
	// each run generates for.
	MonthsAhead int `json:"months_ahead,omitempty"`

	// LookaheadDays bounds the per-pair weekly search.
	LookaheadDays int `json:"lookahead_days,omitempty"`

	// Divisions restricts generation; empty means every active division.
	Divisions []int64 `json:"divisions,omitempty"`

	// RunTimeout is a Go duration string capping one generation run.
	RunTimeout string `json:"run_timeout,omitempty"`

	HistorySize int `json:"history_size,omitempty"`

	// RejectionLogPerSec rate-limits per-candidate rejection logging so a
	// misconfigured month does not flood the log sinks. 0 means 5/s.
	RejectionLogPerSec int `json:"rejection_log_per_sec,omitempty"`
}
