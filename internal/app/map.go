package app

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"quorum/internal/config"
	"quorum/internal/services/planner"
	"quorum/internal/storage"
)

// mapStorageConfig translates the config section into a storage.Config.
// enabled is false when the driver is empty or "none".
func mapStorageConfig(cfg *config.Config) (sc storage.Config, enabled bool, err error) {
	if cfg == nil {
		return storage.Config{}, false, nil
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}

	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, false, err
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		return storage.Config{}, false, fmt.Errorf("storage.path is required for driver %q", driver)
	}
	return storage.Config{
		Driver:      driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, true, nil
}

func mapPlannerConfig(cfg *config.Config) (planner.Config, error) {
	if cfg == nil {
		return planner.Config{}, nil
	}
	p := cfg.Planner

	if p.MonthsAhead < 0 {
		return planner.Config{}, fmt.Errorf("planner.months_ahead must be >= 0")
	}
	if p.LookaheadDays < 0 {
		return planner.Config{}, fmt.Errorf("planner.lookahead_days must be >= 0")
	}
	if p.HistorySize < 0 {
		return planner.Config{}, fmt.Errorf("planner.history_size must be >= 0")
	}
	if p.RejectionLogPerSec < 0 {
		return planner.Config{}, fmt.Errorf("planner.rejection_log_per_sec must be >= 0")
	}
	runTimeout, err := config.ParseDurationOrDefault("planner.run_timeout", p.RunTimeout, 5*time.Minute)
	if err != nil {
		return planner.Config{}, err
	}

	return planner.Config{
		Enabled:            p.Enabled,
		Schedule:           strings.TrimSpace(p.Schedule),
		Timezone:           p.Timezone,
		MonthsAhead:        p.MonthsAhead,
		LookaheadDays:      p.LookaheadDays,
		Divisions:          append([]int64(nil), p.Divisions...),
		RunTimeout:         runTimeout,
		HistorySize:        p.HistorySize,
		RejectionLogPerSec: rate.Limit(p.RejectionLogPerSec),
	}, nil
}
