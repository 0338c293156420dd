package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// ErrNotFound is returned when an update targets a row that does not exist.
var ErrNotFound = errors.New("not found")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// SnapshotQuery bounds a snapshot load. From/To are inclusive meeting dates;
// an empty Divisions slice means all divisions.
type SnapshotQuery struct {
	From      time.Time
	To        time.Time
	Divisions []int64
}

// AuditEntry records one planner run or administrative action.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At         time.Time
	RunID      string
	Action     string
	DivisionID int64
	OK         int
	Fail       int
	Skipped    int
	Error      string
	TookMS     int64
	MetaJSON   string
}
