package storage

// Package storage persists the scheduling domain and assembles the read
// snapshots the engine consumes.
//
// It currently supports:
//   - Reference data (divisions, routes, committee types, exception dates)
//   - Meeting instances and their intake events with milestone dates
//   - Versioned constraint settings (work days, caps, scoring weights)
//   - Audit log appends (planner runs, administrative actions)
