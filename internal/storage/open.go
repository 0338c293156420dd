package storage

import (
	"context"
	"errors"
	"strings"

	"quorum/internal/cascade"
	"quorum/internal/domain"
	logx "quorum/pkg/logx"
)

// Store is the persistence API used by the planner and administrative tooling.
type Store interface {
	// Snapshot assembly.
	LoadSnapshot(ctx context.Context, q SnapshotQuery) (*domain.Snapshot, error)
	ListEvents(ctx context.Context, q SnapshotQuery) ([]domain.Event, error)

	// Meetings and events.
	InsertMeeting(ctx context.Context, m domain.MeetingInstance) (int64, error)
	UpdateMeetingStatus(ctx context.Context, id int64, status domain.MeetingStatus) error
	InsertEvent(ctx context.Context, ev domain.Event) (int64, error)
	SaveEventDeadlines(ctx context.Context, eventID int64, d cascade.Result) error

	// Reference data.
	UpsertDivision(ctx context.Context, d domain.Division) error
	UpsertRoute(ctx context.Context, r domain.Route) error
	UpsertCommitteeType(ctx context.Context, ct domain.CommitteeType) error
	UpsertExceptionDate(ctx context.Context, e domain.ExceptionDate) error
	SaveSettings(ctx context.Context, s domain.ConstraintSettings) error

	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
