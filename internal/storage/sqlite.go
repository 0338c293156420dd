package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"quorum/internal/cascade"
	"quorum/internal/domain"
	logx "quorum/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// dateLayout is the canonical date encoding; lexicographic order matches
// chronological order so BETWEEN works on TEXT columns.
const dateLayout = "2006-01-02"

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadSnapshot(ctx context.Context, q SnapshotQuery) (*domain.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	snap := &domain.Snapshot{
		RequestTotals: map[time.Time]int{},
		EventCounts:   map[int64]int{},
	}

	var err error
	if snap.Settings, err = s.loadSettings(ctx); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	if snap.Divisions, err = s.loadDivisions(ctx, q.Divisions); err != nil {
		return nil, fmt.Errorf("divisions: %w", err)
	}
	if snap.Routes, err = s.loadRoutes(ctx, q.Divisions); err != nil {
		return nil, fmt.Errorf("routes: %w", err)
	}
	if snap.CommitteeTypes, err = s.loadCommitteeTypes(ctx, q.Divisions); err != nil {
		return nil, fmt.Errorf("committee types: %w", err)
	}
	if snap.Meetings, err = s.loadMeetings(ctx, q); err != nil {
		return nil, fmt.Errorf("meetings: %w", err)
	}
	// Exceptions are loaded in full: deadline cascades walk backwards well
	// past the meeting window.
	if snap.Exceptions, err = s.loadExceptions(ctx); err != nil {
		return nil, fmt.Errorf("exceptions: %w", err)
	}
	if err = s.loadEventTallies(ctx, q, snap); err != nil {
		return nil, fmt.Errorf("event tallies: %w", err)
	}
	return snap, nil
}

func (s *sqliteStore) loadSettings(ctx context.Context) (domain.ConstraintSettings, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT version, work_days, max_meetings_per_day, weekly_cap, third_week_cap, max_requests_per_day, scoring
		 FROM settings ORDER BY version DESC LIMIT 1`)

	var (
		set      domain.ConstraintSettings
		workDays string
		scoring  string
	)
	err := row.Scan(&set.Version, &workDays, &set.MaxMeetingsPerDay,
		&set.WeeklyCap, &set.ThirdWeekCap, &set.MaxRequestsPerDay, &scoring)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.ConstraintSettings{}, err
	}
	if set.WorkDays, err = decodeWorkDays(workDays); err != nil {
		return domain.ConstraintSettings{}, err
	}
	if err = json.Unmarshal([]byte(scoring), &set.Scoring); err != nil {
		return domain.ConstraintSettings{}, fmt.Errorf("scoring json: %w", err)
	}
	return set, nil
}

func (s *sqliteStore) loadDivisions(ctx context.Context, ids []int64) ([]domain.Division, error) {
	query := `SELECT id, name, active FROM divisions`
	clause, args := inClause("id", ids)
	if clause != "" {
		query += " WHERE " + clause
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Division
	for rows.Next() {
		var d domain.Division
		if err := rows.Scan(&d.ID, &d.Name, &d.Active); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqliteStore) loadRoutes(ctx context.Context, divisions []int64) ([]domain.Route, error) {
	query := `SELECT id, division_id, name, sla_days, stage_a, stage_b, stage_c, stage_d FROM routes`
	clause, args := inClause("division_id", divisions)
	if clause != "" {
		query += " WHERE " + clause
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Route
	for rows.Next() {
		var r domain.Route
		if err := rows.Scan(&r.ID, &r.DivisionID, &r.Name, &r.SLADays,
			&r.StageA, &r.StageB, &r.StageC, &r.StageD); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) loadCommitteeTypes(ctx context.Context, divisions []int64) ([]domain.CommitteeType, error) {
	query := `SELECT id, division_id, name, weekday, cadence, active FROM committee_types`
	clause, args := inClause("division_id", divisions)
	if clause != "" {
		query += " WHERE " + clause
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CommitteeType
	for rows.Next() {
		var (
			ct      domain.CommitteeType
			weekday int
			cadence string
		)
		if err := rows.Scan(&ct.ID, &ct.DivisionID, &ct.Name, &weekday, &cadence, &ct.Active); err != nil {
			return nil, err
		}
		ct.Weekday = time.Weekday(weekday)
		ct.Cadence = domain.Cadence(cadence)
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (s *sqliteStore) loadMeetings(ctx context.Context, q SnapshotQuery) ([]domain.MeetingInstance, error) {
	query := `SELECT id, committee_type_id, division_id, date, status FROM meetings WHERE date BETWEEN ? AND ?`
	args := []any{day(q.From), day(q.To)}
	clause, divArgs := inClause("division_id", q.Divisions)
	if clause != "" {
		query += " AND " + clause
		args = append(args, divArgs...)
	}
	query += " ORDER BY date, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MeetingInstance
	for rows.Next() {
		var (
			m      domain.MeetingInstance
			date   string
			status string
		)
		if err := rows.Scan(&m.ID, &m.CommitteeTypeID, &m.DivisionID, &date, &status); err != nil {
			return nil, err
		}
		if m.Date, err = parseDay(date); err != nil {
			return nil, err
		}
		m.Status = domain.MeetingStatus(status)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *sqliteStore) loadExceptions(ctx context.Context) ([]domain.ExceptionDate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, COALESCE(description, ''), COALESCE(category, '') FROM exception_dates ORDER BY date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ExceptionDate
	for rows.Next() {
		var (
			e    domain.ExceptionDate
			date string
		)
		if err := rows.Scan(&date, &e.Description, &e.Category); err != nil {
			return nil, err
		}
		if e.Date, err = parseDay(date); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// loadEventTallies fills RequestTotals (expected requests per meeting date)
// and EventCounts (events per meeting) for meetings inside the query window.
func (s *sqliteStore) loadEventTallies(ctx context.Context, q SnapshotQuery, snap *domain.Snapshot) error {
	query := `SELECT m.date, e.meeting_id, e.expected_requests
	          FROM events e JOIN meetings m ON m.id = e.meeting_id
	          WHERE m.date BETWEEN ? AND ? AND m.status != ?`
	args := []any{day(q.From), day(q.To), string(domain.MeetingCancelled)}
	clause, divArgs := inClause("m.division_id", q.Divisions)
	if clause != "" {
		query += " AND " + clause
		args = append(args, divArgs...)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			date      string
			meetingID int64
			requests  int
		)
		if err := rows.Scan(&date, &meetingID, &requests); err != nil {
			return err
		}
		d, err := parseDay(date)
		if err != nil {
			return err
		}
		snap.RequestTotals[d] += requests
		snap.EventCounts[meetingID]++
	}
	return rows.Err()
}

func (s *sqliteStore) ListEvents(ctx context.Context, q SnapshotQuery) ([]domain.Event, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	query := `SELECT e.id, e.meeting_id, e.route_id, e.expected_requests, COALESCE(e.call_publication, '')
	          FROM events e JOIN meetings m ON m.id = e.meeting_id
	          WHERE m.date BETWEEN ? AND ?`
	args := []any{day(q.From), day(q.To)}
	clause, divArgs := inClause("m.division_id", q.Divisions)
	if clause != "" {
		query += " AND " + clause
		args = append(args, divArgs...)
	}
	query += " ORDER BY e.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var (
			ev  domain.Event
			pub string
		)
		if err := rows.Scan(&ev.ID, &ev.MeetingID, &ev.RouteID, &ev.ExpectedRequests, &pub); err != nil {
			return nil, err
		}
		if pub != "" {
			if ev.CallPublicationDate, err = parseDay(pub); err != nil {
				return nil, err
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *sqliteStore) InsertMeeting(ctx context.Context, m domain.MeetingInstance) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO meetings(committee_type_id, division_id, date, status) VALUES(?,?,?,?)`,
		m.CommitteeTypeID, m.DivisionID, day(m.Date), string(m.Status),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) UpdateMeetingStatus(ctx context.Context, id int64, status domain.MeetingStatus) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE meetings SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("meeting %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) InsertEvent(ctx context.Context, ev domain.Event) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	var pub any
	if !ev.CallPublicationDate.IsZero() {
		pub = day(ev.CallPublicationDate)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events(meeting_id, route_id, expected_requests, call_publication) VALUES(?,?,?,?)`,
		ev.MeetingID, ev.RouteID, ev.ExpectedRequests, pub,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) SaveEventDeadlines(ctx context.Context, eventID int64, d cascade.Result) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET call_deadline = ?, intake_deadline = ?, review_deadline = ?, response_deadline = ?
		 WHERE id = ?`,
		day(d.CallDeadline), day(d.IntakeDeadline), day(d.ReviewDeadline), day(d.ResponseDeadline), eventID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("event %d: %w", eventID, ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) UpsertDivision(ctx context.Context, d domain.Division) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO divisions(id, name, active) VALUES(?,?,?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, active=excluded.active`,
		d.ID, d.Name, d.Active,
	)
	return err
}

func (s *sqliteStore) UpsertRoute(ctx context.Context, r domain.Route) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO routes(id, division_id, name, sla_days, stage_a, stage_b, stage_c, stage_d)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET division_id=excluded.division_id, name=excluded.name,
		   sla_days=excluded.sla_days, stage_a=excluded.stage_a, stage_b=excluded.stage_b,
		   stage_c=excluded.stage_c, stage_d=excluded.stage_d`,
		r.ID, r.DivisionID, r.Name, r.SLADays, r.StageA, r.StageB, r.StageC, r.StageD,
	)
	return err
}

func (s *sqliteStore) UpsertCommitteeType(ctx context.Context, ct domain.CommitteeType) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO committee_types(id, division_id, name, weekday, cadence, active)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET division_id=excluded.division_id, name=excluded.name,
		   weekday=excluded.weekday, cadence=excluded.cadence, active=excluded.active`,
		ct.ID, ct.DivisionID, ct.Name, int(ct.Weekday), string(ct.Cadence), ct.Active,
	)
	return err
}

func (s *sqliteStore) UpsertExceptionDate(ctx context.Context, e domain.ExceptionDate) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exception_dates(date, description, category) VALUES(?,?,?)
		 ON CONFLICT(date) DO UPDATE SET description=excluded.description, category=excluded.category`,
		day(e.Date), nullStr(e.Description), nullStr(e.Category),
	)
	return err
}

func (s *sqliteStore) SaveSettings(ctx context.Context, set domain.ConstraintSettings) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	scoring, err := json.Marshal(set.Scoring)
	if err != nil {
		return fmt.Errorf("scoring json: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings(version, work_days, max_meetings_per_day, weekly_cap, third_week_cap, max_requests_per_day, scoring)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(version) DO UPDATE SET work_days=excluded.work_days,
		   max_meetings_per_day=excluded.max_meetings_per_day, weekly_cap=excluded.weekly_cap,
		   third_week_cap=excluded.third_week_cap, max_requests_per_day=excluded.max_requests_per_day,
		   scoring=excluded.scoring`,
		set.Version, encodeWorkDays(set.WorkDays), set.MaxMeetingsPerDay,
		set.WeeklyCap, set.ThirdWeekCap, set.MaxRequestsPerDay, string(scoring),
	)
	return err
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, run_id, action, division_id, ok, fail, skipped, err, took_ms, meta)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), nullStr(e.RunID), e.Action, e.DivisionID,
		e.OK, e.Fail, e.Skipped, nullStr(e.Error), e.TookMS, nullStr(e.MetaJSON),
	)
	return err
}

func day(t time.Time) string { return domain.Day(t).Format(dateLayout) }

func parseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q: %w", s, err)
	}
	return t, nil
}

// inClause builds "col IN (?,?,...)" for a non-empty id list.
// It returns ("", nil) when ids is empty so callers can skip the filter.
func inClause(col string, ids []int64) (string, []any) {
	if len(ids) == 0 {
		return "", nil
	}
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = "?"
		args[i] = id
	}
	return col + " IN (" + strings.Join(ph, ",") + ")", args
}

func encodeWorkDays(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func decodeWorkDays(s string) ([]time.Weekday, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty work_days")
	}
	parts := strings.Split(s, ",")
	out := make([]time.Weekday, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("bad work day %q", p)
		}
		out = append(out, time.Weekday(n))
	}
	return out, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
