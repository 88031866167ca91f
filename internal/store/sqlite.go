package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/cdr-insight/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Timestamps are stored as fixed-width UTC strings so MIN/MAX and range
// predicates order chronologically.
const sqliteTimeLayout = "2006-01-02 15:04:05"

func fmtTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseStoredTime(s string) time.Time {
	t, _ := time.ParseInLocation(sqliteTimeLayout, s, time.UTC)
	return t
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS uploads (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL DEFAULT '',
	file_count INTEGER NOT NULL DEFAULT 0,
	inserted   INTEGER NOT NULL DEFAULT 0,
	invalid    INTEGER NOT NULL DEFAULT 0,
	duplicates INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	record_id                TEXT PRIMARY KEY,
	upload_id                TEXT NOT NULL REFERENCES uploads(id),
	event_type               TEXT NOT NULL,
	timestamp_utc            TEXT NOT NULL,
	timestamp_local          TEXT NOT NULL,
	date                     TEXT NOT NULL,
	hour                     INTEGER NOT NULL,
	day_of_week              TEXT NOT NULL,
	is_weekend               INTEGER NOT NULL,
	is_night                 INTEGER NOT NULL,
	caller_number            TEXT NOT NULL DEFAULT '',
	receiver_number          TEXT NOT NULL DEFAULT '',
	direction                TEXT NOT NULL,
	call_duration_seconds    INTEGER NOT NULL DEFAULT 0,
	contact_pair_key         TEXT NOT NULL DEFAULT '',
	lat                      REAL,
	lng                      REAL,
	cell_id                  TEXT NOT NULL DEFAULT '',
	lac_id                   TEXT NOT NULL DEFAULT '',
	site_name                TEXT NOT NULL DEFAULT '',
	site_meta                TEXT NOT NULL DEFAULT '',
	location_source          TEXT NOT NULL,
	imei                     TEXT NOT NULL DEFAULT '',
	imsi                     TEXT NOT NULL DEFAULT '',
	provider                 TEXT NOT NULL DEFAULT '',
	normalization_warnings   TEXT NOT NULL DEFAULT '[]',
	normalization_confidence INTEGER NOT NULL,
	confidence_tier          TEXT NOT NULL,
	is_duplicate             INTEGER NOT NULL DEFAULT 0,
	contact_first_seen       TEXT,
	contact_last_seen        TEXT,
	daily_event_count        INTEGER NOT NULL DEFAULT 0,
	rolling_7day_avg         REAL NOT NULL DEFAULT 0,
	rolling_30day_avg        REAL NOT NULL DEFAULT 0,
	burst_session_id         TEXT NOT NULL DEFAULT '',
	baseline_window_label    TEXT NOT NULL DEFAULT 'baseline',
	source_file              TEXT NOT NULL DEFAULT '',
	source_sheet             TEXT NOT NULL DEFAULT '',
	source_row               INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_events_upload ON events(upload_id);
CREATE INDEX IF NOT EXISTS idx_events_upload_ts ON events(upload_id, timestamp_utc);
CREATE INDEX IF NOT EXISTS idx_events_pair ON events(contact_pair_key);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateUpload(ctx context.Context, id, label string, fileCount int) (*model.Upload, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (id, label, file_count, created_at) VALUES (?, ?, ?, ?)`,
		id, label, fileCount, fmtTime(now),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert upload %s", id)
	}
	return &model.Upload{ID: id, Label: label, FileCount: fileCount, CreatedAt: now}, nil
}

func (s *SQLiteStore) UpdateUploadCounts(ctx context.Context, id string, inserted, invalid, duplicates int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE uploads SET inserted = ?, invalid = ?, duplicates = ? WHERE id = ?`,
		inserted, invalid, duplicates, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update upload %s", id)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return eris.Errorf("sqlite: upload %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) GetUpload(ctx context.Context, id string) (*model.Upload, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, file_count, inserted, invalid, duplicates, created_at FROM uploads WHERE id = ?`, id)
	return scanUpload(row)
}

func (s *SQLiteStore) ListUploads(ctx context.Context, limit int) ([]model.Upload, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, file_count, inserted, invalid, duplicates, created_at FROM uploads ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list uploads")
	}
	defer rows.Close()

	var uploads []model.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, *u)
	}
	return uploads, eris.Wrap(rows.Err(), "sqlite: list uploads")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (*model.Upload, error) {
	var u model.Upload
	var createdAt string
	if err := row.Scan(&u.ID, &u.Label, &u.FileCount, &u.Inserted, &u.Invalid, &u.Duplicates, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrap(err, "sqlite: upload not found")
		}
		return nil, eris.Wrap(err, "sqlite: scan upload")
	}
	u.CreatedAt = parseStoredTime(createdAt)
	return &u, nil
}

const sqliteInsertEvent = `INSERT INTO events (
	record_id, upload_id, event_type, timestamp_utc, timestamp_local, date, hour,
	day_of_week, is_weekend, is_night, caller_number, receiver_number, direction,
	call_duration_seconds, contact_pair_key, lat, lng, cell_id, lac_id, site_name,
	site_meta, location_source, imei, imsi, provider, normalization_warnings,
	normalization_confidence, confidence_tier, is_duplicate, contact_first_seen,
	contact_last_seen, daily_event_count, rolling_7day_avg, rolling_30day_avg,
	burst_session_id, baseline_window_label, source_file, source_sheet, source_row
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertEvents writes one chunk in a transaction. On success it reports
// len(events); on failure nothing from the chunk is counted.
func (s *SQLiteStore) InsertEvents(ctx context.Context, events []*model.CanonicalEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteInsertEvent)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	for _, ev := range events {
		warnings, err := json.Marshal(ev.NormalizationWarnings)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal warnings for %s", ev.RecordID)
		}
		_, err = stmt.ExecContext(ctx,
			ev.RecordID, ev.UploadID, string(ev.EventType), fmtTime(ev.TimestampUTC),
			ev.TimestampLocal.Format("2006-01-02 15:04:05 -07:00"), ev.Date, ev.Hour,
			ev.DayOfWeek, ev.IsWeekend, ev.IsNight, ev.CallerNumber, ev.ReceiverNumber,
			string(ev.Direction), ev.CallDurationSeconds, ev.ContactPairKey,
			ev.Lat, ev.Lng, ev.CellID, ev.LACID, ev.SiteName, ev.SiteMeta,
			string(ev.LocationSource), ev.IMEI, ev.IMSI, ev.Provider, string(warnings),
			ev.NormalizationConfidence, string(ev.ConfidenceTier), ev.IsDuplicate,
			nullableTime(ev.ContactFirstSeen), nullableTime(ev.ContactLastSeen),
			ev.DailyEventCount, ev.Rolling7DayAvg, ev.Rolling30DayAvg,
			ev.BurstSessionID, ev.BaselineWindowLabel,
			ev.SourceFile, ev.SourceSheet, ev.SourceRow,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert event %s", ev.RecordID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert")
	}
	return len(events), nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

// eventWhere builds the shared filter predicate. Duplicates never contribute
// to aggregates.
func eventWhere(f EventFilter) (string, []any) {
	conds := []string{"upload_id = ?", "is_duplicate = 0"}
	args := []any{f.UploadID}

	if f.From != nil {
		conds = append(conds, "timestamp_utc >= ?")
		args = append(args, fmtTime(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "timestamp_utc <= ?")
		args = append(args, fmtTime(*f.To))
	}
	if f.EventType != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, string(f.EventType))
	}
	if f.Direction != "" {
		conds = append(conds, "direction = ?")
		args = append(args, string(f.Direction))
	}
	return strings.Join(conds, " AND "), args
}

// EdgeAggregates groups undirected pairs, excluding self-loops and records
// with a missing party.
func (s *SQLiteStore) EdgeAggregates(ctx context.Context, f EventFilter) ([]model.EdgeAggregate, error) {
	where, args := eventWhere(f)
	query := `
SELECT
	CASE WHEN caller_number < receiver_number THEN caller_number ELSE receiver_number END AS a,
	CASE WHEN caller_number < receiver_number THEN receiver_number ELSE caller_number END AS b,
	COUNT(*), SUM(call_duration_seconds), MIN(timestamp_utc), MAX(timestamp_utc)
FROM events
WHERE ` + where + ` AND caller_number <> '' AND receiver_number <> '' AND caller_number <> receiver_number
GROUP BY a, b`
	if f.MinWeight > 0 {
		query += " HAVING COUNT(*) >= ?"
		args = append(args, int(f.MinWeight))
	}
	query += " ORDER BY a, b"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: edge aggregates")
	}
	defer rows.Close()

	var edges []model.EdgeAggregate
	for rows.Next() {
		var e model.EdgeAggregate
		var count, duration int
		var first, last string
		if err := rows.Scan(&e.Source, &e.Target, &count, &duration, &first, &last); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan edge aggregate")
		}
		e.Weight = float64(count)
		e.EventCount = count
		e.TotalDuration = duration
		e.FirstSeen = parseStoredTime(first)
		e.LastSeen = parseStoredTime(last)
		edges = append(edges, e)
	}
	return edges, eris.Wrap(rows.Err(), "sqlite: edge aggregates")
}

// NodeAggregates unions caller and receiver positions per party.
func (s *SQLiteStore) NodeAggregates(ctx context.Context, f EventFilter) ([]model.NodeAggregate, error) {
	where, args := eventWhere(f)
	query := `
SELECT party, SUM(cnt), SUM(dur), MIN(first), MAX(last) FROM (
	SELECT caller_number AS party, COUNT(*) AS cnt, SUM(call_duration_seconds) AS dur,
	       MIN(timestamp_utc) AS first, MAX(timestamp_utc) AS last
	FROM events WHERE ` + where + ` AND caller_number <> ''
	GROUP BY caller_number
	UNION ALL
	SELECT receiver_number AS party, COUNT(*) AS cnt, SUM(call_duration_seconds) AS dur,
	       MIN(timestamp_utc) AS first, MAX(timestamp_utc) AS last
	FROM events WHERE ` + where + ` AND receiver_number <> ''
	GROUP BY receiver_number
) GROUP BY party ORDER BY party`

	rows, err := s.db.QueryContext(ctx, query, append(append([]any{}, args...), args...)...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: node aggregates")
	}
	defer rows.Close()

	var nodes []model.NodeAggregate
	for rows.Next() {
		var n model.NodeAggregate
		var first, last string
		if err := rows.Scan(&n.ID, &n.TotalEvents, &n.TotalDuration, &first, &last); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan node aggregate")
		}
		n.FirstSeen = parseStoredTime(first)
		n.LastSeen = parseStoredTime(last)
		nodes = append(nodes, n)
	}
	return nodes, eris.Wrap(rows.Err(), "sqlite: node aggregates")
}

// EventSummary produces grouped counts and distinct-value sets for an upload
// under a filter.
func (s *SQLiteStore) EventSummary(ctx context.Context, f EventFilter) (*model.EventSummary, error) {
	where, args := eventWhere(f)
	summary := &model.EventSummary{
		ByEventType: map[string]int{},
		ByDirection: map[string]int{},
	}

	row := s.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(MIN(timestamp_utc), ''), COALESCE(MAX(timestamp_utc), '')
FROM events WHERE `+where, args...)
	var first, last string
	if err := row.Scan(&summary.Total, &first, &last); err != nil {
		return nil, eris.Wrap(err, "sqlite: event summary totals")
	}
	if first != "" {
		t := parseStoredTime(first)
		summary.FirstSeen = &t
	}
	if last != "" {
		t := parseStoredTime(last)
		summary.LastSeen = &t
	}

	row = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE upload_id = ? AND is_duplicate = 1`, f.UploadID)
	if err := row.Scan(&summary.Duplicates); err != nil {
		return nil, eris.Wrap(err, "sqlite: event summary duplicates")
	}

	if err := s.groupCount(ctx, "event_type", where, args, summary.ByEventType); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, "direction", where, args, summary.ByDirection); err != nil {
		return nil, err
	}

	row = s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM (
	SELECT caller_number AS party FROM events WHERE `+where+` AND caller_number <> ''
	UNION
	SELECT receiver_number AS party FROM events WHERE `+where+` AND receiver_number <> ''
)`, append(append([]any{}, args...), args...)...)
	if err := row.Scan(&summary.DistinctParties); err != nil {
		return nil, eris.Wrap(err, "sqlite: event summary parties")
	}

	return summary, nil
}

func (s *SQLiteStore) groupCount(ctx context.Context, column, where string, args []any, out map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM events WHERE "+where+" GROUP BY "+column, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: group by %s", column)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return eris.Wrapf(err, "sqlite: scan group by %s", column)
		}
		out[key] = count
	}
	return eris.Wrapf(rows.Err(), "sqlite: group by %s", column)
}
