package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/cdr-insight/internal/config"
	"github.com/sells-group/cdr-insight/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *config.PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns, minConns := int32(10), int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS uploads (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL DEFAULT '',
	file_count INTEGER NOT NULL DEFAULT 0,
	inserted   INTEGER NOT NULL DEFAULT 0,
	invalid    INTEGER NOT NULL DEFAULT 0,
	duplicates INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS events (
	record_id                TEXT PRIMARY KEY,
	upload_id                TEXT NOT NULL REFERENCES uploads(id),
	event_type               TEXT NOT NULL,
	timestamp_utc            TIMESTAMPTZ NOT NULL,
	timestamp_local          TIMESTAMPTZ NOT NULL,
	date                     TEXT NOT NULL,
	hour                     INTEGER NOT NULL,
	day_of_week              TEXT NOT NULL,
	is_weekend               BOOLEAN NOT NULL,
	is_night                 BOOLEAN NOT NULL,
	caller_number            TEXT NOT NULL DEFAULT '',
	receiver_number          TEXT NOT NULL DEFAULT '',
	direction                TEXT NOT NULL,
	call_duration_seconds    INTEGER NOT NULL DEFAULT 0,
	contact_pair_key         TEXT NOT NULL DEFAULT '',
	lat                      DOUBLE PRECISION,
	lng                      DOUBLE PRECISION,
	cell_id                  TEXT NOT NULL DEFAULT '',
	lac_id                   TEXT NOT NULL DEFAULT '',
	site_name                TEXT NOT NULL DEFAULT '',
	site_meta                TEXT NOT NULL DEFAULT '',
	location_source          TEXT NOT NULL,
	imei                     TEXT NOT NULL DEFAULT '',
	imsi                     TEXT NOT NULL DEFAULT '',
	provider                 TEXT NOT NULL DEFAULT '',
	normalization_warnings   JSONB NOT NULL DEFAULT '[]',
	normalization_confidence INTEGER NOT NULL,
	confidence_tier          TEXT NOT NULL,
	is_duplicate             BOOLEAN NOT NULL DEFAULT FALSE,
	contact_first_seen       TIMESTAMPTZ,
	contact_last_seen        TIMESTAMPTZ,
	daily_event_count        INTEGER NOT NULL DEFAULT 0,
	rolling_7day_avg         DOUBLE PRECISION NOT NULL DEFAULT 0,
	rolling_30day_avg        DOUBLE PRECISION NOT NULL DEFAULT 0,
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

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateUpload(ctx context.Context, id, label string, fileCount int) (*model.Upload, error) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO uploads (id, label, file_count, created_at) VALUES ($1, $2, $3, $4)`,
		id, label, fileCount, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert upload %s", id)
	}
	return &model.Upload{ID: id, Label: label, FileCount: fileCount, CreatedAt: now}, nil
}

func (s *PostgresStore) UpdateUploadCounts(ctx context.Context, id string, inserted, invalid, duplicates int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE uploads SET inserted = $1, invalid = $2, duplicates = $3 WHERE id = $4`,
		inserted, invalid, duplicates, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update upload %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: upload %s not found", id)
	}
	return nil
}

func (s *PostgresStore) GetUpload(ctx context.Context, id string) (*model.Upload, error) {
	var u model.Upload
	err := s.pool.QueryRow(ctx,
		`SELECT id, label, file_count, inserted, invalid, duplicates, created_at FROM uploads WHERE id = $1`, id).
		Scan(&u.ID, &u.Label, &u.FileCount, &u.Inserted, &u.Invalid, &u.Duplicates, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("postgres: upload %s not found", id)
		}
		return nil, eris.Wrapf(err, "postgres: get upload %s", id)
	}
	return &u, nil
}

func (s *PostgresStore) ListUploads(ctx context.Context, limit int) ([]model.Upload, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, label, file_count, inserted, invalid, duplicates, created_at FROM uploads ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list uploads")
	}
	defer rows.Close()

	var uploads []model.Upload
	for rows.Next() {
		var u model.Upload
		if err := rows.Scan(&u.ID, &u.Label, &u.FileCount, &u.Inserted, &u.Invalid, &u.Duplicates, &u.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan upload")
		}
		uploads = append(uploads, u)
	}
	return uploads, eris.Wrap(rows.Err(), "postgres: list uploads")
}

const postgresInsertEvent = `INSERT INTO events (
	record_id, upload_id, event_type, timestamp_utc, timestamp_local, date, hour,
	day_of_week, is_weekend, is_night, caller_number, receiver_number, direction,
	call_duration_seconds, contact_pair_key, lat, lng, cell_id, lac_id, site_name,
	site_meta, location_source, imei, imsi, provider, normalization_warnings,
	normalization_confidence, confidence_tier, is_duplicate, contact_first_seen,
	contact_last_seen, daily_event_count, rolling_7day_avg, rolling_30day_avg,
	burst_session_id, baseline_window_label, source_file, source_sheet, source_row
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
	$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31,
	$32, $33, $34, $35, $36, $37, $38, $39)`

// InsertEvents writes one chunk via a pipelined batch inside a transaction.
func (s *PostgresStore) InsertEvents(ctx context.Context, events []*model.CanonicalEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin insert")
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, ev := range events {
		warnings, err := json.Marshal(ev.NormalizationWarnings)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal warnings for %s", ev.RecordID)
		}
		if ev.NormalizationWarnings == nil {
			warnings = []byte("[]")
		}
		batch.Queue(postgresInsertEvent,
			ev.RecordID, ev.UploadID, string(ev.EventType), ev.TimestampUTC,
			ev.TimestampLocal, ev.Date, ev.Hour,
			ev.DayOfWeek, ev.IsWeekend, ev.IsNight, ev.CallerNumber, ev.ReceiverNumber,
			string(ev.Direction), ev.CallDurationSeconds, ev.ContactPairKey,
			ev.Lat, ev.Lng, ev.CellID, ev.LACID, ev.SiteName, ev.SiteMeta,
			string(ev.LocationSource), ev.IMEI, ev.IMSI, ev.Provider, string(warnings),
			ev.NormalizationConfidence, string(ev.ConfidenceTier), ev.IsDuplicate,
			ev.ContactFirstSeen, ev.ContactLastSeen,
			ev.DailyEventCount, ev.Rolling7DayAvg, ev.Rolling30DayAvg,
			ev.BurstSessionID, ev.BaselineWindowLabel,
			ev.SourceFile, ev.SourceSheet, ev.SourceRow,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, eris.Wrap(err, "postgres: send batch")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit insert")
	}
	return len(events), nil
}

// pgEventWhere builds the shared filter predicate with positional args
// starting at $1.
func pgEventWhere(f EventFilter) (string, []any) {
	conds := []string{"upload_id = $1", "NOT is_duplicate"}
	args := []any{f.UploadID}

	add := func(expr string, arg any) {
		args = append(args, arg)
		conds = append(conds, expr+"$"+strconv.Itoa(len(args)))
	}
	if f.From != nil {
		add("timestamp_utc >= ", *f.From)
	}
	if f.To != nil {
		add("timestamp_utc <= ", *f.To)
	}
	if f.EventType != "" {
		add("event_type = ", string(f.EventType))
	}
	if f.Direction != "" {
		add("direction = ", string(f.Direction))
	}
	return strings.Join(conds, " AND "), args
}

func (s *PostgresStore) EdgeAggregates(ctx context.Context, f EventFilter) ([]model.EdgeAggregate, error) {
	where, args := pgEventWhere(f)
	query := `
SELECT LEAST(caller_number, receiver_number) AS a,
       GREATEST(caller_number, receiver_number) AS b,
       COUNT(*), SUM(call_duration_seconds), MIN(timestamp_utc), MAX(timestamp_utc)
FROM events
WHERE ` + where + ` AND caller_number <> '' AND receiver_number <> '' AND caller_number <> receiver_number
GROUP BY a, b`
	if f.MinWeight > 0 {
		args = append(args, int(f.MinWeight))
		query += " HAVING COUNT(*) >= $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY a, b"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: edge aggregates")
	}
	defer rows.Close()

	var edges []model.EdgeAggregate
	for rows.Next() {
		var e model.EdgeAggregate
		var count, duration int
		if err := rows.Scan(&e.Source, &e.Target, &count, &duration, &e.FirstSeen, &e.LastSeen); err != nil {
			return nil, eris.Wrap(err, "postgres: scan edge aggregate")
		}
		e.Weight = float64(count)
		e.EventCount = count
		e.TotalDuration = duration
		edges = append(edges, e)
	}
	return edges, eris.Wrap(rows.Err(), "postgres: edge aggregates")
}

func (s *PostgresStore) NodeAggregates(ctx context.Context, f EventFilter) ([]model.NodeAggregate, error) {
	where, args := pgEventWhere(f)
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
) parties GROUP BY party ORDER BY party`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: node aggregates")
	}
	defer rows.Close()

	var nodes []model.NodeAggregate
	for rows.Next() {
		var n model.NodeAggregate
		if err := rows.Scan(&n.ID, &n.TotalEvents, &n.TotalDuration, &n.FirstSeen, &n.LastSeen); err != nil {
			return nil, eris.Wrap(err, "postgres: scan node aggregate")
		}
		nodes = append(nodes, n)
	}
	return nodes, eris.Wrap(rows.Err(), "postgres: node aggregates")
}

func (s *PostgresStore) EventSummary(ctx context.Context, f EventFilter) (*model.EventSummary, error) {
	where, args := pgEventWhere(f)
	summary := &model.EventSummary{
		ByEventType: map[string]int{},
		ByDirection: map[string]int{},
	}

	var first, last *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), MIN(timestamp_utc), MAX(timestamp_utc) FROM events WHERE `+where, args...).
		Scan(&summary.Total, &first, &last)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: event summary totals")
	}
	summary.FirstSeen, summary.LastSeen = first, last

	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM events WHERE upload_id = $1 AND is_duplicate`, f.UploadID).
		Scan(&summary.Duplicates)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: event summary duplicates")
	}

	for column, out := range map[string]map[string]int{
		"event_type": summary.ByEventType,
		"direction":  summary.ByDirection,
	} {
		rows, err := s.pool.Query(ctx,
			"SELECT "+column+", COUNT(*) FROM events WHERE "+where+" GROUP BY "+column, args...)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: group by %s", column)
		}
		for rows.Next() {
			var key string
			var count int
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, eris.Wrapf(err, "postgres: scan group by %s", column)
			}
			out[key] = count
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, eris.Wrapf(err, "postgres: group by %s", column)
		}
	}

	err = s.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM (
	SELECT caller_number AS party FROM events WHERE `+where+` AND caller_number <> ''
	UNION
	SELECT receiver_number FROM events WHERE `+where+` AND receiver_number <> ''
) parties`, args...).Scan(&summary.DistinctParties)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: event summary parties")
	}

	return summary, nil
}
