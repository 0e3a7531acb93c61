// Package store provides SQLite-backed persistence for polls, business
// hours, store timezones, and report job state. The uptime engine is a
// read-only consumer; only the ingest loaders and the report orchestrator
// write. Timestamps are stored as integer Unix nanoseconds, always UTC.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	_ "modernc.org/sqlite"

	"github.com/codeGROOVE-dev/storeWatch/pkg/reconstruct"
	"github.com/codeGROOVE-dev/storeWatch/pkg/schedule"
)

// ErrNotFound is returned when a report id has no row.
var ErrNotFound = errors.New("report not found")

// insertChunk bounds the number of rows per insert statement so bulk loads
// stay within SQLite's variable limit.
const insertChunk = 500

const schemaSQL = `
CREATE TABLE IF NOT EXISTS polls (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    store_id TEXT NOT NULL,
    timestamp_utc INTEGER NOT NULL,
    status TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_polls_store_ts ON polls(store_id, timestamp_utc);

CREATE TABLE IF NOT EXISTS business_hours (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    store_id TEXT NOT NULL,
    day_of_week INTEGER NOT NULL,
    start_time_local TEXT NOT NULL,
    end_time_local TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_bh_store_dow ON business_hours(store_id, day_of_week);

CREATE TABLE IF NOT EXISTS store_timezones (
    store_id TEXT PRIMARY KEY,
    timezone_str TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reports (
    report_id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    percent_complete REAL NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    finished_at INTEGER,
    csv_path TEXT
);
`

// DB wraps the SQLite database.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
	path   string
}

// Open opens (creating if necessary) the database at path and migrates the
// schema. PRAGMA user_version tracks the schema revision.
func Open(path string, logger *slog.Logger) (*DB, error) {
	// Pragmas ride on the DSN so every pooled connection gets them; an
	// Exec would configure only the connection it happened to land on.
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %s: %w", path, err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db, logger: logger, path: path}, nil
}

// OpenAndPing opens the database and retries a probe query until the file
// is reachable. Containerized deployments mount the data volume a beat
// after the process starts, so the first open can race the mount.
func OpenAndPing(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	var d *DB
	err := retry.Do(
		func() error {
			var err error
			d, err = Open(path, logger)
			if err != nil {
				return err
			}
			if err := d.db.PingContext(ctx); err != nil {
				d.Close()
				return fmt.Errorf("pinging database: %w", err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(30),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("database not reachable", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("database not reachable after retries: %w", err)
	}
	logger.Info("database reachable", "path", path)
	return d, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("reading user_version: %w", err)
	}
	if version < 1 {
		if _, err := db.Exec(schemaSQL); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
		if _, err := db.Exec(`PRAGMA user_version = 1;`); err != nil {
			return fmt.Errorf("setting user_version: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// Session is a dedicated connection for one aggregation worker. Workers
// never share sessions; each borrows a connection from the pool at the
// start of an aggregation and releases it before returning.
type Session struct {
	conn *sql.Conn
}

// ReadSession borrows a dedicated connection for a worker.
func (d *DB) ReadSession(ctx context.Context) (*Session, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Close returns the connection to the pool.
func (s *Session) Close() error {
	return s.conn.Close()
}

// MaxPollTimestamp returns the latest poll timestamp across all stores.
// ok is false when the poll table is empty.
func (d *DB) MaxPollTimestamp(ctx context.Context) (ts time.Time, ok bool, err error) {
	var ns sql.NullInt64
	if err := d.db.QueryRowContext(ctx, `SELECT MAX(timestamp_utc) FROM polls`).Scan(&ns); err != nil {
		return time.Time{}, false, fmt.Errorf("querying max poll timestamp: %w", err)
	}
	if !ns.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(0, ns.Int64).UTC(), true, nil
}

// StoreIDs returns every store id appearing in polls, business hours, or
// timezones, ascending.
func (d *DB) StoreIDs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT store_id FROM polls
		UNION SELECT store_id FROM business_hours
		UNION SELECT store_id FROM store_timezones
		ORDER BY store_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("enumerating stores: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning store id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PollsInRange returns the store's polls with from <= timestamp <= to,
// ascending. Insertion order of the underlying rows is irrelevant; this
// query is the sort the reconstruction algorithm relies on.
func (s *Session) PollsInRange(ctx context.Context, storeID string, from, to time.Time) ([]reconstruct.Poll, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT timestamp_utc, status FROM polls
		WHERE store_id = ? AND timestamp_utc >= ? AND timestamp_utc <= ?
		ORDER BY timestamp_utc ASC`,
		storeID, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("querying polls for %s: %w", storeID, err)
	}
	defer rows.Close()

	var polls []reconstruct.Poll
	for rows.Next() {
		var ns int64
		var status string
		if err := rows.Scan(&ns, &status); err != nil {
			return nil, fmt.Errorf("scanning poll: %w", err)
		}
		polls = append(polls, reconstruct.Poll{Timestamp: time.Unix(0, ns).UTC(), Status: status})
	}
	return polls, rows.Err()
}

// BusinessHours returns the store's weekly schedule rows, possibly empty.
func (s *Session) BusinessHours(ctx context.Context, storeID string) ([]schedule.BusinessHour, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT day_of_week, start_time_local, end_time_local
		FROM business_hours WHERE store_id = ?`, storeID)
	if err != nil {
		return nil, fmt.Errorf("querying business hours for %s: %w", storeID, err)
	}
	defer rows.Close()

	var out []schedule.BusinessHour
	for rows.Next() {
		var dow int
		var startRaw, endRaw string
		if err := rows.Scan(&dow, &startRaw, &endRaw); err != nil {
			return nil, fmt.Errorf("scanning business hour: %w", err)
		}
		start, err := schedule.ParseLocalTime(startRaw)
		if err != nil {
			return nil, fmt.Errorf("stored business hour for %s: %w", storeID, err)
		}
		end, err := schedule.ParseLocalTime(endRaw)
		if err != nil {
			return nil, fmt.Errorf("stored business hour for %s: %w", storeID, err)
		}
		out = append(out, schedule.BusinessHour{DayOfWeek: dow, Start: start, End: end})
	}
	return out, rows.Err()
}

// Timezone returns the store's IANA zone string, or "" when the store has
// no timezone row.
func (s *Session) Timezone(ctx context.Context, storeID string) (string, error) {
	var tz string
	err := s.conn.QueryRowContext(ctx,
		`SELECT timezone_str FROM store_timezones WHERE store_id = ?`, storeID).Scan(&tz)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying timezone for %s: %w", storeID, err)
	}
	return tz, nil
}
