// Package state persists the change detector's snapshot, its per-collection
// cursors and the build log in SQLite so they survive restarts.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS snapshot (
	collection  TEXT NOT NULL,
	record_id   TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	hash        TEXT NOT NULL,
	last_edited TEXT NOT NULL DEFAULT '',
	seen_at     TEXT NOT NULL,
	PRIMARY KEY (collection, record_id)
);

CREATE TABLE IF NOT EXISTS cursors (
	collection   TEXT PRIMARY KEY,
	last_checked TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS builds (
	build_id    TEXT PRIMARY KEY,
	site_id     TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	changes     INTEGER NOT NULL DEFAULT 0,
	files       INTEGER NOT NULL DEFAULT 0,
	deploy_url  TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started_at);
`

// timeFormat is fixed width so stored instants sort lexically and keep
// nanosecond precision.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the persistence surface the agent depends on.
type Store interface {
	Hashes(collection string) (map[string]string, error)
	Commit(collection string, entries []Entry, removed []string, cursor time.Time) error
	Cursor(collection string) (time.Time, bool, error)
	Count() (int, error)
	RecordBuild(b BuildRow) error
	RecentBuilds(limit int) ([]BuildRow, error)
	Close() error
}

var _ Store = (*DB)(nil)

// DB wraps a sql.DB with snapshot operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("state: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("state: ping: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("state: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// migrate drops a snapshot keyed by record id alone, together with the
// cursors, so every collection is baselined again under the current key.
func migrate(conn *sql.DB) error {
	var pk int
	err := conn.QueryRow(`SELECT pk FROM pragma_table_info('snapshot') WHERE name = 'collection'`).Scan(&pk)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && pk > 0) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("state: inspect schema: %w", err)
	}
	if _, err := conn.Exec(`DROP TABLE snapshot; DROP TABLE IF EXISTS cursors;`); err != nil {
		return fmt.Errorf("state: migrate snapshot: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeFormat, s)
}
