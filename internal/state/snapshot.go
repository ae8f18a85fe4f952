package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Entry is the last-known hash of one record.
type Entry struct {
	RecordID   string
	Title      string
	Hash       string
	LastEdited time.Time
}

// Hashes returns record id → hash for every snapshot entry of a collection.
func (db *DB) Hashes(collection string) (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT record_id, hash FROM snapshot WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("state: hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("state: scan hash: %w", err)
		}
		out[id] = hash
	}
	return out, rows.Err()
}

// Commit atomically upserts entries, removes the given ids and, when cursor
// is non-zero, advances the collection's last-checked cursor.
func (db *DB) Commit(collection string, entries []Entry, removed []string, cursor time.Time) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("state: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	now := formatTime(time.Now())
	if len(entries) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO snapshot (collection, record_id, title, hash, last_edited, seen_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(collection, record_id) DO UPDATE SET
				title       = excluded.title,
				hash        = excluded.hash,
				last_edited = excluded.last_edited,
				seen_at     = excluded.seen_at
		`)
		if err != nil {
			return fmt.Errorf("state: prepare upsert: %w", err)
		}
		defer stmt.Close()
		for _, e := range entries {
			if _, err := stmt.Exec(collection, e.RecordID, e.Title, e.Hash, formatTime(e.LastEdited), now); err != nil {
				return fmt.Errorf("state: upsert %s: %w", e.RecordID, err)
			}
		}
	}

	for _, id := range removed {
		if _, err := tx.Exec(`DELETE FROM snapshot WHERE collection = ? AND record_id = ?`, collection, id); err != nil {
			return fmt.Errorf("state: delete %s: %w", id, err)
		}
	}

	if !cursor.IsZero() {
		_, err := tx.Exec(`
			INSERT INTO cursors (collection, last_checked) VALUES (?, ?)
			ON CONFLICT(collection) DO UPDATE SET last_checked = excluded.last_checked
		`, collection, formatTime(cursor))
		if err != nil {
			return fmt.Errorf("state: set cursor: %w", err)
		}
	}

	return tx.Commit()
}

// Cursor returns the last-checked instant of a collection. ok is false when
// the collection has never been checked.
func (db *DB) Cursor(collection string) (time.Time, bool, error) {
	var s string
	err := db.conn.QueryRow(`SELECT last_checked FROM cursors WHERE collection = ?`, collection).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("state: cursor: %w", err)
	}
	t, err := parseTime(s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("state: parse cursor: %w", err)
	}
	return t, true, nil
}

// Count returns the number of tracked records across all collections.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM snapshot`).Scan(&n); err != nil {
		return 0, fmt.Errorf("state: count: %w", err)
	}
	return n, nil
}
