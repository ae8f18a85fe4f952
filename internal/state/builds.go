package state

import (
	"fmt"
	"time"
)

// BuildRow is one entry of the local build log.
type BuildRow struct {
	BuildID    string    `json:"build_id"`
	SiteID     string    `json:"site_id,omitempty"`
	Status     string    `json:"status"`
	Changes    int       `json:"changes"`
	Files      int       `json:"files"`
	DeployURL  string    `json:"deploy_url,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RecordBuild appends (or replaces) a build log entry.
func (db *DB) RecordBuild(b BuildRow) error {
	_, err := db.conn.Exec(`
		INSERT OR REPLACE INTO builds
			(build_id, site_id, status, changes, files, deploy_url, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.BuildID, b.SiteID, b.Status, b.Changes, b.Files, b.DeployURL, b.Error,
		formatTime(b.StartedAt), formatTime(b.FinishedAt))
	if err != nil {
		return fmt.Errorf("state: record build: %w", err)
	}
	return nil
}

// RecentBuilds returns up to limit builds, newest first.
func (db *DB) RecentBuilds(limit int) ([]BuildRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT build_id, site_id, status, changes, files, deploy_url, error, started_at, finished_at
		FROM builds ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("state: recent builds: %w", err)
	}
	defer rows.Close()

	var out []BuildRow
	for rows.Next() {
		var b BuildRow
		var started, finished string
		if err := rows.Scan(&b.BuildID, &b.SiteID, &b.Status, &b.Changes, &b.Files,
			&b.DeployURL, &b.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("state: scan build: %w", err)
		}
		if b.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("state: parse started_at: %w", err)
		}
		if b.FinishedAt, err = parseTime(finished); err != nil {
			return nil, fmt.Errorf("state: parse finished_at: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
