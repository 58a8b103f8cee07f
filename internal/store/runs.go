package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Run is one batch conversion recorded in the cache.
type Run struct {
	ID         string
	Dir        string
	StartedAt  time.Time
	FinishedAt time.Time
	Sessions   int
	Failed     int
	Written    int
}

// StartRun records the start of a batch over dir and returns its ID.
func (c *Cache) StartRun(dir string) (string, error) {
	id := uuid.NewString()
	_, err := c.db.Exec(`INSERT INTO runs (run_id, dir, started_at) VALUES (?, ?, ?)`,
		id, dir, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishRun stores the outcome of a run started with StartRun.
func (c *Cache) FinishRun(id string, sessions, failed, written int) error {
	_, err := c.db.Exec(`UPDATE runs
		SET finished_at = ?, sessions = ?, failed = ?, written = ?
		WHERE run_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), sessions, failed, written, id)
	return err
}

// RecentRuns returns up to limit runs, newest first.
func (c *Cache) RecentRuns(limit int) ([]Run, error) {
	rows, err := c.db.Query(`SELECT run_id, dir, started_at, finished_at, sessions, failed, written
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		var finished sql.NullString
		var sessions, failed, written sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Dir, &started, &finished, &sessions, &failed, &written); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished.Valid {
			r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
		}
		r.Sessions = int(sessions.Int64)
		r.Failed = int(failed.Int64)
		r.Written = int(written.Int64)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
