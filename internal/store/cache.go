// Package store provides a SQLite-backed cache for parsed event tables.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/theaxonlab/physioevents/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Cache provides SQLite-backed session caching.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// FileInfo holds the tracked mtime and size for a file.
type FileInfo struct {
	MtimeNs   int64
	SizeBytes int64
}

// GetTrackedFiles returns a map of file_path -> FileInfo for all tracked files.
func (c *Cache) GetTrackedFiles() (map[string]FileInfo, error) {
	rows, err := c.db.Query("SELECT file_path, mtime_ns, size_bytes FROM file_tracker")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]FileInfo)
	for rows.Next() {
		var path string
		var fi FileInfo
		if err := rows.Scan(&path, &fi.MtimeNs, &fi.SizeBytes); err != nil {
			return nil, err
		}
		result[path] = fi
	}
	return result, rows.Err()
}

// SaveSession stores a converted session, its events and its file tracking info.
// Only sessions that converted cleanly should be saved.
func (c *Cache) SaveSession(s model.Session) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)

	hasValue := 0
	if s.Table.HasValue {
		hasValue = 1
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO sessions
		(file_path, name, kind, task, trigger_ts, trigger_source, dropped, parse_errors,
		 decimals, has_value, file_mtime_ns, file_size, parsed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Path, s.Name, string(s.Kind), string(s.Task), s.Trigger, s.TriggerSource,
		s.Dropped, s.ParseErrors, s.Table.Precision, hasValue, s.ModTimeNs, s.SizeBytes, now,
	)
	if err != nil {
		return err
	}

	// Replace the previous table of this file
	_, err = tx.Exec("DELETE FROM events WHERE file_path = ?", s.Path)
	if err != nil {
		return err
	}

	for i, r := range s.Table.Records {
		_, err = tx.Exec(`INSERT INTO events
			(file_path, row_idx, onset, duration, trial_type, value)
			VALUES (?, ?, ?, ?, ?, ?)`,
			s.Path, i, r.Onset, r.Duration, string(r.TrialType), r.Value,
		)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO file_tracker (file_path, mtime_ns, size_bytes)
		VALUES (?, ?, ?)`, s.Path, s.ModTimeNs, s.SizeBytes)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// LoadAllSessions reads all cached sessions with their event tables.
func (c *Cache) LoadAllSessions() ([]model.Session, error) {
	rows, err := c.db.Query(`SELECT
		file_path, name, kind, task, trigger_ts, trigger_source, dropped, parse_errors,
		decimals, has_value, file_mtime_ns, file_size
		FROM sessions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Batch-load events
	eventRows, err := c.db.Query(`SELECT
		file_path, onset, duration, trial_type, value
		FROM events ORDER BY file_path, row_idx`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = eventRows.Close() }()

	sessionIdx := make(map[string]int)
	for i, s := range sessions {
		sessionIdx[s.Path] = i
	}

	for eventRows.Next() {
		var path string
		r, err := scanEvent(eventRows, &path)
		if err != nil {
			return nil, err
		}
		if idx, ok := sessionIdx[path]; ok {
			sessions[idx].Table.Records = append(sessions[idx].Table.Records, r)
		}
	}

	return sessions, eventRows.Err()
}

// LoadSession reads one cached session by file path.
func (c *Cache) LoadSession(path string) (model.Session, bool, error) {
	row := c.db.QueryRow(`SELECT
		file_path, name, kind, task, trigger_ts, trigger_source, dropped, parse_errors,
		decimals, has_value, file_mtime_ns, file_size
		FROM sessions WHERE file_path = ?`, path)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return model.Session{}, false, nil
	}
	if err != nil {
		return model.Session{}, false, err
	}

	rows, err := c.db.Query(`SELECT file_path, onset, duration, trial_type, value
		FROM events WHERE file_path = ? ORDER BY row_idx`, path)
	if err != nil {
		return model.Session{}, false, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var p string
		r, err := scanEvent(rows, &p)
		if err != nil {
			return model.Session{}, false, err
		}
		s.Table.Records = append(s.Table.Records, r)
	}
	return s, true, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (model.Session, error) {
	var s model.Session
	var kind string
	var task, triggerSource sql.NullString
	var trigger sql.NullFloat64
	var dropped, parseErrors sql.NullInt64
	var hasValue int

	err := row.Scan(
		&s.Path, &s.Name, &kind, &task, &trigger, &triggerSource, &dropped, &parseErrors,
		&s.Table.Precision, &hasValue, &s.ModTimeNs, &s.SizeBytes,
	)
	if err != nil {
		return s, err
	}

	s.Kind = model.Kind(kind)
	s.Task = model.Task(task.String)
	s.Trigger = trigger.Float64
	s.TriggerSource = triggerSource.String
	s.Dropped = int(dropped.Int64)
	s.ParseErrors = int(parseErrors.Int64)
	s.Table.HasValue = hasValue != 0
	return s, nil
}

func scanEvent(row scanner, path *string) (model.EventRecord, error) {
	var r model.EventRecord
	var trialType string
	var value sql.NullString
	if err := row.Scan(path, &r.Onset, &r.Duration, &trialType, &value); err != nil {
		return r, err
	}
	r.TrialType = model.TrialType(trialType)
	r.Value = value.String
	return r, nil
}

// DeleteSession removes a session, its events and its file tracking entry.
func (c *Cache) DeleteSession(path string) error {
	if _, err := c.db.Exec("DELETE FROM sessions WHERE file_path = ?", path); err != nil {
		return err
	}
	return c.DeleteFileTracker(path)
}

// DeleteFileTracker removes a file tracking entry.
func (c *Cache) DeleteFileTracker(filePath string) error {
	_, err := c.db.Exec("DELETE FROM file_tracker WHERE file_path = ?", filePath)
	return err
}

// SessionCount returns the number of cached sessions.
func (c *Cache) SessionCount() (int, error) {
	var count int
	err := c.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count)
	return count, err
}
