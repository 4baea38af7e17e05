// Package storage persists a crawl journal to SQLite. The journal is a
// reporting artifact: the mirrored file tree on disk remains the only resume
// signal, so nothing here is consulted before a fetch.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"wbmirror/internal/crawler"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// SQLiteJournal implements the crawler.Journal interface.
type SQLiteJournal struct {
	db *sql.DB
}

// Summary aggregates a run's page outcomes.
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
	Errors     int
}

// NewSQLiteJournal opens (or creates) the journal database at dbPath.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	// Single connection prevents lock conflicts.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	j := &SQLiteJournal{db: db}
	if err := j.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
	}
	for _, pragma := range pragmas {
		if _, err := j.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := j.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the journal database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// RecordPage appends one processed-page entry.
func (j *SQLiteJournal) RecordPage(page *crawler.PageRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO pages (archived_url, original_url, level, outcome, local_path, asset_count, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, page.ArchivedURL, page.OriginalURL, page.Level, page.Outcome, page.LocalPath, page.AssetCount, page.FetchedAt)
	if err != nil {
		return fmt.Errorf("failed to record page %s: %w", page.OriginalURL, err)
	}
	return nil
}

// RecordError appends one error entry.
func (j *SQLiteJournal) RecordError(url, errorType, message string) error {
	_, err := j.db.Exec(`
		INSERT INTO crawl_errors (url, error_type, error_message, occurred_at)
		VALUES (?, ?, ?, ?)
	`, url, errorType, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record error for %s: %w", url, err)
	}
	return nil
}

// SetMeta stores a run parameter.
func (j *SQLiteJournal) SetMeta(key, value string) error {
	_, err := j.db.Exec(`
		INSERT INTO run_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetMeta reads a run parameter; missing keys return "".
func (j *SQLiteJournal) GetMeta(key string) (string, error) {
	var value string
	err := j.db.QueryRow(`SELECT value FROM run_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// GetSummary aggregates the journal's outcomes.
func (j *SQLiteJournal) GetSummary() (*Summary, error) {
	rows, err := j.db.Query(`SELECT outcome, count FROM run_summary`)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	s := &Summary{}
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		switch outcome {
		case "downloaded":
			s.Downloaded = count
		case "skipped":
			s.Skipped = count
		case "failed":
			s.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := j.db.QueryRow(`SELECT COUNT(*) FROM crawl_errors`).Scan(&s.Errors); err != nil {
		return nil, err
	}
	return s, nil
}

// Interface guard.
var _ crawler.Journal = (*SQLiteJournal)(nil)
