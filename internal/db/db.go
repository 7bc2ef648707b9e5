package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a history record does not exist
var ErrNotFound = errors.New("record not found")

// DB is the SQLite-backed key-value store and install history, with
// separate read/write pools
type DB struct {
	write *sql.DB
	read  *sql.DB
	path  string
}

// New opens (and creates if needed) the database at dbPath
func New(ctx context.Context, dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath)

	// Write pool: MUST be 1 connection only
	write, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open write connection: %w", err)
	}
	write.SetMaxOpenConns(1)
	write.SetMaxIdleConns(1)
	write.SetConnMaxIdleTime(time.Minute)
	write.SetConnMaxLifetime(time.Hour)

	read, err := sql.Open("sqlite", connStr)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open read connection: %w", err)
	}
	read.SetMaxOpenConns(10)
	read.SetMaxIdleConns(5)
	read.SetConnMaxIdleTime(time.Minute)
	read.SetConnMaxLifetime(time.Hour)

	db := &DB{
		write: write,
		read:  read,
		path:  dbPath,
	}

	if err := db.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Close closes both database connections
func (db *DB) Close() error {
	writeErr := db.write.Close()
	readErr := db.read.Close()
	if writeErr != nil {
		return writeErr
	}
	return readErr
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

func (db *DB) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS install_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    subject TEXT NOT NULL,
    version TEXT,
    region TEXT,
    command TEXT,
    success INTEGER NOT NULL,
    error TEXT,
    finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_subject ON install_history(subject);
CREATE INDEX IF NOT EXISTS idx_history_finished ON install_history(finished_at);
	`

	if _, err := db.write.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Get returns the value stored under key
func (db *DB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := db.read.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query key %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value in one statement
func (db *DB) Set(ctx context.Context, key string, value []byte) error {
	query := `
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := db.write.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set key %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (db *DB) Delete(ctx context.Context, key string) error {
	if _, err := db.write.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete key %q: %w", key, err)
	}
	return nil
}

// HistoryKind distinguishes dependency installs from package installs
type HistoryKind string

const (
	HistoryDependency HistoryKind = "dependency"
	HistoryPackage    HistoryKind = "package"
)

// HistoryEntry is one recorded install outcome
type HistoryEntry struct {
	ID         int64       `json:"id"`
	Kind       HistoryKind `json:"kind"`
	Subject    string      `json:"subject"`
	Version    string      `json:"version,omitempty"`
	Region     string      `json:"region,omitempty"`
	Command    string      `json:"command,omitempty"`
	Success    bool        `json:"success"`
	Error      string      `json:"error,omitempty"`
	FinishedAt time.Time   `json:"finishedAt"`
}

// RecordInstall appends an install outcome to the history
func (db *DB) RecordInstall(ctx context.Context, entry *HistoryEntry) error {
	if entry == nil {
		return errors.New("history entry cannot be nil")
	}
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = time.Now().UTC()
	}

	query := `
INSERT INTO install_history (kind, subject, version, region, command, success, error, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := db.write.ExecContext(ctx, query,
		string(entry.Kind),
		entry.Subject,
		entry.Version,
		entry.Region,
		entry.Command,
		entry.Success,
		entry.Error,
		entry.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		entry.ID = id
	}
	return nil
}

// History returns the most recent entries first. limit <= 0 returns all.
func (db *DB) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	query := `
SELECT id, kind, subject, version, region, command, success, error, finished_at
FROM install_history ORDER BY finished_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			e       HistoryEntry
			kind    string
			version sql.NullString
			region  sql.NullString
			command sql.NullString
			errText sql.NullString
		)
		if err := rows.Scan(&e.ID, &kind, &e.Subject, &version, &region, &command, &e.Success, &errText, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Kind = HistoryKind(kind)
		e.Version = version.String
		e.Region = region.String
		e.Command = command.String
		e.Error = errText.String
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entries, nil
}

// LastInstall returns the newest history entry for subject
func (db *DB) LastInstall(ctx context.Context, subject string) (*HistoryEntry, error) {
	query := `
SELECT id, kind, subject, version, success, error, finished_at
FROM install_history WHERE subject = ? ORDER BY finished_at DESC, id DESC LIMIT 1
	`
	var (
		e       HistoryEntry
		kind    string
		version sql.NullString
		errText sql.NullString
	)
	err := db.read.QueryRowContext(ctx, query, subject).Scan(&e.ID, &kind, &e.Subject, &version, &e.Success, &errText, &e.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, subject)
	}
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	e.Kind = HistoryKind(kind)
	e.Version = version.String
	e.Error = errText.String
	return &e, nil
}
