package faultlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrJournalClosed is returned by operations on a closed journal.
var ErrJournalClosed = errors.New("faultlog: journal is closed")

// Compile-time interface check.
var _ Journal = (*SQLiteJournal)(nil)

// SQLiteJournal persists fault records to SQLite.
// It is suitable for single-process production use.
type SQLiteJournal struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteJournal creates a new SQLite fault journal.
// The path should be a file path (e.g., "./faults.db") or ":memory:" for testing.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and avoids
	// SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS faults (
			id TEXT PRIMARY KEY,
			message_type TEXT NOT NULL,
			stage TEXT NOT NULL,
			subscription_id TEXT NOT NULL,
			error TEXT NOT NULL,
			occurred_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_faults_occurred_at
		ON faults(occurred_at)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

// Append implements Journal.
func (j *SQLiteJournal) Append(ctx context.Context, rec *Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrJournalClosed
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO faults (id, message_type, stage, subscription_id, error, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.MessageType, rec.Stage, rec.SubscriptionID, rec.Error,
		rec.OccurredAt.UTC().Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("append fault: %w", err)
	}
	return nil
}

// List implements Journal.
func (j *SQLiteJournal) List(ctx context.Context, limit int) ([]*Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrJournalClosed
	}

	if limit <= 0 {
		limit = DefaultMaxRecords
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, message_type, stage, subscription_id, error, occurred_at
		FROM faults
		ORDER BY occurred_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list faults: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		var occurredAt string
		if err := rows.Scan(&rec.ID, &rec.MessageType, &rec.Stage,
			&rec.SubscriptionID, &rec.Error, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan fault record: %w", err)
		}
		rec.OccurredAt, _ = time.Parse(time.RFC3339Nano, occurredAt)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faults: %w", err)
	}

	return records, nil
}

// CountByType implements Journal.
func (j *SQLiteJournal) CountByType(ctx context.Context) (map[string]int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrJournalClosed
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT message_type, COUNT(*)
		FROM faults
		GROUP BY message_type
	`)
	if err != nil {
		return nil, fmt.Errorf("count faults: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var messageType string
		var count int
		if err := rows.Scan(&messageType, &count); err != nil {
			return nil, fmt.Errorf("scan fault count: %w", err)
		}
		counts[messageType] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fault counts: %w", err)
	}

	return counts, nil
}

// Prune implements Journal.
func (j *SQLiteJournal) Prune(ctx context.Context, before time.Time) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return 0, ErrJournalClosed
	}

	res, err := j.db.ExecContext(ctx, `
		DELETE FROM faults WHERE occurred_at < ?
	`, before.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune faults: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune faults: %w", err)
	}
	return int(removed), nil
}

// Close implements Journal.
func (j *SQLiteJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}

	j.closed = true
	return j.db.Close()
}
