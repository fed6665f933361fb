package faultlog

import (
	"context"
	"sync"
	"time"
)

// MemoryJournal is an in-memory Journal implementation.
// Suitable for testing and single-instance deployments.
type MemoryJournal struct {
	mu      sync.RWMutex
	records []*Record
	maxSize int
	closed  bool
}

// DefaultMaxRecords bounds an unconfigured MemoryJournal.
const DefaultMaxRecords = 10000

// Compile-time interface check.
var _ Journal = (*MemoryJournal)(nil)

// NewMemoryJournal creates an in-memory journal holding at most maxRecords
// entries; the oldest entries are evicted first. maxRecords <= 0 uses
// DefaultMaxRecords.
func NewMemoryJournal(maxRecords int) *MemoryJournal {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &MemoryJournal{maxSize: maxRecords}
}

// Append adds a fault record to the journal.
func (j *MemoryJournal) Append(_ context.Context, rec *Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrJournalClosed
	}

	j.records = append(j.records, rec)
	if len(j.records) > j.maxSize {
		drop := len(j.records) - j.maxSize
		j.records = append(j.records[:0], j.records[drop:]...)
	}
	return nil
}

// List retrieves the most recent records, newest first.
func (j *MemoryJournal) List(_ context.Context, limit int) ([]*Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrJournalClosed
	}

	if limit <= 0 || limit > len(j.records) {
		limit = len(j.records)
	}

	result := make([]*Record, 0, limit)
	for i := len(j.records) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, j.records[i])
	}
	return result, nil
}

// CountByType returns fault counts grouped by message type.
func (j *MemoryJournal) CountByType(_ context.Context) (map[string]int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrJournalClosed
	}

	counts := make(map[string]int)
	for _, rec := range j.records {
		counts[rec.MessageType]++
	}
	return counts, nil
}

// Prune removes records older than the cutoff.
func (j *MemoryJournal) Prune(_ context.Context, before time.Time) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return 0, ErrJournalClosed
	}

	kept := j.records[:0]
	removed := 0
	for _, rec := range j.records {
		if rec.OccurredAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	for i := len(kept); i < len(j.records); i++ {
		j.records[i] = nil
	}
	j.records = kept
	return removed, nil
}

// Close marks the journal closed.
func (j *MemoryJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}
