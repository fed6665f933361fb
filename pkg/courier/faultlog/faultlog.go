// Package faultlog provides a diagnostic journal for subscriber faults.
//
// The courier bus contains every panic raised inside a filter or handler;
// the only trace a fault leaves is the Config.OnFault hook. This package
// turns that hook into a queryable journal so operators can see which
// subscribers are misbehaving.
//
// Only fault metadata is recorded (message type name, stage, subscription
// ID, error text), never message payloads.
package faultlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couriergo/courier/pkg/courier"
)

// Record is one journaled subscriber fault.
type Record struct {
	ID             string    `json:"id"`
	MessageType    string    `json:"message_type"`
	Stage          string    `json:"stage"`
	SubscriptionID string    `json:"subscription_id"`
	Error          string    `json:"error"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewRecord creates a Record from a bus fault.
func NewRecord(f courier.Fault) *Record {
	errText := ""
	if f.Err != nil {
		errText = f.Err.Error()
	}
	typeName := "<nil>"
	if f.MessageType != nil {
		typeName = f.MessageType.String()
	}
	return &Record{
		ID:             fmt.Sprintf("fault-%s", uuid.New().String()[:8]),
		MessageType:    typeName,
		Stage:          f.Stage,
		SubscriptionID: f.SubscriptionID,
		Error:          errText,
		OccurredAt:     f.Timestamp,
	}
}

// Journal persists and retrieves fault records.
type Journal interface {
	// Append adds a fault record to the journal.
	Append(ctx context.Context, rec *Record) error

	// List retrieves the most recent records, newest first.
	List(ctx context.Context, limit int) ([]*Record, error)

	// CountByType returns fault counts grouped by message type.
	CountByType(ctx context.Context) (map[string]int, error)

	// Prune removes records older than the cutoff, returning how many
	// were removed.
	Prune(ctx context.Context, before time.Time) (int, error)

	// Close releases journal resources.
	Close() error
}

// Hook adapts a Journal into a courier fault hook.
//
//	bus := courier.New(courier.Config{
//	    OnFault: faultlog.Hook(journal, logger),
//	})
//
// Append errors are logged and otherwise dropped: the journal must never
// affect delivery.
func Hook(journal Journal, logger *slog.Logger) func(courier.Fault) {
	return func(f courier.Fault) {
		if err := journal.Append(context.Background(), NewRecord(f)); err != nil && logger != nil {
			logger.Warn("fault journal append failed", "error", err.Error())
		}
	}
}
