package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"iot-collector/internal/eventing"
)

const defaultDLQTable = "dead_letter_events"

// DLQStore keeps undeliverable collector events for operator inspection.
// Rows are keyed by event id: a repeat failure updates the existing row
// and bumps its attempt count instead of growing the table.
type DLQStore struct {
	db    *sql.DB
	table string
}

// DLQOption configures the dead-letter store.
type DLQOption func(*DLQStore)

// WithDLQTable overrides the default dead-letter table name.
func WithDLQTable(table string) DLQOption {
	return func(store *DLQStore) {
		if table != "" {
			store.table = table
		}
	}
}

// NewDLQStore constructs a store with the default table name.
func NewDLQStore(db *sql.DB, opts ...DLQOption) *DLQStore {
	store := &DLQStore{db: db, table: defaultDLQTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// RecordFailure upserts the envelope with its failure cause. The first
// and most recent sightings are both kept so an operator can see how
// long an event has been stuck.
func (s *DLQStore) RecordFailure(ctx context.Context, env eventing.Envelope, cause error) error {
	if s == nil || s.db == nil {
		return errors.New("dlq store: nil db")
	}
	if env.EventID == "" {
		return errors.New("dlq store: empty event id")
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("dlq store: marshal envelope: %w", err)
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	event_id,
	event_type,
	payload,
	error,
	first_seen_at,
	last_seen_at,
	attempts
) VALUES (
	$1, $2, $3, $4, $5, $5, 1
)
ON CONFLICT (event_id)
DO UPDATE SET
	event_type = EXCLUDED.event_type,
	payload = EXCLUDED.payload,
	error = EXCLUDED.error,
	last_seen_at = EXCLUDED.last_seen_at,
	attempts = %s.attempts + 1`, s.table, s.table)

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, query, env.EventID, env.EventType, payload, reason, now); err != nil {
		return fmt.Errorf("dlq store: record %s: %w", env.EventID, err)
	}
	return nil
}
