// Package postgres persists the collector's event outbox: pending
// envelopes awaiting dispatch, the per-consumer processed ledger, and
// the dead-letter table for undeliverable events.
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

const defaultOutboxTable = "event_outbox"

// Outbox row lifecycle: pending on insert, sent after delivery, failed
// when dispatch gives up on the row.
const (
	statusPending = "pending"
	statusSent    = "sent"
	statusFailed  = "failed"
)

// OutboxStore keeps undelivered collector events in Postgres so a
// publish survives a crash between insert and dispatch.
type OutboxStore struct {
	db    *sql.DB
	table string
}

// OutboxOption configures the outbox store.
type OutboxOption func(*OutboxStore)

// WithOutboxTable overrides the default outbox table name.
func WithOutboxTable(table string) OutboxOption {
	return func(store *OutboxStore) {
		if table != "" {
			store.table = table
		}
	}
}

// NewOutboxStore constructs a store with the default table name.
func NewOutboxStore(db *sql.DB, opts ...OutboxOption) *OutboxStore {
	store := &OutboxStore{db: db, table: defaultOutboxTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Insert appends one envelope as a pending row and returns the row id.
// The row id is distinct from the envelope's event id: a redelivered
// event gets a fresh row.
func (s *OutboxStore) Insert(ctx context.Context, env eventing.Envelope) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("outbox store: nil db")
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("outbox store: marshal envelope: %w", err)
	}

	rowID := eventing.NewEventID()
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	event_id,
	event_type,
	payload,
	status,
	attempts
) VALUES (
	$1, $2, $3, $4, '%s', 0
)
ON CONFLICT (id)
DO NOTHING`, s.table, statusPending)

	if _, err := s.db.ExecContext(ctx, query, rowID, env.EventID, env.EventType, payload); err != nil {
		return "", fmt.Errorf("outbox store: insert %s: %w", env.EventType, err)
	}
	return rowID, nil
}

// ListPending returns up to limit undelivered rows, oldest first.
func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]eventing.OutboxRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("outbox store: nil db")
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT id, payload
FROM %s
WHERE status = '%s'
ORDER BY created_at ASC
LIMIT $1`, s.table, statusPending)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox store: list pending: %w", err)
	}
	defer rows.Close()

	var pending []eventing.OutboxRecord
	for rows.Next() {
		var (
			rowID   string
			payload []byte
		)
		if err := rows.Scan(&rowID, &payload); err != nil {
			return nil, fmt.Errorf("outbox store: scan: %w", err)
		}
		var env eventing.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, fmt.Errorf("outbox store: unmarshal row %s: %w", rowID, err)
		}
		pending = append(pending, eventing.OutboxRecord{ID: rowID, Envelope: env})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox store: rows: %w", err)
	}
	return pending, nil
}

// MarkSent finalizes a delivered row.
func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("outbox store: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = '%s', sent_at = $1
WHERE id = $2`, s.table, statusSent)
	if _, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("outbox store: mark sent %s: %w", id, err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt on the row.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("outbox store: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = '%s', attempts = attempts + 1
WHERE id = $1`, s.table, statusFailed)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("outbox store: mark failed %s: %w", id, err)
	}
	return nil
}
