package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	telemetry "iot-collector/internal/telemetry/domain"
)

const (
	defaultMessageTable = "iot_messages"
	defaultPointTable   = "iot_points"
)

// MessageRepository is a Postgres implementation for message envelopes.
type MessageRepository struct {
	db    *sql.DB
	table string
}

// MessageRepositoryOption configures the repository.
type MessageRepositoryOption func(*MessageRepository)

// WithMessageTable overrides the default envelope table name.
func WithMessageTable(table string) MessageRepositoryOption {
	return func(repo *MessageRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewMessageRepository constructs a repository with the default table name.
func NewMessageRepository(db *sql.DB, opts ...MessageRepositoryOption) *MessageRepository {
	repo := &MessageRepository{db: db, table: defaultMessageTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// InsertMessage stores one envelope and returns its id.
func (r *MessageRepository) InsertMessage(ctx context.Context, record telemetry.MessageRecord) (string, error) {
	if r == nil || r.db == nil {
		return "", errors.New("message repo: nil db")
	}

	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	client_ip,
	client_port,
	server_ip,
	server_port,
	protocol,
	message_type,
	payload,
	server_time
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9
)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		id,
		record.ClientIP,
		int64(record.ClientPort),
		record.ServerIP,
		int64(record.ServerPort),
		record.Protocol,
		record.MessageType,
		record.Payload,
		record.ServerTime,
	)
	if err != nil {
		return "", fmt.Errorf("message repo: insert: %w", err)
	}
	return id, nil
}

// PointRepository is a Postgres implementation for decoded data points.
type PointRepository struct {
	db    *sql.DB
	table string
}

// PointRepositoryOption configures the repository.
type PointRepositoryOption func(*PointRepository)

// WithPointTable overrides the default point table name.
func WithPointTable(table string) PointRepositoryOption {
	return func(repo *PointRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewPointRepository constructs a repository with the default table name.
func NewPointRepository(db *sql.DB, opts ...PointRepositoryOption) *PointRepository {
	repo := &PointRepository{db: db, table: defaultPointTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// InsertPoints upserts decoded data points. Absent locator levels are
// stored as empty strings so they can participate in the conflict key.
func (r *PointRepository) InsertPoints(ctx context.Context, points []telemetry.DataPoint) error {
	if r == nil || r.db == nil {
		return errors.New("point repo: nil db")
	}
	if len(points) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	station_id,
	equipment_type,
	equipment_id,
	cab,
	stack,
	cluster,
	pack,
	cell,
	property,
	value_type,
	ts,
	value,
	protocol
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
)
ON CONFLICT (station_id, equipment_id, cab, stack, cluster, pack, cell, property, ts)
DO UPDATE SET
	value = EXCLUDED.value,
	value_type = EXCLUDED.value_type,
	protocol = EXCLUDED.protocol,
	updated_at = NOW()`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("point repo: begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("point repo: prepare: %w", err)
	}
	defer stmt.Close()

	for _, point := range points {
		_, err := stmt.ExecContext(ctx,
			point.StationID,
			point.EquipmentType,
			point.EquipmentID,
			point.Cab,
			point.Stack,
			point.Cluster,
			point.Pack,
			point.Cell,
			point.Property,
			int32(point.ValueType),
			point.Timestamp,
			point.Value,
			point.Protocol,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("point repo: insert %s/%s: %w", point.StationID, point.Property, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("point repo: commit: %w", err)
	}
	return nil
}
