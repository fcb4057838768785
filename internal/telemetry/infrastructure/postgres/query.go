package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	telemetry "iot-collector/internal/telemetry/domain"
	"iot-collector/internal/wire"
)

// PointQuery loads stored data points.
type PointQuery struct {
	db    *sql.DB
	table string
}

// NewPointQuery constructs a query over the default point table.
func NewPointQuery(db *sql.DB) *PointQuery {
	return &PointQuery{db: db, table: defaultPointTable}
}

// LatestByStation returns the most recent value per measurement point
// for a station, newest first.
func (q *PointQuery) LatestByStation(ctx context.Context, stationID string, limit int) ([]telemetry.DataPoint, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("point query: nil db")
	}
	if stationID == "" {
		return nil, errors.New("point query: empty station id")
	}
	if limit <= 0 {
		limit = 500
	}

	query := fmt.Sprintf(`
SELECT DISTINCT ON (equipment_id, cab, stack, cluster, pack, cell, property)
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
FROM %s
WHERE station_id = $1
ORDER BY equipment_id, cab, stack, cluster, pack, cell, property, ts DESC
LIMIT $2`, q.table)

	rows, err := q.db.QueryContext(ctx, query, stationID, limit)
	if err != nil {
		return nil, fmt.Errorf("point query: %w", err)
	}
	defer rows.Close()

	var points []telemetry.DataPoint
	for rows.Next() {
		var point telemetry.DataPoint
		var valueType int32
		err := rows.Scan(
			&point.StationID,
			&point.EquipmentType,
			&point.EquipmentID,
			&point.Cab,
			&point.Stack,
			&point.Cluster,
			&point.Pack,
			&point.Cell,
			&point.Property,
			&valueType,
			&point.Timestamp,
			&point.Value,
			&point.Protocol,
		)
		if err != nil {
			return nil, fmt.Errorf("point query: scan: %w", err)
		}
		point.ValueType = wire.ValueType(valueType)
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("point query: rows: %w", err)
	}
	return points, nil
}

// ListStations returns the distinct station ids with stored points.
func (q *PointQuery) ListStations(ctx context.Context) ([]string, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("point query: nil db")
	}

	query := fmt.Sprintf(`
SELECT DISTINCT station_id
FROM %s
ORDER BY station_id ASC`, q.table)

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("point query: %w", err)
	}
	defer rows.Close()

	var stations []string
	for rows.Next() {
		var station string
		if err := rows.Scan(&station); err != nil {
			return nil, fmt.Errorf("point query: scan: %w", err)
		}
		stations = append(stations, station)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("point query: rows: %w", err)
	}
	return stations, nil
}
