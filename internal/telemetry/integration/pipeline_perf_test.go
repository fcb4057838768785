package integration_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	telemetry "iot-collector/internal/telemetry/domain"
	telemetrypostgres "iot-collector/internal/telemetry/infrastructure/postgres"
	"iot-collector/internal/wire"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestPoints_30dInsert_LatestQuery(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "iot_points") {
		t.Skip("iot_points missing; run migrations")
	}

	ctx := context.Background()
	stationID := "station-perf"
	equipmentID := "pack-perf"

	start := time.Now().UTC().AddDate(0, 0, -30).Truncate(24 * time.Hour)
	end := time.Now().UTC().Truncate(24 * time.Hour)

	_, _ = db.ExecContext(ctx, `
DELETE FROM iot_points
WHERE station_id = $1 AND ts >= $2 AND ts < $3`, stationID, start.UnixMilli(), end.UnixMilli())

	repo := telemetrypostgres.NewPointRepository(db)

	insertStart := time.Now()
	for day := 0; day < 30; day++ {
		dayStart := start.AddDate(0, 0, day)
		points := make([]telemetry.DataPoint, 0, 48)
		for hour := 0; hour < 24; hour++ {
			ts := dayStart.Add(time.Duration(hour) * time.Hour).UnixMilli()
			points = append(points,
				telemetry.DataPoint{
					StationID:     stationID,
					EquipmentType: "battery",
					EquipmentID:   equipmentID,
					Pack:          "1",
					Property:      "u",
					ValueType:     wire.ValueTypeTelemeter,
					Timestamp:     ts,
					Value:         float64(hour) + 600,
					Protocol:      "mqtt",
				},
				telemetry.DataPoint{
					StationID:     stationID,
					EquipmentType: "battery",
					EquipmentID:   equipmentID,
					Pack:          "1",
					Property:      "soc",
					ValueType:     wire.ValueTypeTelemeter,
					Timestamp:     ts,
					Value:         float64(hour) + 20,
					Protocol:      "mqtt",
				},
			)
		}
		if err := repo.InsertPoints(ctx, points); err != nil {
			t.Fatalf("insert points: %v", err)
		}
	}
	insertElapsed := time.Since(insertStart)

	query := telemetrypostgres.NewPointQuery(db)
	queryStart := time.Now()
	latest, err := query.LatestByStation(ctx, stationID, 0)
	if err != nil {
		t.Fatalf("latest query: %v", err)
	}
	queryElapsed := time.Since(queryStart)

	if len(latest) != 2 {
		t.Fatalf("expected 2 latest points, got %d", len(latest))
	}
	lastHour := int64(23)
	expected := start.AddDate(0, 0, 29).Add(time.Duration(lastHour) * time.Hour).UnixMilli()
	for _, point := range latest {
		if point.Timestamp != expected {
			t.Fatalf("expected latest ts %d, got %d for %s", expected, point.Timestamp, point.Property)
		}
	}

	t.Logf("perf insert 30d rows=%d elapsed=%s", 30*24*2, insertElapsed)
	t.Logf("perf latest query points=%d elapsed=%s", len(latest), queryElapsed)
}

func tableExists(db *sql.DB, name string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1 FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, name).Scan(&exists)
	return err == nil && exists
}
