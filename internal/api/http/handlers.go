package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"iot-collector/internal/auth"
	telemetry "iot-collector/internal/telemetry/domain"
)

const maxPointLimit = 5000

var errMalformedLimit = errors.New("limit must be a non-negative integer")

// PointsHandler serves latest-point queries.
type PointsHandler struct {
	query telemetry.PointQuery
}

// NewPointsHandler constructs a PointsHandler.
func NewPointsHandler(query telemetry.PointQuery) *PointsHandler {
	return &PointsHandler{query: query}
}

// ServeHTTP handles GET /api/v1/points/latest.
func (h *PointsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.query == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	stationID := r.URL.Query().Get("station")
	if stationID == "" {
		http.Error(w, "station is required", http.StatusBadRequest)
		return
	}
	if !auth.StationAllowed(r.Context(), stationID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	points, err := h.query.LatestByStation(r.Context(), stationID, limit)
	if err != nil {
		http.Error(w, "query points error", http.StatusInternalServerError)
		return
	}

	rows := make([]pointRow, 0, len(points))
	for _, point := range points {
		rows = append(rows, newPointRow(point))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(pointsResponse{StationID: stationID, Points: rows})
}

// StationsHandler lists stations with stored points.
type StationsHandler struct {
	query telemetry.PointQuery
}

// NewStationsHandler constructs a StationsHandler.
func NewStationsHandler(query telemetry.PointQuery) *StationsHandler {
	return &StationsHandler{query: query}
}

// ServeHTTP handles GET /api/v1/stations.
func (h *StationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.query == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	stations, err := h.query.ListStations(r.Context())
	if err != nil {
		http.Error(w, "query stations error", http.StatusInternalServerError)
		return
	}

	visible := stations[:0:0]
	for _, station := range stations {
		if auth.StationAllowed(r.Context(), station) {
			visible = append(visible, station)
		}
	}
	if visible == nil {
		visible = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string][]string{"stations": visible})
}

type pointsResponse struct {
	StationID string     `json:"station_id"`
	Points    []pointRow `json:"points"`
}

type pointRow struct {
	EquipmentType string  `json:"equipment_type"`
	EquipmentID   string  `json:"equipment_id"`
	Cab           string  `json:"cab,omitempty"`
	Stack         string  `json:"stack,omitempty"`
	Cluster       string  `json:"cluster,omitempty"`
	Pack          string  `json:"pack,omitempty"`
	Cell          string  `json:"cell,omitempty"`
	Property      string  `json:"property"`
	ValueType     string  `json:"value_type"`
	Timestamp     int64   `json:"ts"`
	Value         float64 `json:"value"`
	Protocol      string  `json:"protocol,omitempty"`
}

func newPointRow(point telemetry.DataPoint) pointRow {
	return pointRow{
		EquipmentType: point.EquipmentType,
		EquipmentID:   point.EquipmentID,
		Cab:           point.Cab,
		Stack:         point.Stack,
		Cluster:       point.Cluster,
		Pack:          point.Pack,
		Cell:          point.Cell,
		Property:      point.Property,
		ValueType:     point.ValueType.String(),
		Timestamp:     point.Timestamp,
		Value:         point.Value,
		Protocol:      point.Protocol,
	}
}

func parseLimit(r *http.Request) (int, error) {
	value := r.URL.Query().Get("limit")
	if value == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(value)
	if err != nil || limit < 0 {
		return 0, errMalformedLimit
	}
	if limit > maxPointLimit {
		limit = maxPointLimit
	}
	return limit, nil
}
