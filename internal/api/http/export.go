package apihttp

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"iot-collector/internal/audit"
	"iot-collector/internal/auth"
	"iot-collector/internal/observability/metrics"
	telemetry "iot-collector/internal/telemetry/domain"
)

// ExportPointsXLSXHandler serves latest-point XLSX exports.
type ExportPointsXLSXHandler struct {
	query    telemetry.PointQuery
	auditLog audit.Logger
}

// NewExportPointsXLSXHandler constructs an ExportPointsXLSXHandler.
func NewExportPointsXLSXHandler(query telemetry.PointQuery, auditLog audit.Logger) *ExportPointsXLSXHandler {
	return &ExportPointsXLSXHandler{query: query, auditLog: auditLog}
}

// ServeHTTP handles GET /api/v1/exports/points.xlsx.
func (h *ExportPointsXLSXHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	serveExport(w, r, h.query, h.auditLog, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", BuildPointsXLSX)
}

// ExportPointsPDFHandler serves latest-point PDF exports.
type ExportPointsPDFHandler struct {
	query    telemetry.PointQuery
	auditLog audit.Logger
}

// NewExportPointsPDFHandler constructs an ExportPointsPDFHandler.
func NewExportPointsPDFHandler(query telemetry.PointQuery, auditLog audit.Logger) *ExportPointsPDFHandler {
	return &ExportPointsPDFHandler{query: query, auditLog: auditLog}
}

// ServeHTTP handles GET /api/v1/exports/points.pdf.
func (h *ExportPointsPDFHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	serveExport(w, r, h.query, h.auditLog, "pdf", "application/pdf", BuildPointsPDF)
}

func serveExport(
	w http.ResponseWriter,
	r *http.Request,
	query telemetry.PointQuery,
	auditLog audit.Logger,
	format string,
	contentType string,
	build func(stationID string, points []telemetry.DataPoint) ([]byte, error),
) {
	start := time.Now()
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if query == nil {
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

	points, err := query.LatestByStation(r.Context(), stationID, limit)
	if err != nil {
		metrics.ObserveExport(format, "error", time.Since(start))
		http.Error(w, "query points error", http.StatusInternalServerError)
		return
	}

	payload, err := build(stationID, points)
	if err != nil {
		metrics.ObserveExport(format, "error", time.Since(start))
		http.Error(w, "render export error", http.StatusInternalServerError)
		return
	}

	metrics.ObserveExport(format, "ok", time.Since(start))
	if auditLog != nil {
		_ = auditLog.Log(r.Context(), audit.Entry{
			Actor:        auth.SubjectFromContext(r.Context()),
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       audit.ActionExportPoints,
			ResourceType: "points." + format,
			ResourceID:   stationID,
			StationID:    stationID,
			IP:           r.RemoteAddr,
			UserAgent:    r.UserAgent(),
		})
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=points-%s.%s", stationID, format))
	_, _ = w.Write(payload)
}

// BuildPointsPDF renders a minimal PDF for the latest station points.
func BuildPointsPDF(stationID string, points []telemetry.DataPoint) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Station Data Points")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Station: %s", stationID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Points: %d", len(points)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(45, 6, "Equipment", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Property", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Time (ms)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Value", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, point := range points {
		pdf.CellFormat(45, 6, point.EquipmentID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, point.Property, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, point.ValueType.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%d", point.Timestamp), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", point.Value), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPointsXLSX renders a minimal XLSX for the latest station points.
func BuildPointsXLSX(stationID string, points []telemetry.DataPoint) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	pointsSheet := "points"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(pointsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Station Data Points")
	_ = f.SetCellValue(summarySheet, "A3", "Station")
	_ = f.SetCellValue(summarySheet, "B3", stationID)
	_ = f.SetCellValue(summarySheet, "A4", "Points")
	_ = f.SetCellValue(summarySheet, "B4", len(points))
	_ = f.SetCellValue(summarySheet, "A5", "Generated")
	_ = f.SetCellValue(summarySheet, "B5", time.Now().UTC().Format(time.RFC3339))

	headers := []string{"Equipment Type", "Equipment", "Cab", "Stack", "Cluster", "Pack", "Cell", "Property", "Value Type", "Time (ms)", "Value", "Protocol"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(pointsSheet, cell, header)
	}
	for i, point := range points {
		row := i + 2
		values := []any{
			point.EquipmentType,
			point.EquipmentID,
			point.Cab,
			point.Stack,
			point.Cluster,
			point.Pack,
			point.Cell,
			point.Property,
			point.ValueType.String(),
			point.Timestamp,
			point.Value,
			point.Protocol,
		}
		for j, value := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			_ = f.SetCellValue(pointsSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
