package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"iot-collector/internal/observability/metrics"
	"iot-collector/internal/telemetry/application"
	"iot-collector/internal/wire"
)

const maxBodySize = 8 << 20

// IngestHandler accepts wire-encoded IotMessage envelopes.
type IngestHandler struct {
	ingest *application.IngestService
	logger *log.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(ingest *application.IngestService, logger *log.Logger) (*IngestHandler, error) {
	if ingest == nil {
		return nil, errors.New("ingest handler: nil ingest service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{ingest: ingest, logger: logger}, nil
}

// ServeHTTP ingests one wire-encoded message.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	started := time.Now()

	// Read one byte past the limit so an oversized body is distinguishable
	// from a malformed one.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		h.logger.Printf("ingest: read body error: %v", err)
		metrics.IncIngestError("read_body")
		metrics.ObserveIngest("http", "error", time.Since(started))
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if len(body) > maxBodySize {
		h.logger.Printf("ingest: body exceeds %d bytes", maxBodySize)
		metrics.IncIngestError("body_too_large")
		metrics.ObserveIngest("http", "error", time.Since(started))
		http.Error(w, "message too large", http.StatusRequestEntityTooLarge)
		return
	}

	msg := &wire.IotMessage{}
	if err := msg.Unmarshal(body); err != nil {
		reason := "malformed"
		if errors.Is(err, wire.ErrMissingRequiredField) {
			reason = "missing_field"
		}
		h.logger.Printf("ingest: decode error: %v", err)
		metrics.IncIngestError(reason)
		metrics.ObserveIngest("http", "error", time.Since(started))
		http.Error(w, "invalid message", http.StatusBadRequest)
		return
	}

	result, err := h.ingest.Ingest(r.Context(), msg)
	if err != nil {
		h.logger.Printf("ingest: store error: %v", err)
		metrics.IncIngestError("store")
		metrics.ObserveIngest("http", "error", time.Since(started))
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}

	metrics.ObserveIngest("http", "success", time.Since(started))
	resp := map[string]any{"message_id": result.MessageID, "points": result.Points}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
