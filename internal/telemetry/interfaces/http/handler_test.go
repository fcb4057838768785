package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"iot-collector/internal/mapping"
	"iot-collector/internal/telemetry/application"
	telemetry "iot-collector/internal/telemetry/domain"
	"iot-collector/internal/wire"
)

type stubMessageRepo struct {
	records []telemetry.MessageRecord
}

func (s *stubMessageRepo) InsertMessage(_ context.Context, record telemetry.MessageRecord) (string, error) {
	s.records = append(s.records, record)
	return "msg-1", nil
}

type stubPointRepo struct {
	points []telemetry.DataPoint
}

func (s *stubPointRepo) InsertPoints(_ context.Context, points []telemetry.DataPoint) error {
	s.points = append(s.points, points...)
	return nil
}

func newHandler(t *testing.T, messages *stubMessageRepo, points *stubPointRepo) *IngestHandler {
	t.Helper()
	decoder, err := application.NewDecodeService(mapping.NewResolver(nil), points, nil, nil)
	if err != nil {
		t.Fatalf("new decode service: %v", err)
	}
	ingest, err := application.NewIngestService(messages, decoder, nil, nil)
	if err != nil {
		t.Fatalf("new ingest service: %v", err)
	}
	handler, err := NewIngestHandler(ingest, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func TestIngestHandlerAcceptsWireMessage(t *testing.T) {
	messages := &stubMessageRepo{}
	points := &stubPointRepo{}
	handler := newHandler(t, messages, points)

	msg := &wire.IotMessage{
		Channel: &wire.ChannelInfo{
			ClientIP:   "zjkg",
			ClientPort: 0,
			ServerIP:   "10.0.1.88",
			ServerPort: 1883,
			Protocol:   wire.String("mqtt"),
		},
		MessageType: wire.String("mqtt"),
		Message:     []byte(`{"mid":"pack2","images":[{"t":"2024-05-05 00:00:19.009","tags":{"BMS_pack_2_ele_u":672.4}}]}`),
		ServerTime:  wire.Int64(1714838421525),
	}
	body, err := msg.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/ingest/iot/message", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(messages.records) != 1 {
		t.Fatalf("expected stored envelope")
	}
	if len(points.points) != 1 {
		t.Fatalf("expected one decoded point, got %d", len(points.points))
	}
}

func TestIngestHandlerRejectsMalformedBody(t *testing.T) {
	handler := newHandler(t, &stubMessageRepo{}, &stubPointRepo{})

	req := httptest.NewRequest(http.MethodPost, "/ingest/iot/message", bytes.NewReader([]byte{0xff, 0x01, 0x02}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestIngestHandlerRejectsMissingRequired(t *testing.T) {
	handler := newHandler(t, &stubMessageRepo{}, &stubPointRepo{})

	// A channel with no payload is structurally valid protobuf but
	// violates the required-field contract.
	channel := &wire.ChannelInfo{ClientIP: "a", ClientPort: 1, ServerIP: "b", ServerPort: 2}
	channelBytes, err := channel.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var encoded []byte
	encoded = protowire.AppendTag(encoded, 1, protowire.BytesType)
	encoded = protowire.AppendBytes(encoded, channelBytes)

	req := httptest.NewRequest(http.MethodPost, "/ingest/iot/message", bytes.NewReader(encoded))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestIngestHandlerRejectsOversizedBody(t *testing.T) {
	handler := newHandler(t, &stubMessageRepo{}, &stubPointRepo{})

	body := bytes.NewReader(make([]byte, maxBodySize+1))
	req := httptest.NewRequest(http.MethodPost, "/ingest/iot/message", body)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.Code)
	}
}

func TestIngestHandlerMethodNotAllowed(t *testing.T) {
	handler := newHandler(t, &stubMessageRepo{}, &stubPointRepo{})

	req := httptest.NewRequest(http.MethodGet, "/ingest/iot/message", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}
