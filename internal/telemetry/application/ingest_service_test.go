package application

import (
	"context"
	"errors"
	"testing"

	"iot-collector/internal/mapping"
	"iot-collector/internal/telemetry/application/events"
	telemetry "iot-collector/internal/telemetry/domain"
	"iot-collector/internal/wire"
)

type stubMessageRepo struct {
	records []telemetry.MessageRecord
	err     error
}

func (s *stubMessageRepo) InsertMessage(_ context.Context, record telemetry.MessageRecord) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.records = append(s.records, record)
	return "msg-1", nil
}

func newIngestService(t *testing.T, messages *stubMessageRepo, points *stubPointRepo, bus *stubBus) *IngestService {
	t.Helper()
	decoder, err := NewDecodeService(mapping.NewResolver(nil), points, bus, nil)
	if err != nil {
		t.Fatalf("new decode service: %v", err)
	}
	var publisher EventPublisher
	if bus != nil {
		publisher = bus
	}
	service, err := NewIngestService(messages, decoder, publisher, nil)
	if err != nil {
		t.Fatalf("new ingest service: %v", err)
	}
	return service
}

func TestIngestStoresEnvelopeAndDecodes(t *testing.T) {
	messages := &stubMessageRepo{}
	points := &stubPointRepo{}
	bus := &stubBus{}
	service := newIngestService(t, messages, points, bus)

	payload := `{"mid":"pack2","images":[{"t":"2024-05-05 00:00:19.009","tags":{"BMS_pack_2_ele_u":672.4}}]}`
	result, err := service.Ingest(context.Background(), mqttMessage(t, payload))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.MessageID != "msg-1" || result.Points != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(messages.records) != 1 {
		t.Fatalf("expected one stored envelope, got %d", len(messages.records))
	}
	record := messages.records[0]
	if record.ClientIP != "zjkg" || record.Protocol == nil || *record.Protocol != "mqtt" {
		t.Fatalf("unexpected record: %+v", record)
	}

	var received, decoded bool
	for _, event := range bus.published {
		switch event.(type) {
		case events.MessageReceived:
			received = true
		case events.PointsDecoded:
			decoded = true
		}
	}
	if !received || !decoded {
		t.Fatalf("expected both events, got %+v", bus.published)
	}
}

func TestIngestKeepsEnvelopeOnDecodeFailure(t *testing.T) {
	messages := &stubMessageRepo{}
	points := &stubPointRepo{}
	service := newIngestService(t, messages, points, nil)

	result, err := service.Ingest(context.Background(), mqttMessage(t, "{broken"))
	if err != nil {
		t.Fatalf("ingest should not fail on decode error: %v", err)
	}
	if result.MessageID != "msg-1" || result.Points != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(messages.records) != 1 {
		t.Fatalf("envelope should still be stored")
	}
}

func TestIngestRejectsInvalidMessage(t *testing.T) {
	service := newIngestService(t, &stubMessageRepo{}, &stubPointRepo{}, nil)

	msg := &wire.IotMessage{Channel: &wire.ChannelInfo{ClientIP: "a", ServerIP: "b"}}
	if _, err := service.Ingest(context.Background(), msg); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestIngestSurfacesStorageError(t *testing.T) {
	messages := &stubMessageRepo{err: errors.New("db down")}
	service := newIngestService(t, messages, &stubPointRepo{}, nil)

	if _, err := service.Ingest(context.Background(), mqttMessage(t, `{"mid":"p"}`)); err == nil {
		t.Fatalf("expected storage error")
	}
}
