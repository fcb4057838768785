package application

import (
	"context"
	"errors"
	"log"
	"time"

	"iot-collector/internal/observability/metrics"
	"iot-collector/internal/telemetry/application/events"
	telemetry "iot-collector/internal/telemetry/domain"
	"iot-collector/internal/wire"
)

// IngestService stores inbound envelopes and hands their payloads to
// the decoder. It is shared by the HTTP and mqtt ingestion fronts.
type IngestService struct {
	messages telemetry.MessageRepository
	decoder  *DecodeService
	bus      EventPublisher
	logger   *log.Logger
}

// NewIngestService constructs an ingest service.
func NewIngestService(messages telemetry.MessageRepository, decoder *DecodeService, bus EventPublisher, logger *log.Logger) (*IngestService, error) {
	if messages == nil {
		return nil, errors.New("ingest service: nil message repository")
	}
	if decoder == nil {
		return nil, errors.New("ingest service: nil decoder")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestService{messages: messages, decoder: decoder, bus: bus, logger: logger}, nil
}

// IngestResult reports what one message produced.
type IngestResult struct {
	MessageID string
	Points    int
}

// Ingest stores the envelope, publishes MessageReceived and decodes the
// payload. A payload that fails to decode is kept as a stored envelope;
// the decode error is logged, not surfaced.
func (s *IngestService) Ingest(ctx context.Context, msg *wire.IotMessage) (IngestResult, error) {
	record, err := telemetry.NewMessageRecord(msg)
	if err != nil {
		return IngestResult{}, err
	}

	messageID, err := s.messages.InsertMessage(ctx, record)
	if err != nil {
		return IngestResult{}, err
	}

	if s.bus != nil {
		event := events.MessageReceived{
			MessageID:   messageID,
			StationID:   msg.Channel.ClientIP,
			Protocol:    msg.Channel.GetProtocol(),
			MessageType: msg.GetMessageType(),
			PayloadSize: len(msg.Message),
			ServerTime:  msg.GetServerTime(),
			OccurredAt:  time.Now().UTC(),
		}
		if err := s.bus.Publish(ctx, event); err != nil {
			s.logger.Printf("ingest service: publish message received: %v", err)
		}
	}

	points, err := s.decoder.Decode(ctx, messageID, msg)
	if err != nil {
		s.logger.Printf("ingest service: decode message %s: %v", messageID, err)
		metrics.IncDecodeError()
		return IngestResult{MessageID: messageID}, nil
	}
	byType := map[wire.ValueType]int{}
	for _, point := range points {
		byType[point.ValueType]++
	}
	for valueType, count := range byType {
		metrics.AddDecodedPoints(valueType.String(), count)
	}
	return IngestResult{MessageID: messageID, Points: len(points)}, nil
}
