package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"iot-collector/internal/gatewaylog"
	"iot-collector/internal/mapping"
	"iot-collector/internal/telemetry/application/events"
	telemetry "iot-collector/internal/telemetry/domain"
	"iot-collector/internal/wire"
)

const defaultEquipmentType = "battery"

// EventPublisher publishes application events.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// DecodeService turns stored message payloads into data points. Only
// mqtt image payloads carry decodable tags; iec104 frames stay opaque
// envelopes.
type DecodeService struct {
	resolver      *mapping.Resolver
	points        telemetry.PointRepository
	bus           EventPublisher
	logger        *log.Logger
	equipmentType string
}

// DecodeOption configures the decode service.
type DecodeOption func(*DecodeService)

// WithEquipmentType overrides the default equipment type for decoded points.
func WithEquipmentType(equipmentType string) DecodeOption {
	return func(s *DecodeService) {
		if equipmentType != "" {
			s.equipmentType = equipmentType
		}
	}
}

// NewDecodeService constructs a decode service.
func NewDecodeService(resolver *mapping.Resolver, points telemetry.PointRepository, bus EventPublisher, logger *log.Logger, opts ...DecodeOption) (*DecodeService, error) {
	if resolver == nil {
		return nil, errors.New("decode service: nil resolver")
	}
	if points == nil {
		return nil, errors.New("decode service: nil point repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &DecodeService{
		resolver:      resolver,
		points:        points,
		bus:           bus,
		logger:        logger,
		equipmentType: defaultEquipmentType,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// imagePayload is the mqtt gateway JSON frame.
type imagePayload struct {
	Ver    int     `json:"ver"`
	MID    string  `json:"mid"`
	Name   string  `json:"nm"`
	Images []image `json:"images"`
}

type image struct {
	T    string             `json:"t"`
	Tags map[string]float64 `json:"tags"`
}

// Decode parses the message payload into data points, stores them and
// publishes PointsDecoded. Messages that are not mqtt image frames
// decode to zero points without error.
func (s *DecodeService) Decode(ctx context.Context, messageID string, msg *wire.IotMessage) ([]telemetry.DataPoint, error) {
	if msg == nil || msg.Channel == nil {
		return nil, errors.New("decode service: nil message")
	}
	if msg.GetMessageType() != gatewaylog.ProtocolMQTT {
		return nil, nil
	}

	var payload imagePayload
	if err := json.Unmarshal(msg.Message, &payload); err != nil {
		return nil, fmt.Errorf("decode service: bad image payload: %w", err)
	}

	stationID := msg.Channel.ClientIP
	if stationID == "" {
		return nil, errors.New("decode service: empty station id")
	}
	equipmentID := payload.MID
	if equipmentID == "" {
		equipmentID = payload.Name
	}
	if equipmentID == "" {
		return nil, errors.New("decode service: no equipment id in payload")
	}

	points := make([]telemetry.DataPoint, 0)
	var signals, telemeters int
	for _, img := range payload.Images {
		ts := s.imageTime(img.T, msg)
		for tagKey, value := range img.Tags {
			resolved := s.resolver.Resolve(tagKey)
			pair := &wire.IotKvPair{
				EquipInfo:    resolved.Locator(stationID, s.equipmentType, equipmentID),
				Timestamp:    ts,
				PropertyName: resolved.Property,
				ValueType:    resolved.ValueType,
			}
			point, err := telemetry.NewDataPoint(pair, value, msg.Channel.GetProtocol())
			if err != nil {
				return nil, err
			}
			points = append(points, point)
			switch resolved.ValueType {
			case wire.ValueTypeSignal:
				signals++
			case wire.ValueTypeTelemeter:
				telemeters++
			}
		}
	}
	if len(points) == 0 {
		return nil, nil
	}

	if err := s.points.InsertPoints(ctx, points); err != nil {
		return nil, fmt.Errorf("decode service: insert points: %w", err)
	}

	if s.bus != nil {
		event := events.PointsDecoded{
			MessageID:  messageID,
			StationID:  stationID,
			Points:     len(points),
			Signals:    signals,
			Telemeters: telemeters,
			OccurredAt: time.Now().UTC(),
		}
		if err := s.bus.Publish(ctx, event); err != nil {
			s.logger.Printf("decode service: publish points decoded: %v", err)
		}
	}
	return points, nil
}

// imageTime parses the per-image timestamp, falling back to the server
// receive time when absent or malformed.
func (s *DecodeService) imageTime(value string, msg *wire.IotMessage) int64 {
	if value != "" {
		if ms, err := gatewaylog.ParseServerTime(value); err == nil {
			return ms
		}
		s.logger.Printf("decode service: bad image time %q, using server time", value)
	}
	return msg.GetServerTime()
}
