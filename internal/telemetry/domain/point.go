package telemetry

import (
	"context"
	"errors"

	"iot-collector/internal/wire"
)

// DataPoint is one decoded measurement written to storage. Locator
// levels are "" when absent. Value carries the observed reading, which
// the wire pair itself does not.
type DataPoint struct {
	StationID     string
	EquipmentType string
	EquipmentID   string
	Cab           string
	Stack         string
	Cluster       string
	Pack          string
	Cell          string
	Property      string
	ValueType     wire.ValueType
	Timestamp     int64
	Value         float64
	Protocol      string
}

// NewDataPoint builds a data point from a wire pair plus the observed value.
func NewDataPoint(pair *wire.IotKvPair, value float64, protocol string) (DataPoint, error) {
	if pair == nil || pair.EquipInfo == nil {
		return DataPoint{}, errors.New("telemetry: nil kv pair")
	}
	equip := pair.EquipInfo
	return DataPoint{
		StationID:     equip.StationID,
		EquipmentType: equip.EquipmentType,
		EquipmentID:   equip.EquipmentID,
		Cab:           equip.GetCab(),
		Stack:         equip.GetStack(),
		Cluster:       equip.GetCluster(),
		Pack:          equip.GetPack(),
		Cell:          equip.GetCell(),
		Property:      pair.PropertyName,
		ValueType:     pair.ValueType,
		Timestamp:     pair.Timestamp,
		Value:         value,
		Protocol:      protocol,
	}, nil
}

// Pair rebuilds the wire pair for this point.
func (p DataPoint) Pair() *wire.IotKvPair {
	equip := &wire.IotEquipInfo{
		StationID:     p.StationID,
		EquipmentType: p.EquipmentType,
		EquipmentID:   p.EquipmentID,
	}
	if p.Cab != "" {
		equip.Cab = wire.String(p.Cab)
	}
	if p.Stack != "" {
		equip.Stack = wire.String(p.Stack)
	}
	if p.Cluster != "" {
		equip.Cluster = wire.String(p.Cluster)
	}
	if p.Pack != "" {
		equip.Pack = wire.String(p.Pack)
	}
	if p.Cell != "" {
		equip.Cell = wire.String(p.Cell)
	}
	return &wire.IotKvPair{
		EquipInfo:    equip,
		Timestamp:    p.Timestamp,
		PropertyName: p.Property,
		ValueType:    p.ValueType,
	}
}

// MessageRecord is one stored envelope row. Nil optional fields map to
// SQL NULLs so that absence survives storage.
type MessageRecord struct {
	ID          string
	ClientIP    string
	ClientPort  uint32
	ServerIP    string
	ServerPort  uint32
	Protocol    *string
	MessageType *string
	Payload     []byte
	ServerTime  *int64
}

// NewMessageRecord builds a record from a valid wire message.
func NewMessageRecord(msg *wire.IotMessage) (MessageRecord, error) {
	if msg == nil || msg.Channel == nil {
		return MessageRecord{}, errors.New("telemetry: nil message")
	}
	if len(msg.Message) == 0 {
		return MessageRecord{}, errors.New("telemetry: empty payload")
	}
	return MessageRecord{
		ClientIP:    msg.Channel.ClientIP,
		ClientPort:  msg.Channel.ClientPort,
		ServerIP:    msg.Channel.ServerIP,
		ServerPort:  msg.Channel.ServerPort,
		Protocol:    msg.Channel.Protocol,
		MessageType: msg.MessageType,
		Payload:     msg.Message,
		ServerTime:  msg.ServerTime,
	}, nil
}

// MessageRepository persists message envelopes.
type MessageRepository interface {
	InsertMessage(ctx context.Context, record MessageRecord) (string, error)
}

// PointRepository persists decoded data points.
type PointRepository interface {
	InsertPoints(ctx context.Context, points []DataPoint) error
}

// PointQuery loads stored data points.
type PointQuery interface {
	LatestByStation(ctx context.Context, stationID string, limit int) ([]DataPoint, error)
	ListStations(ctx context.Context) ([]string, error)
}
