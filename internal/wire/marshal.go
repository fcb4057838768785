package wire

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers are fixed by the wire contract.
const (
	channelFieldClientIP   = 1
	channelFieldClientPort = 2
	channelFieldServerIP   = 3
	channelFieldServerPort = 4
	channelFieldProtocol   = 5

	messageFieldChannel    = 1
	messageFieldType       = 2
	messageFieldPayload    = 3
	messageFieldServerTime = 4

	equipFieldStationID     = 1
	equipFieldEquipmentType = 2
	equipFieldEquipmentID   = 3
	equipFieldCab           = 4
	equipFieldStack         = 5
	equipFieldCluster       = 6
	equipFieldPack          = 7
	equipFieldCell          = 8

	kvFieldEquipInfo    = 1
	kvFieldTimestamp    = 2
	kvFieldPropertyName = 3
	kvFieldValueType    = 4
)

// Marshal encodes the channel info, failing when a required field is unset.
// Required numeric fields are always emitted, so a zero port survives the
// round trip as present.
func (c *ChannelInfo) Marshal() ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c.append(nil), nil
}

func (c *ChannelInfo) append(buf []byte) []byte {
	buf = appendString(buf, channelFieldClientIP, c.ClientIP)
	buf = appendVarint(buf, channelFieldClientPort, uint64(c.ClientPort))
	buf = appendString(buf, channelFieldServerIP, c.ServerIP)
	buf = appendVarint(buf, channelFieldServerPort, uint64(c.ServerPort))
	if c.Protocol != nil {
		buf = appendString(buf, channelFieldProtocol, *c.Protocol)
	}
	return buf
}

// Marshal encodes the message, failing when channel or payload is unset.
func (m *IotMessage) Marshal() ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	var buf []byte
	buf = appendBytes(buf, messageFieldChannel, m.Channel.append(nil))
	if m.MessageType != nil {
		buf = appendString(buf, messageFieldType, *m.MessageType)
	}
	buf = appendBytes(buf, messageFieldPayload, m.Message)
	if m.ServerTime != nil {
		buf = appendVarint(buf, messageFieldServerTime, uint64(*m.ServerTime))
	}
	return buf, nil
}

// Marshal encodes the equipment locator, failing when a required field is unset.
func (e *IotEquipInfo) Marshal() ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	return e.append(nil), nil
}

func (e *IotEquipInfo) append(buf []byte) []byte {
	buf = appendString(buf, equipFieldStationID, e.StationID)
	buf = appendString(buf, equipFieldEquipmentType, e.EquipmentType)
	buf = appendString(buf, equipFieldEquipmentID, e.EquipmentID)
	for _, opt := range []struct {
		num   protowire.Number
		value *string
	}{
		{equipFieldCab, e.Cab},
		{equipFieldStack, e.Stack},
		{equipFieldCluster, e.Cluster},
		{equipFieldPack, e.Pack},
		{equipFieldCell, e.Cell},
	} {
		if opt.value != nil {
			buf = appendString(buf, opt.num, *opt.value)
		}
	}
	return buf
}

// Marshal encodes the data point, failing when a required field is unset
// or the value type ordinal is unknown.
func (p *IotKvPair) Marshal() ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	var buf []byte
	buf = appendBytes(buf, kvFieldEquipInfo, p.EquipInfo.append(nil))
	buf = appendVarint(buf, kvFieldTimestamp, uint64(p.Timestamp))
	buf = appendString(buf, kvFieldPropertyName, p.PropertyName)
	buf = appendVarint(buf, kvFieldValueType, uint64(p.ValueType))
	return buf, nil
}

func appendString(buf []byte, num protowire.Number, value string) []byte {
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendString(buf, value)
}

func appendBytes(buf []byte, num protowire.Number, value []byte) []byte {
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, value)
}

func appendVarint(buf []byte, num protowire.Number, value uint64) []byte {
	buf = protowire.AppendTag(buf, num, protowire.VarintType)
	return protowire.AppendVarint(buf, value)
}
