package wire

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Unmarshal decodes channel info, replacing the receiver's contents.
// It fails with ErrMalformedEncoding on bytes that do not parse and with
// ErrMissingRequiredField when a required field is absent from the data.
func (c *ChannelInfo) Unmarshal(data []byte) error {
	*c = ChannelInfo{}
	var seen fieldSet
	err := walkFields(data, "ChannelInfo", func(num protowire.Number, typ protowire.Type, value []byte) error {
		switch num {
		case channelFieldClientIP:
			s, err := decodeString("ChannelInfo", "client_ip", typ, value)
			if err != nil {
				return err
			}
			c.ClientIP = s
			seen.mark(channelFieldClientIP)
		case channelFieldClientPort:
			v, err := decodeUint32("ChannelInfo", "client_port", typ, value)
			if err != nil {
				return err
			}
			c.ClientPort = v
			seen.mark(channelFieldClientPort)
		case channelFieldServerIP:
			s, err := decodeString("ChannelInfo", "server_ip", typ, value)
			if err != nil {
				return err
			}
			c.ServerIP = s
			seen.mark(channelFieldServerIP)
		case channelFieldServerPort:
			v, err := decodeUint32("ChannelInfo", "server_port", typ, value)
			if err != nil {
				return err
			}
			c.ServerPort = v
			seen.mark(channelFieldServerPort)
		case channelFieldProtocol:
			s, err := decodeString("ChannelInfo", "protocol", typ, value)
			if err != nil {
				return err
			}
			c.Protocol = &s
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, req := range []struct {
		num  protowire.Number
		name string
	}{
		{channelFieldClientIP, "client_ip"},
		{channelFieldClientPort, "client_port"},
		{channelFieldServerIP, "server_ip"},
		{channelFieldServerPort, "server_port"},
	} {
		if !seen.has(req.num) {
			return missingField("ChannelInfo", req.name)
		}
	}
	return nil
}

// Unmarshal decodes a message, replacing the receiver's contents.
func (m *IotMessage) Unmarshal(data []byte) error {
	*m = IotMessage{}
	var seen fieldSet
	err := walkFields(data, "IotMessage", func(num protowire.Number, typ protowire.Type, value []byte) error {
		switch num {
		case messageFieldChannel:
			if typ != protowire.BytesType {
				return malformedField("IotMessage", "channel", "unexpected wire type")
			}
			channel := &ChannelInfo{}
			if err := channel.Unmarshal(value); err != nil {
				return err
			}
			m.Channel = channel
			seen.mark(messageFieldChannel)
		case messageFieldType:
			s, err := decodeString("IotMessage", "message_type", typ, value)
			if err != nil {
				return err
			}
			m.MessageType = &s
		case messageFieldPayload:
			if typ != protowire.BytesType {
				return malformedField("IotMessage", "message", "unexpected wire type")
			}
			m.Message = append([]byte(nil), value...)
			seen.mark(messageFieldPayload)
		case messageFieldServerTime:
			v, err := decodeInt64("IotMessage", "server_time", typ, value)
			if err != nil {
				return err
			}
			m.ServerTime = &v
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !seen.has(messageFieldChannel) {
		return missingField("IotMessage", "channel")
	}
	if !seen.has(messageFieldPayload) || len(m.Message) == 0 {
		return missingField("IotMessage", "message")
	}
	return nil
}

// Unmarshal decodes an equipment locator, replacing the receiver's contents.
func (e *IotEquipInfo) Unmarshal(data []byte) error {
	*e = IotEquipInfo{}
	var seen fieldSet
	err := walkFields(data, "IotEquipInfo", func(num protowire.Number, typ protowire.Type, value []byte) error {
		name, target := e.fieldByNumber(num)
		if target == nil {
			return nil
		}
		s, err := decodeString("IotEquipInfo", name, typ, value)
		if err != nil {
			return err
		}
		*target = s
		seen.mark(num)
		return nil
	})
	if err != nil {
		return err
	}
	for _, req := range []struct {
		num  protowire.Number
		name string
	}{
		{equipFieldStationID, "station_id"},
		{equipFieldEquipmentType, "equipment_type"},
		{equipFieldEquipmentID, "equipment_id"},
	} {
		if !seen.has(req.num) {
			return missingField("IotEquipInfo", req.name)
		}
	}
	return nil
}

// fieldByNumber returns the name and destination for a locator field.
// Optional levels allocate their pointer on first sight so presence is
// kept distinct from an empty id.
func (e *IotEquipInfo) fieldByNumber(num protowire.Number) (string, *string) {
	switch num {
	case equipFieldStationID:
		return "station_id", &e.StationID
	case equipFieldEquipmentType:
		return "equipment_type", &e.EquipmentType
	case equipFieldEquipmentID:
		return "equipment_id", &e.EquipmentID
	case equipFieldCab:
		if e.Cab == nil {
			e.Cab = new(string)
		}
		return "cab", e.Cab
	case equipFieldStack:
		if e.Stack == nil {
			e.Stack = new(string)
		}
		return "stack", e.Stack
	case equipFieldCluster:
		if e.Cluster == nil {
			e.Cluster = new(string)
		}
		return "cluster", e.Cluster
	case equipFieldPack:
		if e.Pack == nil {
			e.Pack = new(string)
		}
		return "pack", e.Pack
	case equipFieldCell:
		if e.Cell == nil {
			e.Cell = new(string)
		}
		return "cell", e.Cell
	}
	return "", nil
}

// Unmarshal decodes a data point, replacing the receiver's contents.
func (p *IotKvPair) Unmarshal(data []byte) error {
	*p = IotKvPair{}
	var seen fieldSet
	err := walkFields(data, "IotKvPair", func(num protowire.Number, typ protowire.Type, value []byte) error {
		switch num {
		case kvFieldEquipInfo:
			if typ != protowire.BytesType {
				return malformedField("IotKvPair", "equip_info", "unexpected wire type")
			}
			equip := &IotEquipInfo{}
			if err := equip.Unmarshal(value); err != nil {
				return err
			}
			p.EquipInfo = equip
			seen.mark(kvFieldEquipInfo)
		case kvFieldTimestamp:
			v, err := decodeInt64("IotKvPair", "timestamp", typ, value)
			if err != nil {
				return err
			}
			p.Timestamp = v
			seen.mark(kvFieldTimestamp)
		case kvFieldPropertyName:
			s, err := decodeString("IotKvPair", "property_name", typ, value)
			if err != nil {
				return err
			}
			p.PropertyName = s
			seen.mark(kvFieldPropertyName)
		case kvFieldValueType:
			v, err := decodeInt64("IotKvPair", "value_type", typ, value)
			if err != nil {
				return err
			}
			vt := ValueType(v)
			if !vt.Valid() {
				return malformedField("IotKvPair", "value_type", "unknown ordinal")
			}
			p.ValueType = vt
			seen.mark(kvFieldValueType)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, req := range []struct {
		num  protowire.Number
		name string
	}{
		{kvFieldEquipInfo, "equip_info"},
		{kvFieldTimestamp, "timestamp"},
		{kvFieldPropertyName, "property_name"},
		{kvFieldValueType, "value_type"},
	} {
		if !seen.has(req.num) {
			return missingField("IotKvPair", req.name)
		}
	}
	return nil
}

// fieldSet tracks which field numbers were seen during a decode.
type fieldSet uint16

func (s *fieldSet) mark(num protowire.Number) { *s |= 1 << uint(num) }
func (s fieldSet) has(num protowire.Number) bool {
	return s&(1<<uint(num)) != 0
}

// walkFields iterates the top-level fields of an encoded message. The
// callback receives bytes-typed fields with their contents and varint
// fields with the raw varint bytes still attached; unknown fields are
// skipped.
func walkFields(data []byte, message string, fn func(num protowire.Number, typ protowire.Type, value []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return malformed(message, protowire.ParseError(n))
		}
		data = data[n:]

		var value []byte
		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return malformed(message, protowire.ParseError(n))
			}
			value = v
			data = data[n:]
		case protowire.VarintType:
			_, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return malformed(message, protowire.ParseError(n))
			}
			value = data[:n]
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return malformed(message, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}
		if err := fn(num, typ, value); err != nil {
			return err
		}
	}
	return nil
}

func decodeString(message, field string, typ protowire.Type, value []byte) (string, error) {
	if typ != protowire.BytesType {
		return "", malformedField(message, field, "unexpected wire type")
	}
	return string(value), nil
}

func decodeInt64(message, field string, typ protowire.Type, value []byte) (int64, error) {
	if typ != protowire.VarintType {
		return 0, malformedField(message, field, "unexpected wire type")
	}
	v, n := protowire.ConsumeVarint(value)
	if n < 0 {
		return 0, malformed(message, protowire.ParseError(n))
	}
	return int64(v), nil
}

func decodeUint32(message, field string, typ protowire.Type, value []byte) (uint32, error) {
	v, err := decodeInt64(message, field, typ, value)
	if err != nil {
		return 0, err
	}
	if uint64(v) > math.MaxUint32 {
		return 0, malformedField(message, field, "value overflows uint32")
	}
	return uint32(v), nil
}
