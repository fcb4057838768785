package wire

// ChannelInfo identifies the network connection a message arrived over.
// The four endpoint fields are required; protocol is optional and its
// absence means the application protocol is unknown.
type ChannelInfo struct {
	ClientIP   string
	ClientPort uint32
	ServerIP   string
	ServerPort uint32
	Protocol   *string
}

// HasProtocol reports whether the protocol name is present. An empty
// but present protocol is distinct from an absent one.
func (c *ChannelInfo) HasProtocol() bool {
	return c != nil && c.Protocol != nil
}

// GetProtocol returns the protocol name, or "" when absent.
func (c *ChannelInfo) GetProtocol() string {
	if c == nil || c.Protocol == nil {
		return ""
	}
	return *c.Protocol
}

func (c *ChannelInfo) validate() error {
	if c == nil {
		return missingField("ChannelInfo", "channel")
	}
	if c.ClientIP == "" {
		return missingField("ChannelInfo", "client_ip")
	}
	if c.ServerIP == "" {
		return missingField("ChannelInfo", "server_ip")
	}
	return nil
}

// IotMessage is one inbound payload plus its provenance. Channel and
// message are required; a zero-length payload is invalid. ServerTime is
// the server-side receipt time in milliseconds since epoch, absent when
// not captured. MessageType tells downstream decoders how to interpret
// the payload; absent means not yet classified.
type IotMessage struct {
	Channel     *ChannelInfo
	MessageType *string
	Message     []byte
	ServerTime  *int64
}

// HasMessageType reports whether the message type discriminator is present.
func (m *IotMessage) HasMessageType() bool {
	return m != nil && m.MessageType != nil
}

// GetMessageType returns the message type, or "" when absent.
func (m *IotMessage) GetMessageType() string {
	if m == nil || m.MessageType == nil {
		return ""
	}
	return *m.MessageType
}

// HasServerTime reports whether the receipt timestamp is present.
func (m *IotMessage) HasServerTime() bool {
	return m != nil && m.ServerTime != nil
}

// GetServerTime returns the receipt timestamp in milliseconds, or 0 when absent.
func (m *IotMessage) GetServerTime() int64 {
	if m == nil || m.ServerTime == nil {
		return 0
	}
	return *m.ServerTime
}

func (m *IotMessage) validate() error {
	if m == nil {
		return missingField("IotMessage", "channel")
	}
	if m.Channel == nil {
		return missingField("IotMessage", "channel")
	}
	if err := m.Channel.validate(); err != nil {
		return err
	}
	if len(m.Message) == 0 {
		return missingField("IotMessage", "message")
	}
	return nil
}
