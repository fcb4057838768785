package gatewaylog

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"iot-collector/internal/wire"
)

func TestParseServerTime(t *testing.T) {
	ms, err := ParseServerTime("2024-05-05 00:00:21.525")
	if err != nil {
		t.Fatalf("parse server time: %v", err)
	}
	if ms != 1714838421525 {
		t.Fatalf("expected 1714838421525, got %d", ms)
	}
}

func TestParseEndpointsIEC104(t *testing.T) {
	client, server, err := ParseEndpoints("223.104.43.11:11686#10.0.1.88:5003")
	if err != nil {
		t.Fatalf("parse endpoints: %v", err)
	}
	if client.Host != "223.104.43.11" || client.Port != 11686 {
		t.Fatalf("client mismatch: %+v", client)
	}
	if server.Host != "10.0.1.88" || server.Port != 5003 {
		t.Fatalf("server mismatch: %+v", server)
	}
}

func TestParseEndpointsMQTT(t *testing.T) {
	client, server, err := ParseEndpoints("zjkg:0#mqtt-cn-4xl3fdof403.mqtt.aliyuncs.com:1883")
	if err != nil {
		t.Fatalf("parse endpoints: %v", err)
	}
	if client.Host != "zjkg" || client.Port != 0 {
		t.Fatalf("client mismatch: %+v", client)
	}
	if server.Host != "mqtt-cn-4xl3fdof403.mqtt.aliyuncs.com" || server.Port != 1883 {
		t.Fatalf("server mismatch: %+v", server)
	}
}

func TestParseLineMQTT(t *testing.T) {
	line := `2024-05-05 00:00:21.525  [zjkg:0#10.0.1.88:1883]  D:{"ver":211,"mid":"pack2","nm":"pack2","images":[{"t":"2024-05-05 00:00:19.009","tags":{"BMS_pack_2_ele_u":672.4}}]}`
	msg, err := ParseLine(line)
	if err != nil {
		t.Fatalf("parse line: %v", err)
	}
	if msg.Channel.GetProtocol() != ProtocolMQTT || msg.GetMessageType() != ProtocolMQTT {
		t.Fatalf("expected mqtt classification, got %q/%q", msg.Channel.GetProtocol(), msg.GetMessageType())
	}
	if msg.Channel.ClientIP != "zjkg" || msg.Channel.ClientPort != 0 {
		t.Fatalf("channel mismatch: %+v", msg.Channel)
	}
	if !strings.HasPrefix(string(msg.Message), `{"ver":211`) {
		t.Fatalf("payload should be raw json, got %q", msg.Message)
	}
	if msg.GetServerTime() != 1714838421525 {
		t.Fatalf("server time mismatch: %d", msg.GetServerTime())
	}
}

func TestParseLineIEC104(t *testing.T) {
	line := `2024-05-05 23:59:58.846  [223.104.43.11:11686#10.0.1.88:5003] R:6822eee05c46`
	msg, err := ParseLine(line)
	if err != nil {
		t.Fatalf("parse line: %v", err)
	}
	if msg.Channel.GetProtocol() != ProtocolIEC104 {
		t.Fatalf("expected iec104, got %q", msg.Channel.GetProtocol())
	}
	if !bytes.Equal(msg.Message, []byte{0x68, 0x22, 0xee, 0xe0, 0x5c, 0x46}) {
		t.Fatalf("payload mismatch: % x", msg.Message)
	}
	if msg.Channel.ServerPort != 5003 {
		t.Fatalf("server port mismatch: %d", msg.Channel.ServerPort)
	}
}

func TestParseLineBadHex(t *testing.T) {
	line := `2024-05-05 23:59:58.846  [223.104.43.11:11686#10.0.1.88:5003] R:zznothex`
	if _, err := ParseLine(line); !errors.Is(err, ErrUndecodablePayload) {
		t.Fatalf("expected undecodable payload, got %v", err)
	}
}

func TestParseLineRoundTripsThroughWire(t *testing.T) {
	line := `2024-05-05 23:59:58.846  [223.104.43.11:11686#10.0.1.88:5003] R:6822eee05c46`
	msg, err := ParseLine(line)
	if err != nil {
		t.Fatalf("parse line: %v", err)
	}
	encoded, err := msg.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded := &wire.IotMessage{}
	if err := decoded.Unmarshal(encoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Channel.ClientIP != "223.104.43.11" || !bytes.Equal(decoded.Message, msg.Message) {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestParseReaderSkipsBadLines(t *testing.T) {
	input := strings.Join([]string{
		`2024-05-05 23:59:58.846  [223.104.43.11:11686#10.0.1.88:5003] R:6822eee05c46`,
		``,
		`2024-05-05 23:59:59.000  [223.104.43.11:11686#10.0.1.88:5003] R:zznothex`,
		`2024-05-05 00:00:21.525  [zjkg:0#10.0.1.88:1883]  D:{"ver":211}`,
	}, "\n")

	var got []*wire.IotMessage
	stats, err := ParseReader(strings.NewReader(input), func(msg *wire.IotMessage) error {
		got = append(got, msg)
		return nil
	})
	if err != nil {
		t.Fatalf("parse reader: %v", err)
	}
	if stats.Lines != 3 || stats.Messages != 2 || stats.Skipped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
}
