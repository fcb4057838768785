// Package gatewaylog parses collector gateway log lines into wire
// messages. Each line carries a server receive time, the connection
// endpoints and a payload:
//
//	2024-05-05 00:00:21.525  [223.104.43.11:11686#10.0.1.88:5003] R:6822eee05c46...
//	2024-05-05 00:00:21.525  [zjkg:0#10.0.1.88:1883]  D:{"ver":211,...}
//
// A client port of zero marks an mqtt connection whose payload is raw
// JSON; any other port marks an iec104 connection whose payload is a
// hex-encoded frame.
package gatewaylog

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"iot-collector/internal/wire"
)

const (
	// ProtocolMQTT is the inferred protocol for client port 0.
	ProtocolMQTT = "mqtt"
	// ProtocolIEC104 is the inferred protocol for any other client port.
	ProtocolIEC104 = "iec104"

	timeLayout = "2006-01-02 15:04:05.000"
)

// Gateway logs are written in China Standard Time without a zone marker.
var gatewayZone = time.FixedZone("UTC+8", 8*60*60)

// ErrUndecodablePayload marks a line whose hex payload does not decode.
// Such lines are skipped during bulk parsing rather than aborting it.
var ErrUndecodablePayload = errors.New("gatewaylog: undecodable payload")

// Endpoint is one side of a logged connection. Host may be a dotted IP,
// a domain name or a bare mqtt client id.
type Endpoint struct {
	Host string
	Port uint32
}

// ParseServerTime parses a gateway log timestamp into milliseconds since epoch.
func ParseServerTime(value string) (int64, error) {
	ts, err := time.ParseInLocation(timeLayout, value, gatewayZone)
	if err != nil {
		return 0, fmt.Errorf("gatewaylog: bad timestamp %q: %w", value, err)
	}
	return ts.UnixMilli(), nil
}

// ParseEndpoints parses the "client:port#server:port" block.
func ParseEndpoints(value string) (client, server Endpoint, err error) {
	parts := strings.SplitN(value, "#", 2)
	if len(parts) != 2 {
		return Endpoint{}, Endpoint{}, fmt.Errorf("gatewaylog: bad endpoint block %q", value)
	}
	if client, err = parseEndpoint(parts[0]); err != nil {
		return Endpoint{}, Endpoint{}, err
	}
	if server, err = parseEndpoint(parts[1]); err != nil {
		return Endpoint{}, Endpoint{}, err
	}
	return client, server, nil
}

func parseEndpoint(value string) (Endpoint, error) {
	idx := strings.LastIndexByte(value, ':')
	if idx <= 0 || idx == len(value)-1 {
		return Endpoint{}, fmt.Errorf("gatewaylog: bad endpoint %q", value)
	}
	port, err := strconv.ParseUint(value[idx+1:], 10, 32)
	if err != nil {
		return Endpoint{}, fmt.Errorf("gatewaylog: bad port in %q: %w", value, err)
	}
	return Endpoint{Host: value[:idx], Port: uint32(port)}, nil
}

// ParseLine parses one log line into a wire message. The protocol and
// message type are inferred from the client port. Lines whose hex
// payload does not decode fail with ErrUndecodablePayload.
func ParseLine(line string) (*wire.IotMessage, error) {
	open := strings.IndexByte(line, '[')
	end := strings.IndexByte(line, ']')
	if open < 0 || end < open {
		return nil, fmt.Errorf("gatewaylog: no endpoint block in line")
	}

	serverTime, err := ParseServerTime(strings.TrimSpace(line[:open]))
	if err != nil {
		return nil, err
	}
	client, server, err := ParseEndpoints(line[open+1 : end])
	if err != nil {
		return nil, err
	}

	rest := strings.TrimSpace(line[end+1:])
	var payloadText string
	switch {
	case strings.HasPrefix(rest, "D:"):
		payloadText = rest[2:]
	case strings.HasPrefix(rest, "R:"):
		payloadText = rest[2:]
	default:
		return nil, fmt.Errorf("gatewaylog: no payload marker in line")
	}

	protocol := ProtocolIEC104
	if client.Port == 0 {
		protocol = ProtocolMQTT
	}

	payload := []byte(payloadText)
	if protocol == ProtocolIEC104 {
		decoded, err := hex.DecodeString(payloadText)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUndecodablePayload, err)
		}
		payload = decoded
	}

	return &wire.IotMessage{
		Channel: &wire.ChannelInfo{
			ClientIP:   client.Host,
			ClientPort: client.Port,
			ServerIP:   server.Host,
			ServerPort: server.Port,
			Protocol:   wire.String(protocol),
		},
		MessageType: wire.String(protocol),
		Message:     payload,
		ServerTime:  wire.Int64(serverTime),
	}, nil
}

// Stats summarizes a bulk parse.
type Stats struct {
	Lines    int
	Messages int
	Skipped  int
}

// ParseReader parses a log stream line by line, invoking fn per message.
// Blank and undecodable lines are counted as skipped. A handler error
// aborts the parse.
func ParseReader(r io.Reader, fn func(*wire.IotMessage) error) (Stats, error) {
	var stats Stats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stats.Lines++

		msg, err := ParseLine(line)
		if err != nil {
			stats.Skipped++
			continue
		}
		if err := fn(msg); err != nil {
			return stats, err
		}
		stats.Messages++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("gatewaylog: read: %w", err)
	}
	return stats, nil
}
