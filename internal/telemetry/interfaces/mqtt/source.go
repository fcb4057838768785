package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"iot-collector/internal/gatewaylog"
	"iot-collector/internal/observability/metrics"
	"iot-collector/internal/telemetry/application"
	"iot-collector/internal/wire"
)

// Config describes one mqtt source.
type Config struct {
	BrokerURL string   `yaml:"broker_url"`
	ClientID  string   `yaml:"client_id"`
	Topics    []string `yaml:"topics"`
	QoS       byte     `yaml:"qos"`
	// StationSegment is the topic segment index carrying the station id.
	StationSegment int    `yaml:"station_segment"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
}

// Validate checks source invariants.
func (c Config) Validate() error {
	if c.BrokerURL == "" {
		return errors.New("mqtt source: empty broker url")
	}
	if len(c.Topics) == 0 {
		return errors.New("mqtt source: no topics")
	}
	return nil
}

// Source subscribes to gateway topics and feeds inbound publishes into
// the ingest service as wire messages.
type Source struct {
	cfg        Config
	client     mqtt.Client
	ingest     *application.IngestService
	logger     *log.Logger
	serverHost string
	serverPort uint32
}

// NewSource constructs a source; the connection is opened by Start.
func NewSource(cfg Config, ingest *application.IngestService, logger *log.Logger) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ingest == nil {
		return nil, errors.New("mqtt source: nil ingest service")
	}
	if logger == nil {
		logger = log.Default()
	}

	host, port, err := brokerEndpoint(cfg.BrokerURL)
	if err != nil {
		return nil, err
	}

	source := &Source{
		cfg:        cfg,
		ingest:     ingest,
		logger:     logger,
		serverHost: host,
		serverPort: port,
	}

	opts := mqtt.NewClientOptions().AddBroker(cfg.BrokerURL)
	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID)
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		metrics.SetMQTTConnected(true)
		source.subscribe(client)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		metrics.SetMQTTConnected(false)
		logger.Printf("mqtt source: connection lost: %v", err)
	})
	source.client = mqtt.NewClient(opts)
	return source, nil
}

func brokerEndpoint(brokerURL string) (string, uint32, error) {
	parsed, err := url.Parse(brokerURL)
	if err != nil {
		return "", 0, fmt.Errorf("mqtt source: bad broker url %q: %w", brokerURL, err)
	}
	host := parsed.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("mqtt source: no host in broker url %q", brokerURL)
	}
	port := uint64(1883)
	if p := parsed.Port(); p != "" {
		port, err = strconv.ParseUint(p, 10, 32)
		if err != nil {
			return "", 0, fmt.Errorf("mqtt source: bad port in broker url %q: %w", brokerURL, err)
		}
	}
	return host, uint32(port), nil
}

// Start connects to the broker. Subscriptions are installed from the
// connect handler so they survive reconnects.
func (s *Source) Start() error {
	token := s.client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return errors.New("mqtt source: connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt source: connect: %w", err)
	}
	return nil
}

func (s *Source) subscribe(client mqtt.Client) {
	for _, topic := range s.cfg.Topics {
		token := client.Subscribe(topic, s.cfg.QoS, s.handleMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			s.logger.Printf("mqtt source: subscribe %s: %v", topic, err)
			continue
		}
		s.logger.Printf("mqtt source: subscribed to %s", topic)
	}
}

// Stop disconnects from the broker.
func (s *Source) Stop() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	metrics.SetMQTTConnected(false)
}

func (s *Source) handleMessage(_ mqtt.Client, raw mqtt.Message) {
	started := time.Now()
	msg := s.wrap(raw)

	if _, err := s.ingest.Ingest(context.Background(), msg); err != nil {
		s.logger.Printf("mqtt source: ingest %s: %v", raw.Topic(), err)
		metrics.IncMQTTMessage("error")
		metrics.ObserveIngest("mqtt", "error", time.Since(started))
		return
	}
	metrics.IncMQTTMessage("success")
	metrics.ObserveIngest("mqtt", "success", time.Since(started))
}

// wrap builds the envelope for one inbound publish. By the channel
// convention a client port of zero marks mqtt, and the client host
// carries the station id taken from the topic.
func (s *Source) wrap(raw mqtt.Message) *wire.IotMessage {
	return &wire.IotMessage{
		Channel: &wire.ChannelInfo{
			ClientIP:   s.stationID(raw.Topic()),
			ClientPort: 0,
			ServerIP:   s.serverHost,
			ServerPort: s.serverPort,
			Protocol:   wire.String(gatewaylog.ProtocolMQTT),
		},
		MessageType: wire.String(gatewaylog.ProtocolMQTT),
		Message:     raw.Payload(),
		ServerTime:  wire.Int64(time.Now().UnixMilli()),
	}
}

func (s *Source) stationID(topic string) string {
	segments := strings.Split(topic, "/")
	idx := s.cfg.StationSegment
	if idx < 0 || idx >= len(segments) {
		idx = 0
	}
	station := segments[idx]
	if station == "" {
		station = topic
	}
	return station
}
