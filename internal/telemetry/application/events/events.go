package events

import "time"

// MessageReceived is raised after an envelope is stored.
type MessageReceived struct {
	MessageID   string    `json:"message_id"`
	StationID   string    `json:"station_id"`
	Protocol    string    `json:"protocol,omitempty"`
	MessageType string    `json:"message_type,omitempty"`
	PayloadSize int       `json:"payload_size"`
	ServerTime  int64     `json:"server_time,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// PointsDecoded is raised after a message payload is decoded into data points.
type PointsDecoded struct {
	MessageID  string    `json:"message_id"`
	StationID  string    `json:"station_id"`
	Points     int       `json:"points"`
	Signals    int       `json:"signals"`
	Telemeters int       `json:"telemeters"`
	OccurredAt time.Time `json:"occurred_at"`
}
