package mqtt

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := `
sources:
  - broker_url: tcp://mqtt-cn-4xl3fdof403.mqtt.aliyuncs.com:1883
    client_id: collector-1
    topics:
      - iot/+/telemetry
    qos: 1
    station_segment: 1
  - broker_url: tcp://10.0.1.88:1883
    client_id: collector-2
    topics:
      - gateway/zjkg/up
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write sources: %v", err)
	}

	sources, err := LoadSources(path)
	if err != nil {
		t.Fatalf("load sources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].QoS != 1 {
		t.Fatalf("expected qos 1, got %d", sources[0].QoS)
	}
	if sources[0].StationSegment != 1 {
		t.Fatalf("expected station segment 1, got %d", sources[0].StationSegment)
	}
	if sources[1].ClientID != "collector-2" {
		t.Fatalf("expected collector-2, got %q", sources[1].ClientID)
	}
}

func TestLoadSources_InvalidEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := `
sources:
  - broker_url: tcp://10.0.1.88:1883
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write sources: %v", err)
	}

	if _, err := LoadSources(path); err == nil {
		t.Fatalf("expected validation error for source without topics")
	}
}
