package eventing

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"iot-collector/internal/eventing/eventbus"
)

// Registry maps envelope event types back to the concrete collector
// event structs they were marshalled from. Events are registered once at
// startup (MessageReceived, PointsDecoded, ...) under the same name
// eventbus.EventType derives, so an envelope written by the publisher
// always resolves to the type consumers subscribed to.
type Registry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]reflect.Type)}
}

// Register adds an event type, given as a sample value or pointer.
func (r *Registry) Register(sample any) {
	if r == nil || sample == nil {
		return
	}
	name := eventbus.EventType(sample)
	if name == "" {
		return
	}
	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.mu.Lock()
	r.types[name] = t
	r.mu.Unlock()
}

// DecodePayload rebuilds the concrete event carried by an envelope. The
// returned value is the registered struct type, not a pointer, matching
// what consumers receive from a direct publish.
func (r *Registry) DecodePayload(env Envelope) (any, error) {
	if r == nil {
		return nil, errors.New("eventing: nil registry")
	}
	r.mu.RLock()
	t, known := r.types[env.EventType]
	r.mu.RUnlock()
	if !known {
		return nil, fmt.Errorf("eventing: no event registered for type %q", env.EventType)
	}
	target := reflect.New(t)
	if err := json.Unmarshal(env.Payload, target.Interface()); err != nil {
		return nil, fmt.Errorf("eventing: decode %s: %w", env.EventType, err)
	}
	return target.Elem().Interface(), nil
}
