// Package eventbus is the in-process delivery primitive under the
// collector's outbox: the dispatcher publishes decoded events into it
// and consumers subscribe by event type name.
package eventbus

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"sync"
)

// EventHandler consumes one published event.
type EventHandler func(ctx context.Context, event any) error

// EventBus delivers events to subscribed handlers.
type EventBus interface {
	Publish(ctx context.Context, event any) error
	Subscribe(eventType string, handler EventHandler)
}

// ErrNilEvent is returned when a nil event is published.
var ErrNilEvent = errors.New("eventbus: nil event")

// ErrInvalidEventType is returned when the event type cannot be determined.
var ErrInvalidEventType = errors.New("eventbus: invalid event type")

// InMemoryBus fans each event out to every subscriber of its type,
// synchronously and in subscription order. Delivery is all-subscribers:
// one failing handler does not stop the others, but its error surfaces
// to the publisher so the outbox can retry.
type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string][]EventHandler
}

// NewInMemoryBus constructs an empty bus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		subscribers: make(map[string][]EventHandler),
	}
}

// Publish delivers the event to every subscriber of its type and returns
// the handler errors joined, or nil when all succeeded.
func (b *InMemoryBus) Publish(ctx context.Context, event any) error {
	if event == nil {
		return ErrNilEvent
	}
	eventType := EventType(event)
	if eventType == "" {
		return ErrInvalidEventType
	}

	b.mu.RLock()
	handlers := slices.Clone(b.subscribers[eventType])
	b.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler for an event type name.
func (b *InMemoryBus) Subscribe(eventType string, handler EventHandler) {
	if eventType == "" || handler == nil {
		return
	}
	b.mu.Lock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
	b.mu.Unlock()
}

// EventType names an event instance, pointer or value, by its
// fully-qualified struct type. This is the subscription key and the
// envelope's event_type field.
func EventType(event any) string {
	if event == nil {
		return ""
	}
	t := reflect.TypeOf(event)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}

// EventTypeOf is the compile-time form of EventType for subscriptions.
func EventTypeOf[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
