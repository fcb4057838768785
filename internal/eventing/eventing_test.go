package eventing_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"iot-collector/internal/eventing"
	"iot-collector/internal/eventing/eventbus"
	"iot-collector/internal/telemetry/application/events"
)

type memOutbox struct {
	records []eventing.OutboxRecord
	sent    map[string]bool
	failed  map[string]int
	nextID  int
}

func newMemOutbox() *memOutbox {
	return &memOutbox{sent: make(map[string]bool), failed: make(map[string]int)}
}

func (m *memOutbox) Insert(ctx context.Context, env eventing.Envelope) (string, error) {
	m.nextID++
	id := fmt.Sprintf("outbox-%d", m.nextID)
	m.records = append(m.records, eventing.OutboxRecord{ID: id, Envelope: env})
	return id, nil
}

func (m *memOutbox) ListPending(ctx context.Context, limit int) ([]eventing.OutboxRecord, error) {
	var pending []eventing.OutboxRecord
	for _, record := range m.records {
		if m.sent[record.ID] {
			continue
		}
		pending = append(pending, record)
		if len(pending) >= limit {
			break
		}
	}
	return pending, nil
}

func (m *memOutbox) MarkSent(ctx context.Context, id string) error {
	m.sent[id] = true
	return nil
}

func (m *memOutbox) MarkFailed(ctx context.Context, id string) error {
	m.failed[id]++
	return nil
}

type memProcessed struct {
	seen map[string]bool
}

func (m *memProcessed) HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error) {
	return m.seen[eventID+"/"+consumerName], nil
}

func (m *memProcessed) MarkProcessed(ctx context.Context, eventID, consumerName string) error {
	m.seen[eventID+"/"+consumerName] = true
	return nil
}

type memDLQ struct {
	failures []eventing.Envelope
}

func (m *memDLQ) RecordFailure(ctx context.Context, env eventing.Envelope, err error) error {
	m.failures = append(m.failures, env)
	return nil
}

func TestPublisher_DeliversThroughOutbox(t *testing.T) {
	bus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(events.MessageReceived{})

	outbox := newMemOutbox()
	dispatcher := eventing.NewDispatcher(bus, outbox, registry, nil)
	publisher := eventing.NewPublisher(outbox, dispatcher, bus)

	var got events.MessageReceived
	bus.Subscribe(eventbus.EventTypeOf[events.MessageReceived](), func(ctx context.Context, event any) error {
		received, ok := event.(events.MessageReceived)
		if !ok {
			t.Fatalf("unexpected event type %T", event)
		}
		got = received
		return nil
	})

	payload := events.MessageReceived{
		MessageID:   "msg-1",
		StationID:   "zjkg",
		Protocol:    "mqtt",
		MessageType: "mqtt",
		PayloadSize: 128,
		OccurredAt:  time.Date(2024, time.May, 5, 0, 0, 21, 0, time.UTC),
	}
	if err := publisher.Publish(context.Background(), payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if got.MessageID != "msg-1" {
		t.Fatalf("expected delivered event, got %+v", got)
	}
	if len(outbox.records) != 1 {
		t.Fatalf("expected 1 outbox record, got %d", len(outbox.records))
	}
	if !outbox.sent[outbox.records[0].ID] {
		t.Fatalf("expected record marked sent")
	}
	if outbox.records[0].Envelope.StationID != "zjkg" {
		t.Fatalf("expected station id in envelope, got %q", outbox.records[0].Envelope.StationID)
	}
}

func TestSubscribe_IdempotentConsumer(t *testing.T) {
	bus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(events.PointsDecoded{})

	outbox := newMemOutbox()
	dispatcher := eventing.NewDispatcher(bus, outbox, registry, nil)
	publisher := eventing.NewPublisher(outbox, dispatcher, bus)
	processed := &memProcessed{seen: make(map[string]bool)}

	count := 0
	eventing.Subscribe(bus, eventbus.EventTypeOf[events.PointsDecoded](), "consumer-a", func(ctx context.Context, event any) error {
		count++
		return nil
	}, processed)

	ctx := eventing.WithEventID(context.Background(), "evt-dup-001")
	payload := events.PointsDecoded{MessageID: "msg-1", StationID: "zjkg", Points: 3}

	if err := publisher.Publish(ctx, payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := publisher.Publish(ctx, payload); err != nil {
		t.Fatalf("publish duplicate: %v", err)
	}
	if err := dispatcher.Dispatch(ctx, 10); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if count != 1 {
		t.Fatalf("expected handler once, got %d", count)
	}
}

func TestDispatch_DeadLettersFailedEvents(t *testing.T) {
	bus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(events.PointsDecoded{})

	outbox := newMemOutbox()
	dlq := &memDLQ{}
	dispatcher := eventing.NewDispatcher(bus, outbox, registry, dlq)
	publisher := eventing.NewPublisher(outbox, dispatcher, bus)

	bus.Subscribe(eventbus.EventTypeOf[events.PointsDecoded](), func(ctx context.Context, event any) error {
		return errors.New("boom")
	})

	if err := publisher.Publish(context.Background(), events.PointsDecoded{MessageID: "msg-2"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(dlq.failures) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(dlq.failures))
	}
	if len(outbox.failed) != 1 {
		t.Fatalf("expected failed mark, got %d", len(outbox.failed))
	}
}

func TestDispatch_UnknownEventType(t *testing.T) {
	bus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()

	outbox := newMemOutbox()
	dlq := &memDLQ{}
	dispatcher := eventing.NewDispatcher(bus, outbox, registry, dlq)
	publisher := eventing.NewPublisher(outbox, dispatcher, bus)

	if err := publisher.Publish(context.Background(), events.MessageReceived{MessageID: "msg-3"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(dlq.failures) != 1 {
		t.Fatalf("expected unresolvable event in dlq, got %d", len(dlq.failures))
	}
}

func TestRegistry_DecodeNamesUnknownType(t *testing.T) {
	registry := eventing.NewRegistry()
	registry.Register(events.MessageReceived{})

	_, err := registry.DecodePayload(eventing.Envelope{EventType: "events.Retired", Payload: []byte(`{}`)})
	if err == nil || !strings.Contains(err.Error(), "events.Retired") {
		t.Fatalf("expected error naming the event type, got %v", err)
	}
}

func TestBus_AllSubscribersRunDespiteFailure(t *testing.T) {
	bus := eventbus.NewInMemoryBus()
	eventType := eventbus.EventTypeOf[events.PointsDecoded]()

	delivered := 0
	bus.Subscribe(eventType, func(ctx context.Context, event any) error {
		return errors.New("boom")
	})
	bus.Subscribe(eventType, func(ctx context.Context, event any) error {
		delivered++
		return nil
	})

	err := bus.Publish(context.Background(), events.PointsDecoded{MessageID: "msg-4"})
	if err == nil {
		t.Fatalf("expected the failing handler's error to surface")
	}
	if delivered != 1 {
		t.Fatalf("expected later subscriber to still run, got %d deliveries", delivered)
	}
}

func TestBuildEnvelope_Defaults(t *testing.T) {
	env, err := eventing.BuildEnvelope(events.MessageReceived{StationID: "zjkg"}, eventing.Meta{})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if env.EventID == "" {
		t.Fatalf("expected generated event id")
	}
	if env.CorrelationID != env.EventID {
		t.Fatalf("expected correlation id to default to event id")
	}
	if env.StationID != "zjkg" {
		t.Fatalf("expected station id extracted from payload, got %q", env.StationID)
	}
	if env.SchemaVersion != 1 {
		t.Fatalf("expected schema version 1, got %d", env.SchemaVersion)
	}
	if env.EventType != eventbus.EventTypeOf[events.MessageReceived]() {
		t.Fatalf("unexpected event type %q", env.EventType)
	}
}
