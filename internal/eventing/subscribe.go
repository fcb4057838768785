package eventing

import (
	"context"
	"time"

	"iot-collector/internal/eventing/eventbus"
	"iot-collector/internal/observability/metrics"
)

// ProcessedStore remembers which consumer has already handled which
// event id. Consumers are identified by a stable name ("collector.log",
// "collector.alerts"); the pair (event id, consumer name) is recorded
// exactly once.
type ProcessedStore interface {
	HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, consumerName string) error
}

// Subscribe registers a named consumer on the bus. With a store the
// handler runs at most once per event id even when the outbox redelivers;
// without one the consumer sees every delivery.
func Subscribe(bus eventbus.EventBus, eventType, consumerName string, handler eventbus.EventHandler, store ProcessedStore) {
	if store == nil {
		bus.Subscribe(eventType, handler)
		return
	}
	bus.Subscribe(eventType, WrapHandler(consumerName, handler, store))
}

// WrapHandler adds the idempotency barrier around a consumer. Events
// published without an envelope (direct bus publishes in tests) carry no
// event id and pass straight through.
func WrapHandler(consumerName string, handler eventbus.EventHandler, store ProcessedStore) eventbus.EventHandler {
	return func(ctx context.Context, event any) error {
		env, ok := EnvelopeFromContext(ctx)
		if !ok || env.EventID == "" {
			return handler(ctx, event)
		}
		done, err := store.HasProcessed(ctx, env.EventID, consumerName)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !env.OccurredAt.IsZero() {
			metrics.ObserveConsumerLag(consumerName, time.Since(env.OccurredAt))
		}
		// Handler first, mark second: a crash between the two means
		// redelivery, never a lost event.
		if err := handler(ctx, event); err != nil {
			return err
		}
		return store.MarkProcessed(ctx, env.EventID, consumerName)
	}
}
