package eventing

import (
	"context"
	"fmt"
)

// defaultDispatchBatch bounds how many pending collector events one
// Dispatch call drains from the outbox.
const defaultDispatchBatch = 50

// EventBus is the publish side of the in-process bus the dispatcher
// delivers into.
type EventBus interface {
	Publish(ctx context.Context, event any) error
}

// OutboxStore is the pending-event queue the dispatcher drains. Records
// stay pending until delivery succeeds, so a crashed dispatch is retried
// on the next call.
type OutboxStore interface {
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// DLQStore receives envelopes whose payload could not be decoded or
// whose consumers failed, together with the failure cause.
type DLQStore interface {
	RecordFailure(ctx context.Context, env Envelope, err error) error
}

// OutboxRecord is one undelivered collector event: the outbox row id
// plus the station-partitioned envelope written at publish time.
type OutboxRecord struct {
	ID       string
	Envelope Envelope
}

// Dispatcher drains collector events (message receipts, decode results)
// from the outbox and delivers them to in-process consumers. Failed
// deliveries are marked on the outbox row and copied to the dead-letter
// store so ingest never blocks on a broken consumer.
type Dispatcher struct {
	bus      EventBus
	outbox   OutboxStore
	registry *Registry
	dlq      DLQStore
}

// NewDispatcher constructs a dispatcher over the given outbox and bus.
func NewDispatcher(bus EventBus, outbox OutboxStore, registry *Registry, dlq DLQStore) *Dispatcher {
	return &Dispatcher{bus: bus, outbox: outbox, registry: registry, dlq: dlq}
}

// Dispatch drains up to limit pending events and delivers each one.
// Delivery failures are recorded per record and do not stop the drain.
func (d *Dispatcher) Dispatch(ctx context.Context, limit int) error {
	if d == nil || d.outbox == nil || d.bus == nil || d.registry == nil {
		return nil
	}
	if limit <= 0 {
		limit = defaultDispatchBatch
	}
	records, err := d.outbox.ListPending(ctx, limit)
	if err != nil {
		return fmt.Errorf("eventing: list pending: %w", err)
	}

	for _, record := range records {
		if err := d.deliver(ctx, record); err != nil {
			d.deadLetter(ctx, record, err)
			continue
		}
		_ = d.outbox.MarkSent(ctx, record.ID)
	}
	return nil
}

// deliver rebuilds the concrete event from the envelope and publishes it
// with the envelope attached to the context, so consumers can read the
// event id and station id for idempotency and scoping.
func (d *Dispatcher) deliver(ctx context.Context, record OutboxRecord) error {
	payload, err := d.registry.DecodePayload(record.Envelope)
	if err != nil {
		return err
	}
	return d.bus.Publish(WithEnvelope(ctx, record.Envelope), payload)
}

func (d *Dispatcher) deadLetter(ctx context.Context, record OutboxRecord, cause error) {
	_ = d.outbox.MarkFailed(ctx, record.ID)
	if d.dlq != nil {
		_ = d.dlq.RecordFailure(ctx, record.Envelope, cause)
	}
}
