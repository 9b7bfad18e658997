package audit

import (
	"context"

	"github.com/google/uuid"

	id "medledger/pkg/domain"
	"medledger/pkg/requestcontext"
)

// Store persists the append-only trail. Implementations must never update or
// delete; Append is the only write.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAddress(ctx context.Context, address id.Address) ([]Event, error)
}

// Sink receives a copy of every appended event for external observers
// (brokers, indexers). Sink failures must not fail the operation that
// emitted the event; implementations own their retry policy.
type Sink interface {
	Publish(ctx context.Context, event Event)
}

// Publisher captures structured audit events. It is append-only and uses the
// store for persistence so tests can swap sinks easily. Emission happens at
// most once per operation, after validation and authorization have passed.
type Publisher struct {
	store Store
	sinks []Sink
}

func NewPublisher(store Store, sinks ...Sink) *Publisher {
	return &Publisher{store: store, sinks: sinks}
}

// Emit stamps and appends one event, then fans it out to sinks. The store
// append is the authoritative write: a store failure fails the emission (and
// therefore the operation), sink delivery is best effort.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = event.Action.Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	for _, sink := range p.sinks {
		sink.Publish(ctx, event)
	}
	return nil
}

// List returns the trail for one record address in append order.
func (p *Publisher) List(ctx context.Context, address id.Address) ([]Event, error) {
	return p.store.ListByAddress(ctx, address)
}
