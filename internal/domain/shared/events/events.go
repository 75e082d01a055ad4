// Package events holds what aggregates record for the outbox.
package events

import "time"

type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// Versioned events carry the aggregate revision they produced. Consumers use
// it to drop out-of-order deliveries.
type Versioned interface {
	Version() int64
}

// EventRecorder is embedded in aggregates. It is not safe for concurrent use,
// like the aggregate itself.
type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(event DomainEvent) {
	if event != nil {
		r.pending = append(r.pending, event)
	}
}

// Drain hands over the recorded events in order and forgets them.
func (r *EventRecorder) Drain() []DomainEvent {
	out := r.pending
	r.pending = nil
	return out
}
