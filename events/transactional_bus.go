package events

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Publisher forwards committed events to an external transport
type Publisher interface {
	Publish(event Event) error
}

// TransactionalBus holds events raised inside a unit of work until the transaction commits.
// Flush hands them to the in-process bus and, when configured, to a remote publisher.
type TransactionalBus struct {
	real    *Bus
	remote  Publisher
	pending []Event
}

// NewTransactionalBus creates a transactional bus. remote may be nil.
func NewTransactionalBus(real *Bus, remote Publisher) *TransactionalBus {
	return &TransactionalBus{real: real, remote: remote}
}

// Publish stashes the event until Flush
func (b *TransactionalBus) Publish(e Event) error {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
	return nil
}

// Pending returns the number of events waiting for Flush
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// Flush is called after a successful commit. Emission uses a background context because
// the transaction's context may already be done.
func (b *TransactionalBus) Flush() {
	if len(b.pending) == 0 {
		return
	}

	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing pending events from transactional bus")

	eventCtx := context.Background()
	for _, ev := range b.pending {
		if b.real != nil {
			b.real.Emit(eventCtx, ev)
		}
		if b.remote != nil {
			if err := b.remote.Publish(ev); err != nil {
				log.WithFields(log.Fields{
					"eventType": ev.Type(),
				}).WithError(err).Error("Failed to publish event to remote publisher")
			}
		}
	}
	b.pending = nil
}

// Discard is called after a rollback
func (b *TransactionalBus) Discard() {
	if len(b.pending) > 0 {
		log.WithField("discardedEventCount", len(b.pending)).Debug("Discarding pending events from transactional bus")
	}
	b.pending = nil
}
