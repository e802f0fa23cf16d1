package infrastructure

import (
	"fitpledge/events"
)

// NoopEventPublisher is an event publisher that does nothing. Used when NATS is disabled, so
// committed events only reach the in-process bus.
type NoopEventPublisher struct{}

// NewNoopEventPublisher creates a new no-op event publisher
func NewNoopEventPublisher() *NoopEventPublisher {
	return &NoopEventPublisher{}
}

// Publish does nothing with the event
func (n *NoopEventPublisher) Publish(event events.Event) error {
	return nil
}
