package infrastructure

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fitpledge/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

const inboundStream = "fitpledge_inbound"

// MessageHandler defines a function that handles raw message bytes
type MessageHandler func(ctx context.Context, data []byte) error

// MessageConsumer manages NATS subscriptions and routes messages to handlers
type MessageConsumer struct {
	natsClient *NATSClient
	handlers   map[string]MessageHandler
	mu         sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewMessageConsumer creates a message consumer on a connected client
func NewMessageConsumer(natsClient *NATSClient) *MessageConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &MessageConsumer{
		natsClient: natsClient,
		handlers:   make(map[string]MessageHandler),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// RegisterHandler registers a handler for a specific subject
func (mc *MessageConsumer) RegisterHandler(subject string, handler MessageHandler) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.handlers[subject] = handler
	log.WithField("subject", subject).Info("Registered message handler")
}

// Subjects returns the registered subjects in a stable order
func (mc *MessageConsumer) Subjects() []string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	subjects := make([]string, 0, len(mc.handlers))
	for subject := range mc.handlers {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects
}

// Start subscribes to all registered subjects and blocks until ctx is done or Stop is called
func (mc *MessageConsumer) Start(ctx context.Context) error {
	log.Info("Starting message consumer")

	if err := mc.natsClient.EnsureStream(inboundStream, InboundSubjects(), "payment provider and workout feed messages"); err != nil {
		return fmt.Errorf("failed to ensure inbound stream: %w", err)
	}

	subjects := mc.Subjects()
	for _, subject := range subjects {
		if err := mc.subscribe(subject); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
	}

	log.WithField("subjects", subjects).Info("Message consumer started and subscribed to subjects")

	select {
	case <-ctx.Done():
	case <-mc.ctx.Done():
	}

	return mc.natsClient.Close()
}

// Stop gracefully shuts down the consumer
func (mc *MessageConsumer) Stop() {
	log.Info("Stopping message consumer")
	mc.cancel()
}

func (mc *MessageConsumer) subscribe(subject string) error {
	return mc.natsClient.Subscribe(subject, func(data []byte) error {
		return mc.dispatch(subject, data)
	})
}

// dispatch routes one message to the handler registered for subject
func (mc *MessageConsumer) dispatch(subject string, data []byte) error {
	mc.mu.RLock()
	handler, exists := mc.handlers[subject]
	mc.mu.RUnlock()

	if !exists {
		return fmt.Errorf("no handler registered for subject: %s", subject)
	}

	observability.GetMetrics().RecordNATSMessageReceived(subject)

	if err := handler(mc.ctx, data); err != nil {
		log.WithFields(log.Fields{
			"subject": subject,
			"error":   err,
		}).Error("Failed to handle message")
		return err
	}
	return nil
}
