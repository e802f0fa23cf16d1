package infrastructure

import (
	"encoding/json"
	"fmt"
	"time"

	"fitpledge/apperrors"

	"github.com/google/uuid"
)

// SourceService identifies this service in outbound envelopes
const SourceService = "fitpledge"

// EventEnvelope wraps every message exchanged over NATS
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into a fresh envelope
func NewEnvelope(eventType string, payload any) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		SourceService: SourceService,
		Payload:       data,
	}, nil
}

// DecodeEnvelope parses a message and unmarshals its payload into out. Malformed messages are
// Validation errors so the consumer terminates them instead of redelivering.
func DecodeEnvelope(data []byte, out any) (*EventEnvelope, error) {
	var envelope EventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, apperrors.Validation("malformed event envelope: %v", err)
	}
	if len(envelope.Payload) == 0 {
		return nil, apperrors.Validation("event envelope %s has no payload", envelope.EventID)
	}
	if err := json.Unmarshal(envelope.Payload, out); err != nil {
		return nil, apperrors.Validation("malformed %s payload in envelope %s: %v", envelope.EventType, envelope.EventID, err)
	}
	return &envelope, nil
}
