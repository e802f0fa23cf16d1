package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"fitpledge/events"
	"fitpledge/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedMessage struct {
	subject string
	data    []byte
}

// recordingPublisher is a MessagePublisher that keeps every message
type recordingPublisher struct {
	messages     []publishedMessage
	publishError error
}

func (r *recordingPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if r.publishError != nil {
		return r.publishError
	}
	r.messages = append(r.messages, publishedMessage{subject: subject, data: data})
	return nil
}

func TestNATSEventPublisher_WrapsEventInEnvelope(t *testing.T) {
	recorder := &recordingPublisher{}
	publisher := NewNATSEventPublisher(recorder, NewEventSubjectMapper())

	event := events.BalanceChangeEvent{
		UserID:          "alice",
		Balances:        models.Balances{UserID: "alice", Total: 5000, Free: 4000, Invested: 1000, Version: 3},
		TransactionType: models.TransactionTypeContestInvest,
		ChangeAmount:    1000,
		DeltaFree:       -1000,
		DeltaInvested:   1000,
	}

	require.NoError(t, publisher.Publish(event))
	require.Len(t, recorder.messages, 1)
	assert.Equal(t, SubjectBalanceChanged, recorder.messages[0].subject)

	var decoded events.BalanceChangeEvent
	envelope, err := DecodeEnvelope(recorder.messages[0].data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, string(events.EventTypeBalanceChange), envelope.EventType)
	assert.Equal(t, SourceService, envelope.SourceService)
	assert.NotEmpty(t, envelope.EventID)
	assert.False(t, envelope.Timestamp.IsZero())
	assert.Equal(t, event, decoded)
}

func TestNATSEventPublisher_EnvelopeFieldNames(t *testing.T) {
	recorder := &recordingPublisher{}
	publisher := NewNATSEventPublisher(recorder, NewEventSubjectMapper())

	require.NoError(t, publisher.Publish(events.WithdrawalRequestedEvent{
		WithdrawalID: uuid.New(),
		UserID:       "bob",
		Amount:       2500,
		Currency:     "usd",
	}))
	require.Len(t, recorder.messages, 1)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(recorder.messages[0].data, &raw))
	for _, key := range []string{"event_id", "event_type", "timestamp", "source_service", "payload"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, SubjectWithdrawalRequested, recorder.messages[0].subject)
}

func TestNATSEventPublisher_Errors(t *testing.T) {
	tests := []struct {
		name       string
		publishErr error
		wantErr    bool
	}{
		{"transport failure", errors.New("connection closed"), true},
		{"no stream bound", errors.New("nats: no response from stream"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := NewNATSEventPublisher(&recordingPublisher{publishError: tt.publishErr}, NewEventSubjectMapper())
			err := publisher.Publish(events.ContestStateChangeEvent{ContestID: uuid.New(), NewState: models.ContestStatusActive})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNoopEventPublisher(t *testing.T) {
	assert.NoError(t, NewNoopEventPublisher().Publish(events.CommitmentSettledEvent{}))
}
