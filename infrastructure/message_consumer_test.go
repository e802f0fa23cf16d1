package infrastructure

import (
	"context"
	"errors"
	"testing"

	"fitpledge/apperrors"
	"fitpledge/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageConsumer_DispatchRoutesBySubject(t *testing.T) {
	consumer := NewMessageConsumer(NewNATSClient("nats://localhost:4222"))

	var got []string
	consumer.RegisterHandler(SubjectWorkoutIngested, func(ctx context.Context, data []byte) error {
		got = append(got, "workout:"+string(data))
		return nil
	})
	consumer.RegisterHandler(SubjectPaymentConfirmed, func(ctx context.Context, data []byte) error {
		got = append(got, "payment:"+string(data))
		return nil
	})

	require.NoError(t, consumer.dispatch(SubjectPaymentConfirmed, []byte("a")))
	require.NoError(t, consumer.dispatch(SubjectWorkoutIngested, []byte("b")))

	assert.Equal(t, []string{"payment:a", "workout:b"}, got)
	assert.Equal(t, []string{SubjectPaymentConfirmed, SubjectWorkoutIngested}, consumer.Subjects())
}

func TestMessageConsumer_DispatchErrors(t *testing.T) {
	consumer := NewMessageConsumer(NewNATSClient("nats://localhost:4222"))
	handlerErr := errors.New("store unavailable")
	consumer.RegisterHandler(SubjectWithdrawalResult, func(ctx context.Context, data []byte) error {
		return handlerErr
	})

	assert.ErrorIs(t, consumer.dispatch(SubjectWithdrawalResult, nil), handlerErr)
	assert.Error(t, consumer.dispatch("unknown.subject", nil))
}

func TestMessageConsumer_StartRequiresConnection(t *testing.T) {
	consumer := NewMessageConsumer(NewNATSClient("nats://localhost:4222"))
	err := consumer.Start(context.Background())
	assert.Error(t, err)
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "valid",
			data: `{"event_id":"e1","event_type":"payment_confirmed","timestamp":"2026-03-01T10:00:00Z","source_service":"payments","payload":{"event_id":"pay_1","user_id":"alice","amount":5000,"currency":"usd"}}`,
		},
		{name: "not json", data: `nope`, wantErr: true},
		{name: "missing payload", data: `{"event_id":"e1","event_type":"payment_confirmed"}`, wantErr: true},
		{name: "payload of wrong shape", data: `{"event_id":"e1","payload":{"amount":"lots"}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var event models.PaymentEvent
			envelope, err := DecodeEnvelope([]byte(tt.data), &event)
			if tt.wantErr {
				assert.True(t, errors.Is(err, apperrors.ErrValidation), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "payments", envelope.SourceService)
			assert.Equal(t, "pay_1", event.EventID)
			assert.Equal(t, int64(5000), event.Amount)
		})
	}
}
