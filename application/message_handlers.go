package application

import (
	"context"
	"fmt"

	"fitpledge/infrastructure"
	"fitpledge/models"
	"fitpledge/service"

	log "github.com/sirupsen/logrus"
)

// MessageHandlers turns inbound NATS messages into service calls. Duplicates are acknowledged
// like any other success.
type MessageHandlers struct {
	payments service.PaymentService
	workouts service.WorkoutService
}

// NewMessageHandlers creates the inbound message handlers
func NewMessageHandlers(payments service.PaymentService, workouts service.WorkoutService) *MessageHandlers {
	return &MessageHandlers{
		payments: payments,
		workouts: workouts,
	}
}

// Register wires every handler into the consumer
func (h *MessageHandlers) Register(consumer *infrastructure.MessageConsumer) {
	consumer.RegisterHandler(infrastructure.SubjectPaymentConfirmed, h.HandlePaymentConfirmed)
	consumer.RegisterHandler(infrastructure.SubjectWithdrawalResult, h.HandleWithdrawalResult)
	consumer.RegisterHandler(infrastructure.SubjectWorkoutIngested, h.HandleWorkoutIngested)
}

// HandlePaymentConfirmed credits a confirmed deposit
func (h *MessageHandlers) HandlePaymentConfirmed(ctx context.Context, data []byte) error {
	var event models.PaymentEvent
	envelope, err := infrastructure.DecodeEnvelope(data, &event)
	if err != nil {
		return err
	}

	result, err := h.payments.HandlePaymentConfirmed(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to handle payment %s: %w", event.EventID, err)
	}

	log.WithFields(log.Fields{
		"envelopeID": envelope.EventID,
		"eventID":    event.EventID,
		"duplicate":  result.Duplicate,
	}).Debug("Handled payment confirmation message")
	return nil
}

// HandleWithdrawalResult completes or fails a pending withdrawal
func (h *MessageHandlers) HandleWithdrawalResult(ctx context.Context, data []byte) error {
	var result models.WithdrawalResult
	envelope, err := infrastructure.DecodeEnvelope(data, &result)
	if err != nil {
		return err
	}

	duplicate, err := h.payments.HandleWithdrawalResult(ctx, result)
	if err != nil {
		return fmt.Errorf("failed to handle withdrawal result %s: %w", result.WithdrawalID, err)
	}

	log.WithFields(log.Fields{
		"envelopeID":   envelope.EventID,
		"withdrawalID": result.WithdrawalID,
		"duplicate":    duplicate,
	}).Debug("Handled withdrawal result message")
	return nil
}

// HandleWorkoutIngested applies a workout from the feed. A partial failure is returned so the
// message is redelivered; applications that already succeeded are skipped next time.
func (h *MessageHandlers) HandleWorkoutIngested(ctx context.Context, data []byte) error {
	var workout models.Workout
	envelope, err := infrastructure.DecodeEnvelope(data, &workout)
	if err != nil {
		return err
	}

	result, err := h.workouts.IngestWorkout(ctx, workout)
	if err != nil {
		return fmt.Errorf("failed to ingest workout %s: %w", workout.ID, err)
	}

	log.WithFields(log.Fields{
		"envelopeID":  envelope.EventID,
		"workoutID":   workout.ID,
		"duplicate":   result.Duplicate,
		"commitments": len(result.Commitments),
		"contests":    len(result.Contests),
	}).Debug("Handled workout message")
	return nil
}
