package infrastructure

import (
	"fmt"

	"fitpledge/events"
)

// Subjects consumed from the payment provider and the workout feed
const (
	SubjectPaymentConfirmed = "payments.confirmed"
	SubjectWithdrawalResult = "payments.withdrawal.result"
	SubjectWorkoutIngested  = "workouts.ingested"
)

// Subjects this service publishes to
const (
	SubjectBalanceChanged      = "ledger.balance_changed"
	SubjectCommitmentSettled   = "commitments.settled"
	SubjectContestStateChanged = "contests.state_changed"
	SubjectWithdrawalRequested = "payments.withdrawal.requested"
)

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeBalanceChange:
		return SubjectBalanceChanged
	case events.EventTypeCommitmentSettled:
		return SubjectCommitmentSettled
	case events.EventTypeContestStateChange:
		return SubjectContestStateChanged
	case events.EventTypeWithdrawalRequested:
		return SubjectWithdrawalRequested
	default:
		return fmt.Sprintf("unknown.%s", event.Type())
	}
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	switch subject {
	case SubjectBalanceChanged:
		return events.EventTypeBalanceChange
	case SubjectCommitmentSettled:
		return events.EventTypeCommitmentSettled
	case SubjectContestStateChanged:
		return events.EventTypeContestStateChange
	case SubjectWithdrawalRequested:
		return events.EventTypeWithdrawalRequested
	default:
		return events.EventType(subject)
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		SubjectBalanceChanged,
		SubjectCommitmentSettled,
		SubjectContestStateChanged,
		SubjectWithdrawalRequested,
	}
}

// InboundSubjects returns all subjects this service consumes
func InboundSubjects() []string {
	return []string{
		SubjectPaymentConfirmed,
		SubjectWithdrawalResult,
		SubjectWorkoutIngested,
	}
}
