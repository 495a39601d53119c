package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType names a committed workflow transition.
type EventType string

const (
	EventAppointmentCreated   EventType = "APPOINTMENT_CREATED"
	EventAppointmentScheduled EventType = "APPOINTMENT_SCHEDULED"
	EventAppointmentCompleted EventType = "APPOINTMENT_COMPLETED"
	EventAppointmentMissed    EventType = "APPOINTMENT_MISSED"
	EventAppointmentDeferred  EventType = "APPOINTMENT_DEFERRED"
	EventPointsAwarded        EventType = "POINTS_AWARDED"
	EventRequestCreated       EventType = "REQUEST_CREATED"
	EventRequestScheduled     EventType = "REQUEST_SCHEDULED"
	EventRequestAllocated     EventType = "REQUEST_ALLOCATED"
	EventDeliveryStatus       EventType = "DELIVERY_STATUS_CHANGED"
	EventRequestCompleted     EventType = "REQUEST_COMPLETED"
	EventVoucherIssued        EventType = "VOUCHER_ISSUED"
	EventVoucherAccepted      EventType = "VOUCHER_ACCEPTED"
	EventVoucherCompleted     EventType = "VOUCHER_COMPLETED"
	EventVoucherRejected      EventType = "VOUCHER_REJECTED"
)

func (e EventType) String() string { return string(e) }

// RoutingKey is the broker routing key, e.g. "appointment.completed".
func (e EventType) RoutingKey() string {
	return strings.ReplaceAll(strings.ToLower(string(e)), "_", ".")
}

// AppointmentEvent returns the event emitted when an appointment enters status.
func AppointmentEvent(status AppointmentStatus) EventType {
	switch status {
	case AppointmentScheduled:
		return EventAppointmentScheduled
	case AppointmentComplete:
		return EventAppointmentCompleted
	case AppointmentMissed:
		return EventAppointmentMissed
	case AppointmentDeferred:
		return EventAppointmentDeferred
	default:
		return EventAppointmentCreated
	}
}

const (
	AggregateAppointment = "appointment"
	AggregateRequest     = "hospital_request"
	AggregateDelivery    = "delivery"
	AggregateVoucher     = "voucher"
	AggregatePoints      = "points_account"
)

// OutboxStatus represents the publication state of an outbox event.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "PENDING"
	OutboxPublished OutboxStatus = "PUBLISHED"
	OutboxFailed    OutboxStatus = "FAILED"
)

func (s OutboxStatus) String() string { return string(s) }

// OutboxEvent is a workflow event persisted in the same transaction as the
// state change it describes.
type OutboxEvent struct {
	ID            string
	EventType     EventType
	AggregateType string
	AggregateID   string
	Payload       json.RawMessage
	Status        OutboxStatus
	AttemptCount  int
	LastError     *string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

func NewOutboxEvent(eventType EventType, aggregateType, aggregateID string, payload any, now time.Time) (OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return OutboxEvent{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	now = now.UTC()
	return OutboxEvent{
		ID:            uuid.NewString(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       body,
		Status:        OutboxPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}, nil
}
