package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
)

// EventMessage is the broker payload for a workflow event. Consumers dedupe
// on EventID since delivery is at-least-once.
type EventMessage struct {
	EventID       string           `json:"eventId"`
	EventType     domain.EventType `json:"eventType"`
	AggregateType string           `json:"aggregateType"`
	AggregateID   string           `json:"aggregateId"`
	OccurredAt    time.Time        `json:"occurredAt"`
	Payload       json.RawMessage  `json:"payload"`
}

func NewEventMessage(event domain.OutboxEvent) EventMessage {
	return EventMessage{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		OccurredAt:    event.CreatedAt.UTC(),
		Payload:       event.Payload,
	}
}

// OutboxEvent rebuilds the event a message was published from.
func (m EventMessage) OutboxEvent() domain.OutboxEvent {
	return domain.OutboxEvent{
		ID:            m.EventID,
		EventType:     m.EventType,
		AggregateType: m.AggregateType,
		AggregateID:   m.AggregateID,
		Payload:       m.Payload,
		CreatedAt:     m.OccurredAt,
	}
}

func (m EventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return fmt.Errorf("eventId is required")
	}
	if strings.TrimSpace(string(m.EventType)) == "" {
		return fmt.Errorf("eventType is required")
	}
	if strings.TrimSpace(m.AggregateID) == "" {
		return fmt.Errorf("aggregateId is required")
	}
	if len(m.Payload) == 0 || !json.Valid(m.Payload) {
		return fmt.Errorf("payload must be a JSON document")
	}
	return nil
}
