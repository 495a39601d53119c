package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

var errNotConfirmed = errors.New("broker did not confirm publish")

// RabbitMQPublisher publishes workflow events to the events exchange and waits
// for the broker to confirm each one, so the outbox row is only marked sent
// once RabbitMQ owns the message.
type RabbitMQPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, msg EventMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if strings.TrimSpace(routingKey) == "" {
		return fmt.Errorf("routing key is required")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid event message: %w", err)
	}

	publishing, err := newPublishing(msg)
	if err != nil {
		return err
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, EventsExchange, routingKey, false, false, publishing)
	if err != nil {
		return fmt.Errorf("failed to publish %s with key %q: %w", msg.EventType, routingKey, err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("waiting for confirm of event %s: %w", msg.EventID, err)
	}
	if !acked {
		return fmt.Errorf("%w: event %s", errNotConfirmed, msg.EventID)
	}
	return nil
}

func newPublishing(msg EventMessage) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event message: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    msg.OccurredAt,
		MessageId:    msg.EventID,
		Type:         msg.EventType.String(),
		Priority:     PriorityValue(msg.EventType),
		Headers: amqp.Table{
			"aggregateType": msg.AggregateType,
			"aggregateId":   msg.AggregateID,
		},
		Body: body,
	}, nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
