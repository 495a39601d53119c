package provider

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"github.com/kursadbilgin/bloodbank-workflow/internal/queue"
)

// BrokerProvider publishes workflow events to the RabbitMQ events exchange,
// routed by the event type's routing key.
type BrokerProvider struct {
	publisher queue.Publisher
}

func NewBrokerProvider(publisher queue.Publisher) (*BrokerProvider, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	return &BrokerProvider{publisher: publisher}, nil
}

func (p *BrokerProvider) Name() string { return "rabbitmq" }

func (p *BrokerProvider) Send(ctx context.Context, event domain.OutboxEvent) (*ProviderResponse, error) {
	msg := queue.NewEventMessage(event)
	if err := msg.Validate(); err != nil {
		return nil, Permanent("invalid event", err)
	}

	if err := p.publisher.Publish(ctx, event.EventType.RoutingKey(), msg); err != nil {
		return nil, sendFailure("broker publish failed", err)
	}

	return &ProviderResponse{MessageID: msg.EventID}, nil
}
