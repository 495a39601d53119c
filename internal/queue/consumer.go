package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var errDeliveriesClosed = errors.New("delivery channel closed")

// settlement is what a consumed delivery ends with.
type settlement int

const (
	settleAck settlement = iota
	settleRequeue
	settleDeadLetter
)

// RabbitMQConsumer reads event messages from a work queue with manual acks.
// It reconnects with backoff until its context is cancelled.
type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	switch {
	case c == nil || c.client == nil:
		return fmt.Errorf("consumer is not initialized")
	case queue == "":
		return fmt.Errorf("queue name is required")
	case handler == nil:
		return fmt.Errorf("message handler is required")
	}

	wait := reconnectBackoff
	for ctx.Err() == nil {
		err := c.consumeOnce(ctx, queue, handler)
		if ctx.Err() != nil {
			break
		}
		if err == nil {
			wait = reconnectBackoff
			continue
		}

		c.logger.Warn("consumer interrupted, reconnecting",
			zap.String("queue", queue),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
		wait = min(wait*2, maxBackoff)
	}
	return nil
}

func (c *RabbitMQConsumer) consumeOnce(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos on %s: %w", queue, err)
	}

	// autoAck=false, exclusive=false, noLocal=false, noWait=false
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			if err := c.settle(d, c.dispatch(ctx, queue, d, handler)); err != nil {
				return err
			}
		}
	}
}

// dispatch decodes d and runs handler on it. Malformed messages go straight
// to the dead-letter queue; a failing handler gets one redelivery.
func (c *RabbitMQConsumer) dispatch(ctx context.Context, queue string, d amqp.Delivery, handler MessageHandler) settlement {
	msg, err := decodeEventMessage(d.Body)
	if err != nil {
		c.logger.Warn("dead-lettering malformed event message",
			zap.String("queue", queue),
			zap.String("routingKey", d.RoutingKey),
			zap.Error(err),
		)
		return settleDeadLetter
	}

	if err := handler(ctx, msg); err != nil {
		outcome := handlerFailure(d.Redelivered)
		c.logger.Warn("event handler failed",
			zap.String("queue", queue),
			zap.String("eventId", msg.EventID),
			zap.String("eventType", msg.EventType.String()),
			zap.Bool("requeue", outcome == settleRequeue),
			zap.Error(err),
		)
		return outcome
	}
	return settleAck
}

func (c *RabbitMQConsumer) settle(d amqp.Delivery, outcome settlement) error {
	var err error
	switch outcome {
	case settleAck:
		err = d.Ack(false)
	case settleRequeue:
		err = d.Nack(false, true)
	default:
		err = d.Nack(false, false)
	}
	if err != nil {
		return fmt.Errorf("failed to settle delivery %d: %w", d.DeliveryTag, err)
	}
	return nil
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func decodeEventMessage(body []byte) (EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return EventMessage{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return EventMessage{}, err
	}
	return msg, nil
}

func handlerFailure(redelivered bool) settlement {
	if redelivered {
		return settleDeadLetter
	}
	return settleRequeue
}
