package queue

import (
	"context"
	"strings"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
)

// Publisher publishes event messages to the events exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg EventMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg EventMessage) error

// Consumer consumes event messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// EventsExchange is the topic exchange every workflow event is published to.
	EventsExchange = "bloodbank.events"
	// NotificationsQueue feeds the notifier with every event.
	NotificationsQueue = "bloodbank.notifications"

	dlxExchangeName = "bloodbank.dlx"

	// queueMaxPriority is the RabbitMQ x-max-priority value for work queues.
	queueMaxPriority int32 = 3
)

// notificationBindings are the topic patterns bound to NotificationsQueue.
var notificationBindings = []string{
	"appointment.#",
	"points.#",
	"request.#",
	"delivery.#",
	"voucher.#",
}

// DLQName returns the dead-letter queue name for a queue, e.g.
// dlq.bloodbank.notifications.
func DLQName(queue string) string {
	return "dlq." + queue
}

// WorkQueueNames returns the queues the notifier consumes.
func WorkQueueNames() []string {
	return []string{NotificationsQueue}
}

// PriorityValue maps an event type to a RabbitMQ message priority. Hospital
// supply events outrank donor events.
func PriorityValue(eventType domain.EventType) uint8 {
	key := eventType.RoutingKey()
	switch {
	case strings.HasPrefix(key, "request."), strings.HasPrefix(key, "delivery."):
		return 3
	case strings.HasPrefix(key, "appointment."), strings.HasPrefix(key, "voucher."):
		return 2
	case key != "":
		return 1
	default:
		return 0
	}
}
