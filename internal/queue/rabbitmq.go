package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second
	dialTimeout      = 15 * time.Second
	connectionName   = "bloodbank-workflow"
)

// RabbitMQ owns the broker connection. The topology is declared once per
// connection, the first time a channel is opened on it.
type RabbitMQ struct {
	url      string
	topology topology

	mu       sync.RWMutex
	dialMu   sync.Mutex
	conn     *amqp.Connection
	declared bool
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}

	r := &RabbitMQ{url: url, topology: defaultTopology()}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if _, err := r.connection(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.declared = false
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

// IsConnected reports whether the broker connection is currently open.
func (r *RabbitMQ) IsConnected() bool {
	if r == nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn != nil && !r.conn.IsClosed()
}

func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		// The connection died between the liveness check and here.
		r.drop(conn)
		if conn, err = r.connection(ctx); err != nil {
			return nil, err
		}
		if ch, err = conn.Channel(); err != nil {
			return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
		}
	}

	if err := r.ensureTopology(ch, conn); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}

func (r *RabbitMQ) ensureTopology(ch *amqp.Channel, conn *amqp.Connection) error {
	r.mu.RLock()
	done := r.declared && r.conn == conn
	r.mu.RUnlock()
	if done {
		return nil
	}

	if err := r.topology.declare(ch); err != nil {
		return err
	}

	r.mu.Lock()
	if r.conn == conn {
		r.declared = true
	}
	r.mu.Unlock()
	return nil
}

// connection returns the live connection, dialing with backoff until ctx
// ends when there is none.
func (r *RabbitMQ) connection(ctx context.Context) (*amqp.Connection, error) {
	if conn := r.live(); conn != nil {
		return conn, nil
	}

	r.dialMu.Lock()
	defer r.dialMu.Unlock()
	if conn := r.live(); conn != nil {
		return conn, nil
	}

	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(connectionName)

	wait := reconnectBackoff
	for {
		conn, err := amqp.DialConfig(r.url, amqp.Config{
			Properties: props,
			Dial:       amqp.DefaultDial(dialTimeout),
		})
		if err == nil {
			r.mu.Lock()
			r.conn = conn
			r.declared = false
			r.mu.Unlock()
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq dial canceled after %v: %w", err, ctx.Err())
		case <-time.After(wait):
		}
		wait = min(wait*2, maxBackoff)
	}
}

func (r *RabbitMQ) live() *amqp.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	return r.conn
}

func (r *RabbitMQ) drop(conn *amqp.Connection) {
	r.mu.Lock()
	if r.conn == conn {
		r.conn = nil
		r.declared = false
	}
	r.mu.Unlock()
	_ = conn.Close()
}

type exchangeSpec struct {
	name string
	kind string
}

type queueSpec struct {
	name string
	args amqp.Table
}

type bindingSpec struct {
	queue    string
	key      string
	exchange string
}

// topology lists the exchanges, queues and bindings the service relies on.
// Every declaration is durable and idempotent.
type topology struct {
	exchanges []exchangeSpec
	queues    []queueSpec
	bindings  []bindingSpec
}

func defaultTopology() topology {
	t := topology{
		exchanges: []exchangeSpec{
			{name: EventsExchange, kind: amqp.ExchangeTopic},
			{name: dlxExchangeName, kind: amqp.ExchangeDirect},
		},
	}

	for _, name := range WorkQueueNames() {
		dlq := DLQName(name)
		t.queues = append(t.queues,
			queueSpec{name: dlq},
			queueSpec{name: name, args: amqp.Table{
				"x-dead-letter-exchange":    dlxExchangeName,
				"x-dead-letter-routing-key": name,
				"x-max-priority":            queueMaxPriority,
			}},
		)
		t.bindings = append(t.bindings, bindingSpec{queue: dlq, key: name, exchange: dlxExchangeName})
		for _, pattern := range notificationBindings {
			t.bindings = append(t.bindings, bindingSpec{queue: name, key: pattern, exchange: EventsExchange})
		}
	}
	return t
}

func (t topology) declare(ch *amqp.Channel) error {
	for _, ex := range t.exchanges {
		if err := ch.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %q: %w", ex.name, err)
		}
	}
	for _, q := range t.queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", q.name, err)
		}
	}
	for _, b := range t.bindings {
		if err := ch.QueueBind(b.queue, b.key, b.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %q to %s/%s: %w", b.queue, b.exchange, b.key, err)
		}
	}
	return nil
}
