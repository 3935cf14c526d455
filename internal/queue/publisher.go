package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultDialTimeout bounds connecting and the AMQP handshake. Publishing
// runs right after an order is paid, so a dead broker must fail fast.
const DefaultDialTimeout = 3 * time.Second

// Publisher publishes domain events to RabbitMQ. It dials per publish,
// which keeps it free of connection state; the volume is one message per
// paid order.
type Publisher struct {
	url         string
	queue       string
	dialTimeout time.Duration
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, queue: TicketsIssuedQueue, dialTimeout: DefaultDialTimeout}
}

// WithDialTimeout overrides the connect and handshake timeout.
func (p *Publisher) WithDialTimeout(d time.Duration) *Publisher {
	if d > 0 {
		p.dialTimeout = d
	}
	return p
}

// dial connects within the dial timeout, or sooner when ctx ends first.
func (p *Publisher) dial(ctx context.Context) (*amqp.Connection, error) {
	timeout := p.dialTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}
	return amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

// PublishTicketsIssued publishes ev to the tickets.issued queue as a
// persistent JSON message.
func (p *Publisher) PublishTicketsIssued(ctx context.Context, ev TicketsIssuedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := p.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
