package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer appends one line per TicketsIssuedEvent to a log file.
type Consumer struct {
	url     string
	logPath string
	log     *slog.Logger
}

// NewConsumer returns a Consumer reading from the broker at url and
// writing to logPath (logs/tickets.log when empty).
func NewConsumer(url, logPath string, log *slog.Logger) *Consumer {
	if logPath == "" {
		logPath = filepath.Join("logs", "tickets.log")
	}
	return &Consumer{url: url, logPath: logPath, log: log}
}

// Run connects to RabbitMQ, declares the tickets.issued queue and
// consumes it until ctx is cancelled, reconnecting with backoff when the
// broker goes away. Messages that cannot be handled are rejected without
// requeue so a bad payload cannot spin.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("tickets consumer: dial failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("tickets consumer: consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("tickets consumer: set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(TicketsIssuedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(TicketsIssuedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.log.Error("tickets consumer: handle message failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message and appends it to the log file.
func (c *Consumer) Handle(body []byte) error {
	var ev TicketsIssuedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	return writeLine(f, ev)
}

func writeLine(w io.Writer, ev TicketsIssuedEvent) error {
	seats := make([]string, len(ev.SeatIDs))
	for i, id := range ev.SeatIDs {
		seats[i] = fmt.Sprint(id)
	}
	line := fmt.Sprintf("[%s] Tickets issued | order_id=%d | reservation_id=%d | user_id=%d | showtime_id=%d | movie=%q | starts_at=%s | tickets=%d | total=%d %s | seats=[%s]\n",
		ev.PaidAt, ev.OrderID, ev.ReservationID, ev.UserID, ev.ShowtimeID, ev.MovieTitle, ev.StartsAt,
		ev.TicketCount, ev.TotalCents, ev.Currency, strings.Join(seats, ","))
	if _, err := io.WriteString(w, line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
