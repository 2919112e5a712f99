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

const maxBackoff = 30 * time.Second

// ContactConsumer drains the contact.recorded queue and logs each event
// for agent follow-up.
type ContactConsumer struct {
	url string
	log *zap.Logger
}

func NewContactConsumer(url string, log *zap.Logger) *ContactConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContactConsumer{url: url, log: log.Named("contact-consumer")}
}

// Run connects to the broker and consumes until ctx is done.  Lost
// connections are re-dialled with exponential backoff capped at 30s.
func (c *ContactConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
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
		c.log.Warn("consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *ContactConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(ContactRecordedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, ContactRecordedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.Handle(d.Body); err != nil {
			c.log.Error("handle message failed", zap.Error(err))
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// Handle decodes one delivery and writes the follow-up log line.
func (c *ContactConsumer) Handle(body []byte) error {
	var ev ContactRecordedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.ContactID == 0 {
		return errors.New("event without contact_id")
	}
	fields := []zap.Field{
		zap.Uint64("contact_id", ev.ContactID),
		zap.String("kind", ev.Kind),
		zap.String("recorded_at", ev.RecordedAt),
	}
	if ev.UserID != nil {
		fields = append(fields, zap.Uint64("user_id", *ev.UserID))
	}
	if ev.PropertyID != nil {
		fields = append(fields, zap.Uint64("property_id", *ev.PropertyID))
	}
	if ev.Email != nil {
		fields = append(fields, zap.String("email", *ev.Email))
	}
	c.log.Info("contact awaiting follow-up", fields...)
	return nil
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
