package service

import (
	"context"
	"encoding/json"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-listings/internal/queue"
)

// EventPublisher delivers domain events to downstream consumers.
type EventPublisher interface {
	PublishContactRecorded(ctx context.Context, ev queue.ContactRecordedEvent) error
}

// AMQPPublisher publishes events to RabbitMQ.  Each publish dials its own
// connection so a broker outage never leaves a stale channel behind.
type AMQPPublisher struct {
	url string
	log *zap.Logger
}

func NewAMQPPublisher(url string, log *zap.Logger) *AMQPPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &AMQPPublisher{url: url, log: log.Named("rabbitmq")}
}

// PublishContactRecorded publishes ev to the contact.recorded queue as a
// persistent message.  Errors are logged and returned.
func (p *AMQPPublisher) PublishContactRecorded(ctx context.Context, ev queue.ContactRecordedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal event failed", zap.Error(err))
		return err
	}
	return p.publish(ctx, queue.ContactRecordedQueue, body)
}

// dial connects to the broker.  ctx bounds both the TCP connect and the
// AMQP handshake; the library clears the deadline once the connection opens.
func (p *AMQPPublisher) dial(ctx context.Context) (*amqp.Connection, error) {
	return amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			var d net.Dialer
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			if deadline, ok := ctx.Deadline(); ok {
				if err := conn.SetDeadline(deadline); err != nil {
					_ = conn.Close()
					return nil, err
				}
			}
			return conn, nil
		},
	})
}

func (p *AMQPPublisher) publish(ctx context.Context, queueName string, body []byte) error {
	conn, err := p.dial(ctx)
	if err != nil {
		p.log.Warn("dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		p.log.Warn("queue declare failed", zap.String("queue", queueName), zap.Error(err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		p.log.Warn("publish failed", zap.String("queue", queueName), zap.Error(err))
		return err
	}
	return nil
}
