package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends events to RabbitMQ.  Every call dials its own
// connection, so a Publisher is safe for concurrent use and survives
// broker restarts without extra bookkeeping.  Errors are logged and
// returned so the caller can choose to ignore them.
type Publisher struct {
	URL   string
	Queue string
	Log   *zap.Logger
}

func NewPublisher(url, queue string, log *zap.Logger) *Publisher {
	if queue == "" {
		queue = CultureCompletedQueue
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{URL: url, Queue: queue, Log: log}
}

// PublishCultureCompleted publishes ev to the configured queue as a
// persistent JSON message.
func (p *Publisher) PublishCultureCompleted(ctx context.Context, ev CultureCompletedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		p.Log.Error("rabbitmq: marshal event failed", zap.Error(err))
		return err
	}
	return p.publish(ctx, body)
}

func (p *Publisher) publish(ctx context.Context, body []byte) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Log.Warn("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		p.Log.Warn("rabbitmq: queue declare failed", zap.String("queue", p.Queue), zap.Error(err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		p.Log.Warn("rabbitmq: publish failed", zap.String("queue", p.Queue), zap.Error(err))
		return err
	}
	return nil
}
