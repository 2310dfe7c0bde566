package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// LifecycleConsumer listens to the culture.completed queue and appends
// one human-readable line per event to <LogDir>/lifecycle.log.
type LifecycleConsumer struct {
	URL    string
	Queue  string
	LogDir string
	Log    *zap.Logger
}

func NewLifecycleConsumer(url, queue, logDir string, log *zap.Logger) *LifecycleConsumer {
	if queue == "" {
		queue = CultureCompletedQueue
	}
	if logDir == "" {
		logDir = "logs"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LifecycleConsumer{URL: url, Queue: queue, LogDir: logDir, Log: log}
}

// Run connects to RabbitMQ, declares the queue (durable) and consumes
// until ctx is cancelled.  Dial failures back off exponentially up to
// 30s; a closed delivery channel triggers a reconnect.  Messages that
// cannot be handled are rejected without requeue so the loop never spins.
func (c *LifecycleConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("lifecycle-consumer: failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("lifecycle-consumer: consume loop ended; reconnecting", zap.Error(err))
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

func (c *LifecycleConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("lifecycle-consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
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
			if err := c.HandleMessage(d.Body); err != nil {
				c.Log.Error("lifecycle-consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one CultureCompletedEvent and appends it to the
// lifecycle log.
func (c *LifecycleConsumer) HandleMessage(body []byte) error {
	var ev CultureCompletedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.CultureID == "" {
		return errors.New("event without culture_id")
	}
	if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(c.LogDir, "lifecycle.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatLine(ev CultureCompletedEvent) string {
	return fmt.Sprintf("[%s] Culture cycle completed | culture_id=%s | user_id=%s | property=%q | culture=%q | cultivar=%q | planted=%s | cycle=%d days | harvest=%s\n",
		ev.CompletedAt, ev.CultureID, ev.UserID, ev.PropertyName, ev.Name, ev.Cultivar, ev.PlantingDate, ev.Cycle, ev.ExpectedHarvestDate)
}
