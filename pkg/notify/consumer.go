package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// HandlerFunc processes one decoded notification.
type HandlerFunc func(ctx context.Context, msg Message) error

// Decode parses a broker body produced by Message.Encode.
func Decode(body []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("unmarshal notification: %w", err)
	}
	if msg.ID == "" || msg.UserID == "" {
		return Message{}, errors.New("notification is missing id or user_id")
	}
	return msg, nil
}

// AMQPConsumer drains a durable notification queue, reconnecting with backoff until ctx ends.
type AMQPConsumer struct {
	url      string
	queue    string
	prefetch int
	logger   *zap.Logger
}

// NewAMQPConsumer builds a consumer for queue.
func NewAMQPConsumer(url, queue string, prefetch int, logger *zap.Logger) (*AMQPConsumer, error) {
	if queue == "" {
		return nil, errors.New("amqp queue name is required")
	}
	if prefetch <= 0 {
		prefetch = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPConsumer{url: url, queue: queue, prefetch: prefetch, logger: logger}, nil
}

// Run blocks until ctx is cancelled.
func (c *AMQPConsumer) Run(ctx context.Context, handle HandlerFunc) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("broker dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn, handle)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AMQPConsumer) consume(ctx context.Context, conn *amqp.Connection, handle HandlerFunc) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.logger.Warn("set qos failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp queue declare %s: %w", c.queue, err)
	}
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume %s: %w", c.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.dispatch(ctx, d, handle)
		}
	}
}

func (c *AMQPConsumer) dispatch(ctx context.Context, d amqp.Delivery, handle HandlerFunc) {
	msg, err := Decode(d.Body)
	if err == nil {
		err = handle(ctx, msg)
	}
	if err != nil {
		c.logger.Error("notification rejected", zap.String("message_id", d.MessageId), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
