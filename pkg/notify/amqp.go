package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPPublisher publishes persistent JSON messages to a durable queue on the default exchange.
// The channel is reopened lazily after the broker drops it.
type AMQPPublisher struct {
	url    string
	queue  string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher dials the broker and declares queue.
func NewAMQPPublisher(url, queue string, logger *zap.Logger) (*AMQPPublisher, error) {
	if queue == "" {
		return nil, errors.New("amqp queue name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &AMQPPublisher{url: url, queue: queue, logger: logger}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("amqp queue declare %s: %w", p.queue, err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

// Publish implements Publisher.
func (p *AMQPPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := msg.Encode()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		p.closeLocked()
		if err := p.connectLocked(); err != nil {
			return err
		}
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    time.Now().UTC(),
		Type:         msg.Kind,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("amqp publish %s: %w", msg.ID, err)
	}
	p.logger.Debug("notification published", zap.String("transport", "amqp"), zap.String("queue", p.queue), zap.String("id", msg.ID))
	return nil
}

// Close implements Publisher.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *AMQPPublisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
