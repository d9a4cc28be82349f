// Package notify forwards student notifications to an external broker.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-hall-api/pkg/config"
)

// Message is the broker payload for a single user notification.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Encode renders the JSON body shared by every transport.
func (m Message) Encode() ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal notification %s: %w", m.ID, err)
	}
	return body, nil
}

// Publisher delivers notification messages to a transport.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Noop drops every message. It backs NOTIFY_DRIVER=none.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, Message) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }

// New builds the publisher selected by cfg.Driver.
func New(cfg config.NotificationConfig, logger *zap.Logger) (Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case config.NotifyDriverAMQP:
		return NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue, logger)
	case config.NotifyDriverKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	default:
		return Noop{}, nil
	}
}
