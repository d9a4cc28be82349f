package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaPublisher sends notifications through a synchronous producer keyed by user id,
// so a student's messages stay ordered on one partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// ProducerConfig returns the sarama settings used for notification delivery.
func ProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Timeout = 10 * time.Second
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Compression = sarama.CompressionSnappy
	return cfg
}

// NewKafkaPublisher connects a sync producer to brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	producer, err := sarama.NewSyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topic, logger), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topic == "" {
		topic = "notifications"
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := msg.Encode()
	if err != nil {
		return err
	}
	record := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(msg.UserID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("notification_id"), Value: []byte(msg.ID)},
			{Key: []byte("kind"), Value: []byte(msg.Kind)},
		},
		Timestamp: msg.CreatedAt,
	}
	partition, offset, err := p.producer.SendMessage(record)
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", msg.ID, err)
	}
	p.logger.Debug("notification published",
		zap.String("transport", "kafka"),
		zap.String("topic", p.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("id", msg.ID),
	)
	return nil
}

// Close implements Publisher.
func (p *KafkaPublisher) Close() error {
	if p.producer == nil {
		return nil
	}
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
