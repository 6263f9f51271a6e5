package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"ms-payments/internal/logger"
	"ms-payments/internal/models"

	"github.com/segmentio/kafka-go"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer streams payment events to a single topic, keyed by payment id so every
// change to one payment lands on the same partition.
type Producer struct {
	Writer MessageWriter
	Topic  string
	Logger *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Topic: topic, Logger: log}
}

func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
}

// PublishPaymentUpdated streams a payment status change to Kafka
func (p *Producer) PublishPaymentUpdated(ctx context.Context, event models.PaymentEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := p.Publish(ctx, event.PaymentID, msgBytes); err != nil {
		return fmt.Errorf("failed to publish %s for %s: %w", event.Type, event.PaymentID, err)
	}
	p.Logger.LogKafka("PUBLISH", p.Topic, fmt.Sprintf("%s status=%s", event.PaymentID, event.Status))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
