package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ms-payments/internal/logger"
	"ms-payments/internal/models"

	"github.com/segmentio/kafka-go"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	Reader MessageReader
	Topic  string
	Logger *logger.Logger
}

// NewConsumer creates a new Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{Reader: reader, Topic: topic, Logger: log}
}

// Start consumes payment events until ctx is cancelled. Undecodable messages are skipped.
func (c *Consumer) Start(ctx context.Context, handler func(event models.PaymentEvent)) error {
	c.Logger.LogKafka("CONSUME", c.Topic, "consumer started")

	for {
		msg, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.Canceled) {
				return err
			}
			c.Logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			continue
		}

		var event models.PaymentEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.Logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message at offset %d: %v", msg.Offset, err))
			continue
		}

		handler(event)
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.Reader.Close()
}
