package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ms-payments/internal/config"
	"ms-payments/internal/kafka"
	"ms-payments/internal/logger"
	"ms-payments/internal/models"
)

// Tails the payment event topic and logs every status change.
func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, logger)
	defer consumer.Close()

	counts := make(map[models.PaymentStatus]int)
	err := consumer.Start(ctx, func(event models.PaymentEvent) {
		counts[event.Status]++
		logger.LogPayment(string(event.Status), event.PaymentID,
			fmt.Sprintf("merchant=%d amount=%s %s at=%s", event.MerchantID, event.Amount, event.Currency, event.Timestamp.Format("15:04:05.000")))
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("KAFKA", fmt.Sprintf("Consumer stopped: %v", err))
	}

	logger.Info("AUDIT", fmt.Sprintf("Seen PENDING=%d APPROVED=%d DECLINED=%d REFUNDED=%d",
		counts[models.StatusPending], counts[models.StatusApproved], counts[models.StatusDeclined], counts[models.StatusRefunded]))
}
