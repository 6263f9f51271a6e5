package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Webhooks.MaxAttempts)
	assert.Equal(t, 5, cfg.Webhooks.FailureThreshold)
	assert.Equal(t, time.Minute, cfg.Webhooks.BaseCooldown)
	assert.Equal(t, 10*time.Second, cfg.Webhooks.Timeout)
	assert.Equal(t, 2, cfg.Payments.SchedulerSize)
	assert.GreaterOrEqual(t, cfg.Payments.WorkerPoolSize, 2)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Empty(t, cfg.AntiFraud.Rules)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "POSTGRES")
	t.Setenv("PROCESSING_DELAY", "250")
	t.Setenv("WEBHOOK_TIMEOUT", "3s")
	t.Setenv("FAILURE_RATE", "0.5")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ANTIFRAUD_RULES", "HighAmount:1000, broken, Pix:500.50")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Payments.ProcessingDelay)
	assert.Equal(t, 3*time.Second, cfg.Webhooks.Timeout)
	assert.Equal(t, 0.5, cfg.Payments.FailureRate)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []AntiFraudRule{
		{Name: "HighAmount", Threshold: "1000"},
		{Name: "Pix", Threshold: "500.50"},
	}, cfg.AntiFraud.Rules)
}

func TestGetEnvDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_DELAY", "soon")
	assert.Equal(t, time.Second, getEnvDuration("SOME_DELAY", time.Second))
}
