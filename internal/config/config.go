package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Payments  PaymentsConfig
	Webhooks  WebhookConfig
	AntiFraud AntiFraudConfig
	Auth      AuthConfig
	Pix       PixConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver        string // postgres or sqlite
	Host          string
	Port          string
	Username      string
	Password      string
	Database      string
	SQLitePath    string
	MigrationsDir string
	AutoMigrate   bool
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
}

type RedisConfig struct {
	Addr           string
	IdempotencyTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Enabled bool
}

type PaymentsConfig struct {
	ProcessingDelay time.Duration
	FailureRate     float64
	WorkerPoolSize  int
	WorkerQueueSize int
	SchedulerSize   int
}

type WebhookConfig struct {
	Secret           string
	Timeout          time.Duration
	MaxAttempts      int
	BackoffUnit      time.Duration
	FailureThreshold int
	BaseCooldown     time.Duration
	RecheckDelay     time.Duration
	SinkSecret       string
}

type AntiFraudConfig struct {
	Rules []AntiFraudRule
}

type AntiFraudRule struct {
	Name      string
	Threshold string
}

type AuthConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
	AdminKey    string
}

type PixConfig struct {
	Key          string
	MerchantName string
	City         string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:        strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			Username:      getEnv("DB_USERNAME", "payment_user"),
			Password:      getEnv("DB_PASSWORD", "payment_pass"),
			Database:      getEnv("DB_NAME", "payment_gateway"),
			SQLitePath:    getEnv("SQLITE_PATH", "file:fiadopay.db?cache=shared"),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:   getEnvBool("DB_AUTO_MIGRATE", true),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", ""),
			IdempotencyTTL: getEnvDuration("IDEMPOTENCY_LOCK_TTL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getEnv("KAFKA_TOPIC_PAYMENTS", "fiadopay.payment.updated"),
			GroupID: getEnv("KAFKA_GROUP_ID", "fiadopay-audit"),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
		},
		Payments: PaymentsConfig{
			ProcessingDelay: getEnvDuration("PROCESSING_DELAY", 1500*time.Millisecond),
			FailureRate:     getEnvFloat("FAILURE_RATE", 0.15),
			WorkerPoolSize:  getEnvInt("WORKER_POOL_SIZE", max(2, runtime.NumCPU())),
			WorkerQueueSize: getEnvInt("WORKER_QUEUE_SIZE", 1024),
			SchedulerSize:   getEnvInt("SCHEDULER_POOL_SIZE", 2),
		},
		Webhooks: WebhookConfig{
			Secret:           getEnv("WEBHOOK_SECRET", "ucsal-2025"),
			Timeout:          getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts:      getEnvInt("WEBHOOK_MAX_ATTEMPTS", 5),
			BackoffUnit:      getEnvDuration("WEBHOOK_BACKOFF_UNIT", time.Second),
			FailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
			BaseCooldown:     getEnvDuration("BREAKER_BASE_COOLDOWN", time.Minute),
			RecheckDelay:     getEnvDuration("BREAKER_RECHECK_DELAY", time.Second),
			SinkSecret:       getEnv("SINK_WEBHOOK_SECRET", ""),
		},
		AntiFraud: AntiFraudConfig{
			Rules: parseRules(getEnv("ANTIFRAUD_RULES", "")),
		},
		Auth: AuthConfig{
			TokenSecret: getEnv("AUTH_TOKEN_SECRET", "fiadopay-dev-secret"),
			TokenTTL:    getEnvDuration("AUTH_TOKEN_TTL", time.Hour),
			AdminKey:    getEnv("ADMIN_API_KEY", ""),
		},
		Pix: PixConfig{
			Key:          getEnv("PIX_KEY", "pix@fiadopay.dev"),
			MerchantName: getEnv("PIX_MERCHANT_NAME", "FiadoPay"),
			City:         getEnv("PIX_MERCHANT_CITY", "Salvador"),
		},
	}
}

// parseRules reads "name:threshold" pairs separated by commas. Malformed entries are skipped.
func parseRules(raw string) []AntiFraudRule {
	var rules []AntiFraudRule
	for _, item := range splitList(raw) {
		name, threshold, ok := strings.Cut(item, ":")
		name = strings.TrimSpace(name)
		threshold = strings.TrimSpace(threshold)
		if !ok || name == "" || threshold == "" {
			continue
		}
		rules = append(rules, AntiFraudRule{Name: name, Threshold: threshold})
	}
	return rules
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("1500ms") or plain milliseconds ("1500").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
