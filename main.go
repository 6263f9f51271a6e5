package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"ms-payments/internal/antifraud"
	"ms-payments/internal/api"
	"ms-payments/internal/auth"
	"ms-payments/internal/config"
	"ms-payments/internal/database"
	"ms-payments/internal/database/migrations"
	"ms-payments/internal/kafka"
	"ms-payments/internal/logger"
	"ms-payments/internal/merchant"
	"ms-payments/internal/payment"
	"ms-payments/internal/payment/db"
	"ms-payments/internal/payment/fees"
	rediswrap "ms-payments/internal/payment/redis"
	"ms-payments/internal/pix"
	"ms-payments/internal/sink"
	"ms-payments/internal/sse"
	"ms-payments/internal/webhook"
	"ms-payments/internal/workers"
)

func prepareSchema(ctx context.Context, bunDB *bun.DB, cfg config.DatabaseConfig, logger *logger.Logger) {
	if !cfg.AutoMigrate {
		logger.Info("DATABASE", "Automatic schema setup disabled")
		return
	}

	if cfg.Driver == database.DriverPostgres {
		opts := migrations.DefaultOptions()
		if cfg.MigrationsDir != "" {
			opts.MigrationsDir = cfg.MigrationsDir
		}
		runner := migrations.NewRunner(bunDB.DB, opts, logger)
		if err := runner.RunMigrations(); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Failed to run migrations: %v", err))
		}
		return
	}

	if err := db.CreateSchema(ctx, bunDB); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to create schema: %v", err))
	}
	logger.Info("DATABASE", "SQLite schema ready")
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *logger.Logger) *redis.Client {
	if cfg.Addr == "" {
		logger.Info("REDIS", "REDIS_ADDR not set, idempotency guard and token cache disabled")
		return nil
	}
	client, err := rediswrap.Connect(ctx, cfg.Addr, logger)
	if err != nil {
		logger.Warn("REDIS", fmt.Sprintf("Continuing without Redis: %v", err))
		return nil
	}
	return client
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting FiadoPay gateway initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()
	ctx := context.Background()

	bunDB, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()
	prepareSchema(ctx, bunDB, cfg.Database, logger)
	store := &db.DB{Bun: bunDB, Logger: logger}

	redisClient := connectRedis(ctx, cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	pool := workers.NewPool("payments", cfg.Payments.WorkerPoolSize, cfg.Payments.WorkerQueueSize, logger)
	scheduler := workers.NewScheduler(cfg.Payments.SchedulerSize, logger)
	pool.Start()
	scheduler.Start()

	breaker := webhook.NewCircuitBreaker(cfg.Webhooks.FailureThreshold, cfg.Webhooks.BaseCooldown)
	metrics := &webhook.Metrics{}
	dispatcher := &webhook.Dispatcher{
		Deliveries:   store,
		Merchants:    store,
		Composer:     webhook.NewComposer(webhook.NewSigner(cfg.Webhooks.Secret)),
		Breaker:      breaker,
		Metrics:      metrics,
		Client:       &http.Client{Timeout: cfg.Webhooks.Timeout},
		Workers:      pool,
		Scheduler:    scheduler,
		Logger:       logger,
		MaxAttempts:  cfg.Webhooks.MaxAttempts,
		BackoffUnit:  cfg.Webhooks.BackoffUnit,
		RecheckDelay: cfg.Webhooks.RecheckDelay,
	}

	checker := antifraud.NewChecker(logger, antifraud.RulesFromConfig(cfg.AntiFraud, logger)...)
	checker.Register(antifraud.ThresholdRule{RuleName: "HighAmount", Limit: decimal.NewFromInt(1000)})

	feeRegistry := fees.NewRegistry(logger)
	feeRegistry.Register(fees.CardInstallments{})

	stream := sse.NewPaymentEventEmitter()
	publishers := []payment.EventPublisher{stream}

	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topic}, logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer producer.Close()
		publishers = append(publishers, producer)
		logger.Info("KAFKA", fmt.Sprintf("Publishing payment events to %s", cfg.Kafka.Topic))
	}

	paymentService := &payment.PaymentService{
		Store:           store,
		AntiFraud:       checker,
		Fees:            feeRegistry,
		Notifier:        dispatcher,
		Workers:         pool,
		Events:          publishers,
		Outcomes:        payment.NewRandomOutcome(),
		Logger:          logger,
		ProcessingDelay: cfg.Payments.ProcessingDelay,
		FailureRate:     cfg.Payments.FailureRate,
	}

	authenticator := &auth.Authenticator{
		Merchants: store,
		Issuer:    auth.NewIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL),
		Logger:    logger,
	}

	if redisClient != nil {
		paymentService.Guard = rediswrap.NewIdempotencyGuard(redisClient, cfg.Redis.IdempotencyTTL)
		authenticator.Cache = auth.NewRedisTokenCache(redisClient)
	}

	handler := api.NewHandler(logger)
	handler.Payments = paymentService
	handler.Merchants = merchant.NewService(store, logger)
	handler.Tokens = authenticator
	handler.Deliveries = store
	handler.Metrics = metrics
	handler.Health = store
	handler.Stream = stream
	handler.QR = pix.NewQRGenerator(cfg.Pix.Key, cfg.Pix.MerchantName, cfg.Pix.City)
	handler.AdminKey = cfg.Auth.AdminKey

	webhookSink := sink.NewHandler(cfg.Webhooks.SinkSecret, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	router := api.NewRouter(handler, auth.Middleware(authenticator), webhookSink.Receive)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("FiadoPay gateway running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	}

	pool.Stop()
	scheduler.Stop()

	snapshot := metrics.Snapshot()
	logger.Info("WEBHOOK", fmt.Sprintf("Delivery totals: attempts=%d successes=%d failures=%d", snapshot.Attempts, snapshot.Successes, snapshot.Failures))
	logger.Info("APP", "FiadoPay gateway shutdown complete")
}
