package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/api"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/config"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/handlers"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/messaging"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/repository"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/service"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize telemetry
	if err := telemetry.InitTelemetry("fraud-orchestrator", cfg.JaegerEndpoint); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	logger := telemetry.Logger
	logger.Info("Starting Fraud Orchestrator")

	merchants, err := config.LoadMerchantSettings(cfg.MerchantConfigPath)
	if err != nil {
		logger.Fatal("Failed to load merchant settings", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL
	db, err := repository.Connect(ctx, logger, cfg.DatabaseURL, time.Minute)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	entities := repository.NewFraudEntityRepository(db)
	if err := entities.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	orders := repository.NewOrderRepository(db)
	if err := orders.InitDB(); err != nil {
		logger.Fatal("Failed to initialize order tables", zap.Error(err))
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})
	defer redisClient.Close()

	// Connect to NATS
	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer nc.Close()

	// Kafka writers
	logWriter := messaging.NewWriter(cfg.KafkaBrokers, cfg.LogTopic)
	defer logWriter.Close()
	mailWriter := messaging.NewWriter(cfg.KafkaBrokers, cfg.NotificationTopic)
	defer mailWriter.Close()

	logs := messaging.NewKafkaLogShipper(logWriter)
	sessions := messaging.NewRedisSessionMessenger(redisClient, cfg.SessionMessageTTL)

	riskClient := service.NewRiskClient(service.RiskClientConfig{
		BaseURL:    cfg.RiskAPIBaseURL,
		Secret:     cfg.RiskAPISecret,
		APIVersion: cfg.RiskAPIVersion,
		Timeout:    cfg.RiskAPITimeout,
		RateLimit:  cfg.RiskRateLimit,
		RateBurst:  cfg.RiskRateBurst,
	}, logger)

	actuator := service.NewOrderActuator(orders, messaging.NewKafkaMailer(mailWriter), logger)
	orchestrator := service.NewOrchestrator(service.Dependencies{
		Merchants:   merchants,
		Entities:    entities,
		Orders:      orders,
		Risk:        riskClient,
		Classifier:  service.NewEligibilityClassifier(entities, actuator, logs, logger),
		Decisions:   service.NewDecisionHandler(actuator, entities, sessions, logs, logger),
		Actuator:    actuator,
		Reporter:    service.NewOrderStatusReporter(entities, riskClient, logs, logger),
		Logs:        logs,
		Diagnostics: messaging.NewNATSDiagnostics(nc, cfg.DiagnosticsSubject, logger),
		Locker:      messaging.NewRedisLocker(redisClient),
		LockTTL:     cfg.EventLockTTL,
		Logger:      logger,
	})

	// Start consuming order-system triggers
	brokers := strings.Split(cfg.KafkaBrokers, ",")
	paymentReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    cfg.PaymentPlacedTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer paymentReader.Close()
	orderReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    cfg.OrderSavedTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer orderReader.Close()

	go orchestrator.ConsumePaymentPlaced(ctx, paymentReader)
	go orchestrator.ConsumeOrderSaved(ctx, orderReader)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	fraudHandler := handlers.NewFraudHandler(entities, orchestrator, sessions, logger)
	r := api.NewRouter(fraudHandler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Fraud Orchestrator starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	<-ctx.Done()

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
