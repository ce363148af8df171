package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL        string        `mapstructure:"DATABASE_URL" validate:"required"`
	RedisURL           string        `mapstructure:"REDIS_URL" validate:"required"`
	KafkaBrokers       string        `mapstructure:"KAFKA_BROKERS" validate:"required"`
	NatsURL            string        `mapstructure:"NATS_URL" validate:"required"`
	JaegerEndpoint     string        `mapstructure:"JAEGER_ENDPOINT"`
	Port               string        `mapstructure:"PORT" validate:"required"`
	RiskAPIBaseURL     string        `mapstructure:"RISK_API_BASE_URL" validate:"required,url"`
	RiskAPISecret      string        `mapstructure:"RISK_API_SECRET"`
	RiskAPIVersion     string        `mapstructure:"RISK_API_VERSION"`
	RiskAPITimeout     time.Duration `mapstructure:"RISK_API_TIMEOUT" validate:"required"`
	RiskRateLimit      int           `mapstructure:"RISK_RATE_LIMIT_PER_SEC" validate:"min=1"`
	RiskRateBurst      int           `mapstructure:"RISK_RATE_BURST" validate:"min=1"`
	EventLockTTL       time.Duration `mapstructure:"EVENT_LOCK_TTL" validate:"required"`
	SessionMessageTTL  time.Duration `mapstructure:"SESSION_MESSAGE_TTL" validate:"required"`
	MerchantConfigPath string        `mapstructure:"MERCHANT_CONFIG_PATH"`
	PaymentPlacedTopic string        `mapstructure:"KAFKA_PAYMENT_PLACED_TOPIC" validate:"required"`
	OrderSavedTopic    string        `mapstructure:"KAFKA_ORDER_SAVED_TOPIC" validate:"required"`
	LogTopic           string        `mapstructure:"KAFKA_LOG_TOPIC" validate:"required"`
	NotificationTopic  string        `mapstructure:"KAFKA_NOTIFICATION_TOPIC" validate:"required"`
	ConsumerGroup      string        `mapstructure:"KAFKA_CONSUMER_GROUP" validate:"required"`
	DiagnosticsSubject string        `mapstructure:"NATS_DIAGNOSTICS_SUBJECT" validate:"required"`
}

var defaults = map[string]interface{}{
	"DATABASE_URL":               "",
	"REDIS_URL":                  "",
	"KAFKA_BROKERS":              "",
	"NATS_URL":                   "nats://localhost:4222",
	"JAEGER_ENDPOINT":            "",
	"PORT":                       "8082",
	"RISK_API_BASE_URL":          "https://api.forter-secure.com/v2",
	"RISK_API_SECRET":            "",
	"RISK_API_VERSION":           "2.2",
	"RISK_API_TIMEOUT":           "5s",
	"RISK_RATE_LIMIT_PER_SEC":    20,
	"RISK_RATE_BURST":            5,
	"EVENT_LOCK_TTL":             "30s",
	"SESSION_MESSAGE_TTL":        "15m",
	"MERCHANT_CONFIG_PATH":       "",
	"KAFKA_PAYMENT_PLACED_TOPIC": "order.payment_placed",
	"KAFKA_ORDER_SAVED_TOPIC":    "order.saved",
	"KAFKA_LOG_TOPIC":            "fraud.logs",
	"KAFKA_NOTIFICATION_TOPIC":   "notifications",
	"KAFKA_CONSUMER_GROUP":       "fraud-orchestrator",
	"NATS_DIAGNOSTICS_SUBJECT":   "fraud.diagnostics",
}

// Load reads the service configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, formatValidationErrors(err)
	}
	return &cfg, nil
}

func formatValidationErrors(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("invalid config: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
}
