package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const EnvironmentProduction = "production"

// AppConfig holds all configuration for the application
type AppConfig struct {
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn warning error fatal panic"`
	Environment string `envconfig:"ENVIRONMENT" default:"development" validate:"oneof=development local test staging production"`
	HealthPort  string `envconfig:"HEALTH_PORT" default:"8080"`

	DatabaseURL string `envconfig:"DATABASE_URL" validate:"required"`

	Kafka        KafkaConfig
	Legacy       LegacyQueueConfig
	Activation   ActivationConfig
	Registry     RegistryConfig
	Rules        RulesConfig
	Telegram     TelegramConfig
	Metrics      MetricsConfig
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"1s" validate:"gt=0"`
	RetryBackoff time.Duration `envconfig:"RETRY_BACKOFF" default:"5s" validate:"gt=0"`
}

// KafkaConfig holds brokers and the three inbound event topics.
type KafkaConfig struct {
	Brokers          []string `envconfig:"KAFKA_BROKERS" validate:"required,min=1"`
	GroupID          string   `envconfig:"KAFKA_GROUP_ID" default:"sickleave-notifier"`
	SettlementTopic  string   `envconfig:"KAFKA_SETTLEMENT_TOPIC" default:"aapen-utbetaling-v1"`
	SickNoteTopic    string   `envconfig:"KAFKA_SICKNOTE_TOPIC" default:"aapen-sykmelding-v1"`
	PersonEventTopic string   `envconfig:"KAFKA_PERSON_EVENT_TOPIC" default:"aapen-person-hendelse-v1"`
}

// LegacyQueueConfig is the queue pair to the legacy case system plus the backout queue.
type LegacyQueueConfig struct {
	URL            string        `envconfig:"LEGACY_AMQP_URL" validate:"required,url"`
	InboundQueue   string        `envconfig:"LEGACY_INBOUND_QUEUE" default:"legacy.melding.inn"`
	ReceiptQueue   string        `envconfig:"LEGACY_RECEIPT_QUEUE" default:"legacy.melding.kvittering"`
	BackoutQueue   string        `envconfig:"LEGACY_BACKOUT_QUEUE" default:"legacy.melding.kvittering.backout"`
	PublishTimeout time.Duration `envconfig:"LEGACY_PUBLISH_TIMEOUT" default:"10s"`
}

// ActivationConfig configures the due scanner and the trigger queue.
type ActivationConfig struct {
	QueueURL    string        `envconfig:"ACTIVATION_QUEUE_URL" validate:"required,url"`
	AWSRegion   string        `envconfig:"AWS_REGION" default:"eu-north-1"`
	CronSpec    string        `envconfig:"ACTIVATION_CRON_SPEC" default:"*/1 * * * *"`
	BatchSize   int           `envconfig:"ACTIVATION_BATCH_SIZE" default:"100" validate:"gt=0"`
	ResendAfter time.Duration `envconfig:"ACTIVATION_RESEND_AFTER" default:"10m" validate:"gt=0"`
}

// RegistryConfig holds the external eligibility and episode registries.
type RegistryConfig struct {
	EligibilityURL string        `envconfig:"ELIGIBILITY_URL" validate:"required,url"`
	EpisodesURL    string        `envconfig:"EPISODES_URL" validate:"required,url"`
	PersonURL      string        `envconfig:"PERSON_URL" validate:"required,url"`
	Timeout        time.Duration `envconfig:"REGISTRY_TIMEOUT" default:"10s" validate:"gt=0"`
}

// RulesConfig carries the scheduling constants.
type RulesConfig struct {
	StopGraceDays            int           `envconfig:"STOP_GRACE_DAYS" default:"17" validate:"gt=0"`
	LongHorizonThresholdDays int           `envconfig:"LONG_HORIZON_THRESHOLD_DAYS" default:"66" validate:"gt=0"`
	ReconciliationDelay      time.Duration `envconfig:"RECONCILIATION_DELAY" default:"10s" validate:"gte=0"`
}

// TelegramConfig is optional. Without a token operator alerts are only logged.
type TelegramConfig struct {
	Token  string `envconfig:"TELEGRAM_TOKEN"`
	ChatID int64  `envconfig:"TELEGRAM_OPERATOR_CHAT_ID" validate:"required_with=Token"`
}

// MetricsConfig selects CloudWatch emission. An empty namespace keeps counters in the log.
type MetricsConfig struct {
	Namespace string `envconfig:"METRICS_NAMESPACE"`
}

// IsProduction reports whether permissive fallbacks must stay disabled.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Environment = strings.ToLower(cfg.Environment)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
