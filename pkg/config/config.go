package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Rewards      RewardsConfig
	Payment      PaymentConfig
	Orders       OrdersConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"STOREFRONT_DB_DSN" required:"true"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" default:"storefront"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RewardsConfig supplies the loyalty parameters the ledger reads at runtime.
// Exchange rate is cents of order currency per loyalty point.
type RewardsConfig struct {
	PointExchangeRateCents int `envconfig:"STOREFRONT_REWARDS_POINT_EXCHANGE_RATE_CENTS" default:"10"`
	SilverThresholdPoints  int `envconfig:"STOREFRONT_REWARDS_SILVER_THRESHOLD" default:"1000"`
	GoldThresholdPoints    int `envconfig:"STOREFRONT_REWARDS_GOLD_THRESHOLD" default:"5000"`
}

type PaymentConfig struct {
	BaseURL       string        `envconfig:"STOREFRONT_PAYMENT_BASE_URL" required:"true"`
	PartnerCode   string        `envconfig:"STOREFRONT_PAYMENT_PARTNER_CODE" required:"true"`
	AccessKey     string        `envconfig:"STOREFRONT_PAYMENT_ACCESS_KEY" required:"true"`
	SecretKey     string        `envconfig:"STOREFRONT_PAYMENT_SECRET_KEY" required:"true"`
	RedirectURL   string        `envconfig:"STOREFRONT_PAYMENT_REDIRECT_URL"`
	WebhookURL    string        `envconfig:"STOREFRONT_PAYMENT_WEBHOOK_URL"`
	VerifyTimeout time.Duration `envconfig:"STOREFRONT_PAYMENT_VERIFY_TIMEOUT" default:"10s"`
}

type OrdersConfig struct {
	ProcessingDelay      time.Duration `envconfig:"STOREFRONT_ORDERS_PROCESSING_DELAY" default:"30m"`
	DeliveryPromptDelay  time.Duration `envconfig:"STOREFRONT_ORDERS_DELIVERY_PROMPT_DELAY" default:"48h"`
	DeliveryPromptRetry  time.Duration `envconfig:"STOREFRONT_ORDERS_DELIVERY_PROMPT_RETRY" default:"24h"`
	MaxDeliveryPrompts   int           `envconfig:"STOREFRONT_ORDERS_MAX_DELIVERY_PROMPTS" default:"2"`
	CronInterval         time.Duration `envconfig:"STOREFRONT_ORDERS_CRON_INTERVAL" default:"1m"`
	CronLockTTL          time.Duration `envconfig:"STOREFRONT_ORDERS_CRON_LOCK_TTL" default:"5m"`
	ProcessingBatchLimit int           `envconfig:"STOREFRONT_ORDERS_PROCESSING_BATCH_LIMIT" default:"200"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"STOREFRONT_PUBSUB_DOMAIN_TOPIC" default:"storefront-domain-events"`
	DomainSubscription string `envconfig:"STOREFRONT_PUBSUB_DOMAIN_SUBSCRIPTION" default:"storefront-domain-events-notify"`
}

type OutboxConfig struct {
	PollInterval time.Duration `envconfig:"STOREFRONT_OUTBOX_POLL_INTERVAL" default:"2s"`
	BatchSize    int           `envconfig:"STOREFRONT_OUTBOX_BATCH_SIZE" default:"100"`
	MaxAttempts  int           `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_FEATURE_AUTO_MIGRATE" default:"false"`
}
