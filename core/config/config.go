package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"basegraph.app/nudge/core/db"
)

// ErrMissingRequired is wrapped by Load when a required variable is unset.
var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	OTel     OTelConfig
	Slack    SlackConfig
	Audit    AuditConfig
	Pipeline PipelineConfig
	Env      string
	Port     string
	DB       db.Config
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type SlackConfig struct {
	Token       string
	APIURL      string // Optional: overrides https://slack.com/api/
	WebhookURL  string // Default incoming webhook for targets without their own
	HTTPTimeout time.Duration

	PermalinkCacheTTL time.Duration // 0 disables the cache
}

type AuditConfig struct {
	ChannelID      string
	BotUserID      string // Optional: messages by this user are never questions
	MarkerReaction string
	ReferenceDate  string // Optional: overrides "now", e.g. 2024-01-31 or RFC3339
	HistoryLimit   int
	MaxParallel    int    // 0 = one lookup goroutine per unresolved message
	PolicyFile     string // Optional: YAML escalation tiers
}

type PipelineConfig struct {
	RedisURL        string
	RedisStream     string
	RedisGroup      string
	RedisDLQStream  string
	RedisConsumer   string
	TraceHeaderName string
}

type ServiceType string

const (
	ServiceTypeServer ServiceType = "server"
	ServiceTypeWorker ServiceType = "worker"
	ServiceTypeCLI    ServiceType = "nudge"
)

// Load loads configuration from environment variables.
// In development, it loads from service-specific .env files:
//   - .env.server for the HTTP trigger API
//   - .env.worker for the queue worker
//   - .env.nudge for the one-shot cron run
//
// Falls back to .env if service-specific file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("NUDGE_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		Env:  getEnv("NUDGE_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		DB: db.Config{
			DSN:         getEnv("DATABASE_URL", ""),
			MaxConns:    getEnvInt32("DB_MAX_CONNS", 4),
			MinConns:    getEnvInt32("DB_MIN_CONNS", 1),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "nudge-"+string(serviceType)),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		Slack: SlackConfig{
			Token:       getEnv("SLACK_TOKEN", ""),
			APIURL:      getEnv("SLACK_API_URL", ""),
			WebhookURL:  getEnv("SLACK_WEBHOOK", ""),
			HTTPTimeout: getEnvDuration("SLACK_HTTP_TIMEOUT", 10*time.Second),

			PermalinkCacheTTL: getEnvDuration("SLACK_PERMALINK_CACHE_TTL", 24*time.Hour),
		},
		Audit: AuditConfig{
			ChannelID:      getEnv("SLACK_CHANNEL_ID", ""),
			BotUserID:      getEnv("BOT_ID", ""),
			MarkerReaction: getEnv("TARGET_REACTION", "zumi"),
			ReferenceDate:  getEnv("TARGET_DATE", ""),
			HistoryLimit:   getEnvInt("SLACK_HISTORY_LIMIT", 500),
			MaxParallel:    getEnvInt("AUDIT_MAX_PARALLEL_LOOKUPS", 0),
			PolicyFile:     getEnv("ESCALATION_POLICY_FILE", ""),
		},
		Pipeline: PipelineConfig{
			RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
			RedisStream:     getEnv("REDIS_STREAM", "nudge_audits"),
			RedisGroup:      getEnv("REDIS_CONSUMER_GROUP", "nudge_group"),
			RedisDLQStream:  getEnv("REDIS_DLQ_STREAM", "nudge_audits_dlq"),
			RedisConsumer:   getEnv("REDIS_CONSUMER_NAME", string(serviceType)),
			TraceHeaderName: getEnv("TRACE_HEADER_NAME", "X-Trace-Id"),
		},
	}

	if err := cfg.validate(serviceType); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate(serviceType ServiceType) error {
	// The server only enqueues and lists targets; Slack is reached from the worker.
	if serviceType != ServiceTypeServer && c.Slack.Token == "" {
		return fmt.Errorf("%w: SLACK_TOKEN", ErrMissingRequired)
	}

	if c.Audit.MarkerReaction == "" {
		return fmt.Errorf("%w: TARGET_REACTION", ErrMissingRequired)
	}

	if c.Audit.HistoryLimit <= 0 {
		return fmt.Errorf("SLACK_HISTORY_LIMIT must be positive, got %d", c.Audit.HistoryLimit)
	}

	if c.Audit.MaxParallel < 0 {
		return fmt.Errorf("AUDIT_MAX_PARALLEL_LOOKUPS must not be negative, got %d", c.Audit.MaxParallel)
	}

	// Without a database the env-defined channel is the only audit target.
	if !c.DB.Enabled() {
		if c.Audit.ChannelID == "" {
			return fmt.Errorf("%w: SLACK_CHANNEL_ID (or DATABASE_URL)", ErrMissingRequired)
		}
		if c.Slack.WebhookURL == "" {
			return fmt.Errorf("%w: SLACK_WEBHOOK (or DATABASE_URL)", ErrMissingRequired)
		}
	}

	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c SlackConfig) Enabled() bool {
	return c.Token != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
