// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// TelegramToken is the bot token issued by BotFather. Required by cmd/server.
	TelegramToken string `mapstructure:"TELEGRAM_TOKEN"`
	// TelegramDebug enables request/response logging inside the Telegram client.
	TelegramDebug bool `mapstructure:"TELEGRAM_DEBUG"`
	// TelegramPollTimeout is the long-polling timeout in seconds (default 60).
	TelegramPollTimeout int `mapstructure:"TELEGRAM_POLL_TIMEOUT"`

	// StatusHTTPAddr is the address of the status page (e.g. :5000).
	StatusHTTPAddr string `mapstructure:"STATUS_HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health server (e.g. :8080). Empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`

	// StoreDriver selects the table store backend: "postgres" or "memory".
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	// DatabaseURL is the Postgres DSN; required when StoreDriver is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// AutoMigrate applies embedded migrations on server start when the postgres driver is used.
	AutoMigrate bool `mapstructure:"AUTO_MIGRATE"`

	// AttendanceTable, StudentsTable and PaymentsTable name the three append-only tables.
	AttendanceTable string `mapstructure:"ATTENDANCE_TABLE"`
	StudentsTable   string `mapstructure:"STUDENTS_TABLE"`
	PaymentsTable   string `mapstructure:"PAYMENTS_TABLE"`

	// Timezone is the IANA zone used to format record timestamps ("Local" for the host zone).
	Timezone string `mapstructure:"TIMEZONE"`
	// ConversationTTL is how long an idle conversation keeps its scratch data (e.g. "30m").
	ConversationTTL string `mapstructure:"CONVERSATION_TTL"`

	// LogLevel is the zap level (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogEncoding is "json" or "console".
	LogEncoding string `mapstructure:"LOG_ENCODING"`
	// LogFile, when set, additionally writes logs to a rotating file.
	LogFile string `mapstructure:"LOG_FILE"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext gRPC to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is reported as service.name on traces, metrics and logs.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated list of Kafka brokers. When set, record events are published.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// RecordEventsTopic is the Kafka topic for record events.
	RecordEventsTopic string `mapstructure:"RECORD_EVENTS_TOPIC"`

	// Worker-only: Loki URL for the record events worker (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the record events worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "")
	v.SetDefault("TELEGRAM_TOKEN", "")
	v.SetDefault("TELEGRAM_DEBUG", false)
	v.SetDefault("TELEGRAM_POLL_TIMEOUT", 60)
	v.SetDefault("STATUS_HTTP_ADDR", ":5000")
	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTO_MIGRATE", false)
	v.SetDefault("ATTENDANCE_TABLE", "attendance")
	v.SetDefault("STUDENTS_TABLE", "students")
	v.SetDefault("PAYMENTS_TABLE", "payments")
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("CONVERSATION_TTL", "30m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_ENCODING", "json")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "oquv-davomat-bot")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("RECORD_EVENTS_TOPIC", "oquvbot-records")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "oquvbot-records-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.StoreDriver != StoreDriverPostgres && cfg.StoreDriver != StoreDriverMemory {
		return nil, errors.New("config: STORE_DRIVER must be postgres or memory")
	}
	if cfg.TelegramPollTimeout <= 0 {
		return nil, errors.New("config: TELEGRAM_POLL_TIMEOUT must be positive")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, errors.New("config: TIMEZONE is not a valid IANA time zone")
	}
	if d, err := time.ParseDuration(cfg.ConversationTTL); err != nil || d <= 0 {
		return nil, errors.New("config: CONVERSATION_TTL must be a positive duration")
	}
	if cfg.AttendanceTable == "" || cfg.StudentsTable == "" || cfg.PaymentsTable == "" {
		return nil, errors.New("config: table names must not be empty")
	}

	return &cfg, nil
}

// Location returns the configured time zone. Falls back to time.Local if the zone cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SessionTTL parses ConversationTTL as a time.Duration. Returns 30m if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.ConversationTTL)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if record events are published (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
