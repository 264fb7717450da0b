package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	LogLevel    string
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Ledger      LedgerConfig
	Anomaly     AnomalyConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	URL                string
	CommandExchange    string
	CommandQueue       string
	CommandRoutingKey  string
	EventExchange      string
	UpdatedRoutingKey  string
	RejectedRoutingKey string
	DLQQueue           string
	PrefetchCount      int
	HandleTimeoutSecs  int
}

// LedgerConfig holds running-hours ledger settings
type LedgerConfig struct {
	CacheTTLMinutes       int
	UtilizationWindowDays int
	UtilizationStrategy   string
	BulkWorkers           int
	CacheSweepSchedule    string
	DefaultTimezone       string
}

// AnomalyConfig holds anomaly detection settings
type AnomalyConfig struct {
	MaxHoursPerDay float64
}

// HandleTimeout bounds the processing of one command message
func (c RabbitMQConfig) HandleTimeout() time.Duration {
	return time.Duration(c.HandleTimeoutSecs) * time.Second
}

// CacheTTL returns the utilization cache validity window
func (c LedgerConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// UtilizationWindow returns how far back utilization history is read
func (c LedgerConfig) UtilizationWindow() time.Duration {
	return time.Duration(c.UtilizationWindowDays) * 24 * time.Hour
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "running-hours-ledger"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:                getEnv("RABBITMQ_URL", ""),
			CommandExchange:    getEnv("RABBITMQ_COMMAND_EXCHANGE", "running-hours.commands.exchange"),
			CommandQueue:       getEnv("RABBITMQ_COMMAND_QUEUE", "running-hours.commands.queue"),
			CommandRoutingKey:  getEnv("RABBITMQ_COMMAND_ROUTING_KEY", "running_hours.update.#"),
			EventExchange:      getEnv("RABBITMQ_EVENT_EXCHANGE", "running-hours.events.exchange"),
			UpdatedRoutingKey:  getEnv("RABBITMQ_UPDATED_ROUTING_KEY", "running_hours.updated"),
			RejectedRoutingKey: getEnv("RABBITMQ_REJECTED_ROUTING_KEY", "running_hours.rejected"),
			DLQQueue:           getEnv("RABBITMQ_DLQ_QUEUE", "running-hours.commands.dlq"),
			PrefetchCount:      getEnvAsInt("RABBITMQ_PREFETCH", 10),
			HandleTimeoutSecs:  getEnvAsInt("RABBITMQ_HANDLE_TIMEOUT_SECONDS", 60),
		},
		Ledger: LedgerConfig{
			CacheTTLMinutes:       getEnvAsInt("LEDGER_CACHE_TTL_MINUTES", 15),
			UtilizationWindowDays: getEnvAsInt("LEDGER_UTILIZATION_WINDOW_DAYS", 30),
			UtilizationStrategy:   getEnv("LEDGER_UTILIZATION_STRATEGY", "delta"),
			BulkWorkers:           getEnvAsInt("LEDGER_BULK_WORKERS", 8),
			CacheSweepSchedule:    getEnv("LEDGER_CACHE_SWEEP_SCHEDULE", "@every 15m"),
			DefaultTimezone:       getEnv("LEDGER_DEFAULT_TIMEZONE", "UTC"),
		},
		Anomaly: AnomalyConfig{
			MaxHoursPerDay: getEnvAsFloat("ANOMALY_MAX_HOURS_PER_DAY", 24),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.Ledger.CacheTTLMinutes <= 0 {
		return nil, fmt.Errorf("LEDGER_CACHE_TTL_MINUTES must be positive, got %d", cfg.Ledger.CacheTTLMinutes)
	}
	if cfg.Ledger.UtilizationWindowDays <= 0 {
		return nil, fmt.Errorf("LEDGER_UTILIZATION_WINDOW_DAYS must be positive, got %d", cfg.Ledger.UtilizationWindowDays)
	}
	if cfg.Ledger.BulkWorkers <= 0 {
		return nil, fmt.Errorf("LEDGER_BULK_WORKERS must be positive, got %d", cfg.Ledger.BulkWorkers)
	}
	if _, err := time.LoadLocation(cfg.Ledger.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("LEDGER_DEFAULT_TIMEZONE %q is not a known timezone: %w", cfg.Ledger.DefaultTimezone, err)
	}

	return cfg, nil
}

// RequireRabbitMQ reports whether the broker settings needed by the worker are present
func (c *Config) RequireRabbitMQ() error {
	if c.RabbitMQ.URL == "" {
		return fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
