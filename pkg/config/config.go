// Package config loads application configuration from TALLY_* environment
// variables with validated defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Ledger        LedgerConfig
	Auth          AuthConfig
	Notify        NotifyConfig
	Billing       BillingConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// AdminToken guards the administrative trigger surface
	AdminToken string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig holds Redis configuration for the entitlement cache and
// the distributed rate limiter. Leaving Addr empty keeps everything
// in-process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// LedgerConfig holds the external ledger provider configuration
type LedgerConfig struct {
	BaseURL string
	APIKey  string
}

// AuthConfig holds the external identity provider used to provision seat
// logins. Leaving BaseURL empty switches to locally generated identities.
type AuthConfig struct {
	BaseURL string
	APIKey  string
}

// NotifyConfig holds the outbound notification channel. Leaving WebhookURL
// empty routes notifications to the structured log.
type NotifyConfig struct {
	WebhookURL    string
	WebhookSecret string
}

// BillingConfig holds billing policy settings
type BillingConfig struct {
	TaxRatePercent  int64
	GracePeriodDays int

	// HolidayFile is an optional YAML holiday calendar; business-day
	// adjustment falls back to weekends-only when unset.
	HolidayFile string

	// EnforcerSchedule and BillingSchedule are cron expressions for the
	// daily jobs.
	EnforcerSchedule string
	BillingSchedule  string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("TALLY_HOST", "0.0.0.0"),
			Port:            getEnv("TALLY_PORT", "8080"),
			ReadTimeout:     getEnvDuration("TALLY_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("TALLY_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("TALLY_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("TALLY_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("TALLY_HEALTH_PORT", "9090"),
			AdminToken:      getEnv("TALLY_ADMIN_TOKEN", ""),
		},
		Database: DatabaseConfig{
			URL:          getEnv("TALLY_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("TALLY_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("TALLY_POSTGRES_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("TALLY_POSTGRES_CONN_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("TALLY_REDIS_ADDR", ""),
			Password: getEnv("TALLY_REDIS_PASSWORD", ""),
			DB:       getEnvInt("TALLY_REDIS_DB", 0),
			CacheTTL: getEnvDuration("TALLY_CACHE_TTL", 5*time.Minute),
		},
		Ledger: LedgerConfig{
			BaseURL: getEnv("TALLY_LEDGER_URL", ""),
			APIKey:  getEnv("TALLY_LEDGER_API_KEY", ""),
		},
		Auth: AuthConfig{
			BaseURL: getEnv("TALLY_AUTH_URL", ""),
			APIKey:  getEnv("TALLY_AUTH_API_KEY", ""),
		},
		Notify: NotifyConfig{
			WebhookURL:    getEnv("TALLY_WEBHOOK_URL", ""),
			WebhookSecret: getEnv("TALLY_WEBHOOK_SECRET", ""),
		},
		Billing: BillingConfig{
			TaxRatePercent:   getEnvInt64("TALLY_TAX_RATE_PERCENT", 10),
			GracePeriodDays:  getEnvInt("TALLY_GRACE_PERIOD_DAYS", 30),
			HolidayFile:      getEnv("TALLY_HOLIDAY_FILE", ""),
			EnforcerSchedule: getEnv("TALLY_ENFORCER_SCHEDULE", "0 2 * * *"),
			BillingSchedule:  getEnv("TALLY_BILLING_SCHEDULE", "0 3 * * *"),
		},
		Observability: ObservabilityConfig{
			LogLevel:           getEnv("TALLY_LOG_LEVEL", "info"),
			LogFormat:          getEnv("TALLY_LOG_FORMAT", "json"),
			MetricsEnabled:     getEnvBool("TALLY_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("TALLY_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("TALLY_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("TALLY_OTEL_SERVICE_NAME", "tally"),
			OTelServiceVersion: getEnv("TALLY_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("TALLY_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Billing.TaxRatePercent < 0 || c.Billing.TaxRatePercent > 100 {
		return fmt.Errorf("tax rate must be between 0 and 100 percent")
	}
	if c.Billing.GracePeriodDays < 1 {
		return fmt.Errorf("grace period must be at least 1 day")
	}
	if c.Ledger.BaseURL != "" && c.Ledger.APIKey == "" {
		return fmt.Errorf("ledger API key is required when a ledger URL is set")
	}
	if c.Auth.BaseURL != "" && c.Auth.APIKey == "" {
		return fmt.Errorf("auth API key is required when an auth URL is set")
	}
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
