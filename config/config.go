package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"fitpledge/database"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// HTTP configuration
	HTTPAddr      string
	JWTSecret     string
	JWTTokenTTL   time.Duration
	WebhookSecret string

	// NATS configuration
	NATSServers string
	NATSEnabled bool

	// Settlement configuration
	SettlementIntervalMinutes int
	PodiumSplits              []int

	// Pending withdrawals are sent to the provider again after this long without a result
	WithdrawalResendAfter time.Duration

	// Retry policy for transient store failures
	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelServiceName          string
	OTelExporterType         string // "otlp", "console" or "none"
	OTelOTLPEndpoint         string
	OTelExportIntervalMillis int

	// Logging
	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// SetTestConfig replaces the global configuration, for tests
func SetTestConfig(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = cfg
}

// ResetConfig clears the global configuration so the next Get reloads it
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig returns a configuration suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		HTTPAddr:                  ":0",
		JWTSecret:                 "test-secret",
		JWTTokenTTL:               time.Hour,
		WebhookSecret:             "test-webhook-secret",
		SettlementIntervalMinutes: 5,
		PodiumSplits:              []int{60, 30, 10},
		WithdrawalResendAfter:     15 * time.Minute,
		RetryMaxAttempts:          3,
		RetryInitialInterval:      time.Millisecond,
		RetryMaxInterval:          5 * time.Millisecond,
		OTelServiceName:           "fitpledge",
		OTelExporterType:          "none",
		OTelExportIntervalMillis:  60000,
		LogLevel:                  "debug",
		Environment:               "test",
	}
}

// load loads configuration from environment variables, reading .env first when present
func load() (*Config, error) {
	// A missing .env file is normal outside local development
	_ = godotenv.Load()

	config := &Config{
		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		// HTTP
		HTTPAddr:      getEnvWithDefault("HTTP_ADDR", ":8080"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTTokenTTL:   24 * time.Hour,
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),

		// NATS
		NATSServers: getEnvWithDefault("NATS_SERVERS", "nats://localhost:4222"),
		NATSEnabled: getEnvWithDefault("NATS_ENABLED", "true") == "true",

		// Settlement defaults
		SettlementIntervalMinutes: 5,
		PodiumSplits:              []int{60, 30, 10},
		WithdrawalResendAfter:     15 * time.Minute,

		// Retry defaults
		RetryMaxAttempts:     5,
		RetryInitialInterval: 50 * time.Millisecond,
		RetryMaxInterval:     time.Second,

		// OpenTelemetry
		OTelEnabled:              os.Getenv("OTEL_ENABLED") == "true",
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "fitpledge"),
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "otlp"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelExportIntervalMillis: 60000,

		// Logging
		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		// Environment
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
	}

	// Override defaults if environment variables are set
	if interval := os.Getenv("SETTLEMENT_INTERVAL_MINUTES"); interval != "" {
		parsed, err := strconv.Atoi(interval)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("invalid SETTLEMENT_INTERVAL_MINUTES %q", interval)
		}
		config.SettlementIntervalMinutes = parsed
	}
	if ttl := os.Getenv("JWT_TOKEN_TTL"); ttl != "" {
		parsed, err := time.ParseDuration(ttl)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid JWT_TOKEN_TTL %q", ttl)
		}
		config.JWTTokenTTL = parsed
	}
	if resend := os.Getenv("WITHDRAWAL_RESEND_AFTER"); resend != "" {
		parsed, err := time.ParseDuration(resend)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid WITHDRAWAL_RESEND_AFTER %q", resend)
		}
		config.WithdrawalResendAfter = parsed
	}
	if attempts := os.Getenv("RETRY_MAX_ATTEMPTS"); attempts != "" {
		parsed, err := strconv.Atoi(attempts)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("invalid RETRY_MAX_ATTEMPTS %q", attempts)
		}
		config.RetryMaxAttempts = parsed
	}
	if initial := os.Getenv("RETRY_INITIAL_INTERVAL"); initial != "" {
		parsed, err := time.ParseDuration(initial)
		if err != nil {
			return nil, fmt.Errorf("invalid RETRY_INITIAL_INTERVAL %q: %w", initial, err)
		}
		config.RetryInitialInterval = parsed
	}
	if maxInterval := os.Getenv("RETRY_MAX_INTERVAL"); maxInterval != "" {
		parsed, err := time.ParseDuration(maxInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid RETRY_MAX_INTERVAL %q: %w", maxInterval, err)
		}
		config.RetryMaxInterval = parsed
	}
	if exportInterval := os.Getenv("OTEL_EXPORT_INTERVAL_MILLIS"); exportInterval != "" {
		if parsed, err := strconv.Atoi(exportInterval); err == nil && parsed > 0 {
			config.OTelExportIntervalMillis = parsed
		}
	}

	// Parse podium splits
	if splits := os.Getenv("PODIUM_SPLITS"); splits != "" {
		parsed, err := parseSplits(splits)
		if err != nil {
			return nil, err
		}
		config.PodiumSplits = parsed
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required")
		}
		if config.WebhookSecret == "" {
			return nil, fmt.Errorf("WEBHOOK_SECRET is required")
		}
	}

	return config, nil
}

func parseSplits(value string) ([]int, error) {
	var splits []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid PODIUM_SPLITS entry %q", part)
		}
		splits = append(splits, n)
	}
	return splits, nil
}

// getEnvWithDefault returns the environment variable or a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
