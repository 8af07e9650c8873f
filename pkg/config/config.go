package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/psmlab/realtime/pkg/observability"
	"github.com/psmlab/realtime/pkg/store"
)

// Config holds all monitor configuration
type Config struct {
	// Redis-backed store configuration
	Store store.Config

	// Monitor daemon configuration
	Monitor MonitorConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// MonitorConfig holds the monitor daemon's settings
type MonitorConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Rule-driven alerting
	RulesPath     string
	WatchRules    bool
	EvalSchedule   string
	SweepSchedule  string
	SweepMaxAge    time.Duration
	ReportSchedule string

	// HTTP rate limiting
	RateLimit       int
	RateLimitWindow time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Store: store.Config{
			URL:        getEnv("PSM_REDIS_URL", "redis://localhost:6379/0"),
			Password:   getEnv("PSM_REDIS_PASSWORD", ""),
			DB:         getEnvInt("PSM_REDIS_DB", 0),
			MaxRetries: getEnvInt("PSM_REDIS_MAX_RETRIES", 0),
			PoolSize:   getEnvInt("PSM_REDIS_POOL_SIZE", 0),
		},
		Monitor: MonitorConfig{
			Addr:            getEnv("PSM_MONITOR_ADDR", ":8080"),
			ReadTimeout:     getEnvDuration("PSM_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("PSM_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvDuration("PSM_SHUTDOWN_TIMEOUT", 30*time.Second),
			RulesPath:       getEnv("PSM_RULES_PATH", ""),
			WatchRules:      getEnvBool("PSM_RULES_WATCH", true),
			EvalSchedule:    getEnv("PSM_EVAL_SCHEDULE", "@every 1m"),
			SweepSchedule:   getEnv("PSM_SWEEP_SCHEDULE", "@hourly"),
			SweepMaxAge:     getEnvDuration("PSM_SWEEP_MAX_AGE", 7*24*time.Hour),
			ReportSchedule:  getEnv("PSM_REPORT_SCHEDULE", "@hourly"),
			RateLimit:       getEnvInt("PSM_RATE_LIMIT", 300),
			RateLimitWindow: getEnvDuration("PSM_RATE_LIMIT_WINDOW", 15*time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("PSM_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("PSM_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("redis URL is required")
	}
	if c.Monitor.Addr == "" {
		return fmt.Errorf("monitor listen address is required")
	}
	if c.Monitor.SweepMaxAge <= 0 {
		return fmt.Errorf("sweep max age must be positive")
	}
	if c.Monitor.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.Monitor.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	if c.Monitor.RulesPath != "" {
		if _, err := os.Stat(c.Monitor.RulesPath); err != nil {
			return fmt.Errorf("rules path: %w", err)
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

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
