package gateway

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the metrics query gateway configuration.
type Config struct {
	// HTTP listen settings
	Host string // Default: "0.0.0.0"
	Port int    // Default: 8080

	// Amazon Managed Prometheus settings
	Region      string // AWS region hosting the workspace
	WorkspaceID string // AMP workspace ID (ws-...)

	// Query settings
	QueryStep string        // Range query resolution step
	CacheTTL  time.Duration // TTL for the metric discovery cache

	LogLevel  string
	LogFormat string
}

// NewConfig creates a Config from environment variables with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnvInt("PORT", 8080),

		Region:      getEnv("AWS_REGION", "us-east-1"),
		WorkspaceID: getEnv("AMP_WORKSPACE_ID", ""),

		QueryStep: getEnv("QUERY_STEP", "15s"),
		CacheTTL:  getEnvDuration("CACHE_TTL", 5*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}
	if c.WorkspaceID == "" {
		return fmt.Errorf("AMP_WORKSPACE_ID is required")
	}
	if c.CacheTTL < time.Second {
		return fmt.Errorf("cache TTL too low: %v (minimum 1s)", c.CacheTTL)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions to read environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
