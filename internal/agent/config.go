package agent

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the incident response agent configuration.
type Config struct {
	// AWS settings
	Region      string
	ClusterName string

	// Slack settings. If Token is empty the agent tries to read it from
	// Secrets Manager under SecretName; if that fails too, notifications
	// are logged only.
	SlackChannel    string
	SlackToken      string
	SlackSecretName string

	// Metrics query gateway endpoint
	GatewayURL string

	// Event intake
	PollInterval        time.Duration
	MaxConcurrentEvents int
	SimulateEvents      bool

	// Investigation fallbacks and thresholds
	FallbackPod           string
	FallbackNamespace     string
	FallbackService       string
	FallbackNode          string
	MemoryLimitFloorMB    int
	RestartCountLimit     int
	ThrottleRatioLimit    float64
	TraceSlowThresholdSec int

	GrafanaURL string
	LogLevel   string
	LogFormat  string
}

// NewConfig creates a Config from environment variables with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Region:      getEnv("AWS_REGION", "us-east-1"),
		ClusterName: getEnv("EKS_CLUSTER_NAME", "PetAdoptions-EKS"),

		SlackChannel:    getEnv("SLACK_CHANNEL", "#eks-incidents"),
		SlackToken:      getEnv("SLACK_BOT_TOKEN", ""),
		SlackSecretName: getEnv("SLACK_SECRET_NAME", "devops-agent/slack-token"),

		GatewayURL: getEnv("PROMETHEUS_MCP_URL", "http://prometheus-mcp-server:8080"),

		PollInterval:        getEnvDuration("EVENT_POLL_INTERVAL", 30*time.Second),
		MaxConcurrentEvents: getEnvInt("MAX_CONCURRENT_EVENTS", 3),
		SimulateEvents:      getEnvBool("SIMULATE_EVENTS", false),

		FallbackPod:           getEnv("FALLBACK_POD_NAME", "petadoptionshistory-py"),
		FallbackNamespace:     getEnv("FALLBACK_NAMESPACE", "default"),
		FallbackService:       getEnv("FALLBACK_SERVICE_NAME", "payforadoption-go"),
		FallbackNode:          getEnv("FALLBACK_NODE_NAME", "ip-10-0-1-100.ec2.internal"),
		MemoryLimitFloorMB:    getEnvInt("MEMORY_LIMIT_FLOOR_MB", 128),
		RestartCountLimit:     getEnvInt("RESTART_COUNT_LIMIT", 5),
		ThrottleRatioLimit:    getEnvFloat("THROTTLE_RATIO_LIMIT", 0.10),
		TraceSlowThresholdSec: getEnvInt("TRACE_SLOW_THRESHOLD_SECONDS", 1),

		GrafanaURL: getEnv("GRAFANA_URL", "http://localhost:3000"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "json"),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("AWS_REGION is required")
	}
	if c.MaxConcurrentEvents < 1 {
		return fmt.Errorf("invalid MAX_CONCURRENT_EVENTS: %d (minimum 1)", c.MaxConcurrentEvents)
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll interval too low: %v (minimum 1s)", c.PollInterval)
	}
	if c.ThrottleRatioLimit <= 0 || c.ThrottleRatioLimit >= 1 {
		return fmt.Errorf("invalid THROTTLE_RATIO_LIMIT: %v (must be in (0, 1))", c.ThrottleRatioLimit)
	}
	return nil
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
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
