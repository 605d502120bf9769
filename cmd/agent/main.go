package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eks-aiops/eks-devops-agent/internal/agent"
	"github.com/eks-aiops/eks-devops-agent/pkg/logging"
)

var (
	// Version is set during build via -ldflags
	Version = "0.1.0-dev"
)

const shutdownTimeout = 30 * time.Second

func main() {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║  EKS DevOps Incident Response Agent                      ║")
	fmt.Printf("║  Version: %-48s║\n", Version)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	// Load configuration from environment
	config := agent.NewConfig()

	printConfig(config)

	if err := config.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger, err := logging.New(config.LogLevel, config.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Shut down gracefully on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := agent.New(ctx, config, logger)
	if err != nil {
		logger.Fatal("failed to create agent", zap.Error(err))
	}

	logger.Info("incident response agent starting",
		zap.String("cluster", config.ClusterName),
		zap.Int("max_concurrent_events", config.MaxConcurrentEvents),
		zap.Bool("simulate_events", config.SimulateEvents))

	if err := a.Run(ctx); err != nil {
		logger.Fatal("agent error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	logger.Info("incident response agent stopped")
}

// printConfig displays the agent configuration
func printConfig(cfg *agent.Config) {
	fmt.Println("Configuration:")
	fmt.Println("──────────────────────────────────────────────────────────")
	fmt.Printf("  AWS Region:          %s\n", cfg.Region)
	fmt.Printf("  EKS Cluster:         %s\n", cfg.ClusterName)
	fmt.Printf("  Slack Channel:       %s\n", cfg.SlackChannel)
	fmt.Printf("  Metrics Gateway:     %s\n", cfg.GatewayURL)
	fmt.Printf("  Max Concurrency:     %d\n", cfg.MaxConcurrentEvents)
	fmt.Printf("  Poll Interval:       %v\n", cfg.PollInterval)
	fmt.Printf("  Simulated Events:    %v\n", cfg.SimulateEvents)
	fmt.Println("──────────────────────────────────────────────────────────")
	fmt.Println()
}
