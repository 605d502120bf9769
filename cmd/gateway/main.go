package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eks-aiops/eks-devops-agent/internal/gateway"
	"github.com/eks-aiops/eks-devops-agent/pkg/logging"
	"github.com/eks-aiops/eks-devops-agent/pkg/promql"
)

var (
	// Version is set during build via -ldflags
	Version = "0.1.0-dev"
)

const shutdownTimeout = 15 * time.Second

func main() {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║  EKS Metrics Query Gateway                               ║")
	fmt.Printf("║  Version: %-48s║\n", Version)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	// Load configuration from environment
	config := gateway.NewConfig()

	printConfig(config)

	if err := config.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger, err := logging.New(config.LogLevel, config.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	signer, err := promql.NewSigV4Signer(ctx, config.Region)
	if err != nil {
		logger.Fatal("failed to create request signer", zap.Error(err))
	}

	executor := promql.NewClient(promql.ClientConfig{
		Region:      config.Region,
		WorkspaceID: config.WorkspaceID,
		Signer:      signer,
		Logger:      logger,
	})

	server, err := gateway.NewServer(config, executor, logger)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	logger.Info("metrics query gateway stopped")
}

// printConfig displays the gateway configuration
func printConfig(cfg *gateway.Config) {
	fmt.Println("Configuration:")
	fmt.Println("──────────────────────────────────────────────────────────")
	fmt.Printf("  Listen Address:      %s\n", cfg.Addr())
	fmt.Printf("  AWS Region:          %s\n", cfg.Region)
	fmt.Printf("  AMP Workspace:       %s\n", cfg.WorkspaceID)
	fmt.Printf("  Query Step:          %s\n", cfg.QueryStep)
	fmt.Printf("  Discovery Cache TTL: %v\n", cfg.CacheTTL)
	fmt.Println("──────────────────────────────────────────────────────────")
	fmt.Println()
}
