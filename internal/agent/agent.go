// Package agent wires the incident response orchestrator together: event
// intake, the workflow engine, its capability clients and the Slack
// notifier.
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eks-aiops/eks-devops-agent/internal/events"
	"github.com/eks-aiops/eks-devops-agent/internal/workflow"
	"github.com/eks-aiops/eks-devops-agent/pkg/clients"
)

// Agent is the incident response orchestrator.
type Agent struct {
	config     *Config
	dispatcher *events.Dispatcher
	producer   events.Producer
	notifier   *clients.SlackNotifier
	k8s        *clients.K8sClient
	logger     *zap.Logger
}

// New builds the agent and all its clients. Degraded dependencies (no
// cluster access, no Slack token, no AWS credentials) reduce capability
// but do not prevent startup.
func New(ctx context.Context, config *Config, logger *zap.Logger) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	k8sClient, err := clients.NewK8sClient(nil)
	if err != nil {
		logger.Warn("kubernetes client unavailable, cluster steps will fail", zap.Error(err))
		k8sClient = nil
	} else if err := k8sClient.HealthCheck(ctx); err != nil {
		logger.Warn("kubernetes health check failed", zap.Error(err))
	} else {
		version, _ := k8sClient.GetServerVersion(ctx)
		logger.Info("connected to Kubernetes cluster", zap.String("version", version))
	}

	notifier := clients.NewSlackNotifier(clients.SlackConfig{
		Token:       resolveSlackToken(ctx, config, logger),
		Channel:     config.SlackChannel,
		GrafanaURL:  config.GrafanaURL,
		Region:      config.Region,
		ClusterName: config.ClusterName,
	}, logger)

	gateway := clients.NewInsightGateway(config.GatewayURL, config.ClusterName, 30*time.Second, logger)

	var traceClient workflow.TraceClient
	if xrayClient, err := clients.NewXRayClient(ctx, config.Region, logger); err != nil {
		logger.Warn("xray client unavailable, trace steps will fail", zap.Error(err))
	} else {
		traceClient = xrayClient
	}

	var serviceMetrics workflow.ServiceMetricsClient
	if cwClient, err := clients.NewCloudWatchClient(ctx, config.Region, config.ClusterName); err != nil {
		logger.Warn("cloudwatch client unavailable", zap.Error(err))
	} else {
		serviceMetrics = cwClient
	}

	deps := workflow.Dependencies{
		Metrics:        gateway,
		Traces:         traceClient,
		ServiceMetrics: serviceMetrics,
	}
	if k8sClient != nil {
		deps.Cluster = k8sClient
	}

	engine := workflow.NewEngine(deps, workflow.Settings{
		FallbackPod:           config.FallbackPod,
		FallbackNamespace:     config.FallbackNamespace,
		FallbackService:       config.FallbackService,
		FallbackNode:          config.FallbackNode,
		MemoryLimitFloorBytes: int64(config.MemoryLimitFloorMB) * 1024 * 1024,
		RestartCountLimit:     config.RestartCountLimit,
		ThrottleRatioLimit:    config.ThrottleRatioLimit,
		TraceSlowThreshold:    time.Duration(config.TraceSlowThresholdSec) * time.Second,
	}, logger)

	a := &Agent{
		config:     config,
		dispatcher: events.NewDispatcher(engine, notifier, config.MaxConcurrentEvents, logger),
		notifier:   notifier,
		k8s:        k8sClient,
		logger:     logger,
	}
	if config.SimulateEvents {
		a.producer = events.NewSimulatedProducer(config.PollInterval, logger)
	}
	return a, nil
}

// resolveSlackToken prefers the environment token and falls back to
// Secrets Manager. Missing credentials leave the notifier in log-only
// mode.
func resolveSlackToken(ctx context.Context, config *Config, logger *zap.Logger) string {
	if config.SlackToken != "" {
		return config.SlackToken
	}
	if config.SlackSecretName == "" {
		return ""
	}

	secrets, err := clients.NewSecretsClient(ctx, config.Region)
	if err != nil {
		logger.Warn("secrets manager unavailable", zap.Error(err))
		return ""
	}
	token, err := secrets.SlackBotToken(ctx, config.SlackSecretName)
	if err != nil {
		logger.Warn("failed to read slack token from secrets manager", zap.Error(err))
		return ""
	}
	return token
}

// Submit admits an alarm payload to the intake.
func (a *Agent) Submit(payload map[string]interface{}) (*events.Event, error) {
	return a.dispatcher.Submit(payload)
}

// Run starts the dispatcher and, if configured, the simulated event
// producer, then blocks until the context is canceled.
func (a *Agent) Run(ctx context.Context) error {
	a.dispatcher.Start()
	a.sendStartupNotification(ctx)

	if a.producer != nil {
		go func() {
			if err := a.producer.Run(ctx, a.Submit); err != nil && ctx.Err() == nil {
				a.logger.Error("event producer stopped", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	return nil
}

// Shutdown drains in-flight incidents and announces the stop.
func (a *Agent) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down incident response agent")

	if err := a.dispatcher.Stop(ctx); err != nil {
		return err
	}

	if _, err := a.notifier.SendNotification(ctx,
		fmt.Sprintf("DevOps agent for cluster *%s* shutting down", a.config.ClusterName), "info"); err != nil {
		a.logger.Warn("failed to send shutdown notification", zap.Error(err))
	}
	return nil
}

func (a *Agent) sendStartupNotification(ctx context.Context) {
	message := fmt.Sprintf("DevOps agent online for cluster *%s* (max %d concurrent incidents)",
		a.config.ClusterName, a.config.MaxConcurrentEvents)

	if a.k8s != nil {
		if health, err := a.k8s.GetClusterHealth(ctx); err == nil {
			message += fmt.Sprintf("\nCluster health: %s (%d/%d nodes ready, %d pods running)",
				health.Status, health.Nodes.Ready, health.Nodes.Total, health.Pods.Running)
		}
	}

	if _, err := a.notifier.SendNotification(ctx, message, "info"); err != nil {
		a.logger.Warn("failed to send startup notification", zap.Error(err))
	}
}
