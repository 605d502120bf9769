package clients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eks-aiops/eks-devops-agent/internal/workflow"
)

func TestSlackNotifier_LogOnlyMode(t *testing.T) {
	n := NewSlackNotifier(SlackConfig{Channel: "#eks-incidents"}, nil)

	ts, err := n.SendNotification(context.Background(), "pod is unhappy", "critical")
	require.NoError(t, err)
	assert.Empty(t, ts)

	_, err = n.SendInvestigationSummary(context.Background(), "INC-1", &workflow.Result{
		Workflow:  workflow.MemoryLeakInvestigation,
		RootCause: "Memory pressure observed",
	})
	require.NoError(t, err)

	_, err = n.SendRemediationApproval(context.Background(), "INC-1", "Restart pod to clear memory", nil)
	require.NoError(t, err)

	require.NoError(t, n.UpdateMessage(context.Background(), "ts-1", "updated"))
	require.NoError(t, n.AddReaction(context.Background(), "ts-1", "white_check_mark"))
}

func TestSeverityEmoji(t *testing.T) {
	tests := map[string]string{
		"critical": "🔴",
		"high":     "🟠",
		"medium":   "🟡",
		"low":      "🟢",
		"warning":  "⚠️",
		"info":     "ℹ️",
	}
	for severity, emoji := range tests {
		assert.Equal(t, emoji, severityEmoji[severity], severity)
	}
}

func TestSlackNotifier_URLs(t *testing.T) {
	n := NewSlackNotifier(SlackConfig{
		GrafanaURL: "https://grafana.example.com",
		Region:     "us-east-1",
	}, nil)

	assert.Equal(t, "https://grafana.example.com/d/eks-cluster-monitoring", n.dashboardURL())
	assert.Equal(t,
		"https://us-east-1.console.aws.amazon.com/cloudwatch/home?region=us-east-1#alarmsV2:",
		n.consoleURL())
}
