package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/eks-aiops/eks-devops-agent/internal/workflow"
)

// severityEmoji maps notification severities to their channel markers.
var severityEmoji = map[string]string{
	"critical": "🔴",
	"high":     "🟠",
	"medium":   "🟡",
	"low":      "🟢",
	"warning":  "⚠️",
	"info":     "ℹ️",
}

// SlackConfig configures the notifier.
type SlackConfig struct {
	Token       string // empty token puts the notifier in log-only mode
	Channel     string
	GrafanaURL  string
	Region      string
	ClusterName string
}

// SlackNotifier posts incident notifications to a Slack channel. Without
// a token it logs messages instead of sending them, so local runs work
// without credentials.
type SlackNotifier struct {
	client *slack.Client
	config SlackConfig
	logger *zap.Logger
}

func NewSlackNotifier(config SlackConfig, logger *zap.Logger) *SlackNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	n := &SlackNotifier{config: config, logger: logger}
	if config.Token != "" {
		n.client = slack.New(config.Token)
	} else {
		logger.Warn("slack token not configured, notifications will be logged only")
	}
	return n
}

// SendNotification posts a plain message with a severity marker and
// returns the message timestamp.
func (n *SlackNotifier) SendNotification(ctx context.Context, message, severity string) (string, error) {
	emoji, ok := severityEmoji[severity]
	if !ok {
		emoji = severityEmoji["info"]
	}
	text := fmt.Sprintf("%s %s", emoji, message)

	if n.client == nil {
		n.logger.Info("notification (log-only)", zap.String("text", text))
		return "", nil
	}

	_, ts, err := n.client.PostMessageContext(ctx, n.config.Channel,
		slack.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("failed to send slack notification: %w", err)
	}
	return ts, nil
}

// SendInvestigationSummary posts the full investigation result: header,
// workflow, duration, root cause, recommendations and dashboard links.
func (n *SlackNotifier) SendInvestigationSummary(ctx context.Context, incidentID string, result *workflow.Result) (string, error) {
	if n.client == nil {
		n.logger.Info("investigation summary (log-only)",
			zap.String("incident_id", incidentID),
			zap.String("root_cause", result.RootCause))
		return "", nil
	}

	var recommendations strings.Builder
	for _, rec := range result.Recommendations {
		fmt.Fprintf(&recommendations, "• %s\n", rec)
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType,
			fmt.Sprintf("🔍 Investigation Complete: %s", incidentID), true, false)),
		slack.NewSectionBlock(nil, []*slack.TextBlockObject{
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("*Workflow:*\n%s", result.Workflow), false, false),
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("*Duration:*\n%s", result.Duration.Round(time.Millisecond)), false, false),
		}, nil),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Root Cause:*\n%s", result.RootCause), false, false), nil, nil),
	}

	if recommendations.Len() > 0 {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Recommendations:*\n%s", recommendations.String()), false, false), nil, nil))
	}

	blocks = append(blocks, slack.NewActionBlock("links_"+incidentID,
		n.linkButton("dashboard", "📊 View Dashboard", n.dashboardURL()),
		n.linkButton("console", "☁️ CloudWatch Console", n.consoleURL()),
	))

	_, ts, err := n.client.PostMessageContext(ctx, n.config.Channel,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText(fmt.Sprintf("Investigation complete: %s", incidentID), false))
	if err != nil {
		return "", fmt.Errorf("failed to send investigation summary: %w", err)
	}
	return ts, nil
}

// SendRemediationApproval posts an approve/reject prompt for a proposed
// remediation action.
func (n *SlackNotifier) SendRemediationApproval(ctx context.Context, incidentID, action string, details map[string]string) (string, error) {
	if n.client == nil {
		n.logger.Info("remediation approval (log-only)",
			zap.String("incident_id", incidentID), zap.String("action", action))
		return "", nil
	}

	var detailText strings.Builder
	for key, value := range details {
		fmt.Fprintf(&detailText, "*%s:* %s\n", key, value)
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType,
			"⚠️ Remediation Approval Required", true, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Incident:* %s\n*Proposed action:* %s\n%s", incidentID, action, detailText.String()),
			false, false), nil, nil),
		slack.NewActionBlock("remediation_"+incidentID,
			slack.NewButtonBlockElement("approve_remediation",
				fmt.Sprintf("approve_%s_%s", incidentID, action),
				slack.NewTextBlockObject(slack.PlainTextType, "✅ Approve", true, false)).
				WithStyle(slack.StylePrimary),
			slack.NewButtonBlockElement("reject_remediation",
				fmt.Sprintf("reject_%s_%s", incidentID, action),
				slack.NewTextBlockObject(slack.PlainTextType, "❌ Reject", true, false)).
				WithStyle(slack.StyleDanger),
		),
	}

	_, ts, err := n.client.PostMessageContext(ctx, n.config.Channel,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText("Remediation approval required for "+incidentID, false))
	if err != nil {
		return "", fmt.Errorf("failed to send remediation approval: %w", err)
	}
	return ts, nil
}

// UpdateMessage replaces the text of an earlier message.
func (n *SlackNotifier) UpdateMessage(ctx context.Context, ts, message string) error {
	if n.client == nil {
		n.logger.Info("message update (log-only)", zap.String("text", message))
		return nil
	}

	_, _, _, err := n.client.UpdateMessageContext(ctx, n.config.Channel, ts,
		slack.MsgOptionText(message, false))
	if err != nil {
		return fmt.Errorf("failed to update slack message: %w", err)
	}
	return nil
}

// AddReaction attaches an emoji reaction to a message.
func (n *SlackNotifier) AddReaction(ctx context.Context, ts, emoji string) error {
	if n.client == nil {
		return nil
	}

	err := n.client.AddReactionContext(ctx, emoji, slack.ItemRef{
		Channel:   n.config.Channel,
		Timestamp: ts,
	})
	if err != nil {
		return fmt.Errorf("failed to add reaction: %w", err)
	}
	return nil
}

func (n *SlackNotifier) dashboardURL() string {
	base := n.config.GrafanaURL
	if base == "" {
		base = "http://localhost:3000"
	}
	return base + "/d/eks-cluster-monitoring"
}

func (n *SlackNotifier) consoleURL() string {
	return fmt.Sprintf("https://%s.console.aws.amazon.com/cloudwatch/home?region=%s#alarmsV2:",
		n.config.Region, n.config.Region)
}

func (n *SlackNotifier) linkButton(id, label, url string) *slack.ButtonBlockElement {
	button := slack.NewButtonBlockElement(id, url,
		slack.NewTextBlockObject(slack.PlainTextType, label, true, false))
	button.URL = url
	return button
}
