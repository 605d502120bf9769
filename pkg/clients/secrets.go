package clients

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsAPI is the Secrets Manager surface used for token lookup.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsClient reads credentials from AWS Secrets Manager.
type SecretsClient struct {
	api SecretsAPI
}

func NewSecretsClient(ctx context.Context, region string) (*SecretsClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SecretsClient{api: secretsmanager.NewFromConfig(cfg)}, nil
}

// NewSecretsClientWithAPI wraps an existing API client. Tests use this.
func NewSecretsClientWithAPI(api SecretsAPI) *SecretsClient {
	return &SecretsClient{api: api}
}

// SlackBotToken reads the bot token from a secret. The secret may be a
// JSON document with a bot_token field or the raw token string.
func (c *SecretsClient) SlackBotToken(ctx context.Context, secretName string) (string, error) {
	out, err := c.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s: %w", secretName, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", secretName)
	}

	var doc struct {
		BotToken string `json:"bot_token"`
	}
	if err := json.Unmarshal([]byte(*out.SecretString), &doc); err == nil && doc.BotToken != "" {
		return doc.BotToken, nil
	}
	return *out.SecretString, nil
}
