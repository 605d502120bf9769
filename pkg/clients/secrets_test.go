package clients

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsAPI struct {
	value string
	err   error
}

func (f *fakeSecretsAPI) GetSecretValue(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.value)}, nil
}

func TestSlackBotToken_JSONSecret(t *testing.T) {
	client := NewSecretsClientWithAPI(&fakeSecretsAPI{value: `{"bot_token": "xoxb-123"}`})

	token, err := client.SlackBotToken(context.Background(), "devops-agent/slack-token")
	require.NoError(t, err)
	assert.Equal(t, "xoxb-123", token)
}

func TestSlackBotToken_RawSecret(t *testing.T) {
	client := NewSecretsClientWithAPI(&fakeSecretsAPI{value: "xoxb-raw"})

	token, err := client.SlackBotToken(context.Background(), "devops-agent/slack-token")
	require.NoError(t, err)
	assert.Equal(t, "xoxb-raw", token)
}

func TestSlackBotToken_Error(t *testing.T) {
	client := NewSecretsClientWithAPI(&fakeSecretsAPI{err: errors.New("access denied")})

	_, err := client.SlackBotToken(context.Background(), "devops-agent/slack-token")
	assert.Error(t, err)
}
