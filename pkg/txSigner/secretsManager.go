package txSigner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
)

// SecretsManagerKeyConfig points at a secret holding a deploy key.
type SecretsManagerKeyConfig struct {
	// Region specifies the AWS region where the secret is stored
	Region string
	// SecretName is the name or ARN of the secret
	SecretName string
}

type privateKeySecret struct {
	PrivateKey string `json:"privateKey"`
}

// NewSecretsManagerClient opens a Secrets Manager client for region.
func NewSecretsManagerClient(region string) (secretsmanageriface.SecretsManagerAPI, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return secretsmanager.New(sess), nil
}

// LoadPrivateKeyFromSecret reads the current version of the secret and
// returns the hex private key it holds. The secret is either the bare hex key
// or a JSON object with a "privateKey" field.
func LoadPrivateKeyFromSecret(ctx context.Context, svc secretsmanageriface.SecretsManagerAPI, secretName string) (string, error) {
	result, err := svc.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretName),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", secretName, err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret string is nil")
	}

	raw := strings.TrimSpace(*result.SecretString)
	if strings.HasPrefix(raw, "{") {
		var s privateKeySecret
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return "", fmt.Errorf("failed to parse secret JSON: %w", err)
		}
		raw = s.PrivateKey
	}
	if raw == "" {
		return "", ErrEmptyPrivateKey
	}
	return raw, nil
}

// NewPrivateKeySignerFromSecretsManager loads the key described by cfg and
// builds a PrivateKeySigner from it.
func NewPrivateKeySignerFromSecretsManager(ctx context.Context, cfg *SecretsManagerKeyConfig) (*PrivateKeySigner, error) {
	svc, err := NewSecretsManagerClient(cfg.Region)
	if err != nil {
		return nil, err
	}
	key, err := LoadPrivateKeyFromSecret(ctx, svc, cfg.SecretName)
	if err != nil {
		return nil, err
	}
	return NewPrivateKeySigner(key)
}
