// Package secrets resolves named secrets to credential material at startup.
package secrets

import (
	"context"
	stderr "errors"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/tiervault/tiervault/pkg/errors"
)

// Provider resolves a named secret to its string value.
type Provider interface {
	Resolve(ctx context.Context, secretName string) (string, error)
}

// AWSProvider resolves secrets from AWS Secrets Manager.
type AWSProvider struct {
	client *secretsmanager.Client
}

// NewAWSProvider creates a provider bound to the given region.
func NewAWSProvider(ctx context.Context, region string) (*AWSProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigLoad, "failed to load AWS config", err)
	}
	return &AWSProvider{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// Resolve fetches one secret value by name.
func (p *AWSProvider) Resolve(ctx context.Context, secretName string) (string, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if stderr.As(err, &notFound) {
			return "", errors.Newf(errors.ErrCodeSecretNotFound, "secret %q not found", secretName)
		}
		if strings.Contains(err.Error(), "AccessDenied") {
			return "", errors.Wrap(errors.ErrCodeAccessDenied, "access denied resolving "+secretName, err)
		}
		return "", errors.Wrap(errors.ErrCodeStoreUnavailable, "secret lookup failed", err).
			WithComponent("secrets").WithContext("secret", secretName)
	}
	if out.SecretString == nil {
		return "", errors.Newf(errors.ErrCodeSecretNotFound, "secret %q has no string value", secretName)
	}
	return *out.SecretString, nil
}

// EnvProvider resolves secrets from environment variables, used for local
// runs and tests. Secret names map to variables by uppercasing and
// replacing separators, e.g. "storage-credentials" -> "STORAGE_CREDENTIALS".
type EnvProvider struct{}

// Resolve looks the secret up in the process environment.
func (EnvProvider) Resolve(ctx context.Context, secretName string) (string, error) {
	envName := strings.ToUpper(strings.NewReplacer("-", "_", "/", "_", ".", "_").Replace(secretName))
	if value, ok := os.LookupEnv(envName); ok {
		return value, nil
	}
	return "", errors.Newf(errors.ErrCodeSecretNotFound, "secret %q not found in environment (%s)", secretName, envName)
}
