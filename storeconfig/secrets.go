package storeconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/raywall/fast-crud-toolkit/pkg/awsconfig"
)

const (
	ssmScheme     = "ssm://"
	secretsScheme = "secretsmanager://"
)

// Interfaces para abstrair o SDK da AWS (Permite Mocking)
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type SecretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretSources são os clientes usados por ResolveSecrets. Campos nil são
// criados a partir da configuração compartilhada da AWS quando necessários.
type SecretSources struct {
	SSM     SSMClient
	Secrets SecretsClient
}

// IsSecretRef informa se a credencial aponta para um segredo na AWS.
func IsSecretRef(credential string) bool {
	return strings.HasPrefix(credential, ssmScheme) || strings.HasPrefix(credential, secretsScheme)
}

// ResolveSecrets troca uma credencial do tipo ssm://<parâmetro> ou
// secretsmanager://<id>[#chave] pelo valor armazenado. Credenciais literais
// são devolvidas sem nenhuma chamada de rede.
func ResolveSecrets(ctx context.Context, cfg ConnectionConfig, src SecretSources) (ConnectionConfig, error) {
	if !IsSecretRef(cfg.Credential) {
		return cfg, nil
	}

	var (
		value string
		err   error
	)

	switch {
	case strings.HasPrefix(cfg.Credential, ssmScheme):
		client := src.SSM
		if client == nil {
			awsCfg, cfgErr := awsconfig.Shared(ctx, cfg.AWSRegion)
			if cfgErr != nil {
				return cfg, &ConfigError{Field: "SUPABASE_KEY", Reason: "could not load AWS config", Err: cfgErr}
			}
			client = ssm.NewFromConfig(awsCfg)
		}
		value, err = getParameter(ctx, client, strings.TrimPrefix(cfg.Credential, ssmScheme))

	default:
		client := src.Secrets
		if client == nil {
			awsCfg, cfgErr := awsconfig.Shared(ctx, cfg.AWSRegion)
			if cfgErr != nil {
				return cfg, &ConfigError{Field: "SUPABASE_KEY", Reason: "could not load AWS config", Err: cfgErr}
			}
			client = secretsmanager.NewFromConfig(awsCfg)
		}
		value, err = getSecret(ctx, client, strings.TrimPrefix(cfg.Credential, secretsScheme))
	}

	if err != nil {
		return cfg, &ConfigError{Field: "SUPABASE_KEY", Reason: "could not resolve secret", Err: err}
	}
	if strings.TrimSpace(value) == "" {
		return cfg, &ConfigError{Field: "SUPABASE_KEY", Reason: "resolved secret is empty"}
	}

	out := cfg
	out.Credential = value
	return out, nil
}

func getParameter(ctx context.Context, client SSMClient, name string) (string, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ssm GetParameter %s: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("ssm parameter %s has no value", name)
	}
	return *out.Parameter.Value, nil
}

// getSecret aceita "id#chave": quando o segredo é um JSON, a chave escolhe o campo.
func getSecret(ctx context.Context, client SecretsClient, ref string) (string, error) {
	id, field, _ := strings.Cut(ref, "#")

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return "", fmt.Errorf("secretsmanager GetSecretValue %s: %w", id, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", id)
	}

	val := *out.SecretString
	if field == "" {
		return val, nil
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return "", fmt.Errorf("secret %s is not a JSON object: %w", id, err)
	}
	v, ok := data[field]
	if !ok {
		return "", fmt.Errorf("secret %s has no key %q", id, field)
	}
	return fmt.Sprintf("%v", v), nil
}
