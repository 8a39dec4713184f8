package storeconfig

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("valid environment", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("SUPABASE_URL", "https://xyz.supabase.co")
		t.Setenv("SUPABASE_KEY", "anon-key")
		t.Setenv("SUPABASE_TIMEOUT", "")
		t.Setenv("SUPABASE_PAGE_SIZE", "")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, "https://xyz.supabase.co", cfg.Endpoint)
		assert.Equal(t, "anon-key", cfg.Credential)
		assert.Equal(t, 30*time.Second, cfg.Timeout)
		assert.Equal(t, 1000, cfg.PageSize)
	})

	t.Run("missing endpoint", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("SUPABASE_URL", "")
		t.Setenv("SUPABASE_KEY", "anon-key")

		_, err := FromEnv()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "SUPABASE_URL", cfgErr.Field)
	})

	t.Run("missing credential", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("SUPABASE_URL", "https://xyz.supabase.co")
		t.Setenv("SUPABASE_KEY", "   ")

		_, err := FromEnv()
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "SUPABASE_KEY", cfgErr.Field)
	})

	t.Run("dotenv file", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		// godotenv não sobrescreve variáveis existentes, mesmo vazias
		t.Setenv("SUPABASE_URL", "")
		t.Setenv("SUPABASE_KEY", "")
		require.NoError(t, os.Unsetenv("SUPABASE_URL"))
		require.NoError(t, os.Unsetenv("SUPABASE_KEY"))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
			[]byte("SUPABASE_URL=memory://\nSUPABASE_KEY=from-dotenv\n"), 0o600))

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, "memory://", cfg.Endpoint)
		assert.Equal(t, "from-dotenv", cfg.Credential)
	})
}

func TestFromMap(t *testing.T) {
	tests := []struct {
		name      string
		values    map[string]string
		wantErr   bool
		wantField string
		check     func(t *testing.T, cfg ConnectionConfig)
	}{
		{
			name:   "short keys",
			values: map[string]string{"url": "https://xyz.supabase.co", "key": "k", "page_size": "50", "timeout": "5s"},
			check: func(t *testing.T, cfg ConnectionConfig) {
				assert.Equal(t, "https://xyz.supabase.co", cfg.Endpoint)
				assert.Equal(t, "k", cfg.Credential)
				assert.Equal(t, 50, cfg.PageSize)
				assert.Equal(t, 5*time.Second, cfg.Timeout)
			},
		},
		{
			name:   "env style keys",
			values: map[string]string{"SUPABASE_URL": "sqlite::memory:", "SUPABASE_KEY": "k", "SUPABASE_PROBE_TABLE": "users"},
			check: func(t *testing.T, cfg ConnectionConfig) {
				assert.Equal(t, "sqlite::memory:", cfg.Endpoint)
				assert.Equal(t, "users", cfg.ProbeTable)
			},
		},
		{
			name:   "api url override",
			values: map[string]string{"endpoint": "memory://", "credential": "k", "api_url": "https://profiles.local"},
			check: func(t *testing.T, cfg ConnectionConfig) {
				assert.Equal(t, "https://profiles.local", cfg.ProfileAPIURL)
			},
		},
		{
			name:      "empty mapping",
			values:    map[string]string{},
			wantErr:   true,
			wantField: "SUPABASE_URL",
		},
		{
			name:      "no credential",
			values:    map[string]string{"url": "https://xyz.supabase.co"},
			wantErr:   true,
			wantField: "SUPABASE_KEY",
		},
		{
			name:      "endpoint is not a uri",
			values:    map[string]string{"url": "not a uri", "key": "k"},
			wantErr:   true,
			wantField: "SUPABASE_URL",
		},
		{
			name:      "zero page size",
			values:    map[string]string{"url": "memory://", "key": "k", "page_size": "0"},
			wantErr:   true,
			wantField: "SUPABASE_PAGE_SIZE",
		},
		{
			name:      "page size is not a number",
			values:    map[string]string{"url": "memory://", "key": "k", "page_size": "many"},
			wantErr:   true,
			wantField: "SUPABASE_PAGE_SIZE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromMap(tt.values)
			if tt.wantErr {
				var cfgErr *ConfigError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, tt.wantField, cfgErr.Field)
				assert.Equal(t, ConnectionConfig{}, cfg)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: https://xyz.supabase.co\nkey: file-key\npage_size: 25\n"), 0o600))

	cfg, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.Credential)
	assert.Equal(t, 25, cfg.PageSize)

	_, err = FromFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRedacted(t *testing.T) {
	cfg := ConnectionConfig{Endpoint: "memory://", Credential: "super-secret"}
	assert.Equal(t, "supe****", cfg.Redacted().Credential)
	assert.Equal(t, "super-secret", cfg.Credential)
	assert.Equal(t, "****", ConnectionConfig{Credential: "abc"}.Redacted().Credential)
}

type MockSSM struct {
	GetParameterFunc func(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

func (m *MockSSM) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	return m.GetParameterFunc(ctx, params, optFns...)
}

type MockSecrets struct {
	GetSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

func (m *MockSecrets) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return m.GetSecretValueFunc(ctx, params, optFns...)
}

func TestResolveSecrets(t *testing.T) {
	ctx := context.Background()
	base := ConnectionConfig{Endpoint: "https://xyz.supabase.co", PageSize: 1000, Timeout: time.Second}

	t.Run("literal credential is untouched", func(t *testing.T) {
		cfg := base
		cfg.Credential = "plain"
		out, err := ResolveSecrets(ctx, cfg, SecretSources{})
		require.NoError(t, err)
		assert.Equal(t, cfg, out)
	})

	t.Run("ssm parameter", func(t *testing.T) {
		cfg := base
		cfg.Credential = "ssm:///crud/supabase/key"
		mock := &MockSSM{
			GetParameterFunc: func(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
				assert.Equal(t, "/crud/supabase/key", *params.Name)
				assert.True(t, *params.WithDecryption)
				return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String("from-ssm")}}, nil
			},
		}
		out, err := ResolveSecrets(ctx, cfg, SecretSources{SSM: mock})
		require.NoError(t, err)
		assert.Equal(t, "from-ssm", out.Credential)
		assert.Equal(t, "ssm:///crud/supabase/key", cfg.Credential)
	})

	t.Run("secrets manager json key", func(t *testing.T) {
		cfg := base
		cfg.Credential = "secretsmanager://prod/crud#service_key"
		mock := &MockSecrets{
			GetSecretValueFunc: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
				assert.Equal(t, "prod/crud", *params.SecretId)
				return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"service_key":"sk-123","anon":"a"}`)}, nil
			},
		}
		out, err := ResolveSecrets(ctx, cfg, SecretSources{Secrets: mock})
		require.NoError(t, err)
		assert.Equal(t, "sk-123", out.Credential)
	})

	t.Run("secrets manager plain string", func(t *testing.T) {
		cfg := base
		cfg.Credential = "secretsmanager://prod/crud"
		mock := &MockSecrets{
			GetSecretValueFunc: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
				return &secretsmanager.GetSecretValueOutput{SecretString: aws.String("raw-value")}, nil
			},
		}
		out, err := ResolveSecrets(ctx, cfg, SecretSources{Secrets: mock})
		require.NoError(t, err)
		assert.Equal(t, "raw-value", out.Credential)
	})

	t.Run("aws failure", func(t *testing.T) {
		cfg := base
		cfg.Credential = "ssm://missing"
		awsErr := errors.New("ParameterNotFound")
		mock := &MockSSM{
			GetParameterFunc: func(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
				return nil, awsErr
			},
		}
		_, err := ResolveSecrets(ctx, cfg, SecretSources{SSM: mock})
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.ErrorIs(t, err, awsErr)
	})
}

func TestWithDefaults(t *testing.T) {
	cfg := ConnectionConfig{Endpoint: "memory://", Credential: "k"}.WithDefaults()
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.NoError(t, cfg.Validate())

	kept := ConnectionConfig{Timeout: time.Second, PageSize: 10}.WithDefaults()
	assert.Equal(t, time.Second, kept.Timeout)
	assert.Equal(t, 10, kept.PageSize)
}
