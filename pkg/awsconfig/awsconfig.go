package awsconfig

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

var (
	sharedCfg  aws.Config
	sharedOnce sync.Once
	sharedErr  error
)

// Options ajusta a configuração da AWS além da cadeia padrão (env vars, profile, IAM role).
type Options struct {
	Region string
	// AccessKey e SecretKey, quando ambos informados, substituem a cadeia padrão
	// por credenciais estáticas.
	AccessKey string
	SecretKey string
}

// Shared carrega a configuração da AWS de forma lazy-singleton.
// A região do primeiro chamador vence.
func Shared(ctx context.Context, region string) (aws.Config, error) {
	sharedOnce.Do(func() {
		sharedCfg, sharedErr = Load(ctx, Options{Region: region})
	})
	return sharedCfg, sharedErr
}

// Load carrega uma configuração nova, sem cache.
func Load(ctx context.Context, opts Options) (aws.Config, error) {
	loadOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, loadOpts...)
}
