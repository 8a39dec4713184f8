package storeconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/raywall/fast-crud-toolkit/envloader"
	"gopkg.in/yaml.v3"
)

// ConnectionConfig descreve como alcançar o store remoto. É um valor: uma vez
// resolvido, é copiado para quem precisar e nunca alterado.
type ConnectionConfig struct {
	Endpoint   string        `env:"SUPABASE_URL" validate:"required,uri"`
	Credential string        `env:"SUPABASE_KEY" validate:"required"`
	Timeout    time.Duration `env:"SUPABASE_TIMEOUT" envDefault:"30" validate:"gt=0"`
	// PageSize é o limite aplicado a leituras sem limit explícito.
	PageSize int `env:"SUPABASE_PAGE_SIZE" envDefault:"1000" validate:"gt=0"`
	// ProbeTable, quando informado, é a coleção lida pelo probe de conectividade.
	ProbeTable string `env:"SUPABASE_PROBE_TABLE"`
	// ProfileAPIURL sobrescreve a URL base do cliente de perfis (pacote profiles).
	ProfileAPIURL string `env:"UNIPILE_API_URL" validate:"omitempty,url"`
	AWSRegion     string `env:"AWS_REGION"`
}

// mapKeys traduz as chaves aceitas em FromMap para os nomes usados no ambiente.
var mapKeys = map[string]string{
	"url":         "SUPABASE_URL",
	"endpoint":    "SUPABASE_URL",
	"key":         "SUPABASE_KEY",
	"credential":  "SUPABASE_KEY",
	"timeout":     "SUPABASE_TIMEOUT",
	"page_size":   "SUPABASE_PAGE_SIZE",
	"probe_table": "SUPABASE_PROBE_TABLE",
	"api_url":     "UNIPILE_API_URL",
	"aws_region":  "AWS_REGION",
}

const (
	DefaultTimeout  = 30 * time.Second
	DefaultPageSize = 1000
)

var validate = validator.New()

// FromEnv resolve a configuração das variáveis de ambiente, depois de carregar
// um arquivo .env opcional do diretório corrente.
func FromEnv() (ConnectionConfig, error) {
	if err := envloader.LoadDotEnv(); err != nil {
		return ConnectionConfig{}, &ConfigError{Reason: "could not read .env file", Err: err}
	}
	return resolve(os.LookupEnv)
}

// FromMap resolve a configuração de um mapa. As chaves aceitam tanto os nomes
// curtos (url, key, timeout...) quanto os nomes das variáveis de ambiente.
func FromMap(values map[string]string) (ConnectionConfig, error) {
	normalized := make(map[string]string, len(values))
	for k, v := range values {
		key := strings.ToLower(strings.TrimSpace(k))
		if envName, ok := mapKeys[key]; ok {
			// Se a chave canônica já foi vista, o alias não a sobrescreve
			if _, seen := normalized[envName]; !seen || strings.TrimSpace(normalized[envName]) == "" {
				normalized[envName] = v
			}
			continue
		}
		normalized[strings.ToUpper(k)] = v
	}
	return resolve(func(key string) (string, bool) {
		v, ok := normalized[key]
		return v, ok
	})
}

// FromFile lê um mapa YAML plano (url, key, timeout...) e delega para FromMap.
func FromFile(path string) (ConnectionConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ConnectionConfig{}, &ConfigError{Reason: "could not read config file", Err: err}
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return ConnectionConfig{}, &ConfigError{Reason: "invalid YAML in config file", Err: err}
	}

	values := make(map[string]string, len(doc))
	for k, v := range doc {
		if v == nil {
			continue
		}
		values[k] = fmt.Sprintf("%v", v)
	}
	return FromMap(values)
}

// MustFromEnv é o atalho para binários: configuração inválida é fatal.
func MustFromEnv() ConnectionConfig {
	cfg, err := FromEnv()
	if err != nil {
		panic(err)
	}
	return cfg
}

func resolve(lookup envloader.LookupFunc) (ConnectionConfig, error) {
	var cfg ConnectionConfig
	if err := envloader.LoadFrom(&cfg, lookup); err != nil {
		var fieldErr *envloader.FieldError
		if errors.As(err, &fieldErr) {
			return ConnectionConfig{}, &ConfigError{Field: fieldErr.EnvVar, Reason: "invalid value", Err: err}
		}
		return ConnectionConfig{}, &ConfigError{Reason: "could not load configuration", Err: err}
	}

	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Credential = strings.TrimSpace(cfg.Credential)

	if err := cfg.Validate(); err != nil {
		return ConnectionConfig{}, err
	}
	return cfg, nil
}

// Validate confere os invariantes da configuração: endpoint e credencial presentes.
func (c ConnectionConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return &ConfigError{
				Field:  envName(first.StructField()),
				Reason: fmt.Sprintf("failed on '%s'", first.Tag()),
				Err:    err,
			}
		}
		return &ConfigError{Reason: "invalid configuration", Err: err}
	}
	return nil
}

// WithDefaults preenche Timeout e PageSize quando zerados, para configurações
// montadas em código em vez de resolvidas do ambiente.
func (c ConnectionConfig) WithDefaults() ConnectionConfig {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	return c
}

// Redacted devolve uma cópia segura para logs.
func (c ConnectionConfig) Redacted() ConnectionConfig {
	out := c
	if len(out.Credential) > 4 {
		out.Credential = out.Credential[:4] + "****"
	} else if out.Credential != "" {
		out.Credential = "****"
	}
	return out
}

func envName(structField string) string {
	switch structField {
	case "Endpoint":
		return "SUPABASE_URL"
	case "Credential":
		return "SUPABASE_KEY"
	case "Timeout":
		return "SUPABASE_TIMEOUT"
	case "PageSize":
		return "SUPABASE_PAGE_SIZE"
	case "ProfileAPIURL":
		return "UNIPILE_API_URL"
	default:
		return structField
	}
}
