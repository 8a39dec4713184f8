package profiles

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/raywall/fast-crud-toolkit/envloader"
)

const (
	DefaultAPIURL   = "https://api4.unipile.com:13443"
	DefaultProvider = "LINKEDIN"
)

// Config descreve o acesso à API de perfis.
type Config struct {
	// DSN é a chave de acesso, enviada no header X-API-KEY.
	DSN     string        `env:"UNIPILE_DSN" required:"true" validate:"required"`
	APIURL  string        `env:"UNIPILE_API_URL" envDefault:"https://api4.unipile.com:13443" validate:"required,url"`
	Timeout time.Duration `env:"UNIPILE_TIMEOUT" envDefault:"30" validate:"gt=0"`
}

var validate = validator.New()

// ConfigFromEnv lê UNIPILE_DSN, UNIPILE_API_URL e UNIPILE_TIMEOUT.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envloader.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ConfigFromMap aceita as chaves dsn, api_url e timeout.
func ConfigFromMap(values map[string]string) (Config, error) {
	env := map[string]string{}
	for key, name := range map[string]string{"dsn": "UNIPILE_DSN", "api_url": "UNIPILE_API_URL", "timeout": "UNIPILE_TIMEOUT"} {
		if v, ok := values[key]; ok {
			env[name] = v
		}
	}
	var cfg Config
	if err := envloader.LoadMap(&cfg, env); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	return validate.Struct(c)
}

func (c Config) withDefaults() Config {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}
