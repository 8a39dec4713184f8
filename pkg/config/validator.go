package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/raywall/fast-crud-toolkit/envloader"
	"gopkg.in/yaml.v3"
)

type ConfigValidator struct {
	validate *validator.Validate
}

// NewValidator cria uma nova instância do validador
func NewValidator() *ConfigValidator {
	return &ConfigValidator{
		validate: validator.New(),
	}
}

// Validate realiza a validação estrutural (tags) da configuração
func (cv *ConfigValidator) Validate(cfg *ToolkitConfig) error {
	if err := cv.validate.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMsgs []string
			for _, e := range validationErrors {
				errMsgs = append(errMsgs, fmt.Sprintf("field '%s' failed on '%s'", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("invalid toolkit config:\n- %s", strings.Join(errMsgs, "\n- "))
		}
		return fmt.Errorf("invalid toolkit config: %w", err)
	}
	return nil
}

// Load lê a configuração do ambiente e, se path não for vazio, sobrepõe com o
// conteúdo do arquivo YAML. O resultado é validado antes de retornar.
func Load(path string) (*ToolkitConfig, error) {
	cfg := &ToolkitConfig{}
	if err := envloader.Load(cfg); err != nil {
		return nil, err
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read toolkit config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse toolkit config: %w", err)
		}
	}

	if err := NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
