package storeconfig

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig é o sentinel de todos os *ConfigError.
var ErrInvalidConfig = errors.New("storeconfig: invalid configuration")

// ConfigError indica uma configuração ausente ou inválida. É fatal: acontece
// antes de qualquer serviço existir e não é convertida em envelope.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("storeconfig: %s: %s", e.Field, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("storeconfig: %s: %v", e.Reason, e.Err)
	}
	return "storeconfig: " + e.Reason
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}
