package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/raywall/fast-crud-toolkit/pkg/config"
	"github.com/rs/zerolog"
)

// Configure inicializa o logger a partir de LoggingConf, escrevendo em stdout.
func Configure(cfg config.LoggingConf) zerolog.Logger {
	return New(cfg, os.Stdout)
}

// New cria o logger escrevendo em out. Nível default: info.
func New(cfg config.LoggingConf, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = out
	if !cfg.Enabled {
		output = io.Discard
	} else if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Component deriva um logger marcado com o nome do componente.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
