package config

import "time"

// ToolkitConfig agrupa as configurações ambientais do toolkit: logs, métricas e
// o gateway HTTP opcional. A conexão com o store tem seu próprio pacote (storeconfig).
type ToolkitConfig struct {
	Logging LoggingConf `yaml:"logging"`
	Metrics MetricsConf `yaml:"metrics"`
	Server  ServerConf  `yaml:"server"`
	// Rules associa a cada coleção as regras CEL checadas antes das gravações.
	// Só é lida do arquivo YAML.
	Rules map[string][]RuleConf `yaml:"rules" validate:"dive,dive"`
}

type RuleConf struct {
	Name       string   `yaml:"name"`
	Expression string   `yaml:"expression" validate:"required"`
	On         []string `yaml:"on" validate:"dive,oneof=create update"`
}

type LoggingConf struct {
	Enabled bool   `yaml:"enabled" env:"LOG_ENABLED" envDefault:"true"`
	Level   string `yaml:"level" env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	Format  string `yaml:"format" env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json console"`
}

type MetricsConf struct {
	Datadog DatadogConf `yaml:"datadog"`
}

type DatadogConf struct {
	Enabled   bool     `yaml:"enabled" env:"DD_ENABLED"`
	Addr      string   `yaml:"addr" env:"DD_AGENT_HOST" validate:"required_if=Enabled true"`
	Namespace string   `yaml:"namespace" env:"DD_NAMESPACE" envDefault:"crud."`
	Tags      []string `yaml:"tags" env:"DD_TAGS"`
}

// ServerConf configura o gateway REST (pkg/transport).
type ServerConf struct {
	// Runtime escolhe entre servidor HTTP próprio e handler AWS Lambda.
	Runtime string `yaml:"runtime" env:"CRUD_RUNTIME" envDefault:"local" validate:"omitempty,oneof=local lambda"`
	Port    int    `yaml:"port" env:"CRUD_HTTP_PORT" envDefault:"8080" validate:"gt=0,lt=65536"`
	Prefix  string `yaml:"prefix" env:"CRUD_HTTP_PREFIX" validate:"omitempty,startswith=/"`
	Timeout string `yaml:"timeout" env:"CRUD_HTTP_TIMEOUT" envDefault:"30s" validate:"required"`
	// IngestQueueURL, quando informada, liga o consumidor SQS de gravações.
	IngestQueueURL string `yaml:"ingest_queue_url" env:"CRUD_INGEST_QUEUE_URL" validate:"omitempty,url"`
}

func (s ServerConf) GetTimeout() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
