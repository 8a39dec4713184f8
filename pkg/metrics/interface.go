package metrics

import "time"

// Provider define o contrato para envio de métricas.
// Isso permite trocar Datadog por Prometheus ou Logging sem alterar a lógica de negócio.
type Provider interface {
	Count(name string, value float64, tags []string) error
	Gauge(name string, value float64, tags []string) error
	Histogram(name string, value float64, tags []string) error
}

// Nomes das métricas emitidas pela camada de serviços.
const (
	OperationCount   = "operation.count"
	OperationLatency = "operation.latency_ms"
)

// NoopProvider é usado quando métricas estão desabilitadas.
type NoopProvider struct{}

func (NoopProvider) Count(string, float64, []string) error     { return nil }
func (NoopProvider) Gauge(string, float64, []string) error     { return nil }
func (NoopProvider) Histogram(string, float64, []string) error { return nil }

// RecordOperation registra uma execução (contador + latência) com as tags
// operation, collection e outcome. Erros do provider são descartados: métrica
// nunca deve interromper uma operação de dados.
func RecordOperation(p Provider, operation, collection, outcome string, elapsed time.Duration) {
	if p == nil {
		return
	}
	tags := []string{
		"operation:" + operation,
		"collection:" + collection,
		"outcome:" + outcome,
	}
	_ = p.Count(OperationCount, 1, tags)
	_ = p.Histogram(OperationLatency, float64(elapsed.Microseconds())/1000, tags)
}
