package easycrud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/raywall/fast-crud-toolkit/pkg/metrics"
	"github.com/raywall/fast-crud-toolkit/query"
	"github.com/raywall/fast-crud-toolkit/restdb"
	"github.com/rs/zerolog"
)

// Base liga uma coleção ao handle compartilhado e concentra o que toda
// operação faz: contenção de falhas, classificação de erros, log e métricas.
// O client não pertence ao Base: vários serviços usam o mesmo.
type Base struct {
	client     *restdb.Client
	collection string
	logger     zerolog.Logger
	metrics    metrics.Provider
}

func newBase(client *restdb.Client, collection string, logger zerolog.Logger, provider metrics.Provider) Base {
	if provider == nil {
		provider = metrics.NoopProvider{}
	}
	return Base{
		client:     client,
		collection: collection,
		logger:     logger.With().Str("collection", collection).Logger(),
		metrics:    provider,
	}
}

// Collection devolve o nome da coleção do serviço.
func (b *Base) Collection() string {
	return b.collection
}

// Client devolve o handle compartilhado.
func (b *Base) Client() *restdb.Client {
	return b.client
}

func (b *Base) table() *restdb.QueryBuilder {
	return b.client.Collection(b.collection)
}

// run executa fn uma única vez (sem retry) e garante que nenhuma falha,
// nem um panic, passe desta fronteira: tudo vira um envelope.
func run[T any](ctx context.Context, b *Base, op string, fn func(ctx context.Context) (Response[T], error)) (resp Response[T]) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			resp = failure[T](b.errorInfo(op, KindInternal, fmt.Errorf("panic: %v", r)))
		}
		b.observe(op, resp.outcome, resp.err, time.Since(start))
	}()

	if ctx == nil {
		ctx = context.Background()
	}

	out, err := fn(ctx)
	if err != nil {
		return failure[T](b.errorInfo(op, classify(err), err))
	}
	return out
}

func (b *Base) errorInfo(op string, kind ErrorKind, err error) *ErrorInfo {
	return &ErrorInfo{
		Kind:       kind,
		Message:    err.Error(),
		Operation:  op,
		Collection: b.collection,
		cause:      err,
	}
}

func (b *Base) observe(op string, outcome Outcome, info *ErrorInfo, elapsed time.Duration) {
	metrics.RecordOperation(b.metrics, op, b.collection, string(outcome), elapsed)

	if info != nil {
		b.logger.Error().
			Str("operation", op).
			Str("kind", string(info.Kind)).
			Dur("elapsed", elapsed).
			Msg(info.Message)
		return
	}
	b.logger.Debug().
		Str("operation", op).
		Dur("elapsed", elapsed).
		Msg("operation completed")
}

// classify decide o ErrorKind a partir da cadeia de erros.
func classify(err error) ErrorKind {
	var (
		statusErr    *restdb.StatusError
		transportErr *restdb.TransportError
		validErrs    validator.ValidationErrors
	)

	switch {
	case errors.Is(err, query.ErrInvalidQuery),
		errors.Is(err, restdb.ErrInvalidRequest),
		errors.Is(err, ErrInvalidInput),
		errors.As(err, &validErrs):
		return KindValidation
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindConnectivity
	case errors.As(err, &statusErr):
		if statusErr.Unauthorized() {
			return KindConnectivity
		}
		return KindStore
	case errors.As(err, &transportErr):
		return KindConnectivity
	default:
		return KindStore
	}
}
