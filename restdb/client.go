package restdb

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raywall/fast-crud-toolkit/storeconfig"
	"github.com/rs/zerolog"
)

// DefaultPageSize é usado quando a configuração não informa PageSize.
const DefaultPageSize = 1000

// HttpClientInterface permite mockar o cliente HTTP nos testes.
type HttpClientInterface interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client é o único dono do handle para o store. O backend é criado no
// primeiro uso e reaproveitado por todos os serviços até Close.
type Client struct {
	cfg    storeconfig.ConnectionConfig
	logger zerolog.Logger

	httpClient   HttpClientInterface
	dynamoClient DynamoDBClient

	once    sync.Once
	backend Backend
	initErr error
	closed  atomic.Bool
}

// Option ajusta o Client em Connect.
type Option func(*Client)

// WithBackend injeta um backend pronto, ignorando o esquema do endpoint.
func WithBackend(b Backend) Option {
	return func(c *Client) {
		c.backend = b
	}
}

// WithHTTPClient troca o cliente usado pelo backend PostgREST.
func WithHTTPClient(h HttpClientInterface) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithDynamoClient troca o cliente usado pelo backend DynamoDB.
func WithDynamoClient(d DynamoDBClient) Option {
	return func(c *Client) {
		c.dynamoClient = d
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// Connect prepara o handle sem nenhum I/O. Falhas de conexão aparecem na
// primeira operação.
func Connect(cfg storeconfig.ConnectionConfig, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config devolve a configuração usada pelo client.
func (c *Client) Config() storeconfig.ConnectionConfig {
	return c.cfg
}

func (c *Client) Logger() zerolog.Logger {
	return c.logger
}

// PageSize é o limite aplicado às leituras sem limit explícito.
func (c *Client) PageSize() int {
	if c.cfg.PageSize > 0 {
		return c.cfg.PageSize
	}
	return DefaultPageSize
}

// Collection devolve um builder para a coleção. A existência da coleção só é
// verificada pelo store na primeira operação.
func (c *Client) Collection(name string) *QueryBuilder {
	return &QueryBuilder{
		client: c,
		req:    Request{Collection: name, Operation: OpSelect},
	}
}

// Backend devolve o backend, criando-o na primeira chamada.
func (c *Client) Backend() (Backend, error) {
	c.once.Do(func() {
		if c.backend != nil {
			return
		}
		c.backend, c.initErr = c.newBackend()
		if c.initErr != nil {
			c.logger.Error().Err(c.initErr).Str("endpoint", c.cfg.Redacted().Endpoint).Msg("could not build store backend")
		}
	})
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.backend, c.initErr
}

func (c *Client) newBackend() (Backend, error) {
	endpoint := c.cfg.Endpoint
	scheme, _, found := strings.Cut(endpoint, ":")
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, endpoint)
	}

	switch strings.ToLower(scheme) {
	case "http", "https":
		return newHTTPBackend(c.cfg, c.httpClient)
	case "postgres", "postgresql":
		return newSQLBackend(postgresDialect, endpoint, c.cfg)
	case "sqlite", "sqlite3":
		return newSQLBackend(sqliteDialect, endpoint, c.cfg)
	case "dynamodb":
		return newDynamoBackend(c.cfg, c.dynamoClient)
	case "memory", "mem":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

func (c *Client) execute(ctx context.Context, req *Request) (*Result, error) {
	backend, err := c.Backend()
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}

	if c.cfg.Timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
		}
	}

	start := time.Now()
	res, err := backend.Execute(ctx, req)
	c.logger.Debug().
		Str("collection", req.Collection).
		Str("operation", req.Operation.String()).
		Int("conditions", len(req.Conditions)).
		Dur("elapsed", time.Since(start)).
		Err(err).
		Msg("store request")
	return res, err
}

// Probe faz uma leitura leve para checagem de saúde. Nunca devolve erro:
// qualquer falha é registrada no log e vira false.
func (c *Client) Probe(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("store probe panicked")
			ok = false
		}
	}()

	var err error
	if c.cfg.ProbeTable != "" {
		_, err = c.Collection(c.cfg.ProbeTable).Count().Exec(ctx)
	} else {
		var backend Backend
		backend, err = c.Backend()
		if err == nil {
			err = backend.Ping(ctx)
		}
	}

	if err != nil {
		c.logger.Warn().Err(err).Str("probe_table", c.cfg.ProbeTable).Msg("store probe failed")
		return false
	}
	return true
}

// Close libera o backend, se já tiver sido criado. Depois de Close, toda
// operação falha com ErrClosed.
// Pode ser chamado em paralelo com operações em andamento; só a primeira
// chamada fecha o backend.
func (c *Client) Close() error {
	c.once.Do(func() {})
	if c.closed.Swap(true) || c.backend == nil {
		return nil
	}
	return c.backend.Close()
}
