package crudapi

import (
	"context"
	"reflect"
	"sync"

	"github.com/raywall/fast-crud-toolkit/easycrud"
	"github.com/raywall/fast-crud-toolkit/pkg/metrics"
	"github.com/raywall/fast-crud-toolkit/query"
	"github.com/raywall/fast-crud-toolkit/restdb"
	"github.com/raywall/fast-crud-toolkit/services/users"
	"github.com/raywall/fast-crud-toolkit/storeconfig"
	"github.com/rs/zerolog"
)

// Factory constrói um serviço especializado a partir do client
// compartilhado. users.New e tasks.New já têm essa assinatura.
type Factory[S any] func(client *restdb.Client, opts ...easycrud.Option) S

// API é o ponto de entrada único: dona do client, cria e guarda os serviços
// por coleção. O cache só cresce; não há remoção.
type API struct {
	client  *restdb.Client
	logger  zerolog.Logger
	metrics metrics.Provider

	tables sync.Map // nome da coleção -> *easycrud.Service
	custom sync.Map // reflect.Type -> serviço especializado
}

type options struct {
	logger        zerolog.Logger
	metrics       metrics.Provider
	clientOptions []restdb.Option
}

type Option func(*options)

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(p metrics.Provider) Option {
	return func(o *options) { o.metrics = p }
}

// WithClientOptions repassa opções ao restdb.Connect (backend, http client...).
func WithClientOptions(opts ...restdb.Option) Option {
	return func(o *options) { o.clientOptions = append(o.clientOptions, opts...) }
}

// New valida a configuração (com os defaults de storeconfig) e cria a API. Nenhuma chamada de rede é feita
// aqui; o backend é montado na primeira operação.
func New(cfg storeconfig.ConnectionConfig, opts ...Option) (*API, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: zerolog.Nop(), metrics: metrics.NoopProvider{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.NoopProvider{}
	}

	clientOpts := append([]restdb.Option{restdb.WithLogger(o.logger)}, o.clientOptions...)
	return &API{
		client:  restdb.Connect(cfg, clientOpts...),
		logger:  o.logger,
		metrics: o.metrics,
	}, nil
}

// FromEnv cria a API a partir das variáveis SUPABASE_*.
func FromEnv(opts ...Option) (*API, error) {
	cfg, err := storeconfig.FromEnv()
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// FromMap cria a API a partir de um mapa (chaves url e key, entre outras).
func FromMap(values map[string]string, opts ...Option) (*API, error) {
	cfg, err := storeconfig.FromMap(values)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// Client devolve o handle compartilhado por todos os serviços.
func (a *API) Client() *restdb.Client {
	return a.client
}

func (a *API) serviceOptions() []easycrud.Option {
	return []easycrud.Option{easycrud.WithLogger(a.logger), easycrud.WithMetrics(a.metrics)}
}

// Table devolve o serviço CRUD da coleção, criando-o na primeira chamada.
// Chamadas concorrentes para o mesmo nome recebem a mesma instância.
func (a *API) Table(name string) *easycrud.Service {
	if svc, ok := a.tables.Load(name); ok {
		return svc.(*easycrud.Service)
	}
	svc, _ := a.tables.LoadOrStore(name, easycrud.New(a.client, name, a.serviceOptions()...))
	return svc.(*easycrud.Service)
}

// CustomService devolve o serviço especializado do tipo S, construído com o
// client, o logger e as métricas da API. Há uma instância por tipo.
func CustomService[S any](a *API, factory Factory[S]) S {
	key := reflect.TypeOf((*S)(nil)).Elem()
	if svc, ok := a.custom.Load(key); ok {
		return svc.(S)
	}
	svc, _ := a.custom.LoadOrStore(key, factory(a.client, a.serviceOptions()...))
	return svc.(S)
}

// Users devolve o serviço de usuários.
func (a *API) Users() *users.Service {
	return CustomService(a, users.New)
}

// QuickSelect lê a coleção com o filtro (vazio lê tudo). Os Quick* usam o
// serviço de Table, então hooks e regras registrados nele valem aqui.
func (a *API) QuickSelect(ctx context.Context, table string, filter query.FilterSpec, opts ...query.Option) easycrud.Response[[]restdb.Record] {
	svc := a.Table(table)
	if filter.IsEmpty() {
		return svc.GetAll(ctx, opts...)
	}
	return svc.Find(ctx, filter, opts...)
}

func (a *API) QuickInsert(ctx context.Context, table string, record restdb.Record) easycrud.Response[restdb.Record] {
	return a.Table(table).Create(ctx, record)
}

func (a *API) QuickUpdate(ctx context.Context, table string, id interface{}, patch restdb.Record) easycrud.Response[restdb.Record] {
	return a.Table(table).Update(ctx, id, patch)
}

func (a *API) QuickDelete(ctx context.Context, table string, id interface{}) easycrud.Response[easycrud.Empty] {
	return a.Table(table).Delete(ctx, id)
}

// Probe checa a conectividade com o store; nunca falha com erro.
func (a *API) Probe(ctx context.Context) bool {
	return a.client.Probe(ctx)
}

// Close libera o backend. Serviços já criados passam a falhar com conectividade.
func (a *API) Close() error {
	return a.client.Close()
}
