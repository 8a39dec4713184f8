package easycrud

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/raywall/fast-crud-toolkit/pkg/metrics"
	"github.com/raywall/fast-crud-toolkit/query"
	"github.com/raywall/fast-crud-toolkit/restdb"
	"github.com/rs/zerolog"
)

// DefaultIDColumn é a chave primária usada por GetByID, Update e Delete.
const DefaultIDColumn = "id"

var ErrInvalidInput = errors.New("invalid input")

type HookType int

const (
	BeforeCreate HookType = iota
	BeforeUpdate
)

// BeforeSaveHook permite validar ou transformar o registro antes de um
// Create (registro completo) ou Update (apenas o patch). Um erro aborta a
// operação com um envelope de validação.
type BeforeSaveHook func(ctx context.Context, record restdb.Record) error

// Hooks guarda as funções registradas para execução antes de creates e updates.
type Hooks struct {
	BeforeCreate []BeforeSaveHook
	BeforeUpdate []BeforeSaveHook
}

// Service expõe o CRUD genérico de uma coleção. Toda operação devolve um
// Response; nenhuma falha do store atravessa o serviço.
type Service struct {
	Base

	idColumn string
	valid    *validator.Validate
	rules    map[string]interface{}

	mu    sync.RWMutex
	hooks Hooks
}

// Option ajusta o Service em New.
type Option func(*Service)

func WithIDColumn(column string) Option {
	return func(s *Service) {
		if column != "" {
			s.idColumn = column
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = l.With().Str("collection", s.collection).Logger()
	}
}

func WithMetrics(p metrics.Provider) Option {
	return func(s *Service) {
		if p != nil {
			s.metrics = p
		}
	}
}

// WithRules valida os registros gravados com regras do validator por campo,
// por exemplo {"email": "required,email"}. Em updates, só os campos
// presentes no patch são conferidos.
func WithRules(rules map[string]interface{}) Option {
	return func(s *Service) {
		s.rules = rules
	}
}

// New cria o serviço da coleção sobre o client compartilhado.
func New(client *restdb.Client, collection string, opts ...Option) *Service {
	s := &Service{
		Base:     newBase(client, collection, client.Logger(), nil),
		idColumn: DefaultIDColumn,
		valid:    validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IDColumn devolve a coluna de chave primária do serviço.
func (s *Service) IDColumn() string {
	return s.idColumn
}

// RegisterHook permite a injeção de lógica customizada antes das gravações.
func (s *Service) RegisterHook(hookType HookType, fn BeforeSaveHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch hookType {
	case BeforeCreate:
		s.hooks.BeforeCreate = append(s.hooks.BeforeCreate, fn)
	case BeforeUpdate:
		s.hooks.BeforeUpdate = append(s.hooks.BeforeUpdate, fn)
	}
}

// RegisterValidation adiciona uma regra customizada, utilizável em WithRules.
func (s *Service) RegisterValidation(tag string, fn validator.Func) error {
	return s.valid.RegisterValidation(tag, fn)
}

// === CREATE ===

// Create insere um registro. Os dados devolvidos incluem os campos atribuídos
// pelo store (id, timestamps).
func (s *Service) Create(ctx context.Context, record restdb.Record) Response[restdb.Record] {
	return run(ctx, &s.Base, "create", func(ctx context.Context) (Response[restdb.Record], error) {
		if err := s.prepare(ctx, BeforeCreate, record, false); err != nil {
			return Response[restdb.Record]{}, err
		}
		res, err := s.table().Insert(record).Exec(ctx)
		if err != nil {
			return Response[restdb.Record]{}, err
		}
		return success(first(res.Records)), nil
	})
}

// CreateMany insere todos os registros em uma única chamada. A atomicidade é
// a do store; esta camada não adiciona transação.
func (s *Service) CreateMany(ctx context.Context, records []restdb.Record) Response[[]restdb.Record] {
	return run(ctx, &s.Base, "create_many", func(ctx context.Context) (Response[[]restdb.Record], error) {
		if len(records) == 0 {
			return successCount([]restdb.Record{}, 0), nil
		}
		for i, r := range records {
			if err := s.prepare(ctx, BeforeCreate, r, false); err != nil {
				return Response[[]restdb.Record]{}, fmt.Errorf("record %d: %w", i, err)
			}
		}
		res, err := s.table().Insert(records...).Exec(ctx)
		if err != nil {
			return Response[[]restdb.Record]{}, err
		}
		return successCount(res.Records, len(res.Records)), nil
	})
}

// === READ ===

// GetAll lê sem filtro (a menos que query.Filter seja informado). Sem
// query.Limit, vale o page size do store.
func (s *Service) GetAll(ctx context.Context, opts ...query.Option) Response[[]restdb.Record] {
	return run(ctx, &s.Base, "get_all", func(ctx context.Context) (Response[[]restdb.Record], error) {
		return s.selectMany(ctx, query.New(opts...))
	})
}

// GetByID busca pela chave primária. Registro inexistente não é erro: o
// envelope é de sucesso com dados nil.
func (s *Service) GetByID(ctx context.Context, id interface{}) Response[restdb.Record] {
	return run(ctx, &s.Base, "get_by_id", func(ctx context.Context) (Response[restdb.Record], error) {
		if id == nil {
			return Response[restdb.Record]{}, fmt.Errorf("%w: id is nil", ErrInvalidInput)
		}
		res, err := s.table().Select().Eq(s.idColumn, id).Limit(1).Exec(ctx)
		if err != nil {
			return Response[restdb.Record]{}, err
		}
		return success(first(res.Records)), nil
	})
}

// Find devolve os registros que satisfazem todas as restrições do filtro.
// Filtro vazio equivale a GetAll.
func (s *Service) Find(ctx context.Context, filter query.FilterSpec, opts ...query.Option) Response[[]restdb.Record] {
	return run(ctx, &s.Base, "find", func(ctx context.Context) (Response[[]restdb.Record], error) {
		spec := query.New(opts...)
		spec.Filter = filter
		return s.selectMany(ctx, spec)
	})
}

// FindOne é Find com limit 1, devolvendo o registro ou nil.
func (s *Service) FindOne(ctx context.Context, filter query.FilterSpec, opts ...query.Option) Response[restdb.Record] {
	return run(ctx, &s.Base, "find_one", func(ctx context.Context) (Response[restdb.Record], error) {
		spec := query.New(opts...)
		spec.Filter = filter
		one := 1
		spec.Limit = &one

		res, err := s.selectMany(ctx, spec)
		if err != nil {
			return Response[restdb.Record]{}, err
		}
		return success(first(res.Data())), nil
	})
}

// Search faz uma busca por substring em um campo, sem diferenciar
// maiúsculas. limit <= 0 usa o page size do store.
func (s *Service) Search(ctx context.Context, field, term string, limit int) Response[[]restdb.Record] {
	return run(ctx, &s.Base, "search", func(ctx context.Context) (Response[[]restdb.Record], error) {
		opts := []query.Option{query.Filter(query.Where(field, query.TextMatch(term)))}
		if limit > 0 {
			opts = append(opts, query.Limit(limit))
		}
		return s.selectMany(ctx, query.New(opts...))
	})
}

func (s *Service) selectMany(ctx context.Context, spec query.Spec) (Response[[]restdb.Record], error) {
	if err := spec.Validate(); err != nil {
		return Response[[]restdb.Record]{}, err
	}
	res, err := query.Apply(spec, s.table().Select()).Exec(ctx)
	if err != nil {
		return Response[[]restdb.Record]{}, err
	}
	records := res.Records
	if records == nil {
		records = []restdb.Record{}
	}
	return success(records), nil
}

// === UPDATE ===

// Update aplica um patch parcial ao registro com a chave informada. Campos
// fora do patch não são alterados. Sem registro correspondente, o envelope
// é de sucesso com dados nil.
func (s *Service) Update(ctx context.Context, id interface{}, patch restdb.Record) Response[restdb.Record] {
	return run(ctx, &s.Base, "update", func(ctx context.Context) (Response[restdb.Record], error) {
		if id == nil {
			return Response[restdb.Record]{}, fmt.Errorf("%w: id is nil", ErrInvalidInput)
		}
		if err := s.prepare(ctx, BeforeUpdate, patch, true); err != nil {
			return Response[restdb.Record]{}, err
		}
		res, err := s.table().Update(patch).Eq(s.idColumn, id).Exec(ctx)
		if err != nil {
			return Response[restdb.Record]{}, err
		}
		return success(first(res.Records)), nil
	})
}

// UpdateMany aplica o patch a todos os registros do filtro em uma única
// chamada, sem transação: uma falha no meio pode deixar parte aplicada, e é
// reportada como uma única falha.
func (s *Service) UpdateMany(ctx context.Context, filter query.FilterSpec, patch restdb.Record) Response[[]restdb.Record] {
	return run(ctx, &s.Base, "update_many", func(ctx context.Context) (Response[[]restdb.Record], error) {
		if err := filter.Validate(); err != nil {
			return Response[[]restdb.Record]{}, err
		}
		if err := s.prepare(ctx, BeforeUpdate, patch, true); err != nil {
			return Response[[]restdb.Record]{}, err
		}
		res, err := query.ApplyFilter(filter, s.table().Update(patch)).Exec(ctx)
		if err != nil {
			return Response[[]restdb.Record]{}, err
		}
		return successCount(res.Records, len(res.Records)), nil
	})
}

// === DELETE ===

// Delete remove o registro com a chave informada. Count traz quantas linhas
// foram removidas (0 quando o registro não existia).
func (s *Service) Delete(ctx context.Context, id interface{}) Response[Empty] {
	return run(ctx, &s.Base, "delete", func(ctx context.Context) (Response[Empty], error) {
		if id == nil {
			return Response[Empty]{}, fmt.Errorf("%w: id is nil", ErrInvalidInput)
		}
		res, err := s.table().Delete().Eq(s.idColumn, id).Exec(ctx)
		if err != nil {
			return Response[Empty]{}, err
		}
		return successCount(Empty{}, len(res.Records)), nil
	})
}

// DeleteMany remove todos os registros do filtro, com a mesma ressalva de
// UpdateMany sobre falhas parciais.
func (s *Service) DeleteMany(ctx context.Context, filter query.FilterSpec) Response[[]restdb.Record] {
	return run(ctx, &s.Base, "delete_many", func(ctx context.Context) (Response[[]restdb.Record], error) {
		if err := filter.Validate(); err != nil {
			return Response[[]restdb.Record]{}, err
		}
		res, err := query.ApplyFilter(filter, s.table().Delete()).Exec(ctx)
		if err != nil {
			return Response[[]restdb.Record]{}, err
		}
		return successCount(res.Records, len(res.Records)), nil
	})
}

// === COUNT / EXISTS ===

// Count conta os registros do filtro (filtro vazio conta todos).
func (s *Service) Count(ctx context.Context, filter query.FilterSpec) Response[int] {
	return run(ctx, &s.Base, "count", func(ctx context.Context) (Response[int], error) {
		n, err := s.count(ctx, filter)
		if err != nil {
			return Response[int]{}, err
		}
		return successCount(n, n), nil
	})
}

// Exists informa se algum registro satisfaz o filtro, sem materializar linhas.
func (s *Service) Exists(ctx context.Context, filter query.FilterSpec) Response[bool] {
	return run(ctx, &s.Base, "exists", func(ctx context.Context) (Response[bool], error) {
		n, err := s.count(ctx, filter)
		if err != nil {
			return Response[bool]{}, err
		}
		return successExists(n > 0), nil
	})
}

func (s *Service) count(ctx context.Context, filter query.FilterSpec) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	res, err := query.ApplyFilter(filter, s.table().Count()).Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// prepare valida o registro (regras e hooks) antes de uma gravação.
func (s *Service) prepare(ctx context.Context, hookType HookType, record restdb.Record, partial bool) error {
	if len(record) == 0 {
		return fmt.Errorf("%w: record is empty", ErrInvalidInput)
	}

	if len(s.rules) > 0 {
		rules := s.rules
		if partial {
			rules = make(map[string]interface{}, len(record))
			for field := range record {
				if rule, ok := s.rules[field]; ok {
					rules[field] = rule
				}
			}
		}
		if errs := s.valid.ValidateMapCtx(ctx, record, rules); len(errs) > 0 {
			return fmt.Errorf("%w: %v", ErrInvalidInput, errs)
		}
	}

	s.mu.RLock()
	hooks := s.hooks.BeforeCreate
	if hookType == BeforeUpdate {
		hooks = s.hooks.BeforeUpdate
	}
	hooks = append([]BeforeSaveHook(nil), hooks...)
	s.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, record); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	return nil
}

func first(records []restdb.Record) restdb.Record {
	if len(records) == 0 {
		return nil
	}
	return records[0]
}
