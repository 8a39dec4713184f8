// Package tasks é um serviço especializado de exemplo para coleções com um
// campo status: listagem dos ativos, atualização em lote e estatísticas.
package tasks

import (
	"context"

	"github.com/raywall/fast-crud-toolkit/easycrud"
	"github.com/raywall/fast-crud-toolkit/query"
	"github.com/raywall/fast-crud-toolkit/restdb"
)

const Table = "tasks"

const StatusActive = "active"

// Stats resume a coleção.
type Stats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

type Service struct {
	*easycrud.Service
}

func New(client *restdb.Client, opts ...easycrud.Option) *Service {
	return NewWithTable(client, Table, opts...)
}

func NewWithTable(client *restdb.Client, table string, opts ...easycrud.Option) *Service {
	return &Service{Service: easycrud.New(client, table, opts...)}
}

// GetActive lista os registros com status ativo. limit <= 0 usa o page size do store.
func (s *Service) GetActive(ctx context.Context, limit int) easycrud.Response[[]restdb.Record] {
	var opts []query.Option
	if limit > 0 {
		opts = append(opts, query.Limit(limit))
	}
	return s.Find(ctx, query.Where("status", query.Equals(StatusActive)), opts...)
}

// BulkUpdateStatus altera o status de todos os ids em uma única chamada.
// Lista vazia é rejeitada como falha de validação, sem chamada ao store.
func (s *Service) BulkUpdateStatus(ctx context.Context, ids []interface{}, status string) easycrud.Response[[]restdb.Record] {
	return s.UpdateMany(ctx, query.Where(s.IDColumn(), query.In(ids...)), restdb.Record{"status": status})
}

// Statistics conta o total e os ativos. Se uma das contagens falhar, a
// primeira falha é devolvida.
func (s *Service) Statistics(ctx context.Context) easycrud.Response[Stats] {
	total := s.Count(ctx, query.FilterSpec{})
	if !total.OK() {
		return easycrud.Fail[Stats](total.Err())
	}
	active := s.Count(ctx, query.Where("status", query.Equals(StatusActive)))
	if !active.OK() {
		return easycrud.Fail[Stats](active.Err())
	}
	return easycrud.Map(total, func(n int) Stats {
		return Stats{Total: n, Active: active.Data()}
	})
}
