package restdb

import (
	"context"
	"strings"
)

// === MÉTODOS FLUENTES ===

// QueryBuilder monta um único Request sobre uma coleção. É descartável:
// cada chamada ao store começa com um novo builder via Client.Collection.
type QueryBuilder struct {
	client *Client
	req    Request
}

// Select lê linhas. Sem colunas, todas são retornadas.
func (qb *QueryBuilder) Select(columns ...string) *QueryBuilder {
	qb.req.Operation = OpSelect
	qb.req.Columns = columns
	return qb
}

// Insert grava uma ou mais linhas em uma única chamada.
func (qb *QueryBuilder) Insert(rows ...Record) *QueryBuilder {
	qb.req.Operation = OpInsert
	qb.req.Rows = append(qb.req.Rows, rows...)
	return qb
}

// Update aplica patch às linhas que satisfazem as condições.
func (qb *QueryBuilder) Update(patch Record) *QueryBuilder {
	qb.req.Operation = OpUpdate
	qb.req.Patch = patch
	return qb
}

func (qb *QueryBuilder) Delete() *QueryBuilder {
	qb.req.Operation = OpDelete
	return qb
}

// Count conta as linhas sem materializá-las.
func (qb *QueryBuilder) Count() *QueryBuilder {
	qb.req.Operation = OpCount
	return qb
}

func (qb *QueryBuilder) where(field string, op Operator, value interface{}) *QueryBuilder {
	qb.req.Conditions = append(qb.req.Conditions, Condition{Field: field, Op: op, Value: value})
	return qb
}

func (qb *QueryBuilder) Eq(field string, value interface{}) *QueryBuilder {
	return qb.where(field, Eq, value)
}

func (qb *QueryBuilder) Gt(field string, value interface{}) *QueryBuilder {
	return qb.where(field, Gt, value)
}

func (qb *QueryBuilder) Gte(field string, value interface{}) *QueryBuilder {
	return qb.where(field, Gte, value)
}

func (qb *QueryBuilder) Lt(field string, value interface{}) *QueryBuilder {
	return qb.where(field, Lt, value)
}

func (qb *QueryBuilder) Lte(field string, value interface{}) *QueryBuilder {
	return qb.where(field, Lte, value)
}

// ILike filtra por padrão sem diferenciar maiúsculas. Use % e _ como
// curingas; EscapeLike protege um termo literal.
func (qb *QueryBuilder) ILike(field, pattern string) *QueryBuilder {
	return qb.where(field, ILike, pattern)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapa \, % e _ para que o termo case só a si mesmo num ILike.
func EscapeLike(term string) string {
	return likeEscaper.Replace(term)
}

func (qb *QueryBuilder) In(field string, values ...interface{}) *QueryBuilder {
	return qb.where(field, In, values)
}

func (qb *QueryBuilder) Order(field string, ascending bool) *QueryBuilder {
	qb.req.Order = append(qb.req.Order, Order{Field: field, Ascending: ascending})
	return qb
}

func (qb *QueryBuilder) Limit(n int) *QueryBuilder {
	qb.req.Limit = n
	return qb
}

func (qb *QueryBuilder) Offset(n int) *QueryBuilder {
	qb.req.Offset = n
	return qb
}

// Request devolve uma cópia do request montado até aqui.
func (qb *QueryBuilder) Request() Request {
	out := qb.req
	out.Conditions = append([]Condition(nil), qb.req.Conditions...)
	out.Order = append([]Order(nil), qb.req.Order...)
	return out
}

// Exec valida o request e o envia ao backend do client.
func (qb *QueryBuilder) Exec(ctx context.Context) (*Result, error) {
	req := qb.Request()
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	// Leituras nunca são ilimitadas
	if req.Operation == OpSelect && req.Limit == 0 {
		req.Limit = qb.client.PageSize()
	}
	if req.Operation == OpCount {
		req.Limit, req.Offset = 0, 0
		req.Order = nil
	}

	return qb.client.execute(ctx, &req)
}

func validateRequest(req *Request) error {
	if strings.TrimSpace(req.Collection) == "" {
		return invalid("collection name is empty")
	}
	if req.Limit < 0 {
		return invalid("limit must be positive, got %d", req.Limit)
	}
	if req.Offset < 0 {
		return invalid("offset must not be negative, got %d", req.Offset)
	}

	for _, c := range req.Conditions {
		if strings.TrimSpace(c.Field) == "" {
			return invalid("condition with empty field name")
		}
		switch c.Op {
		case Eq, Gt, Gte, Lt, Lte:
		case ILike:
			if _, ok := c.Value.(string); !ok {
				return invalid("ilike on %s needs a string pattern", c.Field)
			}
		case In:
			values, ok := c.Value.([]interface{})
			if !ok || len(values) == 0 {
				return invalid("in on %s needs at least one value", c.Field)
			}
		default:
			return invalid("unknown operator %q on %s", c.Op, c.Field)
		}
	}

	for _, o := range req.Order {
		if strings.TrimSpace(o.Field) == "" {
			return invalid("order with empty field name")
		}
	}

	switch req.Operation {
	case OpInsert:
		if len(req.Rows) == 0 {
			return invalid("insert without rows")
		}
		for i, row := range req.Rows {
			if len(row) == 0 {
				return invalid("insert row %d is empty", i)
			}
		}
	case OpUpdate:
		if len(req.Patch) == 0 {
			return invalid("update without fields")
		}
	case OpSelect, OpDelete, OpCount:
	default:
		return invalid("unknown operation %s", req.Operation)
	}
	return nil
}
