package query

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/raywall/fast-crud-toolkit/restdb"
)

var validate = validator.New()

// Spec é uma consulta completa: filtro, ordenação e janela de resultados.
type Spec struct {
	Filter    FilterSpec
	OrderBy   string
	Ascending bool
	Limit     *int `validate:"omitnil,gt=0"`
	Offset    *int `validate:"omitnil,gte=0"`
}

// Option ajusta um Spec em New.
type Option func(*Spec)

func Limit(n int) Option {
	return func(s *Spec) {
		s.Limit = &n
	}
}

func Offset(n int) Option {
	return func(s *Spec) {
		s.Offset = &n
	}
}

// OrderBy ordena pelo campo; ascending false inverte a ordem.
func OrderBy(field string, ascending bool) Option {
	return func(s *Spec) {
		s.OrderBy = field
		s.Ascending = ascending
	}
}

func Filter(f FilterSpec) Option {
	return func(s *Spec) {
		s.Filter = f
	}
}

// New monta um Spec. Sem opções, é uma leitura de todos os registros em
// ordem ascendente, limitada pelo page size do store.
func New(opts ...Option) Spec {
	s := Spec{Ascending: true}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Validate confere o filtro e os limites da consulta.
func (s Spec) Validate() error {
	if err := s.Filter.Validate(); err != nil {
		return err
	}
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return &ValidationError{
				Reason: fmt.Sprintf("%s failed on '%s' (got %v)", first.Field(), first.Tag(), deref(first.Value())),
			}
		}
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}

// Apply traduz o Spec em chamadas ao QueryBuilder.
func Apply(s Spec, qb *restdb.QueryBuilder) *restdb.QueryBuilder {
	ApplyFilter(s.Filter, qb)
	if s.OrderBy != "" {
		qb.Order(s.OrderBy, s.Ascending)
	}
	if s.Limit != nil {
		qb.Limit(*s.Limit)
	}
	if s.Offset != nil {
		qb.Offset(*s.Offset)
	}
	return qb
}

// ApplyFilter adiciona cada termo como uma condição; todas valem juntas (AND).
func ApplyFilter(f FilterSpec, qb *restdb.QueryBuilder) *restdb.QueryBuilder {
	for _, t := range f.terms {
		c := t.Constraint
		switch c.kind {
		case KindEquals:
			qb.Eq(t.Field, c.value)
		case KindRange:
			switch c.op {
			case OpGreater:
				qb.Gt(t.Field, c.value)
			case OpLess:
				qb.Lt(t.Field, c.value)
			case OpGreaterEqual:
				qb.Gte(t.Field, c.value)
			case OpLessEqual:
				qb.Lte(t.Field, c.value)
			}
		case KindTextMatch:
			term, _ := c.value.(string)
			qb.ILike(t.Field, "%"+restdb.EscapeLike(term)+"%")
		case KindIn:
			qb.In(t.Field, c.values...)
		}
	}
	return qb
}

func deref(v interface{}) interface{} {
	if p, ok := v.(*int); ok && p != nil {
		return *p
	}
	return v
}
