package restdb

import (
	"context"
	"fmt"
)

// Record é uma linha de uma coleção: nomes de coluna para valores.
type Record map[string]interface{}

// Clone devolve uma cópia rasa do registro.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Operation é a primitiva executada por um Request.
type Operation int

const (
	OpSelect Operation = iota
	OpInsert
	OpUpdate
	OpDelete
	OpCount
)

func (o Operation) String() string {
	switch o {
	case OpSelect:
		return "select"
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpCount:
		return "count"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// Operator é o operador de uma condição, com os nomes usados pelo PostgREST.
type Operator string

const (
	Eq    Operator = "eq"
	Gt    Operator = "gt"
	Gte   Operator = "gte"
	Lt    Operator = "lt"
	Lte   Operator = "lte"
	ILike Operator = "ilike"
	In    Operator = "in"
)

// Condition restringe as linhas afetadas. Todas as condições de um Request
// valem ao mesmo tempo (AND).
type Condition struct {
	Field string
	Op    Operator
	// Value é um escalar, um padrão LIKE (% e _ como curingas, \ como escape)
	// para ILike ou um []interface{} para In.
	Value interface{}
}

// Order define a ordenação de uma leitura.
type Order struct {
	Field     string
	Ascending bool
}

// Request é a descrição de uma única chamada ao store, montada pelo QueryBuilder.
type Request struct {
	Collection string
	Operation  Operation
	Columns    []string
	Rows       []Record
	Patch      Record
	Conditions []Condition
	Order      []Order
	// Limit zero significa sem limite explícito.
	Limit  int
	Offset int
}

// Result é a resposta bruta do store.
type Result struct {
	Records []Record
	// Count só é preenchido por OpCount.
	Count int
}

// Backend executa requests contra um store concreto.
type Backend interface {
	Execute(ctx context.Context, req *Request) (*Result, error)
	Ping(ctx context.Context) error
	Close() error
}
