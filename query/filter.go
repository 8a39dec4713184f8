package query

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Kind identifica o tipo de uma Constraint.
type Kind int

const (
	KindEquals Kind = iota + 1
	KindRange
	KindTextMatch
	KindIn
)

func (k Kind) String() string {
	switch k {
	case KindEquals:
		return "equals"
	case KindRange:
		return "range"
	case KindTextMatch:
		return "text_match"
	case KindIn:
		return "in"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// RangeOp é o operador de uma restrição Range.
type RangeOp string

const (
	OpGreater      RangeOp = ">"
	OpLess         RangeOp = "<"
	OpGreaterEqual RangeOp = ">="
	OpLessEqual    RangeOp = "<="
)

// Constraint é uma condição sobre um único campo. O valor zero não é válido;
// use Equals, Range, TextMatch ou In.
type Constraint struct {
	kind   Kind
	op     RangeOp
	value  interface{}
	values []interface{}
}

// Equals casa registros cujo campo é igual a v. Equals(nil) casa campos nulos.
func Equals(v interface{}) Constraint {
	return Constraint{kind: KindEquals, value: v}
}

// Range compara o campo com v usando op (>, <, >=, <=).
func Range(op RangeOp, v interface{}) Constraint {
	return Constraint{kind: KindRange, op: op, value: v}
}

func GreaterThan(v interface{}) Constraint { return Range(OpGreater, v) }
func LessThan(v interface{}) Constraint    { return Range(OpLess, v) }
func AtLeast(v interface{}) Constraint     { return Range(OpGreaterEqual, v) }
func AtMost(v interface{}) Constraint      { return Range(OpLessEqual, v) }

// TextMatch casa campos que contêm substring, sem diferenciar maiúsculas.
func TextMatch(substring string) Constraint {
	return Constraint{kind: KindTextMatch, value: substring}
}

// In casa campos iguais a qualquer um dos valores.
func In(values ...interface{}) Constraint {
	return Constraint{kind: KindIn, values: append([]interface{}(nil), values...)}
}

func (c Constraint) Kind() Kind            { return c.kind }
func (c Constraint) Op() RangeOp           { return c.op }
func (c Constraint) Value() interface{}    { return c.value }
func (c Constraint) Values() []interface{} { return append([]interface{}(nil), c.values...) }

func (c Constraint) String() string {
	switch c.kind {
	case KindEquals:
		return fmt.Sprintf("= %v", c.value)
	case KindRange:
		return fmt.Sprintf("%s %v", c.op, c.value)
	case KindTextMatch:
		return fmt.Sprintf("~ %q", c.value)
	case KindIn:
		return fmt.Sprintf("in %v", c.values)
	default:
		return "invalid"
	}
}

// Term é um par campo/restrição de um FilterSpec.
type Term struct {
	Field      string
	Constraint Constraint
}

// FilterSpec é uma conjunção (AND) ordenada de restrições. É imutável: And
// devolve um novo FilterSpec e nunca altera o receptor.
type FilterSpec struct {
	terms []Term
}

// Where inicia um FilterSpec com uma restrição.
func Where(field string, c Constraint) FilterSpec {
	return FilterSpec{terms: []Term{{Field: field, Constraint: c}}}
}

// And devolve um novo FilterSpec com a restrição adicionada ao fim.
func (f FilterSpec) And(field string, c Constraint) FilterSpec {
	terms := make([]Term, len(f.terms), len(f.terms)+1)
	copy(terms, f.terms)
	return FilterSpec{terms: append(terms, Term{Field: field, Constraint: c})}
}

// Match monta um FilterSpec de igualdades a partir de um mapa. As chaves são
// ordenadas para que o resultado seja determinístico.
func Match(values map[string]interface{}) FilterSpec {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f := FilterSpec{}
	for _, k := range keys {
		f = f.And(k, Equals(values[k]))
	}
	return f
}

// Terms devolve uma cópia dos termos, na ordem de construção.
func (f FilterSpec) Terms() []Term {
	return append([]Term(nil), f.terms...)
}

func (f FilterSpec) Len() int {
	return len(f.terms)
}

// IsEmpty informa se o filtro casa todos os registros.
func (f FilterSpec) IsEmpty() bool {
	return len(f.terms) == 0
}

// Equal compara dois filtros termo a termo.
func (f FilterSpec) Equal(other FilterSpec) bool {
	if len(f.terms) != len(other.terms) {
		return false
	}
	for i := range f.terms {
		if f.terms[i].Field != other.terms[i].Field {
			return false
		}
		if !reflect.DeepEqual(f.terms[i].Constraint, other.terms[i].Constraint) {
			return false
		}
	}
	return true
}

func (f FilterSpec) String() string {
	if f.IsEmpty() {
		return "<all>"
	}
	parts := make([]string, 0, len(f.terms))
	for _, t := range f.terms {
		parts = append(parts, t.Field+" "+t.Constraint.String())
	}
	return strings.Join(parts, " AND ")
}

// Validate rejeita filtros malformados antes de qualquer chamada ao store.
func (f FilterSpec) Validate() error {
	for i, t := range f.terms {
		if strings.TrimSpace(t.Field) == "" {
			return &ValidationError{Index: i, Reason: "field name is empty"}
		}
		c := t.Constraint
		switch c.kind {
		case KindEquals:
		case KindRange:
			switch c.op {
			case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
			default:
				return &ValidationError{Field: t.Field, Index: i, Reason: fmt.Sprintf("unsupported range operator %q", c.op)}
			}
			if c.value == nil {
				return &ValidationError{Field: t.Field, Index: i, Reason: "range value is nil"}
			}
		case KindTextMatch:
			if s, _ := c.value.(string); s == "" {
				return &ValidationError{Field: t.Field, Index: i, Reason: "text match term is empty"}
			}
		case KindIn:
			if len(c.values) == 0 {
				return &ValidationError{Field: t.Field, Index: i, Reason: "in needs at least one value"}
			}
		default:
			return &ValidationError{Field: t.Field, Index: i, Reason: "unsupported constraint"}
		}
	}
	return nil
}
