package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/raywall/fast-crud-toolkit/easycrud"
	"github.com/raywall/fast-crud-toolkit/restdb"
)

// Variáveis disponíveis nas expressões.
const (
	VarRecord    = "record"    // registro (ou patch) sendo gravado
	VarOperation = "operation" // "create" ou "update"
)

const (
	OpCreate = "create"
	OpUpdate = "update"
)

var ErrInvalidRule = errors.New("invalid rule")

// Rule é uma expressão CEL booleana avaliada antes de cada gravação.
// Em updates o registro contém apenas os campos do patch; use has() para
// campos opcionais, ex.: !has(record.age) || record.age >= 18.
type Rule struct {
	Name       string
	Expression string
	// On restringe a regra a "create" e/ou "update". Vazio vale para os dois.
	On []string
}

// ViolationError lista as regras que recusaram o registro.
type ViolationError struct {
	Operation string
	Rules     []string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s rejected by rules: %s", e.Operation, strings.Join(e.Rules, ", "))
}

// Manager guarda o ambiente CEL compartilhado pelos RuleSets.
type Manager struct {
	env *cel.Env
}

// NewManager inicializa o ambiente CEL com as variáveis record e operation.
func NewManager() (*Manager, error) {
	env, err := cel.NewEnv(
		cel.Variable(VarRecord, cel.DynType),
		cel.Variable(VarOperation, cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("erro fatal CEL init: %w", err)
	}
	return &Manager{env: env}, nil
}

type program struct {
	rule Rule
	prg  cel.Program
}

func (p program) appliesTo(op string) bool {
	if len(p.rule.On) == 0 {
		return true
	}
	for _, on := range p.rule.On {
		if on == op {
			return true
		}
	}
	return false
}

// RuleSet é um conjunto de regras já compiladas.
type RuleSet struct {
	programs []program
}

// Compile valida e compila as regras. Qualquer erro invalida o conjunto todo.
func (m *Manager) Compile(rules ...Rule) (*RuleSet, error) {
	rs := &RuleSet{programs: make([]program, 0, len(rules))}
	for i, r := range rules {
		if r.Name == "" {
			r.Name = fmt.Sprintf("rule_%d", i+1)
		}
		if strings.TrimSpace(r.Expression) == "" {
			return nil, fmt.Errorf("%w: %s has no expression", ErrInvalidRule, r.Name)
		}
		for _, on := range r.On {
			if on != OpCreate && on != OpUpdate {
				return nil, fmt.Errorf("%w: %s: unknown operation %q", ErrInvalidRule, r.Name, on)
			}
		}

		ast, issues := m.env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("%w: %s: erro de compilação CEL: %v", ErrInvalidRule, r.Name, issues.Err())
		}
		if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
			return nil, fmt.Errorf("%w: %s: expression must be boolean, got %s", ErrInvalidRule, r.Name, out)
		}

		prg, err := m.env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: erro ao gerar programa CEL: %v", ErrInvalidRule, r.Name, err)
		}
		rs.programs = append(rs.programs, program{rule: r, prg: prg})
	}
	return rs, nil
}

// Len devolve a quantidade de regras compiladas.
func (rs *RuleSet) Len() int {
	return len(rs.programs)
}

// Check avalia as regras da operação. Erro de avaliação (campo ausente,
// tipo incompatível) conta como violação.
func (rs *RuleSet) Check(ctx context.Context, op string, record restdb.Record) error {
	vars := map[string]interface{}{
		VarRecord:    map[string]interface{}(record),
		VarOperation: op,
	}

	var failed []string
	for _, p := range rs.programs {
		if !p.appliesTo(op) {
			continue
		}
		out, _, err := p.prg.ContextEval(ctx, vars)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s (%v)", p.rule.Name, err))
			continue
		}
		if ok, _ := out.Value().(bool); !ok {
			failed = append(failed, p.rule.Name)
		}
	}

	if len(failed) > 0 {
		return &ViolationError{Operation: op, Rules: failed}
	}
	return nil
}

// Install registra o conjunto como hooks BeforeCreate e BeforeUpdate do serviço.
func (rs *RuleSet) Install(svc *easycrud.Service) {
	svc.RegisterHook(easycrud.BeforeCreate, func(ctx context.Context, record restdb.Record) error {
		return rs.Check(ctx, OpCreate, record)
	})
	svc.RegisterHook(easycrud.BeforeUpdate, func(ctx context.Context, record restdb.Record) error {
		return rs.Check(ctx, OpUpdate, record)
	})
}
