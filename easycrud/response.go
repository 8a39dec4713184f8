package easycrud

import (
	"encoding/json"
	"fmt"
)

// Outcome é o resultado de uma operação.
type Outcome string

const (
	Success Outcome = "success"
	Failure Outcome = "failure"
)

// ErrorKind classifica a falha de uma operação.
type ErrorKind string

const (
	// KindValidation: filtro ou entrada rejeitados antes de qualquer chamada ao store.
	KindValidation ErrorKind = "validation"
	// KindConnectivity: rede, timeout ou credencial recusada.
	KindConnectivity ErrorKind = "connectivity"
	// KindStore: o store recebeu o request e o recusou.
	KindStore ErrorKind = "store"
	// KindInternal: panic recuperado dentro da operação.
	KindInternal ErrorKind = "internal"
)

// ErrorInfo descreve uma falha com o contexto da operação.
type ErrorInfo struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Operation  string    `json:"operation"`
	Collection string    `json:"collection"`

	cause error
}

func (e *ErrorInfo) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Operation, e.Collection, e.Message)
}

// Unwrap devolve o erro original, para errors.Is/As.
func (e *ErrorInfo) Unwrap() error {
	return e.cause
}

// Empty é o dado das operações que não devolvem registro (Delete).
// Serializa como null.
type Empty struct{}

func (Empty) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Response é o envelope devolvido por toda operação dos serviços. Só este
// pacote constrói envelopes: sucesso nunca carrega erro, e falha nunca
// carrega dados.
type Response[T any] struct {
	outcome Outcome
	data    T
	count   *int
	exists  *bool
	err     *ErrorInfo
}

func success[T any](data T) Response[T] {
	return Response[T]{outcome: Success, data: data}
}

func successCount[T any](data T, n int) Response[T] {
	return Response[T]{outcome: Success, data: data, count: &n}
}

func successExists(v bool) Response[bool] {
	return Response[bool]{outcome: Success, data: v, exists: &v}
}

func failure[T any](info *ErrorInfo) Response[T] {
	return Response[T]{outcome: Failure, err: info}
}

// Fail monta um envelope de falha para serviços especializados que
// combinam envelopes de tipos diferentes.
func Fail[T any](info *ErrorInfo) Response[T] {
	if info == nil {
		info = &ErrorInfo{Kind: KindInternal, Message: "failure without error information"}
	}
	return failure[T](info)
}

// Map converte os dados de um envelope de sucesso, mantendo count e exists.
// Falhas são repassadas sem chamar fn.
func Map[T, U any](r Response[T], fn func(T) U) Response[U] {
	if !r.OK() {
		return failure[U](r.err)
	}
	return Response[U]{outcome: Success, data: fn(r.data), count: r.count, exists: r.exists}
}

func (r Response[T]) Outcome() Outcome {
	return r.outcome
}

// OK informa se a operação teve sucesso.
func (r Response[T]) OK() bool {
	return r.outcome == Success
}

// Data devolve os dados. Em falhas, é o valor zero de T.
func (r Response[T]) Data() T {
	return r.data
}

// Count devolve a contagem, quando a operação a informa.
func (r Response[T]) Count() (int, bool) {
	if r.count == nil {
		return 0, false
	}
	return *r.count, true
}

// Exists devolve o resultado de uma checagem de existência.
func (r Response[T]) Exists() (bool, bool) {
	if r.exists == nil {
		return false, false
	}
	return *r.exists, true
}

// Err devolve a falha, ou nil em caso de sucesso.
func (r Response[T]) Err() *ErrorInfo {
	return r.err
}

// AsError devolve a falha como error; nil em caso de sucesso.
func (r Response[T]) AsError() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

func (r Response[T]) String() string {
	if !r.OK() {
		if r.err == nil {
			return "failure"
		}
		return "failure: " + r.err.Error()
	}
	return fmt.Sprintf("success: %v", r.data)
}

type responseJSON struct {
	Outcome Outcome         `json:"outcome"`
	Data    json.RawMessage `json:"data,omitempty"`
	Count   *int            `json:"count,omitempty"`
	Exists  *bool           `json:"exists,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

// MarshalJSON escreve o envelope com os campos opcionais apenas quando presentes.
func (r Response[T]) MarshalJSON() ([]byte, error) {
	out := responseJSON{
		Outcome: r.outcome,
		Count:   r.count,
		Exists:  r.exists,
		Error:   r.err,
	}
	if out.Outcome == "" {
		out.Outcome = Failure
	}
	if r.OK() {
		raw, err := json.Marshal(r.data)
		if err != nil {
			return nil, err
		}
		out.Data = raw
	}
	return json.Marshal(out)
}
