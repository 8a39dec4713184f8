package restdb

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest indica um request malformado, rejeitado antes de qualquer I/O.
	ErrInvalidRequest = errors.New("restdb: invalid request")
	// ErrUnsupportedScheme indica um endpoint sem backend conhecido.
	ErrUnsupportedScheme = errors.New("restdb: unsupported endpoint scheme")
	ErrClosed            = errors.New("restdb: client closed")
	// ErrPartialWrite indica que parte de um lote foi gravada antes da falha.
	ErrPartialWrite = errors.New("restdb: batch partially written")
)

// StatusError indica que o store recebeu o request e o recusou
// (status HTTP, erro SQL ou código de erro da AWS).
type StatusError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	switch {
	case e.Code != "" && e.Status != 0:
		return fmt.Sprintf("restdb: store returned %d (%s): %s", e.Status, e.Code, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("restdb: store returned %d: %s", e.Status, e.Message)
	case e.Code != "":
		return fmt.Sprintf("restdb: store error %s: %s", e.Code, e.Message)
	default:
		return "restdb: store error: " + e.Message
	}
}

// Unauthorized informa se o store recusou a credencial.
func (e *StatusError) Unauthorized() bool {
	return e.Status == 401 || e.Status == 403
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// TransportError indica que o request não chegou ao store, ou a resposta não
// pôde ser lida (rede, driver, timeout, autenticação no transporte).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("restdb: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
