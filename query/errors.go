package query

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery é o sentinel de todos os *ValidationError.
var ErrInvalidQuery = errors.New("query: invalid query")

// ValidationError descreve um filtro ou consulta malformados.
type ValidationError struct {
	Field  string
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("query: field %q: %s", e.Field, e.Reason)
	}
	return "query: " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidQuery
}
