// Copyright 2025 Raywall Malheiros de Souza
// Licensed under the Mozilla Public License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.mozilla.org/en-US/MPL/2.0/
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package envloader

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrRequired é o sentinel retornado (via errors.Is) quando um campo marcado
// com `required:"true"` não recebe valor nem da origem nem de envDefault.
var ErrRequired = errors.New("envloader: required value missing")

// InvalidConfigError é retornado quando Load recebe algo que não é um ponteiro para struct.
type InvalidConfigError struct {
	Value reflect.Type
}

func (e *InvalidConfigError) Error() string {
	if e.Value == nil {
		return "envloader: config must be a pointer to struct, got nil"
	}
	if e.Value.Kind() != reflect.Ptr {
		return fmt.Sprintf("envloader: config must be a pointer to struct, got %s", e.Value.Kind())
	}
	return fmt.Sprintf("envloader: config must be a pointer to struct, got pointer to %s", e.Value.Elem().Kind())
}

// FieldError é retornado quando o valor bruto não pode ser convertido para o tipo do campo.
type FieldError struct {
	FieldName string
	EnvVar    string
	Value     string
	Err       error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("envloader: error setting field %s from env %s=%s: %v",
		e.FieldName, e.EnvVar, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// RequiredError indica qual campo obrigatório ficou sem valor.
type RequiredError struct {
	FieldName string
	EnvVar    string
}

func (e *RequiredError) Error() string {
	return fmt.Sprintf("envloader: field %s requires %s to be set", e.FieldName, e.EnvVar)
}

func (e *RequiredError) Is(target error) bool {
	return target == ErrRequired
}

// UnsupportedTypeError é retornado para tipos de campo sem conversão (map, interface...).
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("envloader: unsupported type %s", e.Type)
}
