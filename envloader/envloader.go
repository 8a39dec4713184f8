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
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LookupFunc resolve o valor bruto de uma chave de configuração.
// O segundo retorno indica se a chave existe na origem.
type LookupFunc func(key string) (string, bool)

// Load preenche uma struct com valores de variáveis de ambiente
// baseado nas tags "env", "envDefault" e "required".
func Load(config interface{}) error {
	return LoadFrom(config, os.LookupEnv)
}

// LoadMap preenche a struct a partir de um mapa chave/valor, usando as mesmas
// tags de Load. Útil quando a configuração vem de um arquivo ou de um dicionário.
func LoadMap(config interface{}, values map[string]string) error {
	return LoadFrom(config, func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	})
}

// LoadFrom é o núcleo de Load e LoadMap: aceita qualquer origem de valores.
func LoadFrom(config interface{}, lookup LookupFunc) error {
	val := reflect.ValueOf(config)
	if !val.IsValid() {
		return &InvalidConfigError{}
	}
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return &InvalidConfigError{Value: val.Type()}
	}

	return loadStruct(val.Elem(), lookup)
}

// LoadDotEnv carrega arquivos .env para o ambiente do processo sem sobrescrever
// variáveis já definidas. Arquivos inexistentes são ignorados.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// loadStruct processa recursivamente uma struct
func loadStruct(val reflect.Value, lookup LookupFunc) error {
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		// time.Duration é um int64, mas time.Time e afins são structs que não devem ser percorridas
		if field.Kind() == reflect.Struct && fieldType.Tag.Get("env") == "" {
			if err := loadStruct(field, lookup); err != nil {
				return err
			}
			continue
		}

		if field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct {
			if field.IsNil() {
				field.Set(reflect.New(field.Type().Elem()))
			}
			if err := loadStruct(field.Elem(), lookup); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		// A tag env aceita aliases separados por vírgula: o primeiro encontrado vence
		var envValue string
		for _, key := range strings.Split(envTag, ",") {
			if v, ok := lookup(strings.TrimSpace(key)); ok && strings.TrimSpace(v) != "" {
				envValue = v
				break
			}
		}

		if envValue == "" {
			envValue = fieldType.Tag.Get("envDefault")
		}

		if envValue == "" {
			if required, _ := strconv.ParseBool(fieldType.Tag.Get("required")); required {
				return &RequiredError{FieldName: fieldType.Name, EnvVar: envTag}
			}
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return &FieldError{
				FieldName: fieldType.Name,
				EnvVar:    envTag,
				Value:     envValue,
				Err:       err,
			}
		}
	}

	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setFieldValue define o valor de um campo baseado no seu tipo
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	value = strings.TrimSpace(value)

	// Durações aceitam "30s", "1m" ou um inteiro em segundos
	if field.Type() == durationType {
		if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(int64(time.Duration(secs) * time.Second))
			return nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(intValue)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		uintValue, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(uintValue)

	case reflect.Bool:
		boolValue, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			return err
		}
		field.SetBool(boolValue)

	case reflect.Float32, reflect.Float64:
		floatValue, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return &UnsupportedTypeError{Type: field.Type()}
		}
		parts := strings.Split(value, ",")
		out := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = reflect.Append(out, reflect.ValueOf(p))
			}
		}
		field.Set(out)

	default:
		return &UnsupportedTypeError{Type: field.Type()}
	}

	return nil
}

// MustLoad é similar ao Load, mas panic em caso de erro
func MustLoad(config interface{}) {
	if err := Load(config); err != nil {
		panic(err)
	}
}
