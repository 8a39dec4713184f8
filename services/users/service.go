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
// Package users implementa o serviço da coleção de usuários sobre o CRUD
// genérico de easycrud.
package users

import (
	"context"

	"github.com/raywall/fast-crud-toolkit/easycrud"
	"github.com/raywall/fast-crud-toolkit/query"
	"github.com/raywall/fast-crud-toolkit/restdb"
)

// Table é a coleção padrão do serviço.
const Table = "users"

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// DefaultSearchLimit é o limite de SearchUsers quando nenhum é informado.
const DefaultSearchLimit = 10

// Rules valida os campos obrigatórios de um usuário nas gravações.
var Rules = map[string]interface{}{
	"email":    "required,email",
	"username": "required",
}

// Service estende o CRUD genérico com consultas específicas de usuários.
// Só usa as operações públicas de easycrud.Service.
type Service struct {
	*easycrud.Service
}

// New cria o serviço sobre a coleção "users".
func New(client *restdb.Client, opts ...easycrud.Option) *Service {
	return NewWithTable(client, Table, opts...)
}

// NewWithTable cria o serviço sobre uma coleção com outro nome.
func NewWithTable(client *restdb.Client, table string, opts ...easycrud.Option) *Service {
	opts = append([]easycrud.Option{easycrud.WithRules(Rules)}, opts...)
	return &Service{Service: easycrud.New(client, table, opts...)}
}

func (s *Service) GetByEmail(ctx context.Context, email string) easycrud.Response[restdb.Record] {
	return s.FindOne(ctx, query.Where("email", query.Equals(email)))
}

func (s *Service) GetByUsername(ctx context.Context, username string) easycrud.Response[restdb.Record] {
	return s.FindOne(ctx, query.Where("username", query.Equals(username)))
}

// GetActiveUsers lista os usuários ativos, mais recentes primeiro.
// limit <= 0 usa o page size do store.
func (s *Service) GetActiveUsers(ctx context.Context, limit int) easycrud.Response[[]restdb.Record] {
	opts := []query.Option{query.OrderBy("created_at", false)}
	if limit > 0 {
		opts = append(opts, query.Limit(limit))
	}
	return s.Find(ctx, query.Where("status", query.Equals(StatusActive)), opts...)
}

// CreateUser cria um usuário com email e username, mais os campos extras.
// Os campos de extra não sobrescrevem email e username.
func (s *Service) CreateUser(ctx context.Context, email, username string, extra restdb.Record) easycrud.Response[restdb.Record] {
	record := make(restdb.Record, len(extra)+2)
	for k, v := range extra {
		record[k] = v
	}
	record["email"] = email
	record["username"] = username
	return s.Create(ctx, record)
}

func (s *Service) UpdateStatus(ctx context.Context, id interface{}, status string) easycrud.Response[restdb.Record] {
	return s.Update(ctx, id, restdb.Record{"status": status})
}

func (s *Service) Deactivate(ctx context.Context, id interface{}) easycrud.Response[restdb.Record] {
	return s.UpdateStatus(ctx, id, StatusInactive)
}

// SearchUsers busca por trecho do email, sem diferenciar maiúsculas.
func (s *Service) SearchUsers(ctx context.Context, term string, limit int) easycrud.Response[[]restdb.Record] {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return s.Search(ctx, "email", term, limit)
}

func (s *Service) EmailExists(ctx context.Context, email string) easycrud.Response[bool] {
	return s.Exists(ctx, query.Where("email", query.Equals(email)))
}

func (s *Service) UsernameExists(ctx context.Context, username string) easycrud.Response[bool] {
	return s.Exists(ctx, query.Where("username", query.Equals(username)))
}
