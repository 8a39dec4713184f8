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
/*
Package restdb é o handle único para o store remoto usado pelos serviços CRUD.

Connect não faz I/O: o backend é escolhido pelo esquema do endpoint e criado
uma única vez, no primeiro uso.

  - http(s)://   PostgREST / Supabase (/rest/v1/<coleção>)
  - postgres://  database/sql + lib/pq
  - sqlite://    database/sql + go-sqlite3 (sqlite::memory: para testes)
  - dynamodb://  Amazon DynamoDB (uma tabela por coleção)
  - memory://    em memória, para testes e desenvolvimento local

Exemplo de uso:

	client := restdb.Connect(cfg)
	res, err := client.Collection("users").
		Select().
		Eq("status", "active").
		Order("created_at", false).
		Limit(10).
		Exec(ctx)
*/
package restdb
