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
// Package fastcrud é a raiz do fast-crud-toolkit: uma camada de acesso a dados
// genérica sobre um store relacional remoto (Supabase/PostgREST, Postgres,
// SQLite, DynamoDB ou memória), mais um cliente somente leitura para a API de
// perfis da Unipile.
//
// Sub-Pacotes Principais:
//
// 1. storeconfig / envloader:
//   - Resolução da ConnectionConfig a partir de env vars, mapa ou arquivo YAML.
//   - Credenciais ssm:// e secretsmanager:// resolvidas sob demanda.
//
// 2. restdb e query:
//   - Client com backend escolhido pelo esquema do endpoint, criado na primeira operação.
//   - FilterSpec conjuntivo (igualdade, faixa, texto, in) e QuerySpec (ordem, limit, offset).
//
// 3. easycrud, services e crudapi:
//   - Response[T] como envelope único: nenhuma operação devolve erro fora dele.
//   - CRUD genérico por coleção, serviços especializados (users, tasks) e a facade com cache.
//
// 4. profiles:
//   - Leitura de perfis próprios e de terceiros, e comparação em paralelo.
//
// Exemplo de Início Rápido:
//
//	api, err := crudapi.FromEnv()
//	if err != nil {
//		log.Fatal(err) // configuração inválida é fatal
//	}
//	defer api.Close()
//
//	resp := api.QuickSelect(ctx, "users", query.Where("status", query.Equals("active")))
//	if !resp.OK() {
//		log.Printf("falha %s: %s", resp.Err().Kind, resp.Err().Message)
//	}
//	for _, user := range resp.Data() {
//		log.Println(user["email"])
//	}
package fastcrud
