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
Package easycrud oferece um serviço CRUD genérico por coleção sobre o
restdb.Client compartilhado.

Toda operação devolve um Response[T]: sucesso com dados (e, conforme a
operação, count ou exists) ou falha com um ErrorInfo classificado. Erros do
store, timeouts e panics nunca atravessam o serviço.

Exemplo:

	client := restdb.Connect(cfg)
	users := easycrud.New(client, "users")

	resp := users.Find(ctx, query.Where("status", query.Equals("active")), query.Limit(10))
	if !resp.OK() {
		log.Error().Str("kind", string(resp.Err().Kind)).Msg(resp.Err().Message)
	}
	for _, u := range resp.Data() {
		fmt.Println(u["email"])
	}

UpdateMany e DeleteMany fazem uma única chamada ao store, sem transação.
*/
package easycrud
