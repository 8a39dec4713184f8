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
Package query é o vocabulário declarativo de filtros dos serviços CRUD.

Um FilterSpec é uma conjunção ordenada e imutável de restrições por campo:

	f := query.Where("status", query.Equals("active")).
		And("age", query.AtLeast(18)).
		And("email", query.TextMatch("@example.com"))

Um Spec junta o filtro com ordenação, limit e offset, e Apply o traduz para o
QueryBuilder do restdb. Quem usa os serviços nunca escreve a sintaxe nativa do
store.
*/
package query
