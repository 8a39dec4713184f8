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
Package crudapi é a fachada do toolkit: resolve a configuração, é dona do
único restdb.Client e entrega serviços por coleção.

	api, err := crudapi.FromEnv(crudapi.WithLogger(log))
	if err != nil {
		log.Fatal().Err(err).Msg("configuração inválida")
	}

	resp := api.Table("orders").Find(ctx, query.Where("status", query.Equals("open")))
	active := api.Users().GetActiveUsers(ctx, 10)
	stats := crudapi.CustomService(api, tasks.New).Statistics(ctx)
*/
package crudapi
