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
Package profiles é um client somente leitura para a API de perfis da
Unipile (perfis do LinkedIn).

	client, err := profiles.FromEnv()
	if err != nil {
		return err
	}
	me, err := client.GetOwnProfile(ctx, "acc_123", "")
	other, err := client.GetUserProfileByUsername(ctx, "acc_123", "johndoe", "")

	cmp := client.CompareProfiles(ctx, "acc_123", "johndoe", "janedoe", "")
	if !cmp.OK() {
		log.Warn().Err(cmp.Err()).Msg("comparação parcial")
	}

Respostas com status >= 400 viram *APIError.
*/
package profiles
