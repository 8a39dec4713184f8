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
//
// Package envloader carrega configuração para structs Go a partir de variáveis
// de ambiente, de mapas chave/valor ou de qualquer LookupFunc.
//
// Tags suportadas:
//   - env:"VAR"          nome da chave; aceita aliases separados por vírgula ("url,endpoint")
//   - envDefault:"valor" valor usado quando a chave não existe ou está em branco
//   - required:"true"    falha com *RequiredError quando não há valor nem default
//
// Tipos suportados: string, inteiros, uints, bool, floats, []string (separado por
// vírgula) e time.Duration ("30s" ou um inteiro em segundos). Structs aninhadas e
// ponteiros para struct são percorridos recursivamente.
//
// Exemplo:
//
//	type Config struct {
//		URL string        `env:"SUPABASE_URL" required:"true"`
//		Timeout time.Duration `env:"SUPABASE_TIMEOUT" envDefault:"30"`
//	}
//
//	_ = envloader.LoadDotEnv()
//	var cfg Config
//	if err := envloader.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
package envloader
