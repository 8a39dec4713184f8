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
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/raywall/fast-crud-toolkit/crudapi"
	"github.com/raywall/fast-crud-toolkit/pkg/awsconfig"
	"github.com/raywall/fast-crud-toolkit/pkg/config"
	"github.com/raywall/fast-crud-toolkit/pkg/fixtures"
	"github.com/raywall/fast-crud-toolkit/pkg/logger"
	"github.com/raywall/fast-crud-toolkit/pkg/observability"
	"github.com/raywall/fast-crud-toolkit/pkg/rules"
	"github.com/raywall/fast-crud-toolkit/pkg/transport"
	"github.com/raywall/fast-crud-toolkit/profiles"
	"github.com/raywall/fast-crud-toolkit/query"
	"github.com/raywall/fast-crud-toolkit/restdb"
	"github.com/rs/zerolog"
)

const usage = "Comandos esperados: probe | select | insert | seed | serve"

var (
	configPath string
	// Variáveis injetáveis para mocking
	newAPI        = crudapi.FromEnv
	newProfiles   = profiles.FromEnv
	serverStarter = func(ctx context.Context, g *transport.Gateway, addr string) error {
		return g.ListenAndServe(ctx, addr)
	}
	lambdaStarter  = lambda.Start
	newQueueClient = func(ctx context.Context, region string) (transport.SQSClient, error) {
		awsCfg, err := awsconfig.Shared(ctx, region)
		if err != nil {
			return nil, err
		}
		return sqs.NewFromConfig(awsCfg), nil
	}
)

func init() {
	configPath = os.Getenv("CONFIG_FILE_PATH")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

// run contém a lógica principal testável
func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 {
		return errors.New(usage)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	env := &environment{cfg: cfg, log: logger.Configure(cfg.Logging), out: out}

	switch args[0] {
	case "probe":
		return env.probe(ctx, args[1:])
	case "select":
		return env.selectRows(ctx, args[1:])
	case "insert":
		return env.insert(ctx, args[1:])
	case "seed":
		return env.seed(ctx, args[1:])
	case "serve":
		return env.serve(ctx, args[1:])
	default:
		return fmt.Errorf("comando desconhecido %q. %s", args[0], usage)
	}
}

type environment struct {
	cfg *config.ToolkitConfig
	log zerolog.Logger
	out io.Writer
}

func (e *environment) api(opts ...crudapi.Option) (*crudapi.API, error) {
	opts = append([]crudapi.Option{crudapi.WithLogger(e.log)}, opts...)
	api, err := newAPI(opts...)
	if err != nil {
		return nil, err
	}
	if err := installRules(api, e.cfg.Rules); err != nil {
		api.Close()
		return nil, err
	}
	return api, nil
}

// installRules compila as regras CEL de cada coleção e as liga ao serviço da tabela.
func installRules(api *crudapi.API, tables map[string][]config.RuleConf) error {
	if len(tables) == 0 {
		return nil
	}
	manager, err := rules.NewManager()
	if err != nil {
		return err
	}
	for table, confs := range tables {
		list := make([]rules.Rule, 0, len(confs))
		for _, c := range confs {
			list = append(list, rules.Rule{Name: c.Name, Expression: c.Expression, On: c.On})
		}
		rs, err := manager.Compile(list...)
		if err != nil {
			return fmt.Errorf("rules %s: %w", table, err)
		}
		rs.Install(api.Table(table))
	}
	return nil
}

func (e *environment) probe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	withProfiles := fs.Bool("profiles", false, "Também verifica a API de perfis (UNIPILE_DSN)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	api, err := e.api()
	if err != nil {
		return err
	}
	defer api.Close()

	ok := api.Probe(ctx)
	fmt.Fprintf(e.out, "store: %s\n", status(ok))

	if *withProfiles {
		opts := []profiles.Option{profiles.WithLogger(e.log)}
		if override := api.Client().Config().ProfileAPIURL; override != "" {
			opts = append(opts, profiles.WithBaseURL(override))
		}
		pc, err := newProfiles(opts...)
		if err != nil {
			return err
		}
		pok := pc.Probe(ctx)
		fmt.Fprintf(e.out, "profiles: %s\n", status(pok))
		ok = ok && pok
	}

	if !ok {
		return errors.New("probe falhou")
	}
	return nil
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "unreachable"
}

// filterFlag acumula -filter campo=valor (repetível) em igualdades.
type filterFlag map[string]interface{}

func (f filterFlag) String() string { return fmt.Sprint(map[string]interface{}(f)) }

func (f filterFlag) Set(raw string) error {
	field, value, ok := strings.Cut(raw, "=")
	if !ok || field == "" {
		return fmt.Errorf("filtro inválido %q: use campo=valor", raw)
	}
	f[field] = value
	return nil
}

func (e *environment) selectRows(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("select", flag.ContinueOnError)
	table := fs.String("table", "", "Coleção consultada")
	limit := fs.Int("limit", 0, "Máximo de registros (0 usa o page size do store)")
	order := fs.String("order", "", "Campo de ordenação; prefixo - para decrescente")
	filters := filterFlag{}
	fs.Var(filters, "filter", "Igualdade campo=valor (repetível)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *table == "" {
		return errors.New("flag -table é obrigatória")
	}

	var opts []query.Option
	if *limit > 0 {
		opts = append(opts, query.Limit(*limit))
	}
	if *order != "" {
		field := strings.TrimPrefix(*order, "-")
		opts = append(opts, query.OrderBy(field, !strings.HasPrefix(*order, "-")))
	}

	api, err := e.api()
	if err != nil {
		return err
	}
	defer api.Close()

	resp := api.QuickSelect(ctx, *table, query.Match(filters), opts...)
	return e.print(resp, resp.AsError())
}

func (e *environment) insert(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("insert", flag.ContinueOnError)
	table := fs.String("table", "", "Coleção de destino")
	data := fs.String("data", "", "Registro em JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *table == "" || *data == "" {
		return errors.New("flags -table e -data são obrigatórias")
	}

	var record restdb.Record
	if err := json.Unmarshal([]byte(*data), &record); err != nil {
		return fmt.Errorf("-data não é um objeto JSON: %w", err)
	}

	api, err := e.api()
	if err != nil {
		return err
	}
	defer api.Close()

	resp := api.QuickInsert(ctx, *table, record)
	return e.print(resp, resp.AsError())
}

func (e *environment) seed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	file := fs.String("file", "", "Arquivo JSON/YAML/CSV local ou s3://bucket/key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("flag -file é obrigatória")
	}

	api, err := e.api()
	if err != nil {
		return err
	}
	defer api.Close()

	loader := &fixtures.Loader{Region: api.Client().Config().AWSRegion}
	set, err := loader.Load(ctx, *file)
	if err != nil {
		return err
	}

	for _, name := range set.Collections() {
		resp := api.Table(name).CreateMany(ctx, set[name])
		if err := resp.AsError(); err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
		n, _ := resp.Count()
		fmt.Fprintf(e.out, "%s: %d registros\n", name, n)
	}
	return nil
}

func (e *environment) serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	provider, err := observability.SetupMetrics(e.cfg.Metrics)
	if err != nil {
		return err
	}

	api, err := e.api(crudapi.WithMetrics(provider))
	if err != nil {
		return err
	}
	defer api.Close()

	server := e.cfg.Server
	gateway := transport.NewGateway(api,
		transport.WithLogger(e.log),
		transport.WithTimeout(server.GetTimeout()),
		transport.WithPrefix(server.Prefix),
	)

	if server.IngestQueueURL != "" {
		client, err := newQueueClient(ctx, api.Client().Config().AWSRegion)
		if err != nil {
			return fmt.Errorf("sqs client: %w", err)
		}
		go transport.NewSQSIngestor(client, server.IngestQueueURL, api, e.log).Start(ctx)
	}

	switch server.Runtime {
	case "lambda":
		lambdaStarter(transport.NewLambdaHandler(gateway).Handle)
		return nil
	default:
		return serverStarter(ctx, gateway, fmt.Sprintf(":%d", server.Port))
	}
}

// print escreve o envelope em JSON e devolve err para o código de saída.
func (e *environment) print(v interface{}, err error) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(v); encErr != nil {
		return encErr
	}
	return err
}
