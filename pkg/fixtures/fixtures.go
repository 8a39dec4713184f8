package fixtures

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/raywall/fast-crud-toolkit/pkg/awsconfig"
	"github.com/raywall/fast-crud-toolkit/restdb"
	"gopkg.in/yaml.v3"
)

// S3Client interface para Mock
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Set agrupa registros por coleção.
type Set map[string][]restdb.Record

// Collections devolve os nomes das coleções em ordem alfabética.
func (s Set) Collections() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Loader lê arquivos de fixtures do disco local ou do S3.
type Loader struct {
	// S3 é criado a partir de awsconfig.Shared quando nil.
	S3     S3Client
	Region string
}

// Load lê a origem (caminho local ou s3://bucket/key) e decodifica pelo
// formato da extensão: json, yaml/yml ou csv.
//
// Um array (ou um CSV) vira uma coleção com o nome base do arquivo; um
// objeto JSON/YAML é lido como coleção -> lista de registros.
func (l *Loader) Load(ctx context.Context, source string) (Set, error) {
	raw, name, err := l.read(ctx, source)
	if err != nil {
		return nil, err
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	collection := strings.TrimSuffix(path.Base(name), path.Ext(name))
	return Decode(raw, ext, collection)
}

// Load usa um Loader padrão.
func Load(ctx context.Context, source string) (Set, error) {
	return (&Loader{}).Load(ctx, source)
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, string, error) {
	if !strings.HasPrefix(source, "s3://") {
		raw, err := os.ReadFile(source)
		if err != nil {
			return nil, "", fmt.Errorf("erro ao ler fixture: %w", err)
		}
		return raw, filepath.ToSlash(source), nil
	}

	bucket, key, _ := strings.Cut(strings.TrimPrefix(source, "s3://"), "/")
	if bucket == "" || key == "" {
		return nil, "", fmt.Errorf("fixture s3 inválida %q: esperado s3://bucket/key", source)
	}

	client := l.S3
	if client == nil {
		cfg, err := awsconfig.Shared(ctx, l.Region)
		if err != nil {
			return nil, "", err
		}
		client = s3.NewFromConfig(cfg)
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, "", fmt.Errorf("erro ao baixar do S3: %w", err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", err
	}
	return raw, key, nil
}

// Decode converte o conteúdo no formato informado.
func Decode(raw []byte, format, collection string) (Set, error) {
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var doc interface{}
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("erro parse JSON: %w", err)
		}
		return fromDocument(doc, collection)
	case "yaml", "yml":
		var doc interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("erro parse YAML: %w", err)
		}
		return fromDocument(doc, collection)
	case "csv":
		rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
		if err != nil {
			return nil, fmt.Errorf("erro parse CSV: %w", err)
		}
		return Set{collection: parseCSV(rows)}, nil
	}
	return nil, fmt.Errorf("formato de fixture não suportado: %q", format)
}

func fromDocument(doc interface{}, collection string) (Set, error) {
	switch v := doc.(type) {
	case []interface{}:
		records, err := toRecords(v)
		if err != nil {
			return nil, err
		}
		return Set{collection: records}, nil
	case map[string]interface{}:
		set := make(Set, len(v))
		for name, items := range v {
			list, ok := items.([]interface{})
			if !ok {
				return nil, fmt.Errorf("coleção %q: esperado uma lista de registros", name)
			}
			records, err := toRecords(list)
			if err != nil {
				return nil, fmt.Errorf("coleção %q: %w", name, err)
			}
			set[name] = records
		}
		return set, nil
	}
	return nil, fmt.Errorf("fixture deve ser uma lista ou um objeto de listas, recebido %T", doc)
}

func toRecords(items []interface{}) ([]restdb.Record, error) {
	records := make([]restdb.Record, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("registro %d não é um objeto", i)
		}
		records = append(records, restdb.NormalizeNumbers(restdb.Record(m)))
	}
	return records, nil
}

func parseCSV(rows [][]string) []restdb.Record {
	if len(rows) < 1 {
		return nil
	}
	headers := rows[0]
	records := make([]restdb.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(restdb.Record, len(headers))
		for i, val := range row {
			if i < len(headers) {
				rec[headers[i]] = val
			}
		}
		records = append(records, rec)
	}
	return records
}
