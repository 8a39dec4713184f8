package restdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/raywall/fast-crud-toolkit/pkg/awsconfig"
	"github.com/raywall/fast-crud-toolkit/storeconfig"
)

// dynamoBatchSize é o máximo de operações por BatchWriteItem.
const dynamoBatchSize = 25

// DynamoDBClient interface para abstrair o cliente DynamoDB
type DynamoDBClient interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
}

// dynamoBackend trata cada coleção como uma tabela. Filtros viram
// FilterExpression de um Scan paginado; ordenação, offset e limit são
// aplicados no cliente, pois o Scan não ordena.
type dynamoBackend struct {
	client DynamoDBClient
	// keys guarda o KeySchema de cada tabela (nome -> []string).
	keys sync.Map
	now  func() time.Time
}

// newDynamoBackend aceita dynamodb://<região>[?endpoint=<url>]. Uma credencial
// no formato ACCESS_KEY:SECRET vira credencial estática; qualquer outro valor
// deixa a cadeia padrão da AWS decidir.
func newDynamoBackend(cfg storeconfig.ConnectionConfig, client DynamoDBClient) (*dynamoBackend, error) {
	if client != nil {
		return &dynamoBackend{client: client, now: time.Now}, nil
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid dynamodb endpoint: %v", ErrUnsupportedScheme, err)
	}

	opts := awsconfig.Options{Region: u.Host}
	if opts.Region == "" {
		opts.Region = cfg.AWSRegion
	}
	if access, secret, ok := strings.Cut(cfg.Credential, ":"); ok {
		opts.AccessKey, opts.SecretKey = access, secret
	}

	awsCfg, err := awsconfig.Load(context.Background(), opts)
	if err != nil {
		return nil, fmt.Errorf("could not load AWS config: %w", err)
	}

	override := u.Query().Get("endpoint")
	return &dynamoBackend{
		client: dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if override != "" {
				o.BaseEndpoint = aws.String(override)
			}
		}),
		now: time.Now,
	}, nil
}

func (b *dynamoBackend) Close() error {
	return nil
}

func (b *dynamoBackend) Ping(ctx context.Context) error {
	_, err := b.client.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	if err != nil {
		return classifyAWSError("ping", err)
	}
	return nil
}

func (b *dynamoBackend) Execute(ctx context.Context, req *Request) (*Result, error) {
	switch req.Operation {
	case OpSelect:
		items, err := b.scan(ctx, req.Collection, req.Conditions)
		if err != nil {
			return nil, err
		}
		records, err := unmarshalItems(items)
		if err != nil {
			return nil, err
		}
		sortRecords(records, req.Order)
		records = window(records, req.Limit, req.Offset)
		return &Result{Records: project(records, req.Columns)}, nil

	case OpCount:
		n, err := b.count(ctx, req.Collection, req.Conditions)
		if err != nil {
			return nil, err
		}
		return &Result{Count: n}, nil

	case OpInsert:
		return b.insert(ctx, req.Collection, req.Rows)

	case OpUpdate:
		return b.update(ctx, req)

	case OpDelete:
		return b.delete(ctx, req)
	}
	return nil, invalid("unknown operation %s", req.Operation)
}

func buildFilter(conds []Condition) (*expression.Expression, error) {
	if len(conds) == 0 {
		return nil, nil
	}

	var filter expression.ConditionBuilder
	for i, c := range conds {
		cond, err := conditionFor(c)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			filter = cond
		} else {
			filter = filter.And(cond)
		}
	}

	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, invalid("could not build filter: %v", err)
	}
	return &expr, nil
}

func conditionFor(c Condition) (expression.ConditionBuilder, error) {
	name := expression.Name(c.Field)
	switch c.Op {
	case Eq:
		if c.Value == nil {
			return expression.Or(name.AttributeNotExists(), name.AttributeType(expression.Null)), nil
		}
		return name.Equal(expression.Value(dynamoValue(c.Value))), nil
	case Gt:
		return name.GreaterThan(expression.Value(dynamoValue(c.Value))), nil
	case Gte:
		return name.GreaterThanEqual(expression.Value(dynamoValue(c.Value))), nil
	case Lt:
		return name.LessThan(expression.Value(dynamoValue(c.Value))), nil
	case Lte:
		return name.LessThanEqual(expression.Value(dynamoValue(c.Value))), nil
	case ILike:
		// O DynamoDB só tem contains, que diferencia maiúsculas
		pattern, _ := c.Value.(string)
		return name.Contains(stripWildcards(pattern)), nil
	case In:
		values, _ := c.Value.([]interface{})
		if len(values) == 0 {
			return expression.ConditionBuilder{}, invalid("in on %s needs at least one value", c.Field)
		}
		operands := make([]expression.OperandBuilder, 0, len(values))
		for _, v := range values {
			operands = append(operands, expression.Value(dynamoValue(v)))
		}
		return name.In(operands[0], operands[1:]...), nil
	}
	return expression.ConditionBuilder{}, invalid("unknown operator %q", c.Op)
}

// scan percorre todas as páginas (LastEvaluatedKey) da tabela.
func (b *dynamoBackend) scan(ctx context.Context, table string, conds []Condition) ([]map[string]types.AttributeValue, error) {
	expr, err := buildFilter(conds)
	if err != nil {
		return nil, err
	}

	var (
		items   []map[string]types.AttributeValue
		lastKey map[string]types.AttributeValue
	)
	for {
		input := &dynamodb.ScanInput{
			TableName:         aws.String(table),
			ExclusiveStartKey: lastKey,
		}
		if expr != nil {
			input.FilterExpression = expr.Filter()
			input.ExpressionAttributeNames = expr.Names()
			input.ExpressionAttributeValues = expr.Values()
		}

		out, err := b.client.Scan(ctx, input)
		if err != nil {
			return nil, classifyAWSError("scan", err)
		}
		items = append(items, out.Items...)

		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		lastKey = out.LastEvaluatedKey
	}
}

func (b *dynamoBackend) count(ctx context.Context, table string, conds []Condition) (int, error) {
	expr, err := buildFilter(conds)
	if err != nil {
		return 0, err
	}

	total := 0
	var lastKey map[string]types.AttributeValue
	for {
		input := &dynamodb.ScanInput{
			TableName:         aws.String(table),
			Select:            types.SelectCount,
			ExclusiveStartKey: lastKey,
		}
		if expr != nil {
			input.FilterExpression = expr.Filter()
			input.ExpressionAttributeNames = expr.Names()
			input.ExpressionAttributeValues = expr.Values()
		}

		out, err := b.client.Scan(ctx, input)
		if err != nil {
			return 0, classifyAWSError("count", err)
		}
		total += int(out.Count)

		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		lastKey = out.LastEvaluatedKey
	}
}

// keySchema devolve os atributos de chave da tabela (hash primeiro).
func (b *dynamoBackend) keySchema(ctx context.Context, table string) ([]string, error) {
	if cached, ok := b.keys.Load(table); ok {
		return cached.([]string), nil
	}

	out, err := b.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err != nil {
		return nil, classifyAWSError("describe", err)
	}
	if out.Table == nil {
		return nil, &StatusError{Code: "ResourceNotFoundException", Message: "table " + table + " not described"}
	}

	keys := make([]string, 0, 2)
	for _, k := range out.Table.KeySchema {
		if k.KeyType == types.KeyTypeHash {
			keys = append([]string{aws.ToString(k.AttributeName)}, keys...)
		} else {
			keys = append(keys, aws.ToString(k.AttributeName))
		}
	}
	b.keys.Store(table, keys)
	return keys, nil
}

// insert grava via BatchWriteItem, em lotes de 25. Itens sem a chave hash
// recebem um uuid, como um store que gera ids.
func (b *dynamoBackend) insert(ctx context.Context, table string, rows []Record) (*Result, error) {
	keys, err := b.keySchema(ctx, table)
	if err != nil {
		return nil, err
	}

	now := b.now().UTC().Format(time.RFC3339Nano)
	records := make([]Record, 0, len(rows))
	writes := make([]types.WriteRequest, 0, len(rows))
	for _, row := range rows {
		rec := row.Clone()
		if len(keys) > 0 {
			if _, ok := rec[keys[0]]; !ok {
				rec[keys[0]] = uuid.NewString()
			}
		}
		if _, ok := rec["created_at"]; !ok {
			rec["created_at"] = now
		}

		item, err := attributevalue.MarshalMap(normalizeRecord(rec))
		if err != nil {
			return nil, invalid("could not marshal item: %v", err)
		}
		writes = append(writes, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		records = append(records, rec)
	}

	for i := 0; i < len(writes); i += dynamoBatchSize {
		end := i + dynamoBatchSize
		if end > len(writes) {
			end = len(writes)
		}

		out, err := b.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{table: writes[i:end]},
		})
		if err != nil {
			return nil, classifyAWSError("insert", err)
		}
		if pending := len(out.UnprocessedItems[table]); pending > 0 {
			return nil, &StatusError{
				Code:    "UnprocessedItems",
				Message: fmt.Sprintf("%d of %d items were not written", pending+len(writes)-end, len(writes)),
				Err:     ErrPartialWrite,
			}
		}
	}
	return &Result{Records: records}, nil
}

// update aplica o patch item a item. Itens removidos entre o Scan e o
// UpdateItem são ignorados; uma falha no meio deixa os anteriores já gravados.
func (b *dynamoBackend) update(ctx context.Context, req *Request) (*Result, error) {
	keys, err := b.keySchema(ctx, req.Collection)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if _, ok := req.Patch[k]; ok {
			return nil, invalid("key attribute %s cannot be updated", k)
		}
	}

	var set expression.UpdateBuilder
	for i, field := range sortedKeys(req.Patch) {
		value := expression.Value(dynamoValue(req.Patch[field]))
		if i == 0 {
			set = expression.Set(expression.Name(field), value)
		} else {
			set = set.Set(expression.Name(field), value)
		}
	}
	builder := expression.NewBuilder().WithUpdate(set)
	if len(keys) > 0 {
		builder = builder.WithCondition(expression.Name(keys[0]).AttributeExists())
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, invalid("could not build update: %v", err)
	}

	items, err := b.scan(ctx, req.Collection, req.Conditions)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		out, err := b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(req.Collection),
			Key:                       pickKey(item, keys),
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ReturnValues:              types.ReturnValueAllNew,
		})
		if err != nil {
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				continue
			}
			return nil, classifyAWSError("update", err)
		}

		rec, err := unmarshalItem(out.Attributes)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return &Result{Records: records}, nil
}

func (b *dynamoBackend) delete(ctx context.Context, req *Request) (*Result, error) {
	keys, err := b.keySchema(ctx, req.Collection)
	if err != nil {
		return nil, err
	}

	items, err := b.scan(ctx, req.Collection, req.Conditions)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		out, err := b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:    aws.String(req.Collection),
			Key:          pickKey(item, keys),
			ReturnValues: types.ReturnValueAllOld,
		})
		if err != nil {
			return nil, classifyAWSError("delete", err)
		}
		if len(out.Attributes) == 0 {
			continue
		}
		rec, err := unmarshalItem(out.Attributes)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return &Result{Records: records}, nil
}

func pickKey(item map[string]types.AttributeValue, keys []string) map[string]types.AttributeValue {
	key := make(map[string]types.AttributeValue, len(keys))
	for _, k := range keys {
		if v, ok := item[k]; ok {
			key[k] = v
		}
	}
	return key
}

func unmarshalItems(items []map[string]types.AttributeValue) ([]Record, error) {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		rec, err := unmarshalItem(item)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func unmarshalItem(item map[string]types.AttributeValue) (Record, error) {
	var rec map[string]interface{}
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, &TransportError{Op: "unmarshal", Err: err}
	}
	return Record(rec), nil
}

// dynamoValue troca json.Number por um número nativo, que o attributevalue
// serializa como N.
func dynamoValue(v interface{}) interface{} {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return v
}

func normalizeRecord(rec Record) map[string]interface{} {
	out := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		out[k] = dynamoValue(v)
	}
	return out
}

// classifyAWSError separa recusas da API (StatusError) de falhas de transporte.
func classifyAWSError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Code: apiErr.ErrorCode(), Message: apiErr.ErrorMessage(), Err: err}
	}
	return &TransportError{Op: op, Err: err}
}
