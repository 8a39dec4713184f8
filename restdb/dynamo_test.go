package restdb

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDynamo struct {
	mock.Mock
}

func (m *mockDynamo) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.ScanOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.BatchWriteItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DescribeTableOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) ListTables(ctx context.Context, in *dynamodb.ListTablesInput, _ ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.ListTablesOutput)
	return out, args.Error(1)
}

func item(t *testing.T, v map[string]interface{}) map[string]types.AttributeValue {
	t.Helper()
	av, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return av
}

func describeUsers() *dynamodb.DescribeTableOutput {
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		KeySchema: []types.KeySchemaElement{{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash}},
	}}
}

func dynamoClient(m *mockDynamo) *Client {
	return Connect(testConfig("dynamodb://us-east-1"), WithDynamoClient(m))
}

func TestDynamoBackend_SelectPaginatesAndSorts(t *testing.T) {
	m := &mockDynamo{}
	page2Key := item(t, map[string]interface{}{"id": "b"})

	m.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey == nil
	})).Return(&dynamodb.ScanOutput{
		Items:            []map[string]types.AttributeValue{item(t, map[string]interface{}{"id": "b", "rank": 2})},
		LastEvaluatedKey: page2Key,
	}, nil).Once()
	m.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey != nil
	})).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{
			item(t, map[string]interface{}{"id": "a", "rank": 1}),
			item(t, map[string]interface{}{"id": "c", "rank": 3}),
		},
	}, nil).Once()

	res, err := dynamoClient(m).Collection("users").Select("id").
		Eq("status", "active").
		Order("rank", false).
		Limit(2).
		Exec(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Record{{"id": "c"}, {"id": "b"}}, res.Records)

	for _, call := range m.Calls {
		in := call.Arguments.Get(1).(*dynamodb.ScanInput)
		assert.Equal(t, "users", aws.ToString(in.TableName))
		require.NotNil(t, in.FilterExpression)
		assert.NotEmpty(t, in.ExpressionAttributeValues)
	}
	m.AssertExpectations(t)
}

func TestDynamoBackend_Count(t *testing.T) {
	m := &mockDynamo{}
	m.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.Select == types.SelectCount && in.ExclusiveStartKey == nil
	})).Return(&dynamodb.ScanOutput{Count: 3, LastEvaluatedKey: item(t, map[string]interface{}{"id": "x"})}, nil).Once()
	m.On("Scan", mock.Anything, mock.Anything).Return(&dynamodb.ScanOutput{Count: 4}, nil).Once()

	res, err := dynamoClient(m).Collection("users").Count().Exec(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, res.Count)
	m.AssertExpectations(t)
}

func TestDynamoBackend_InsertBatches(t *testing.T) {
	m := &mockDynamo{}
	m.On("DescribeTable", mock.Anything, mock.Anything).Return(describeUsers(), nil).Once()
	m.On("BatchWriteItem", mock.Anything, mock.Anything).Return(&dynamodb.BatchWriteItemOutput{}, nil).Twice()

	rows := make([]Record, 30)
	for i := range rows {
		rows[i] = Record{"email": "user@x.com", "n": i}
	}

	res, err := dynamoClient(m).Collection("users").Insert(rows...).Exec(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 30)
	assert.NotEmpty(t, res.Records[0]["id"])
	assert.NotEmpty(t, res.Records[0]["created_at"])

	first := m.Calls[1].Arguments.Get(1).(*dynamodb.BatchWriteItemInput)
	second := m.Calls[2].Arguments.Get(1).(*dynamodb.BatchWriteItemInput)
	assert.Len(t, first.RequestItems["users"], 25)
	assert.Len(t, second.RequestItems["users"], 5)
	m.AssertExpectations(t)
}

func TestDynamoBackend_UnprocessedItemsFail(t *testing.T) {
	m := &mockDynamo{}
	m.On("DescribeTable", mock.Anything, mock.Anything).Return(describeUsers(), nil)
	m.On("BatchWriteItem", mock.Anything, mock.Anything).Return(&dynamodb.BatchWriteItemOutput{
		UnprocessedItems: map[string][]types.WriteRequest{"users": {{}}},
	}, nil)

	_, err := dynamoClient(m).Collection("users").Insert(Record{"email": "a@x.com"}).Exec(context.Background())
	assert.ErrorIs(t, err, ErrPartialWrite)
}

func TestDynamoBackend_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	m := &mockDynamo{}
	stored := item(t, map[string]interface{}{"id": "u1", "status": "inactive"})

	m.On("DescribeTable", mock.Anything, mock.Anything).Return(describeUsers(), nil).Once()
	m.On("Scan", mock.Anything, mock.Anything).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{stored},
	}, nil)
	m.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return in.Key["id"] != nil && in.ConditionExpression != nil && in.ReturnValues == types.ReturnValueAllNew
	})).Return(&dynamodb.UpdateItemOutput{
		Attributes: item(t, map[string]interface{}{"id": "u1", "status": "active"}),
	}, nil).Once()
	m.On("DeleteItem", mock.Anything, mock.Anything).Return(&dynamodb.DeleteItemOutput{
		Attributes: stored,
	}, nil).Once()

	client := dynamoClient(m)

	res, err := client.Collection("users").Update(Record{"status": "active"}).Eq("status", "inactive").Exec(ctx)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "active", res.Records[0]["status"])

	res, err = client.Collection("users").Delete().Eq("id", "u1").Exec(ctx)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "u1", res.Records[0]["id"])

	// o KeySchema é consultado uma única vez por tabela
	m.AssertNumberOfCalls(t, "DescribeTable", 1)

	_, err = client.Collection("users").Update(Record{"id": "other"}).Exec(ctx)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestDynamoBackend_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("api error is a store error", func(t *testing.T) {
		m := &mockDynamo{}
		m.On("Scan", mock.Anything, mock.Anything).Return(nil, &smithy.GenericAPIError{
			Code:    "ResourceNotFoundException",
			Message: "Requested resource not found",
		})

		_, err := dynamoClient(m).Collection("ghosts").Select().Exec(ctx)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, "ResourceNotFoundException", statusErr.Code)
	})

	t.Run("network error is a transport error", func(t *testing.T) {
		m := &mockDynamo{}
		m.On("ListTables", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: i/o timeout"))

		client := dynamoClient(m)
		assert.False(t, client.Probe(ctx))

		backend, err := client.Backend()
		require.NoError(t, err)
		var transportErr *TransportError
		assert.ErrorAs(t, backend.Ping(ctx), &transportErr)
	})
}
