package restdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_CRUD(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryBackend()
	client := Connect(testConfig("memory://"), WithBackend(mem))

	res, err := client.Collection("users").
		Insert(Record{"email": "a@x.com", "status": "active", "age": 30}, Record{"email": "b@x.com", "status": "inactive", "age": 17}).
		Exec(ctx)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.NotEmpty(t, res.Records[0]["id"])
	assert.NotEmpty(t, res.Records[0]["created_at"])

	res, err = client.Collection("users").Select().Eq("status", "active").Exec(ctx)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "a@x.com", res.Records[0]["email"])

	res, err = client.Collection("users").Count().Gte("age", 18.0).Exec(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	res, err = client.Collection("users").Update(Record{"status": "active"}).Eq("status", "inactive").Exec(ctx)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	res, err = client.Collection("users").Count().Eq("status", "active").Exec(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	res, err = client.Collection("users").Delete().ILike("email", "%B@X%").Exec(ctx)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Len(t, mem.Snapshot("users"), 1)
}

func TestMemoryBackend_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryBackend()
	mem.Seed("users", Record{"id": 1, "email": "a@x.com"})
	client := Connect(testConfig("memory://"), WithBackend(mem))

	res, err := client.Collection("users").Select().Exec(ctx)
	require.NoError(t, err)
	res.Records[0]["email"] = "changed"

	assert.Equal(t, "a@x.com", mem.Snapshot("users")[0]["email"])
}

func TestMemoryBackend_OrderLimitOffset(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryBackend()
	mem.Seed("tasks",
		Record{"id": 1, "priority": 3},
		Record{"id": 2, "priority": 1},
		Record{"id": 3, "priority": 2},
		Record{"id": 4},
	)
	client := Connect(testConfig("memory://"), WithBackend(mem))

	res, err := client.Collection("tasks").Select("id").Order("priority", true).Limit(2).Offset(1).Exec(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{{"id": 3}, {"id": 1}}, res.Records)

	res, err = client.Collection("tasks").Select("id").Order("priority", false).Exec(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{{"id": 4}, {"id": 1}, {"id": 3}, {"id": 2}}, res.Records)

	res, err = client.Collection("tasks").Select().Offset(10).Exec(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestMemoryBackend_UnknownCollectionIsEmpty(t *testing.T) {
	client := Connect(testConfig("memory://"))
	res, err := client.Collection("nope").Select().Exec(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestMemoryBackend_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := Connect(testConfig("memory://"))
	_, err := client.Collection("users").Select().Exec(ctx)
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, context.Canceled)
}
