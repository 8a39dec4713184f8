package easycrud

import (
	"encoding/json"
	"testing"

	"github.com/raywall/fast-crud-toolkit/restdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginate(t *testing.T) {
	tests := []struct {
		name                string
		page, size, max     int
		wantLimit, wantOffs int
	}{
		{"first page", 1, 20, 100, 20, 0},
		{"third page", 3, 20, 100, 20, 40},
		{"size clamped to max", 2, 500, 100, 100, 100},
		{"size at least one", 1, 0, 100, 1, 0},
		{"page at least one", -4, 10, 100, 10, 0},
		{"default max", 1, 5000, 0, restdb.DefaultPageSize, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(tt.page, tt.size, tt.max)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantOffs, p.Offset)
			assert.Len(t, p.Options(), 2)
		})
	}
}

func TestExtractIDs(t *testing.T) {
	records := []restdb.Record{{"id": 1}, {"name": "no id"}, {"id": nil}, {"id": "x"}}
	assert.Equal(t, []interface{}{1, "x"}, ExtractIDs(records, ""))
	assert.Equal(t, []interface{}{"no id"}, ExtractIDs(records, "name"))
	assert.Empty(t, ExtractIDs(nil, "id"))
}

func TestChunk(t *testing.T) {
	records := []restdb.Record{{"id": 1}, {"id": 2}, {"id": 3}, {"id": 4}, {"id": 5}}

	chunks := Chunk(records, 2)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2)
	assert.Len(t, chunks[2], 1)

	assert.Len(t, Chunk(records, 0), 1)
	assert.Nil(t, Chunk(nil, 3))
}

func TestResponse_JSON(t *testing.T) {
	t.Run("success with count", func(t *testing.T) {
		raw, err := json.Marshal(successCount([]restdb.Record{{"id": 1}}, 1))
		require.NoError(t, err)
		assert.JSONEq(t, `{"outcome":"success","data":[{"id":1}],"count":1}`, string(raw))
	})

	t.Run("exists", func(t *testing.T) {
		raw, err := json.Marshal(successExists(false))
		require.NoError(t, err)
		assert.JSONEq(t, `{"outcome":"success","data":false,"exists":false}`, string(raw))
	})

	t.Run("delete carries null data", func(t *testing.T) {
		raw, err := json.Marshal(successCount(Empty{}, 2))
		require.NoError(t, err)
		assert.JSONEq(t, `{"outcome":"success","data":null,"count":2}`, string(raw))
	})

	t.Run("failure has no data", func(t *testing.T) {
		r := failure[restdb.Record](&ErrorInfo{Kind: KindStore, Message: "boom", Operation: "create", Collection: "users"})
		raw, err := json.Marshal(r)
		require.NoError(t, err)
		assert.JSONEq(t, `{"outcome":"failure","error":{"kind":"store","message":"boom","operation":"create","collection":"users"}}`, string(raw))
	})
}

func TestMap(t *testing.T) {
	r := Map(successCount([]restdb.Record{{"id": 1}, {"id": 2}}, 2), func(rs []restdb.Record) int { return len(rs) })
	assert.True(t, r.OK())
	assert.Equal(t, 2, r.Data())
	n, ok := r.Count()
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	failed := Map(failure[[]restdb.Record](&ErrorInfo{Kind: KindStore}), func(rs []restdb.Record) int {
		t.Fatal("fn must not run on failures")
		return 0
	})
	assert.False(t, failed.OK())
	assert.Equal(t, KindStore, failed.Err().Kind)
}
