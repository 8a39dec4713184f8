package easycrud

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/raywall/fast-crud-toolkit/query"
	"github.com/raywall/fast-crud-toolkit/restdb"
	"github.com/raywall/fast-crud-toolkit/storeconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, seed ...restdb.Record) (*Service, *restdb.MemoryBackend) {
	t.Helper()
	mem := restdb.NewMemoryBackend()
	mem.Seed("users", seed...)
	client := restdb.Connect(storeconfig.ConnectionConfig{Endpoint: "memory://", Credential: "k", PageSize: 100}, restdb.WithBackend(mem))
	return New(client, "users"), mem
}

func usersFixture() []restdb.Record {
	return []restdb.Record{
		{"id": 1, "email": "a@x.com", "status": "active"},
		{"id": 2, "email": "b@x.com", "status": "inactive"},
	}
}

func TestService_UsersScenario(t *testing.T) {
	svc, _ := newTestService(t, usersFixture()...)
	ctx := context.Background()

	found := svc.Find(ctx, query.Where("status", query.Equals("active")))
	require.True(t, found.OK())
	require.Len(t, found.Data(), 1)
	assert.Equal(t, 1, found.Data()[0]["id"])

	updated := svc.UpdateMany(ctx, query.Where("status", query.Equals("inactive")), restdb.Record{"status": "active"})
	require.True(t, updated.OK())
	n, ok := updated.Count()
	assert.True(t, ok)
	assert.Equal(t, 1, n)

	count := svc.Count(ctx, query.Where("status", query.Equals("active")))
	require.True(t, count.OK())
	n, ok = count.Count()
	assert.True(t, ok)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, count.Data())
}

func TestService_FindIsConjunctive(t *testing.T) {
	svc, _ := newTestService(t,
		restdb.Record{"id": 1, "status": "active", "age": 17, "email": "kid@x.com"},
		restdb.Record{"id": 2, "status": "inactive", "age": 40, "email": "old@x.com"},
		restdb.Record{"id": 3, "status": "active", "age": 30, "email": "target@y.com"},
		restdb.Record{"id": 4, "status": "active", "age": 35, "email": "other@x.com"},
	)

	filter := query.Where("status", query.Equals("active")).
		And("age", query.AtLeast(18)).
		And("email", query.TextMatch("@Y.COM"))

	resp := svc.Find(context.Background(), filter)
	require.True(t, resp.OK())
	require.Len(t, resp.Data(), 1)
	assert.Equal(t, 3, resp.Data()[0]["id"])
}

func TestService_GetByID(t *testing.T) {
	svc, _ := newTestService(t, usersFixture()...)
	ctx := context.Background()

	t.Run("existing record", func(t *testing.T) {
		resp := svc.GetByID(ctx, 2)
		require.True(t, resp.OK())
		assert.Equal(t, "b@x.com", resp.Data()["email"])
	})

	t.Run("missing record is success with nil data", func(t *testing.T) {
		resp := svc.GetByID(ctx, 99)
		assert.Equal(t, Success, resp.Outcome())
		assert.Nil(t, resp.Data())
		assert.Nil(t, resp.Err())
	})

	t.Run("nil id is a validation failure", func(t *testing.T) {
		resp := svc.GetByID(ctx, nil)
		require.False(t, resp.OK())
		assert.Equal(t, KindValidation, resp.Err().Kind)
		assert.ErrorIs(t, resp.AsError(), ErrInvalidInput)
	})
}

func TestService_CreateThenGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	input := restdb.Record{"email": "new@x.com", "username": "new", "status": "active"}
	created := svc.Create(ctx, input)
	require.True(t, created.OK())
	id := created.Data()["id"]
	require.NotNil(t, id)
	assert.NotEmpty(t, created.Data()["created_at"])

	got := svc.GetByID(ctx, id)
	require.True(t, got.OK())
	for k, v := range input {
		assert.Equal(t, v, got.Data()[k], k)
	}
}

func TestService_CreateMany(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	t.Run("empty input is a no-op", func(t *testing.T) {
		resp := svc.CreateMany(ctx, nil)
		require.True(t, resp.OK())
		assert.Empty(t, resp.Data())
		assert.Empty(t, mem.Snapshot("users"))
	})

	t.Run("inserts every record", func(t *testing.T) {
		resp := svc.CreateMany(ctx, []restdb.Record{{"email": "a@x.com"}, {"email": "b@x.com"}})
		require.True(t, resp.OK())
		n, _ := resp.Count()
		assert.Equal(t, 2, n)
		assert.Len(t, mem.Snapshot("users"), 2)
	})

	t.Run("empty record is rejected", func(t *testing.T) {
		resp := svc.CreateMany(ctx, []restdb.Record{{"email": "c@x.com"}, {}})
		require.False(t, resp.OK())
		assert.Equal(t, KindValidation, resp.Err().Kind)
		assert.Len(t, mem.Snapshot("users"), 2)
	})
}

func TestService_CountMatchesFind(t *testing.T) {
	svc, _ := newTestService(t,
		restdb.Record{"id": 1, "status": "active"},
		restdb.Record{"id": 2, "status": "active"},
		restdb.Record{"id": 3, "status": "inactive"},
		restdb.Record{"id": 4},
	)
	ctx := context.Background()

	filters := []query.FilterSpec{
		{},
		query.Where("status", query.Equals("active")),
		query.Where("status", query.Equals("missing")),
		query.Where("id", query.In(1, 3, 4)),
		query.Where("id", query.GreaterThan(1)).And("status", query.Equals("active")),
	}

	for _, f := range filters {
		t.Run(f.String(), func(t *testing.T) {
			found := svc.Find(ctx, f)
			count := svc.Count(ctx, f)
			exists := svc.Exists(ctx, f)
			require.True(t, found.OK())
			require.True(t, count.OK())
			require.True(t, exists.OK())

			assert.Equal(t, len(found.Data()), count.Data())
			v, ok := exists.Exists()
			assert.True(t, ok)
			assert.Equal(t, count.Data() > 0, v)
			assert.Equal(t, v, exists.Data())
		})
	}
}

func TestService_UpdateAndDelete(t *testing.T) {
	svc, mem := newTestService(t, usersFixture()...)
	ctx := context.Background()

	t.Run("update is a partial patch", func(t *testing.T) {
		resp := svc.Update(ctx, 1, restdb.Record{"status": "blocked"})
		require.True(t, resp.OK())
		assert.Equal(t, "blocked", resp.Data()["status"])
		assert.Equal(t, "a@x.com", resp.Data()["email"])
	})

	t.Run("update without match is success with nil data", func(t *testing.T) {
		resp := svc.Update(ctx, 42, restdb.Record{"status": "blocked"})
		require.True(t, resp.OK())
		assert.Nil(t, resp.Data())
	})

	t.Run("empty patch is rejected", func(t *testing.T) {
		resp := svc.Update(ctx, 1, restdb.Record{})
		require.False(t, resp.OK())
		assert.Equal(t, KindValidation, resp.Err().Kind)
	})

	t.Run("delete reports removed rows", func(t *testing.T) {
		resp := svc.Delete(ctx, 2)
		require.True(t, resp.OK())
		n, ok := resp.Count()
		assert.True(t, ok)
		assert.Equal(t, 1, n)

		resp = svc.Delete(ctx, 2)
		require.True(t, resp.OK())
		n, _ = resp.Count()
		assert.Zero(t, n)
	})

	t.Run("delete many", func(t *testing.T) {
		mem.Seed("users", restdb.Record{"id": 10, "status": "tmp"}, restdb.Record{"id": 11, "status": "tmp"})
		resp := svc.DeleteMany(ctx, query.Where("status", query.Equals("tmp")))
		require.True(t, resp.OK())
		n, _ := resp.Count()
		assert.Equal(t, 2, n)
		assert.Len(t, mem.Snapshot("users"), 1)
	})
}

func TestService_ReadOptions(t *testing.T) {
	var seed []restdb.Record
	for i := 1; i <= 12; i++ {
		seed = append(seed, restdb.Record{"id": i, "email": fmt.Sprintf("user%02d@x.com", i)})
	}
	svc, _ := newTestService(t, seed...)
	ctx := context.Background()

	t.Run("get all with paging", func(t *testing.T) {
		page := Paginate(2, 5, 100)
		resp := svc.GetAll(ctx, append(page.Options(), query.OrderBy("id", true))...)
		require.True(t, resp.OK())
		require.Len(t, resp.Data(), 5)
		assert.Equal(t, 6, resp.Data()[0]["id"])
	})

	t.Run("find one", func(t *testing.T) {
		resp := svc.FindOne(ctx, query.Where("id", query.GreaterThan(3)), query.OrderBy("id", false))
		require.True(t, resp.OK())
		assert.Equal(t, 12, resp.Data()["id"])

		resp = svc.FindOne(ctx, query.Where("id", query.GreaterThan(300)))
		require.True(t, resp.OK())
		assert.Nil(t, resp.Data())
	})

	t.Run("search", func(t *testing.T) {
		resp := svc.Search(ctx, "email", "USER1", 0)
		require.True(t, resp.OK())
		assert.Len(t, resp.Data(), 3)

		resp = svc.Search(ctx, "email", "user", 4)
		require.True(t, resp.OK())
		assert.Len(t, resp.Data(), 4)
	})

	t.Run("search wildcards are literal", func(t *testing.T) {
		for _, term := range []string{"_", "%", "user_1"} {
			resp := svc.Search(ctx, "email", term, 0)
			require.True(t, resp.OK())
			assert.Empty(t, resp.Data(), term)
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		resp := svc.GetAll(ctx, query.Limit(0))
		require.False(t, resp.OK())
		assert.Equal(t, KindValidation, resp.Err().Kind)
	})

	t.Run("invalid filter", func(t *testing.T) {
		resp := svc.Count(ctx, query.Where("", query.Equals(1)))
		require.False(t, resp.OK())
		assert.Equal(t, KindValidation, resp.Err().Kind)
	})
}

func TestService_FailuresStayInsideEnvelope(t *testing.T) {
	netErr := &restdb.TransportError{Op: "select", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}
	backend := &restdb.MockBackend{
		ExecuteFn: func(ctx context.Context, req *restdb.Request) (*restdb.Result, error) {
			return nil, netErr
		},
	}
	client := restdb.Connect(storeconfig.ConnectionConfig{Endpoint: "memory://", Credential: "k"}, restdb.WithBackend(backend))
	svc := New(client, "users")
	ctx := context.Background()
	f := query.Where("status", query.Equals("active"))

	calls := map[string]func() *ErrorInfo{
		"create":      func() *ErrorInfo { return svc.Create(ctx, restdb.Record{"a": 1}).Err() },
		"create_many": func() *ErrorInfo { return svc.CreateMany(ctx, []restdb.Record{{"a": 1}}).Err() },
		"get_all":     func() *ErrorInfo { return svc.GetAll(ctx).Err() },
		"get_by_id":   func() *ErrorInfo { return svc.GetByID(ctx, 1).Err() },
		"find":        func() *ErrorInfo { return svc.Find(ctx, f).Err() },
		"find_one":    func() *ErrorInfo { return svc.FindOne(ctx, f).Err() },
		"search":      func() *ErrorInfo { return svc.Search(ctx, "email", "x", 1).Err() },
		"update":      func() *ErrorInfo { return svc.Update(ctx, 1, restdb.Record{"a": 1}).Err() },
		"update_many": func() *ErrorInfo { return svc.UpdateMany(ctx, f, restdb.Record{"a": 1}).Err() },
		"delete":      func() *ErrorInfo { return svc.Delete(ctx, 1).Err() },
		"delete_many": func() *ErrorInfo { return svc.DeleteMany(ctx, f).Err() },
		"count":       func() *ErrorInfo { return svc.Count(ctx, f).Err() },
		"exists":      func() *ErrorInfo { return svc.Exists(ctx, f).Err() },
	}

	for op, call := range calls {
		t.Run(op, func(t *testing.T) {
			var info *ErrorInfo
			require.NotPanics(t, func() { info = call() })
			require.NotNil(t, info)
			assert.Equal(t, KindConnectivity, info.Kind)
			assert.Equal(t, op, info.Operation)
			assert.Equal(t, "users", info.Collection)
			assert.ErrorIs(t, info, netErr)
		})
	}
}

func TestService_ErrorKinds(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		fn   func(ctx context.Context, req *restdb.Request) (*restdb.Result, error)
		want ErrorKind
	}{
		{
			name: "rejected by store",
			fn: func(ctx context.Context, req *restdb.Request) (*restdb.Result, error) {
				return nil, &restdb.StatusError{Status: 400, Message: "column does not exist"}
			},
			want: KindStore,
		},
		{
			name: "credential refused",
			fn: func(ctx context.Context, req *restdb.Request) (*restdb.Result, error) {
				return nil, &restdb.StatusError{Status: 401, Message: "invalid api key"}
			},
			want: KindConnectivity,
		},
		{
			name: "timeout",
			fn: func(ctx context.Context, req *restdb.Request) (*restdb.Result, error) {
				return nil, fmt.Errorf("select: %w", context.DeadlineExceeded)
			},
			want: KindConnectivity,
		},
		{
			name: "panic",
			fn: func(ctx context.Context, req *restdb.Request) (*restdb.Result, error) {
				panic("boom")
			},
			want: KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := restdb.Connect(storeconfig.ConnectionConfig{Endpoint: "memory://", Credential: "k"},
				restdb.WithBackend(&restdb.MockBackend{ExecuteFn: tt.fn}))
			resp := New(client, "users").GetAll(ctx)
			require.False(t, resp.OK())
			assert.Nil(t, resp.Data())
			assert.Equal(t, tt.want, resp.Err().Kind)
		})
	}
}

func TestService_HooksAndRules(t *testing.T) {
	mem := restdb.NewMemoryBackend()
	client := restdb.Connect(storeconfig.ConnectionConfig{Endpoint: "memory://", Credential: "k"}, restdb.WithBackend(mem))
	svc := New(client, "users", WithRules(map[string]interface{}{
		"email":  "required,email",
		"status": "omitempty,oneof=active inactive",
	}))
	ctx := context.Background()

	svc.RegisterHook(BeforeCreate, func(ctx context.Context, r restdb.Record) error {
		if _, ok := r["status"]; !ok {
			r["status"] = "active"
		}
		return nil
	})
	svc.RegisterHook(BeforeUpdate, func(ctx context.Context, r restdb.Record) error {
		if _, ok := r["id"]; ok {
			return errors.New("id is immutable")
		}
		return nil
	})

	t.Run("hook fills defaults", func(t *testing.T) {
		resp := svc.Create(ctx, restdb.Record{"email": "ok@x.com"})
		require.True(t, resp.OK())
		assert.Equal(t, "active", resp.Data()["status"])
	})

	t.Run("rules reject invalid records", func(t *testing.T) {
		resp := svc.Create(ctx, restdb.Record{"email": "not-an-email"})
		require.False(t, resp.OK())
		assert.Equal(t, KindValidation, resp.Err().Kind)
	})

	t.Run("update checks only patched fields", func(t *testing.T) {
		id := svc.GetAll(ctx).Data()[0]["id"]
		resp := svc.Update(ctx, id, restdb.Record{"status": "inactive"})
		require.True(t, resp.OK())

		resp = svc.Update(ctx, id, restdb.Record{"status": "unknown"})
		require.False(t, resp.OK())
		assert.Equal(t, KindValidation, resp.Err().Kind)
	})

	t.Run("update hook can veto", func(t *testing.T) {
		resp := svc.Update(ctx, 1, restdb.Record{"id": 2})
		require.False(t, resp.OK())
		assert.ErrorIs(t, resp.AsError(), ErrInvalidInput)
	})
}

func TestService_CustomIDColumn(t *testing.T) {
	mem := restdb.NewMemoryBackend()
	mem.Seed("accounts", restdb.Record{"account_id": "acc-1", "name": "main"})
	client := restdb.Connect(storeconfig.ConnectionConfig{Endpoint: "memory://", Credential: "k"}, restdb.WithBackend(mem))
	svc := New(client, "accounts", WithIDColumn("account_id"))

	assert.Equal(t, "account_id", svc.IDColumn())
	resp := svc.GetByID(context.Background(), "acc-1")
	require.True(t, resp.OK())
	assert.Equal(t, "main", resp.Data()["name"])
}
