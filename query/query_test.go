package query

import (
	"context"
	"testing"

	"github.com/raywall/fast-crud-toolkit/restdb"
	"github.com/raywall/fast-crud-toolkit/storeconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterSpec_IsImmutable(t *testing.T) {
	base := Where("status", Equals("active"))
	withAge := base.And("age", AtLeast(18))
	withRole := base.And("role", In("admin"))

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, withAge.Len())
	assert.Equal(t, "age", withAge.Terms()[1].Field)
	assert.Equal(t, "role", withRole.Terms()[1].Field)

	terms := withAge.Terms()
	terms[0].Field = "mutated"
	assert.Equal(t, "status", withAge.Terms()[0].Field)
}

func TestFilterSpec_Equal(t *testing.T) {
	a := Where("status", Equals("active")).And("age", GreaterThan(18))
	b := Where("status", Equals("active")).And("age", GreaterThan(18))
	c := Where("age", GreaterThan(18)).And("status", Equals("active"))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "order is part of the filter")
	assert.False(t, a.Equal(Where("status", Equals("inactive")).And("age", GreaterThan(18))))
	assert.True(t, FilterSpec{}.Equal(Match(nil)))
}

func TestMatch_SortsKeys(t *testing.T) {
	f := Match(map[string]interface{}{"status": "active", "email": "a@x.com"})
	assert.True(t, f.Equal(Where("email", Equals("a@x.com")).And("status", Equals("active"))))
	assert.Equal(t, `email = a@x.com AND status = active`, f.String())
	assert.Equal(t, "<all>", FilterSpec{}.String())
}

func TestFilterSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		filter  FilterSpec
		wantErr bool
	}{
		{"empty matches all", FilterSpec{}, false},
		{"all kinds", Where("a", Equals(nil)).And("b", LessThan(3)).And("c", TextMatch("x")).And("d", In(1, 2)), false},
		{"empty field", Where(" ", Equals(1)), true},
		{"unknown range operator", Where("age", Range("!=", 1)), true},
		{"nil range value", Where("age", AtMost(nil)), true},
		{"empty text match", Where("name", TextMatch("")), true},
		{"empty in", Where("id", In()), true},
		{"zero constraint", Where("id", Constraint{}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuery)
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSpec_Validate(t *testing.T) {
	assert.NoError(t, New().Validate())
	assert.NoError(t, New(Limit(10), Offset(0), OrderBy("created_at", false)).Validate())

	err := New(Limit(0)).Validate()
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Contains(t, err.Error(), "Limit")

	assert.ErrorIs(t, New(Offset(-1)).Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, New(Filter(Where("", Equals(1)))).Validate(), ErrInvalidQuery)
}

func TestNew_Defaults(t *testing.T) {
	s := New()
	assert.True(t, s.Ascending)
	assert.Nil(t, s.Limit)
	assert.Nil(t, s.Offset)
	assert.True(t, s.Filter.IsEmpty())
}

func TestApply(t *testing.T) {
	backend := &restdb.MockBackend{}
	client := restdb.Connect(storeconfig.ConnectionConfig{Endpoint: "memory://", Credential: "k"}, restdb.WithBackend(backend))

	spec := New(
		Filter(Where("status", Equals("active")).
			And("age", GreaterThan(18)).
			And("age", LessThan(65)).
			And("score", AtLeast(1.5)).
			And("score", AtMost(9)).
			And("email", TextMatch("john")).
			And("role", In("admin", "owner"))),
		OrderBy("created_at", false),
		Limit(5),
		Offset(10),
	)

	_, err := Apply(spec, client.Collection("users").Select()).Exec(context.Background())
	require.NoError(t, err)

	req, ok := backend.LastRequest()
	require.True(t, ok)
	assert.Equal(t, []restdb.Condition{
		{Field: "status", Op: restdb.Eq, Value: "active"},
		{Field: "age", Op: restdb.Gt, Value: 18},
		{Field: "age", Op: restdb.Lt, Value: 65},
		{Field: "score", Op: restdb.Gte, Value: 1.5},
		{Field: "score", Op: restdb.Lte, Value: 9},
		{Field: "email", Op: restdb.ILike, Value: "%john%"},
		{Field: "role", Op: restdb.In, Value: []interface{}{"admin", "owner"}},
	}, req.Conditions)
	assert.Equal(t, []restdb.Order{{Field: "created_at", Ascending: false}}, req.Order)
	assert.Equal(t, 5, req.Limit)
	assert.Equal(t, 10, req.Offset)
}

func TestApply_TextMatchIsLiteral(t *testing.T) {
	backend := &restdb.MockBackend{}
	client := restdb.Connect(storeconfig.ConnectionConfig{Endpoint: "memory://", Credential: "k"}, restdb.WithBackend(backend))

	spec := New(Filter(Where("email", TextMatch("a%c_m"))))
	_, err := Apply(spec, client.Collection("users").Select()).Exec(context.Background())
	require.NoError(t, err)

	req, ok := backend.LastRequest()
	require.True(t, ok)
	assert.Equal(t, []restdb.Condition{
		{Field: "email", Op: restdb.ILike, Value: `%a\%c\_m%`},
	}, req.Conditions)
}

func TestApply_ConjunctiveOnMemoryStore(t *testing.T) {
	mem := restdb.NewMemoryBackend()
	mem.Seed("users",
		restdb.Record{"id": 1, "status": "active", "age": 15},
		restdb.Record{"id": 2, "status": "inactive", "age": 40},
		restdb.Record{"id": 3, "status": "active", "age": 40},
	)
	client := restdb.Connect(storeconfig.ConnectionConfig{Endpoint: "memory://", Credential: "k"}, restdb.WithBackend(mem))

	f := Where("status", Equals("active")).And("age", AtLeast(18))
	res, err := ApplyFilter(f, client.Collection("users").Select()).Exec(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 3, res.Records[0]["id"])
}
