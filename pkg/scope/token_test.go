package scope

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/edgeflare/pglist/internal/testutil/pgtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationAllowsRequest(t *testing.T) {
	tests := []struct {
		scopes []string
		method string
		path   string
		want   bool
	}{
		{[]string{"all"}, "GET", "/arvados/v1/collections", true},
		{[]string{"GET /arvados/v1/collections"}, "GET", "/arvados/v1/collections", true},
		{[]string{"GET /arvados/v1/collections"}, "GET", "/arvados/v1/collections/x", false},
		{[]string{"GET /arvados/v1/collections/"}, "GET", "/arvados/v1/collections/x", true},
		{[]string{"GET /arvados/v1/collections/"}, "POST", "/arvados/v1/collections/x", false},
		{[]string{"GET /arvados/v1/"}, "HEAD", "/arvados/v1/groups", true},
		{[]string{"HEAD /arvados/v1/groups"}, "HEAD", "/arvados/v1/groups", true},
		{nil, "GET", "/", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v %s %s", tt.scopes, tt.method, tt.path), func(t *testing.T) {
			a := Authorization{Scopes: tt.scopes}
			assert.Equal(t, tt.want, a.AllowsRequest(tt.method, tt.path))
		})
	}
}

func tokenRows(auths ...Authorization) *pgtest.Rows {
	rows := make([][]any, len(auths))
	for i, a := range auths {
		rows[i] = []any{a.Token, a.UserUUID, a.Scopes}
	}
	return pgtest.NewRows([]string{"api_token", "user_uuid", "scopes"}, rows...)
}

func TestTokenAuthenticator(t *testing.T) {
	ctx := context.Background()
	active := Authorization{Token: "t1", UserUUID: "u1", Scopes: []string{"all"}}
	reader := Authorization{Token: "r1", UserUUID: "u2", Scopes: []string{"GET /arvados/v1/collections"}}
	narrow := Authorization{Token: "r2", UserUUID: "u3", Scopes: []string{"GET /arvados/v1/groups"}}

	t.Run("primary and reader tokens", func(t *testing.T) {
		db := &pgtest.Querier{Respond: func(string, []any) (*pgtest.Rows, error) {
			return tokenRows(active, reader, narrow), nil
		}}
		id, err := NewTokenAuthenticator(db).Authenticate(ctx, Request{
			Method:       "GET",
			Path:         "/arvados/v1/collections",
			Token:        "t1",
			ReaderTokens: []string{"r2", "r1", "r1"},
		})
		require.NoError(t, err)
		assert.True(t, id.Credentials)
		assert.Equal(t, "u1", id.Current)
		assert.Equal(t, []string{"u1", "u2"}, id.Scope.Users(), "u3's scope does not cover the path")

		require.Len(t, db.Calls, 1)
		assert.Equal(t, []any{[]string{"r1", "r2", "t1"}}, db.Calls[0].Args)
	})

	t.Run("reader tokens ignored for non-GET", func(t *testing.T) {
		db := &pgtest.Querier{Respond: func(string, []any) (*pgtest.Rows, error) {
			return tokenRows(active), nil
		}}
		_, err := NewTokenAuthenticator(db).Authenticate(ctx, Request{
			Method: "POST", Path: "/arvados/v1/collections", Token: "t1", ReaderTokens: []string{"r1"},
		})
		require.NoError(t, err)
		assert.Equal(t, []any{[]string{"t1"}}, db.Calls[0].Args)
	})

	t.Run("too many reader tokens", func(t *testing.T) {
		db := &pgtest.Querier{Respond: func(string, []any) (*pgtest.Rows, error) {
			return tokenRows(), nil
		}}
		many := make([]string, MaxReaderTokens+1)
		for i := range many {
			many[i] = fmt.Sprintf("r%d", i)
		}
		id, err := NewTokenAuthenticator(db).Authenticate(ctx, Request{Method: "GET", Path: "/", ReaderTokens: many})
		require.NoError(t, err)
		assert.False(t, id.Credentials)
		assert.True(t, id.Scope.Empty())
		assert.Empty(t, db.Calls, "no lookup for a hostile request")
	})

	t.Run("unknown token", func(t *testing.T) {
		db := &pgtest.Querier{Respond: func(string, []any) (*pgtest.Rows, error) {
			return tokenRows(), nil
		}}
		id, err := NewTokenAuthenticator(db).Authenticate(ctx, Request{Method: "GET", Path: "/", Token: "bogus"})
		require.NoError(t, err)
		assert.True(t, id.Credentials)
		assert.Empty(t, id.Current)
		assert.True(t, id.Scope.Empty())
	})

	t.Run("lookup failure", func(t *testing.T) {
		db := &pgtest.Querier{Respond: func(string, []any) (*pgtest.Rows, error) {
			return nil, errors.New("db down")
		}}
		_, err := NewTokenAuthenticator(db).Authenticate(ctx, Request{Method: "GET", Path: "/", Token: "t1"})
		assert.ErrorContains(t, err, "database query failed")
	})
}

func TestStatic(t *testing.T) {
	s := Static{
		"t1": {UserUUID: "u1", Scopes: []string{"all"}},
		"r1": {UserUUID: "u2", Scopes: []string{"GET /"}},
	}

	id, err := s.Authenticate(context.Background(), Request{Method: "GET", Path: "/", Token: "t1", ReaderTokens: []string{"r1", "nope"}})
	require.NoError(t, err)
	assert.Equal(t, "u1", id.Current)
	assert.Equal(t, []string{"u1", "u2"}, id.Scope.Users())

	id, err = s.Authenticate(context.Background(), Request{Method: "GET", Path: "/"})
	require.NoError(t, err)
	assert.False(t, id.Credentials)
	assert.True(t, id.Scope.Empty())
}
