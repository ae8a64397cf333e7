package scope

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	pg "github.com/edgeflare/pglist/pkg/pgx"
	"github.com/edgeflare/pglist/pkg/query"
)

// MaxReaderTokens bounds how many reader tokens a request may carry. A
// request with more is treated as hostile and its reader tokens ignored.
const MaxReaderTokens = 99

// Request is the part of an HTTP request authentication looks at.
type Request struct {
	Method string
	Path   string
	// Token is the primary credential, from the Authorization header.
	Token string
	// ReaderTokens are extra credentials that only add read access.
	ReaderTokens []string
}

// Authenticator resolves the identity behind a request's credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, req Request) (Identity, error)
}

// Authorization is one api_client_authorizations row.
type Authorization struct {
	Token    string
	UserUUID string
	Scopes   []string
}

// AllowsRequest reports whether the token's scopes cover "METHOD /path".
// A scope matches when it is "all", equals the request exactly, or ends in
// "/" and prefixes it. HEAD requests are also allowed by GET scopes.
func (a Authorization) AllowsRequest(method, path string) bool {
	if method == http.MethodHead && a.allows(http.MethodGet+" "+path) {
		return true
	}
	return a.allows(method + " " + path)
}

func (a Authorization) allows(req string) bool {
	for _, s := range a.Scopes {
		if s == "all" || s == req || (strings.HasSuffix(s, "/") && strings.HasPrefix(req, s)) {
			return true
		}
	}
	return false
}

const authorizationsSQL = `
	SELECT api_token, user_uuid, coalesce(scopes, '["all"]'::jsonb)
	FROM api_client_authorizations
	WHERE api_token = ANY($1)
		AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)`

// TokenAuthenticator checks bearer and reader tokens against the
// api_client_authorizations table. Unknown and expired tokens are ignored,
// as are tokens whose scopes do not cover the request.
type TokenAuthenticator struct {
	db pg.Querier
}

func NewTokenAuthenticator(db pg.Querier) *TokenAuthenticator {
	return &TokenAuthenticator{db: db}
}

func (a *TokenAuthenticator) Authenticate(ctx context.Context, req Request) (Identity, error) {
	tokens := make([]string, 0, 1+len(req.ReaderTokens))
	if req.Token != "" {
		tokens = append(tokens, req.Token)
	}
	if req.Method == http.MethodGet && len(req.ReaderTokens) <= MaxReaderTokens {
		tokens = append(tokens, req.ReaderTokens...)
	}

	id := Identity{Credentials: len(tokens) > 0}
	if len(tokens) == 0 {
		return id, nil
	}

	auths, err := a.lookup(ctx, tokens)
	if err != nil {
		return Identity{}, query.StoreError(fmt.Errorf("lookup tokens: %w", err))
	}

	var users []string
	for _, auth := range auths {
		if !auth.AllowsRequest(req.Method, req.Path) {
			continue
		}
		if auth.Token == req.Token {
			id.Current = auth.UserUUID
		}
		users = append(users, auth.UserUUID)
	}
	id.Scope = New(users...)
	return id, nil
}

func (a *TokenAuthenticator) lookup(ctx context.Context, tokens []string) ([]Authorization, error) {
	slices.Sort(tokens)
	tokens = slices.Compact(tokens)

	rows, err := a.db.Query(ctx, authorizationsSQL, tokens)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auths []Authorization
	for rows.Next() {
		var auth Authorization
		if err := rows.Scan(&auth.Token, &auth.UserUUID, &auth.Scopes); err != nil {
			return nil, err
		}
		auths = append(auths, auth)
	}
	return auths, rows.Err()
}

// Static authenticates fixed tokens; meant for tests and development.
type Static map[string]Authorization

func (s Static) Authenticate(_ context.Context, req Request) (Identity, error) {
	tokens := []string{req.Token}
	if req.Method == http.MethodGet && len(req.ReaderTokens) <= MaxReaderTokens {
		tokens = append(tokens, req.ReaderTokens...)
	}
	id := Identity{Credentials: req.Token != "" || len(tokens) > 1}

	var users []string
	for i, tok := range tokens {
		auth, ok := s[tok]
		if !ok || tok == "" || !auth.AllowsRequest(req.Method, req.Path) {
			continue
		}
		if i == 0 {
			id.Current = auth.UserUUID
		}
		users = append(users, auth.UserUUID)
	}
	id.Scope = New(users...)
	return id, nil
}
