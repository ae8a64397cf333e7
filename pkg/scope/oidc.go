package scope

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rs"
	"github.com/zitadel/oidc/v3/pkg/oidc"
)

// OIDCConfig configures token introspection against an OpenID provider.
type OIDCConfig struct {
	Issuer       string `mapstructure:"issuer"`
	ClientID     string `mapstructure:"clientID"`
	ClientSecret string `mapstructure:"clientSecret"`
	// SubjectClaim is a dotted path to the claim holding the user
	// identity, e.g. "sub" or "ext.user_uuid". Empty means "sub".
	SubjectClaim string `mapstructure:"subjectClaim"`
	// CacheTTL bounds how long an introspection result is reused. Zero
	// disables caching.
	CacheTTL time.Duration `mapstructure:"cacheTTL"`
}

var ErrMissingOIDCConfig = errors.New("scope: oidc issuer, client id and client secret are required")

// Introspector validates an access token with the provider.
type Introspector func(ctx context.Context, token string) (*oidc.IntrospectionResponse, error)

// OIDCAuthenticator resolves bearer and reader tokens by introspection.
// Inactive tokens are ignored.
type OIDCAuthenticator struct {
	introspect   Introspector
	subjectClaim string
	ttl          time.Duration
	subjects     *cache[string]
}

// NewOIDCAuthenticator discovers the provider at cfg.Issuer and
// authenticates to its introspection endpoint with client credentials.
func NewOIDCAuthenticator(ctx context.Context, cfg OIDCConfig) (*OIDCAuthenticator, error) {
	if cfg.Issuer == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingOIDCConfig
	}
	provider, err := rs.NewResourceServerClientCredentials(ctx, cfg.Issuer, cfg.ClientID, cfg.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("scope: oidc provider %s: %w", cfg.Issuer, err)
	}
	introspect := func(ctx context.Context, token string) (*oidc.IntrospectionResponse, error) {
		return rs.Introspect[*oidc.IntrospectionResponse](ctx, provider, token)
	}
	return NewOIDCAuthenticatorWith(introspect, cfg), nil
}

// Upper bound on cached introspection results.
const maxCachedSubjects = 10000

// NewOIDCAuthenticatorWith uses introspect instead of a discovered provider.
func NewOIDCAuthenticatorWith(introspect Introspector, cfg OIDCConfig) *OIDCAuthenticator {
	return &OIDCAuthenticator{
		introspect:   introspect,
		subjectClaim: cfg.SubjectClaim,
		ttl:          cfg.CacheTTL,
		subjects:     newCache[string](maxCachedSubjects),
	}
}

func (a *OIDCAuthenticator) Authenticate(ctx context.Context, req Request) (Identity, error) {
	tokens := []string{req.Token}
	if req.Method == http.MethodGet && len(req.ReaderTokens) <= MaxReaderTokens {
		tokens = append(tokens, req.ReaderTokens...)
	}
	id := Identity{Credentials: req.Token != "" || len(tokens) > 1}

	var users []string
	for i, tok := range tokens {
		if tok == "" {
			continue
		}
		subject, err := a.subject(ctx, tok)
		if err != nil {
			return Identity{}, err
		}
		if subject == "" {
			continue
		}
		if i == 0 {
			id.Current = subject
		}
		users = append(users, subject)
	}
	id.Scope = New(users...)
	return id, nil
}

// subject returns the user behind token, or "" for an inactive token.
func (a *OIDCAuthenticator) subject(ctx context.Context, token string) (string, error) {
	if a.ttl > 0 {
		if s, ok := a.subjects.Get(token); ok {
			return s, nil
		}
	}

	resp, err := a.introspect(ctx, token)
	if err != nil {
		return "", fmt.Errorf("introspect token: %w", err)
	}
	var subject string
	ttl := a.ttl
	if resp != nil && resp.Active {
		if exp := resp.Expiration.AsTime(); !exp.IsZero() {
			left := exp.Sub(a.subjects.now())
			if left <= 0 {
				return "", nil
			}
			ttl = min(ttl, left)
		}
		if subject, err = subjectFromClaims(resp, a.subjectClaim); err != nil {
			return "", err
		}
	}

	if ttl > 0 {
		a.subjects.Set(token, subject, ttl)
	}
	return subject, nil
}

func subjectFromClaims(resp *oidc.IntrospectionResponse, path string) (string, error) {
	if path == "" || path == "sub" {
		return resp.Subject, nil
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	var claims map[string]any
	if err := json.Unmarshal(raw, &claims); err != nil {
		return "", err
	}
	v, ok := claimAt(claims, path)
	if !ok {
		// a token without the claim identifies nobody
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("claim %s is %T, not a string", path, v)
	}
	return s, nil
}
