package scope

import (
	"testing"

	"github.com/edgeflare/pglist/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zitadel/oidc/v3/pkg/oidc"
)

func TestClaimAt(t *testing.T) {
	var claims map[string]any
	testutil.DecodeFixture(t, "introspection.json", &claims)

	found := map[string]any{
		"sub":               "286401234567890123",
		".sub":              "286401234567890123",
		"arvados.user_uuid": "zzzzz-tpzed-xurymjxw79nv3jz",
		"arvados.roles[1]":  "auditor",
		"groups[1].uuid":    "zzzzz-j7d0g-fffffffffffffff",
		"metadata":          map[string]any{},
	}
	for path, want := range found {
		got, ok := claimAt(claims, path)
		require.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}

	for _, path := range []string{
		"",
		".",
		"arvados.missing",
		"groups[2].uuid",
		"groups[-1].uuid",
		"groups[x].uuid",
		"groups[0.uuid",
		"[0]",
		"sub.deeper",
		"arvados..user_uuid",
		"metadata[0]",
	} {
		_, ok := claimAt(claims, path)
		assert.False(t, ok, path)
	}
}

func TestSubjectFromIntrospection(t *testing.T) {
	var resp oidc.IntrospectionResponse
	testutil.DecodeFixture(t, "introspection.json", &resp)
	require.True(t, resp.Active)

	sub, err := subjectFromClaims(&resp, "")
	require.NoError(t, err)
	assert.Equal(t, "286401234567890123", sub)

	sub, err = subjectFromClaims(&resp, "arvados.user_uuid")
	require.NoError(t, err)
	assert.Equal(t, "zzzzz-tpzed-xurymjxw79nv3jz", sub)

	sub, err = subjectFromClaims(&resp, "arvados.tenant")
	require.NoError(t, err)
	assert.Empty(t, sub, "missing claim identifies nobody")

	_, err = subjectFromClaims(&resp, "arvados.roles")
	assert.ErrorContains(t, err, "not a string")
}
