package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/edgeflare/pglist/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeParamsFromQueryString(t *testing.T) {
	q := url.Values{
		"filters":       {`[["name","=","foo"],["file_count",">",2]]`},
		"order":         {"name desc,uuid"},
		"select":        {`["uuid","name"]`},
		"limit":         {"10"},
		"offset":        {"5"},
		"distinct":      {"true"},
		"include_trash": {"1"},
		"count":         {"none"},
		"reader_tokens": {`["r1","r2"]`},
		"unrelated":     {"ignored"},
	}
	r := httptest.NewRequest(http.MethodGet, "/collections?"+q.Encode(), nil)

	raw, err := readParams(r)
	require.NoError(t, err)
	p, err := decodeParams(raw, actionIndex)
	require.NoError(t, err)

	assert.Equal(t, []any{
		[]any{"name", "=", "foo"},
		[]any{"file_count", ">", json.Number("2")},
	}, p.Filters)
	assert.Equal(t, "name desc,uuid", p.Order)
	assert.Equal(t, []any{"uuid", "name"}, p.Select)
	require.NotNil(t, p.Limit)
	assert.Equal(t, 10, *p.Limit)
	assert.Equal(t, 5, p.Offset)
	assert.True(t, p.Distinct)
	assert.True(t, p.IncludeTrash)
	assert.Equal(t, "none", p.Count)
	assert.Equal(t, []string{"r1", "r2"}, p.ReaderTokens)
}

func TestDecodeParamsFromJSONBody(t *testing.T) {
	body := `{"_method":"GET","where":{"name":"foo"},"limit":0,"distinct":false,"reader_tokens":"r1"}`
	r := httptest.NewRequest(http.MethodPost, "/collections?limit=50&offset=2", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	raw, err := readParams(r)
	require.NoError(t, err)
	assert.Equal(t, "GET", raw["_method"])

	p, err := decodeParams(raw, actionIndex)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "foo"}, p.Where)
	require.NotNil(t, p.Limit)
	assert.Equal(t, 0, *p.Limit, "body wins over the query string")
	assert.Equal(t, 2, p.Offset)
	assert.False(t, p.Distinct)
	assert.Equal(t, []string{"r1"}, p.ReaderTokens)
}

func TestDecodeParamsFromForm(t *testing.T) {
	form := url.Values{"_method": {"GET"}, "filters": {`[["name","contains","x"]]`}, "include_trash": {"false"}}
	r := httptest.NewRequest(http.MethodPost, "/collections", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	raw, err := readParams(r)
	require.NoError(t, err)
	p, err := decodeParams(raw, actionIndex)
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{"name", "contains", "x"}}, p.Filters)
	assert.False(t, p.IncludeTrash)
	assert.Nil(t, p.Limit)
}

func TestDecodeParamsErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"bool word", map[string]any{"distinct": "yes"}},
		{"bool number", map[string]any{"include_trash": json.Number("2")}},
		{"bool object", map[string]any{"distinct": map[string]any{}}},
		{"text limit", map[string]any{"limit": "many"}},
		{"fractional limit", map[string]any{"limit": json.Number("1.5")}},
		{"text offset", map[string]any{"offset": "ten"}},
		{"count not a string", map[string]any{"count": json.Number("1")}},
		{"broken JSON", map[string]any{"filters": `[["name","=",`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeParams(tt.raw, actionIndex)
			assert.ErrorIs(t, err, query.ErrInvalidParameter)
		})
	}
}

func TestDecodeParamsNegativePaging(t *testing.T) {
	p, err := decodeParams(map[string]any{"limit": "-5", "offset": json.Number("-1")}, actionIndex)
	require.NoError(t, err, "the plan clamps negatives to 0")
	require.NotNil(t, p.Limit)
	assert.Equal(t, -5, *p.Limit)
	assert.Equal(t, -1, p.Offset)

	q := p.Query()
	assert.Equal(t, -5, *q.Limit)
}

func TestDecodeParamsPerAction(t *testing.T) {
	raw := map[string]any{"select": `["uuid"]`, "limit": "nope", "filters": "garbage"}

	p, err := decodeParams(raw, actionShow)
	require.NoError(t, err, "show does not read limit or filters")
	assert.Equal(t, []any{"uuid"}, p.Select)
	assert.Nil(t, p.Filters)

	_, err = decodeParams(raw, actionIndex)
	assert.Error(t, err)
}

func TestBodyMustBeObject(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/collections", strings.NewReader(`[1,2]`))
	r.Header.Set("Content-Type", "application/json")
	_, err := readParams(r)
	assert.ErrorIs(t, err, query.ErrInvalidParameter)

	r = httptest.NewRequest(http.MethodPost, "/collections", strings.NewReader(``))
	raw, err := readParams(r)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestCountMode(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", countMode(r, ""))
	assert.Equal(t, "exact", countMode(r, "exact"))

	r.Header.Set("Prefer", `return=minimal, count="none"`)
	assert.Equal(t, "none", countMode(r, ""))
	assert.Equal(t, "exact", countMode(r, "exact"), "parameter wins")

	r.Header.Set("Prefer", "count=planned")
	assert.Equal(t, "", countMode(r, ""), "unsupported preference ignored")
}

func TestBearerToken(t *testing.T) {
	for header, want := range map[string]string{
		"":                "",
		"Bearer abc":      "abc",
		"bearer  abc ":    "abc",
		"OAuth2 xyz":      "xyz",
		"Basic dXNlcjpw":  "",
		"BearerWithoutSp": "",
	} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, bearerToken(r), header)
	}
}
