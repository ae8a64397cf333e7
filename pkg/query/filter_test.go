package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterPredicate(t *testing.T) {
	d := testDescriptor()

	tests := []struct {
		name     string
		filter   Filter
		wantSQL  string
		wantArgs []any
	}{
		{"string equality", Filter{"name", OpEq, "foo"}, `"name" = $1`, []any{"foo"}},
		{"integral number", Filter{"file_count", OpEq, float64(3)}, `"file_count" = $1`, []any{int64(3)}},
		{"boolean", Filter{"is_trashed", OpEq, true}, `"is_trashed" = $1`, []any{true}},
		{"equals null", Filter{"name", OpEq, nil}, `"name" IS NULL`, nil},
		{"not equal", Filter{"name", OpNotEq, "foo"}, `"name" IS DISTINCT FROM $1`, []any{"foo"}},
		{"not equal null", Filter{"name", OpNotEq, nil}, `"name" IS NOT NULL`, nil},
		{"less than fraction", Filter{"file_count", OpLt, 2.5}, `"file_count" < $1`, []any{2.5}},
		{"greater or equal string", Filter{"name", OpGte, "m"}, `"name" >= $1`, []any{"m"}},
		{"in", Filter{"uuid", OpIn, []any{"a", "b"}}, `"uuid" IN ($1, $2)`, []any{"a", "b"}},
		{"in empty", Filter{"uuid", OpIn, []any{}}, `FALSE`, nil},
		{"not in", Filter{"uuid", OpNotIn, []any{"a"}}, `"uuid" NOT IN ($1)`, []any{"a"}},
		{"not in empty", Filter{"uuid", OpNotIn, []any{}}, `TRUE`, nil},
		{"contains escapes pattern", Filter{"name", OpContains, `50%_off\`}, `"name" LIKE $1`, []any{`%50\%\_off\\%`}},
		{"contains serialized", Filter{"properties", OpContains, "x"}, `"properties"::text LIKE $1`, []any{"%x%"}},
		{"like keeps pattern", Filter{"name", OpLike, "fo%"}, `"name" LIKE $1`, []any{"fo%"}},
		{"ilike", Filter{"name", OpILike, "FO%"}, `"name" ILIKE $1`, []any{"FO%"}},
		{"is null", Filter{"name", OpIs, nil}, `"name" IS NULL`, nil},
		{"jsonb equality", Filter{"properties", OpEq, map[string]any{"a": "b"}}, `"properties" = $1::text::jsonb`, []any{`{"a":"b"}`}},
		{"jsonb membership", Filter{"storage_tags", OpIn, []any{[]any{"x"}}}, `"storage_tags" IN ($1::text::jsonb)`, []any{`["x"]`}},
		{
			"any contains skips owner",
			Filter{"any", OpContains, "foo"},
			`("name" ILIKE $1) OR ("description" ILIKE $2) OR ("properties"::text ILIKE $3)`,
			[]any{"%foo%", "%foo%", "%foo%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.filter.Predicate(d)
			require.NoError(t, err)
			sql, args := render(p)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestAnySearchWithoutSearchableColumns(t *testing.T) {
	p, err := Filter{"any", OpContains, "u1"}.Predicate(ownerOnlyDescriptor())
	require.NoError(t, err)
	sql, args := render(p)
	assert.Equal(t, "FALSE", sql, "owner column alone is never searched")
	assert.Empty(t, args)
}

func TestFilterErrors(t *testing.T) {
	d := testDescriptor()

	tests := []struct {
		name   string
		filter Filter
		kind   Kind
	}{
		{"any with equality", Filter{"any", OpEq, "x"}, KindInvalidFilter},
		{"any with non-string", Filter{"any", OpContains, float64(5)}, KindInvalidFilter},
		{"object on scalar column", Filter{"name", OpEq, map[string]any{"a": "b"}}, KindInvalidFilter},
		{"fractional equality", Filter{"file_count", OpEq, 1.5}, KindInvalidFilter},
		{"comparison with null", Filter{"file_count", OpLt, nil}, KindInvalidFilter},
		{"in without array", Filter{"uuid", OpIn, "a"}, KindInvalidFilter},
		{"in with nested array", Filter{"uuid", OpIn, []any{[]any{"a"}}}, KindInvalidFilter},
		{"is with value", Filter{"name", OpIs, "x"}, KindInvalidFilter},
		{"contains with number", Filter{"name", OpContains, float64(1)}, KindInvalidFilter},
		{"unknown operator", Filter{"name", "~", "x"}, KindInvalidFilter},
		{"comparison on serialized", Filter{"properties", OpGt, "x"}, KindInvalidFilter},
		{"not equal on serialized", Filter{"properties", OpNotEq, "x"}, KindInvalidFilter},
		{"uppercase attribute", Filter{"Name", OpEq, "x"}, KindInvalidColumn},
		{"injection in attribute", Filter{"name;drop", OpEq, "x"}, KindInvalidColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.filter.Predicate(d)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err), err.Error())
		})
	}
}

func TestUnknownAttributeAlwaysInvalidColumn(t *testing.T) {
	d := testDescriptor()
	operators := []Operator{OpEq, OpNotEq, OpLt, OpIn, OpNotIn, OpContains, OpIs, OpLike, "bogus", ""}
	values := []any{nil, "x", float64(1), 1.5, true, []any{"a"}, []any{"contains", "x"}, map[string]any{"k": "v"}}

	for _, attr := range []string{"nope", "kind", "owner", "collections"} {
		for _, op := range operators {
			for _, v := range values {
				_, err := ParseFilters(d, []any{[]any{attr, string(op), v}})
				assert.ErrorIs(t, err, ErrInvalidColumn, "filter %s %q %v", attr, op, v)

				_, err = ParseWhere(d, map[string]any{attr: v})
				assert.ErrorIs(t, err, ErrInvalidColumn, "where %s %v", attr, v)
			}
		}
	}
}

func TestDecodeFilters(t *testing.T) {
	t.Run("json text", func(t *testing.T) {
		filters, err := DecodeFilters(`[["name","=","foo"],["file_count",">",2]]`)
		require.NoError(t, err)
		assert.Equal(t, []Filter{
			{Attribute: "name", Operator: OpEq, Value: "foo"},
			{Attribute: "file_count", Operator: OpGt, Value: float64(2)},
		}, filters)
	})

	t.Run("operator is normalised", func(t *testing.T) {
		filters, err := DecodeFilters([]any{[]any{"uuid", " NOT IN ", []any{}}})
		require.NoError(t, err)
		assert.Equal(t, OpNotIn, filters[0].Operator)
	})

	t.Run("absent", func(t *testing.T) {
		for _, raw := range []any{nil, "", "  "} {
			filters, err := DecodeFilters(raw)
			assert.NoError(t, err)
			assert.Empty(t, filters)
		}
	})

	malformed := []any{
		`[["name","="]]`,
		`{"name":"foo"}`,
		`not json`,
		[]any{"name", "=", "foo"},
		[]any{[]any{1, "=", "foo"}},
		[]any{[]any{"name", 1, "foo"}},
		float64(3),
	}
	for _, raw := range malformed {
		_, err := DecodeFilters(raw)
		assert.ErrorIs(t, err, ErrInvalidFilter, "%v", raw)
	}
}

func TestParseFiltersKeepsOrder(t *testing.T) {
	preds, err := ParseFilters(testDescriptor(), `[["name","=","a"],["uuid","in",["b","c"]]]`)
	require.NoError(t, err)
	sql, args := render(And(preds...))
	assert.Equal(t, `("name" = $1) AND ("uuid" IN ($2, $3))`, sql)
	assert.Equal(t, []any{"a", "b", "c"}, args)
}
