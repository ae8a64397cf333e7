package query

import (
	"slices"

	"github.com/edgeflare/pglist/pkg/resource"
)

// Where is the attribute→value form of filtering:
//
//	{"name": "foo"}                    equality
//	{"name": null}                     IS NULL
//	{"uuid": ["a", "b"]}               membership
//	{"name": ["contains", "oo"]}       substring
//	{"any": ["contains", "oo"]}        search over searchable columns
//	{"properties": {"k": "v"}}         legacy approximate match
type Where map[string]any

// DecodeWhere accepts a decoded JSON object or its JSON text.
func DecodeWhere(raw any) (Where, error) {
	raw, err := decodeJSONString(raw, "where")
	if err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return Where(v), nil
	case Where:
		return v, nil
	}
	return nil, Errorf(KindInvalidFilter, "where must be an object, got %T", raw)
}

// ParseWhere decodes raw and compiles it against d. Attributes are handled
// in lexical order so the generated SQL is deterministic.
func ParseWhere(d *resource.Descriptor, raw any) ([]Predicate, error) {
	w, err := DecodeWhere(raw)
	if err != nil {
		return nil, err
	}
	return w.Predicates(d)
}

// Predicates compiles w against d.
func (w Where) Predicates(d *resource.Descriptor) ([]Predicate, error) {
	attrs := make([]string, 0, len(w))
	for attr := range w {
		attrs = append(attrs, attr)
	}
	slices.Sort(attrs)

	preds := make([]Predicate, 0, len(attrs))
	for _, attr := range attrs {
		p, err := wherePredicate(d, attr, w[attr])
		if err != nil {
			return nil, err
		}
		if p != nil {
			preds = append(preds, p)
		}
	}
	return preds, nil
}

func wherePredicate(d *resource.Descriptor, attr string, value any) (Predicate, error) {
	if attr == AnyAttribute {
		s, ok := containsArg(value)
		if !ok {
			return nil, Errorf(KindInvalidFilter, `where "any" requires ["contains", string]`)
		}
		return AnySearch(d, s), nil
	}

	kind, err := lookupColumn(d, attr)
	if err != nil {
		return nil, err
	}

	switch v := value.(type) {
	case nil:
		return IsNull(attr), nil

	case []any:
		if len(v) == 2 && v[0] == string(OpContains) {
			s, ok := v[1].(string)
			if !ok {
				return nil, Errorf(KindInvalidFilter, "contains requires a string value for %s", attr)
			}
			return Contains(attr, s, false, kind.Serialized()), nil
		}
		if kind.Serialized() {
			return jsonEquals(attr, v)
		}
		return membership(attr, kind, v, false)

	case map[string]any:
		return legacyApproximate(attr, v), nil
	}

	if kind.Serialized() {
		return jsonEquals(attr, value)
	}
	s, err := scalar(attr, value, false)
	if err != nil {
		return nil, err
	}
	return Eq(attr, s), nil
}

// legacyApproximate handles {"col": {"k": "v"}} by matching the column's
// text for "%k%v%". Non-string values are skipped. Key and value are used as
// LIKE patterns unescaped; clients rely on this being loose.
func legacyApproximate(col string, hash map[string]any) Predicate {
	keys := make([]string, 0, len(hash))
	for k := range hash {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var preds []Predicate
	for _, k := range keys {
		s, ok := hash[k].(string)
		if !ok {
			continue
		}
		preds = append(preds, Like(col, "%"+k+"%"+s+"%", true, true))
	}
	if len(preds) == 0 {
		return nil
	}
	return And(preds...)
}

func containsArg(v any) (string, bool) {
	list, ok := v.([]any)
	if !ok || len(list) != 2 || list[0] != string(OpContains) {
		return "", false
	}
	s, ok := list[1].(string)
	return s, ok
}
