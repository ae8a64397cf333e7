package query

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/edgeflare/pglist/pkg/resource"
)

// Operator is a filter operator as written by clients.
type Operator string

const (
	OpEq       Operator = "="
	OpNotEq    Operator = "!="
	OpLt       Operator = "<"
	OpLte      Operator = "<="
	OpGt       Operator = ">"
	OpGte      Operator = ">="
	OpIn       Operator = "in"
	OpNotIn    Operator = "not in"
	OpContains Operator = "contains"
	OpIs       Operator = "is"
	OpLike     Operator = "like"
	OpILike    Operator = "ilike"
)

// AnyAttribute is the pseudo-column that searches every searchable column.
const AnyAttribute = "any"

// Filter is one [attribute, operator, value] triple.
type Filter struct {
	Attribute string
	Operator  Operator
	Value     any
}

// DecodeFilters accepts filters as decoded JSON ([]any of 3-element arrays)
// or as the JSON text of such an array.
func DecodeFilters(raw any) ([]Filter, error) {
	raw, err := decodeJSONString(raw, "filters")
	if err != nil {
		return nil, err
	}

	var list []any
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		list = v
	case []Filter:
		return v, nil
	default:
		return nil, Errorf(KindInvalidFilter, "filters must be an array, got %T", raw)
	}

	filters := make([]Filter, 0, len(list))
	for i, item := range list {
		triple, ok := item.([]any)
		if !ok || len(triple) != 3 {
			return nil, Errorf(KindInvalidFilter, "invalid filter #%d: expected [attribute, operator, value]", i)
		}
		attr, ok := triple[0].(string)
		if !ok {
			return nil, Errorf(KindInvalidFilter, "invalid filter #%d: attribute is not a string", i)
		}
		op, ok := triple[1].(string)
		if !ok {
			return nil, Errorf(KindInvalidFilter, "invalid filter #%d: operator is not a string", i)
		}
		filters = append(filters, Filter{
			Attribute: attr,
			Operator:  Operator(strings.ToLower(strings.TrimSpace(op))),
			Value:     triple[2],
		})
	}
	return filters, nil
}

// ParseFilters decodes raw and compiles each filter against d. Attribute
// validation happens before operator validation, so an unknown attribute
// is always reported as InvalidColumn.
func ParseFilters(d *resource.Descriptor, raw any) ([]Predicate, error) {
	filters, err := DecodeFilters(raw)
	if err != nil {
		return nil, err
	}
	preds := make([]Predicate, 0, len(filters))
	for _, f := range filters {
		p, err := f.Predicate(d)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// Predicate compiles f against d.
func (f Filter) Predicate(d *resource.Descriptor) (Predicate, error) {
	if f.Attribute == AnyAttribute {
		if f.Operator != OpContains {
			return nil, Errorf(KindInvalidFilter, "invalid operator %q for attribute %q", f.Operator, AnyAttribute)
		}
		s, ok := f.Value.(string)
		if !ok {
			return nil, Errorf(KindInvalidFilter, "contains requires a string value")
		}
		return AnySearch(d, s), nil
	}

	kind, err := lookupColumn(d, f.Attribute)
	if err != nil {
		return nil, err
	}
	col := f.Attribute

	switch f.Operator {
	case OpEq:
		if f.Value == nil {
			return IsNull(col), nil
		}
		if kind.Serialized() {
			return jsonEquals(col, f.Value)
		}
		v, err := scalar(col, f.Value, false)
		if err != nil {
			return nil, err
		}
		return Eq(col, v), nil

	case OpNotEq:
		if f.Value == nil {
			return IsNotNull(col), nil
		}
		if kind.Serialized() {
			return nil, Errorf(KindInvalidFilter, "operator %q is not supported on serialized column %s", f.Operator, col)
		}
		v, err := scalar(col, f.Value, false)
		if err != nil {
			return nil, err
		}
		return NotEq(col, v), nil

	case OpLt, OpLte, OpGt, OpGte:
		if kind.Serialized() {
			return nil, Errorf(KindInvalidFilter, "operator %q is not supported on serialized column %s", f.Operator, col)
		}
		if f.Value == nil {
			return nil, Errorf(KindInvalidFilter, "operator %q requires a value for %s", f.Operator, col)
		}
		v, err := scalar(col, f.Value, true)
		if err != nil {
			return nil, err
		}
		return Compare(col, string(f.Operator), v), nil

	case OpIn, OpNotIn:
		list, ok := f.Value.([]any)
		if !ok {
			return nil, Errorf(KindInvalidFilter, "operator %q requires an array value for %s", f.Operator, col)
		}
		return membership(col, kind, list, f.Operator == OpNotIn)

	case OpContains:
		s, ok := f.Value.(string)
		if !ok {
			return nil, Errorf(KindInvalidFilter, "contains requires a string value for %s", col)
		}
		return Contains(col, s, false, kind.Serialized()), nil

	case OpLike, OpILike:
		s, ok := f.Value.(string)
		if !ok {
			return nil, Errorf(KindInvalidFilter, "operator %q requires a string value for %s", f.Operator, col)
		}
		return Like(col, s, f.Operator == OpILike, kind.Serialized()), nil

	case OpIs:
		if f.Value != nil && f.Value != "null" {
			return nil, Errorf(KindInvalidFilter, "operator %q only accepts null for %s", f.Operator, col)
		}
		return IsNull(col), nil
	}

	return nil, Errorf(KindInvalidFilter, "invalid operator %q for attribute %s", f.Operator, col)
}

// AnySearch is the free-text search behind "any contains s": a
// case-insensitive substring match on any searchable column except the
// owner column. With nothing left to search it matches no rows.
func AnySearch(d *resource.Descriptor, s string) Predicate {
	var preds []Predicate
	for _, col := range d.Searchable() {
		if col == d.OwnerColumn() {
			continue
		}
		kind, _ := d.Column(col)
		preds = append(preds, Contains(col, s, true, kind.Serialized()))
	}
	return Or(preds...)
}

func lookupColumn(d *resource.Descriptor, attr string) (resource.ColumnKind, error) {
	if !resource.ValidIdentifier(attr) {
		return 0, Errorf(KindInvalidColumn, "invalid attribute %q", attr)
	}
	kind, ok := d.Column(attr)
	if !ok {
		return 0, Errorf(KindInvalidColumn, "invalid attribute %q for %s", attr, d.Name())
	}
	return kind, nil
}

func membership(col string, kind resource.ColumnKind, list []any, not bool) (Predicate, error) {
	if kind.Serialized() {
		docs := make([]string, len(list))
		for i, v := range list {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, Errorf(KindInvalidFilter, "invalid value for %s: %v", col, err)
			}
			docs[i] = string(b)
		}
		return JSONIn(col, docs, not), nil
	}

	values := make([]any, len(list))
	for i, v := range list {
		s, err := scalar(col, v, false)
		if err != nil {
			return nil, err
		}
		values[i] = s
	}
	if not {
		return NotIn(col, values), nil
	}
	return In(col, values), nil
}

func jsonEquals(col string, v any) (Predicate, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, Errorf(KindInvalidFilter, "invalid value for %s: %v", col, err)
	}
	return JSONEq(col, string(b)), nil
}

// scalar normalises a decoded JSON value for binding: strings and booleans
// pass through, integral numbers become int64. Fractional numbers are only
// accepted when fraction is set.
func scalar(col string, v any, fraction bool) (any, error) {
	switch v := v.(type) {
	case string, bool, int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) && math.Abs(v) < 1<<53 {
			return int64(v), nil
		}
		if fraction {
			return v, nil
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		if f, err := v.Float64(); err == nil && fraction {
			return f, nil
		}
	}
	return nil, Errorf(KindInvalidFilter, "invalid value %s for %s", describe(v), col)
}

func describe(v any) string {
	switch v.(type) {
	case []any:
		return "(array)"
	case map[string]any:
		return "(object)"
	case nil:
		return "null"
	}
	return fmt.Sprintf("%v", v)
}

// decodeJSONString turns the JSON text form of a parameter (as sent in a
// query string) into its decoded value. Non-string values pass through.
func decodeJSONString(raw any, name string) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return raw, nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, Errorf(KindInvalidFilter, "invalid %s: %v", name, err)
	}
	return v, nil
}
