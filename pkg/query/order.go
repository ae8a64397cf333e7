package query

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/edgeflare/pglist/pkg/resource"
)

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
	Nulls  string // "", "first" or "last"
}

func (o Order) SQL() string {
	s := Ident(o.Column)
	if o.Desc {
		s += " DESC"
	} else {
		s += " ASC"
	}
	if o.Nulls != "" {
		s += " NULLS " + strings.ToUpper(o.Nulls)
	}
	return s
}

// ParseOrder parses order terms of the form
//
//	column[ asc|desc][ nulls first|last]
//
// given as a JSON array, its text, or a comma-separated string. A column may
// be qualified with the resource's own table name; any other table is
// rejected.
func ParseOrder(d *resource.Descriptor, raw any) ([]Order, error) {
	terms, err := stringList(raw, KindInvalidOrder, "order")
	if err != nil {
		return nil, err
	}

	result := make([]Order, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		o, err := parseOrderTerm(d, term)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, nil
}

func parseOrderTerm(d *resource.Descriptor, term string) (Order, error) {
	fields := strings.Fields(strings.ToLower(term))
	invalid := Errorf(KindInvalidOrder, "invalid order term %q", term)

	column := fields[0]
	if table, col, qualified := strings.Cut(column, "."); qualified {
		if table != d.Table() {
			return Order{}, invalid
		}
		column = col
	}
	if !resource.ValidIdentifier(column) {
		return Order{}, invalid
	}
	if _, ok := d.Column(column); !ok {
		return Order{}, invalid
	}

	o := Order{Column: column}
	rest := fields[1:]
	if len(rest) > 0 && (rest[0] == "asc" || rest[0] == "desc") {
		o.Desc = rest[0] == "desc"
		rest = rest[1:]
	}
	if len(rest) > 0 {
		if len(rest) != 2 || rest[0] != "nulls" || (rest[1] != "first" && rest[1] != "last") {
			return Order{}, invalid
		}
		o.Nulls = rest[1]
	}
	return o, nil
}

// ParseSelect validates a select list. Every entry must be a column of d;
// "kind" is accepted and ignored since Plan always appends it, except that a
// list naming only "kind" selects the identifier column. Duplicates are
// dropped.
func ParseSelect(d *resource.Descriptor, raw any) ([]string, error) {
	cols, err := stringList(raw, KindInvalidColumn, "select")
	if err != nil {
		return nil, err
	}
	if cols == nil {
		return nil, nil
	}

	out := make([]string, 0, len(cols))
	sawKind := false
	for _, col := range cols {
		col = strings.TrimSpace(col)
		if col == KindColumn {
			sawKind = true
			continue
		}
		if _, err := lookupColumn(d, col); err != nil {
			return nil, err
		}
		if !slices.Contains(out, col) {
			out = append(out, col)
		}
	}
	if sawKind && len(out) == 0 {
		out = append(out, d.IDColumn())
	}
	return out, nil
}

// stringList accepts []string, []any of strings, JSON array text or a
// comma-separated string. A nil result means the parameter was absent.
func stringList(raw any, kind Kind, name string) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, nil
		}
		if strings.HasPrefix(v, "[") {
			var list []string
			if err := json.Unmarshal([]byte(v), &list); err != nil {
				return nil, Errorf(kind, "invalid %s: %v", name, err)
			}
			return list, nil
		}
		return strings.Split(v, ","), nil
	case []any:
		list := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, Errorf(kind, "invalid %s: entry #%d is not a string", name, i)
			}
			list[i] = s
		}
		return list, nil
	}
	return nil, Errorf(kind, "invalid %s: expected an array of strings, got %T", name, raw)
}
