package listing

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/edgeflare/pglist/pkg/query"
	"github.com/edgeflare/pglist/pkg/resource"
)

// CountMode controls whether items_available is computed.
type CountMode string

const (
	CountExact CountMode = "exact"
	CountNone  CountMode = "none"
)

// ParseCountMode accepts "", "exact" and "none". The empty string means
// CountExact.
func ParseCountMode(s string) (CountMode, error) {
	switch CountMode(s) {
	case "", CountExact:
		return CountExact, nil
	case CountNone:
		return CountNone, nil
	}
	return "", query.Errorf(query.KindInvalidCountMode, "invalid count parameter %q, expected exact or none", s)
}

// Item is one serialized resource.
type Item = map[string]any

// Envelope is the list response.
type Envelope struct {
	Kind           string `json:"kind"`
	Etag           string `json:"etag"`
	SelfLink       string `json:"self_link"`
	Offset         int    `json:"offset"`
	Limit          int    `json:"limit"`
	Items          []Item `json:"items"`
	ItemsAvailable *int64 `json:"items_available,omitempty"`
	Included       []Item `json:"included,omitempty"`
}

// ListKind returns the envelope kind for items of d.
func ListKind(d *resource.Descriptor) string {
	return d.Kind() + "List"
}

// Serializer turns a fetched row into a response item. sel is the plan's
// select list (nil when every column was read).
type Serializer func(d *resource.Descriptor, sel []string, row map[string]any) (Item, error)

// DefaultSerializer keeps the selected columns, adds the kind marker and
// decodes serialized columns that arrive as JSON text.
func DefaultSerializer(d *resource.Descriptor, sel []string, row map[string]any) (Item, error) {
	item := make(Item, len(row)+1)
	for col, v := range row {
		if len(sel) > 0 && !slices.Contains(sel, col) {
			continue
		}
		kind, ok := d.Column(col)
		if ok && kind.Serialized() {
			decoded, err := decodeSerialized(v)
			if err != nil {
				return nil, query.Errorf(query.KindStoreFailure, "column %s holds invalid JSON: %v", col, err)
			}
			v = decoded
		}
		item[col] = v
	}
	item[query.KindColumn] = d.Kind()
	return item, nil
}

func decodeSerialized(v any) (any, error) {
	var raw []byte
	switch v := v.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return v, nil
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
