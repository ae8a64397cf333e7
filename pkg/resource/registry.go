package resource

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/edgeflare/pglist/pkg/pgx/schema"
)

// Registry maps route names to descriptors. It is filled once by NewRegistry
// and only read afterwards.
type Registry struct {
	byName map[string]*Descriptor
	names  []string
}

// NewRegistry indexes ds by Name. Duplicate names are an error.
func NewRegistry(ds ...*Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Descriptor, len(ds))}
	for _, d := range ds {
		if d == nil {
			continue
		}
		if _, dup := r.byName[d.Name()]; dup {
			return nil, fmt.Errorf("resource: duplicate resource name %q", d.Name())
		}
		r.byName[d.Name()] = d
		r.names = append(r.names, d.Name())
	}
	slices.Sort(r.names)

	for _, name := range r.names {
		d := r.byName[name]
		for col, target := range d.includes {
			if _, ok := r.byName[target]; !ok {
				return nil, fmt.Errorf("resource %s: include column %s references unknown resource %q", name, col, target)
			}
		}
	}
	return r, nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Names returns the registered resource names in lexical order.
func (r *Registry) Names() []string { return slices.Clone(r.names) }

// Schemas returns the distinct schemas the registered resources live in.
func (r *Registry) Schemas() []string {
	out := make([]string, 0, 1)
	for _, name := range r.names {
		out = append(out, r.byName[name].Schema())
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Verify checks every descriptor against catalog metadata (as returned by
// schema.Load): the relation must exist, every declared column must exist,
// and serialized columns must be json or jsonb. All problems are reported
// together.
func (r *Registry) Verify(tables map[string]schema.Table) error {
	var errs []error
	for _, name := range r.names {
		d := r.byName[name]
		key := d.Schema() + "." + d.Table()
		t, ok := tables[key]
		if !ok {
			errs = append(errs, fmt.Errorf("resource %s: relation %s not found", name, key))
			continue
		}
		for _, col := range d.Columns() {
			c, ok := t.Column(col)
			if !ok {
				errs = append(errs, fmt.Errorf("resource %s: column %s.%s not found", name, key, col))
				continue
			}
			kind, _ := d.Column(col)
			if kind.Serialized() && !isJSONType(c.DataType) {
				errs = append(errs, fmt.Errorf("resource %s: column %s is declared %s but has type %s", name, col, kind, c.DataType))
			}
		}
	}
	return errors.Join(errs...)
}

func isJSONType(dataType string) bool {
	switch strings.ToLower(dataType) {
	case "json", "jsonb":
		return true
	}
	return false
}
