// Package resource holds the static, per-resource-type metadata the listing
// engine validates requests against: which columns exist, which of them hold
// serialized JSON, which are searched by "any" filters and which count
// towards the read-size budget.
//
// Descriptors are built once at process start and never change afterwards,
// so a Registry can be read from any number of goroutines without locking.
package resource

import (
	"fmt"
	"regexp"
	"slices"
)

// ColumnKind describes how a column's value is stored.
type ColumnKind int

const (
	Scalar          ColumnKind = iota
	SerializedHash             // jsonb object
	SerializedArray            // jsonb array
)

func (k ColumnKind) String() string {
	switch k {
	case SerializedHash:
		return "hash"
	case SerializedArray:
		return "array"
	default:
		return "scalar"
	}
}

// Serialized reports whether values of this kind are stored as JSON.
func (k ColumnKind) Serialized() bool {
	return k == SerializedHash || k == SerializedArray
}

// ParseColumnKind maps the names used in descriptor files to a ColumnKind.
// An empty string means Scalar.
func ParseColumnKind(s string) (ColumnKind, error) {
	switch s {
	case "", "scalar":
		return Scalar, nil
	case "hash", "object":
		return SerializedHash, nil
	case "array":
		return SerializedArray, nil
	}
	return Scalar, fmt.Errorf("unknown column kind %q", s)
}

const (
	DefaultSchema      = "public"
	DefaultIDColumn    = "uuid"
	DefaultOwnerColumn = "owner_uuid"
)

var identifierRegex = regexp.MustCompile(`^[a-z][_a-z0-9]+$`)

// ValidIdentifier reports whether s is acceptable as a column or table name:
// lowercase letters, digits and underscores, starting with a letter.
func ValidIdentifier(s string) bool {
	return identifierRegex.MatchString(s)
}

// Spec is the declarative form of a Descriptor, as found in descriptor files.
type Spec struct {
	Name              string            `json:"name"`
	Kind              string            `json:"kind"`
	Schema            string            `json:"schema,omitempty"`
	Table             string            `json:"table,omitempty"`
	IDColumn          string            `json:"idColumn,omitempty"`
	OwnerColumn       string            `json:"ownerColumn,omitempty"`
	TrashColumn       string            `json:"trashColumn,omitempty"`
	AuthzType         string            `json:"authzType,omitempty"`
	PublicReadable    bool              `json:"publicReadable,omitempty"`
	Columns           map[string]string `json:"columns"`
	Searchable        []string          `json:"searchable,omitempty"`
	LimitIndexColumns []string          `json:"limitIndexColumns,omitempty"`
	// Includes maps a reference column to the resource its values identify.
	Includes map[string]string `json:"includes,omitempty"`
}

// Descriptor is the immutable metadata of one resource type.
type Descriptor struct {
	name           string
	kind           string
	schema         string
	table          string
	idColumn       string
	ownerColumn    string
	trashColumn    string
	authzType      string
	publicReadable bool
	columns        map[string]ColumnKind
	columnOrder    []string
	searchable     []string
	limitIndex     []string
	includes       map[string]string
}

// New validates spec and returns the Descriptor it declares.
func New(spec Spec) (*Descriptor, error) {
	if !ValidIdentifier(spec.Name) {
		return nil, fmt.Errorf("resource: invalid resource name %q", spec.Name)
	}

	d := &Descriptor{
		name:           spec.Name,
		kind:           spec.Kind,
		schema:         orDefault(spec.Schema, DefaultSchema),
		table:          orDefault(spec.Table, spec.Name),
		idColumn:       orDefault(spec.IDColumn, DefaultIDColumn),
		ownerColumn:    orDefault(spec.OwnerColumn, DefaultOwnerColumn),
		trashColumn:    spec.TrashColumn,
		publicReadable: spec.PublicReadable,
		columns:        make(map[string]ColumnKind, len(spec.Columns)),
	}
	d.authzType = orDefault(spec.AuthzType, d.table)
	if d.kind == "" {
		d.kind = d.name
	}

	for _, ident := range []string{d.schema, d.table} {
		if !ValidIdentifier(ident) {
			return nil, fmt.Errorf("resource %s: invalid identifier %q", d.name, ident)
		}
	}

	for col, kindName := range spec.Columns {
		if !ValidIdentifier(col) {
			return nil, fmt.Errorf("resource %s: invalid column name %q", d.name, col)
		}
		kind, err := ParseColumnKind(kindName)
		if err != nil {
			return nil, fmt.Errorf("resource %s: column %s: %w", d.name, col, err)
		}
		d.columns[col] = kind
		d.columnOrder = append(d.columnOrder, col)
	}
	slices.Sort(d.columnOrder)

	for _, col := range []string{d.idColumn, d.ownerColumn} {
		if _, ok := d.columns[col]; !ok {
			return nil, fmt.Errorf("resource %s: required column %q is not declared", d.name, col)
		}
	}
	if d.trashColumn != "" {
		if kind, ok := d.columns[d.trashColumn]; !ok || kind != Scalar {
			return nil, fmt.Errorf("resource %s: trash column %q must be a declared scalar column", d.name, d.trashColumn)
		}
	}

	var err error
	if d.searchable, err = d.subset("searchable", spec.Searchable); err != nil {
		return nil, err
	}
	if d.limitIndex, err = d.subset("limitIndexColumns", spec.LimitIndexColumns); err != nil {
		return nil, err
	}

	d.includes = make(map[string]string, len(spec.Includes))
	for col, target := range spec.Includes {
		if kind, ok := d.columns[col]; !ok || kind != Scalar {
			return nil, fmt.Errorf("resource %s: include column %q must be a declared scalar column", d.name, col)
		}
		if !ValidIdentifier(target) {
			return nil, fmt.Errorf("resource %s: include column %s: invalid resource name %q", d.name, col, target)
		}
		d.includes[col] = target
	}
	return d, nil
}

// MustNew is like New but panics on error. Meant for descriptors declared in
// Go source.
func MustNew(spec Spec) *Descriptor {
	d, err := New(spec)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Descriptor) subset(field string, cols []string) ([]string, error) {
	out := make([]string, 0, len(cols))
	for _, col := range cols {
		if _, ok := d.columns[col]; !ok {
			return nil, fmt.Errorf("resource %s: %s entry %q is not a declared column", d.name, field, col)
		}
		if !slices.Contains(out, col) {
			out = append(out, col)
		}
	}
	return out, nil
}

func (d *Descriptor) Name() string        { return d.name }
func (d *Descriptor) Kind() string        { return d.kind }
func (d *Descriptor) Schema() string      { return d.schema }
func (d *Descriptor) Table() string       { return d.table }
func (d *Descriptor) IDColumn() string    { return d.idColumn }
func (d *Descriptor) OwnerColumn() string { return d.ownerColumn }
func (d *Descriptor) TrashColumn() string { return d.trashColumn }
func (d *Descriptor) AuthzType() string   { return d.authzType }

// PublicReadable reports whether requests without any resolved identity may
// list this resource (they still only see rows granted to the anonymous
// identity, if one is configured).
func (d *Descriptor) PublicReadable() bool { return d.publicReadable }

// Column returns the kind of the named column and whether it exists.
func (d *Descriptor) Column(name string) (ColumnKind, bool) {
	kind, ok := d.columns[name]
	return kind, ok
}

// Columns returns all column names in lexical order.
func (d *Descriptor) Columns() []string { return slices.Clone(d.columnOrder) }

// Searchable returns the columns eligible for "any" substring search, in
// declaration order.
func (d *Descriptor) Searchable() []string { return slices.Clone(d.searchable) }

// LimitIndexColumns returns the columns whose byte size is counted by the
// read-size limiter.
func (d *Descriptor) LimitIndexColumns() []string { return slices.Clone(d.limitIndex) }

// Include returns the resource referenced by column, if it is an include
// column.
func (d *Descriptor) Include(column string) (string, bool) {
	target, ok := d.includes[column]
	return target, ok
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
