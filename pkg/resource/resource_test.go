package resource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edgeflare/pglist/pkg/pgx/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectionsSpec() Spec {
	return Spec{
		Name:        "collections",
		Kind:        "arvados#collection",
		TrashColumn: "is_trashed",
		Columns: map[string]string{
			"uuid":          "",
			"owner_uuid":    "",
			"name":          "",
			"is_trashed":    "",
			"properties":    "hash",
			"storage_tags":  "array",
			"manifest_text": "",
		},
		Searchable:        []string{"name", "owner_uuid", "name"},
		LimitIndexColumns: []string{"manifest_text"},
	}
}

func TestNew(t *testing.T) {
	d, err := New(collectionsSpec())
	require.NoError(t, err)

	assert.Equal(t, "collections", d.Name())
	assert.Equal(t, "arvados#collection", d.Kind())
	assert.Equal(t, "public", d.Schema())
	assert.Equal(t, "collections", d.Table())
	assert.Equal(t, "uuid", d.IDColumn())
	assert.Equal(t, "owner_uuid", d.OwnerColumn())
	assert.Equal(t, "collections", d.AuthzType())
	assert.Equal(t, []string{"name", "owner_uuid"}, d.Searchable(), "duplicates dropped, order kept")
	assert.Equal(t, []string{"manifest_text"}, d.LimitIndexColumns())
	assert.Equal(t, []string{"is_trashed", "manifest_text", "name", "owner_uuid", "properties", "storage_tags", "uuid"}, d.Columns())

	kind, ok := d.Column("properties")
	assert.True(t, ok)
	assert.Equal(t, SerializedHash, kind)
	assert.True(t, kind.Serialized())

	_, ok = d.Column("nope")
	assert.False(t, ok)

	// accessors hand out copies
	s := d.Searchable()
	s[0] = "mutated"
	assert.Equal(t, "name", d.Searchable()[0])
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Spec)
	}{
		{"bad name", func(s *Spec) { s.Name = "Collections" }},
		{"bad table", func(s *Spec) { s.Table = "x; drop table users" }},
		{"bad column", func(s *Spec) { s.Columns["Name"] = "" }},
		{"unknown kind", func(s *Spec) { s.Columns["name"] = "blob" }},
		{"missing id column", func(s *Spec) { delete(s.Columns, "uuid") }},
		{"missing owner column", func(s *Spec) { delete(s.Columns, "owner_uuid") }},
		{"trash column undeclared", func(s *Spec) { s.TrashColumn = "deleted" }},
		{"trash column serialized", func(s *Spec) { s.TrashColumn = "properties" }},
		{"unknown searchable", func(s *Spec) { s.Searchable = []string{"description"} }},
		{"unknown limit column", func(s *Spec) { s.LimitIndexColumns = []string{"blob"} }},
		{"include column undeclared", func(s *Spec) { s.Includes = map[string]string{"group_uuid": "groups"} }},
		{"include column serialized", func(s *Spec) { s.Includes = map[string]string{"properties": "groups"} }},
		{"include target invalid", func(s *Spec) { s.Includes = map[string]string{"owner_uuid": "Groups"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := collectionsSpec()
			tt.modify(&spec)
			_, err := New(spec)
			assert.Error(t, err)
		})
	}
}

func TestMustNewPanics(t *testing.T) {
	assert.Panics(t, func() { MustNew(Spec{Name: "x"}) })
}

func TestRegistry(t *testing.T) {
	a := MustNew(collectionsSpec())
	b := MustNew(Spec{Name: "groups", Columns: map[string]string{"uuid": "", "owner_uuid": ""}})

	r, err := NewRegistry(a, b)
	require.NoError(t, err)

	assert.Equal(t, []string{"collections", "groups"}, r.Names())
	got, ok := r.Lookup("groups")
	assert.True(t, ok)
	assert.Same(t, b, got)
	_, ok = r.Lookup("users")
	assert.False(t, ok)

	_, err = NewRegistry(a, a)
	assert.Error(t, err)

	c := MustNew(Spec{Name: "logs", Schema: "audit", Columns: map[string]string{"uuid": "", "owner_uuid": ""}})
	r, err = NewRegistry(a, b, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"audit", "public"}, r.Schemas())
}

func TestRegistryIncludes(t *testing.T) {
	spec := collectionsSpec()
	spec.Includes = map[string]string{"owner_uuid": "groups"}
	a := MustNew(spec)
	b := MustNew(Spec{Name: "groups", Columns: map[string]string{"uuid": "", "owner_uuid": ""}})

	target, ok := a.Include("owner_uuid")
	assert.True(t, ok)
	assert.Equal(t, "groups", target)
	_, ok = a.Include("name")
	assert.False(t, ok)

	_, err := NewRegistry(a, b)
	assert.NoError(t, err)

	_, err = NewRegistry(a)
	assert.ErrorContains(t, err, `references unknown resource "groups"`)
}

func TestRegistryVerify(t *testing.T) {
	r, err := NewRegistry(MustNew(collectionsSpec()))
	require.NoError(t, err)

	table := schema.Table{
		Schema: "public",
		Name:   "collections",
		Type:   schema.TypeTable,
		Columns: []schema.Column{
			{Name: "uuid", DataType: "character varying(255)"},
			{Name: "owner_uuid", DataType: "character varying(255)"},
			{Name: "name", DataType: "text"},
			{Name: "is_trashed", DataType: "boolean"},
			{Name: "properties", DataType: "jsonb"},
			{Name: "storage_tags", DataType: "jsonb"},
			{Name: "manifest_text", DataType: "text"},
		},
	}

	t.Run("matching catalog", func(t *testing.T) {
		assert.NoError(t, r.Verify(map[string]schema.Table{"public.collections": table}))
	})

	t.Run("missing relation", func(t *testing.T) {
		err := r.Verify(map[string]schema.Table{})
		assert.ErrorContains(t, err, "relation public.collections not found")
	})

	t.Run("missing column and wrong type", func(t *testing.T) {
		broken := table
		broken.Columns = append([]schema.Column(nil), table.Columns[:4]...)
		broken.Columns = append(broken.Columns,
			schema.Column{Name: "properties", DataType: "text"},
			schema.Column{Name: "manifest_text", DataType: "text"},
		)
		err := r.Verify(map[string]schema.Table{"public.collections": broken})
		assert.ErrorContains(t, err, "column public.collections.storage_tags not found")
		assert.ErrorContains(t, err, "column properties is declared hash but has type text")
	})
}

const descriptorYAML = `
resources:
  - name: collections
    kind: arvados#collection
    trashColumn: is_trashed
    columns:
      uuid: ""
      owner_uuid: ""
      name: ""
      is_trashed: ""
      properties: hash
    searchable: [name, owner_uuid]
  - name: groups
    kind: arvados#group
    columns:
      uuid: ""
      owner_uuid: ""
      name: ""
`

func TestParse(t *testing.T) {
	r, err := Parse([]byte(descriptorYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"collections", "groups"}, r.Names())

	d, _ := r.Lookup("collections")
	assert.Equal(t, "is_trashed", d.TrashColumn())
	kind, _ := d.Column("properties")
	assert.Equal(t, SerializedHash, kind)

	_, err = Parse([]byte("resources:\n  - name: x\n    colums: {}\n"))
	assert.Error(t, err, "unknown fields are rejected")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(descriptorYAML), 0o600))

	r, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, r.Names(), 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
