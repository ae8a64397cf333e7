package query

import (
	"github.com/edgeflare/pglist/pkg/resource"
)

func testDescriptor() *resource.Descriptor {
	return resource.MustNew(resource.Spec{
		Name:        "collections",
		Kind:        "arvados#collection",
		TrashColumn: "is_trashed",
		Columns: map[string]string{
			"uuid":          "",
			"owner_uuid":    "",
			"name":          "",
			"description":   "",
			"file_count":    "",
			"is_trashed":    "",
			"manifest_text": "",
			"properties":    "hash",
			"storage_tags":  "array",
		},
		Searchable:        []string{"name", "description", "owner_uuid", "properties"},
		LimitIndexColumns: []string{"manifest_text", "properties"},
	})
}

func ownerOnlyDescriptor() *resource.Descriptor {
	return resource.MustNew(resource.Spec{
		Name:       "links",
		Columns:    map[string]string{"uuid": "", "owner_uuid": ""},
		Searchable: []string{"owner_uuid"},
	})
}

// render is a helper returning the SQL and bound values of a predicate.
func render(p Predicate) (string, []any) {
	var args Args
	sql := p.SQL(&args)
	return sql, args.Values()
}
