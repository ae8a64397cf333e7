package resource

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// File is the on-disk layout of a descriptor file:
//
//	resources:
//	  - name: collections
//	    kind: arvados#collection
//	    trashColumn: is_trashed
//	    columns:
//	      uuid: ""
//	      owner_uuid: ""
//	      name: ""
//	      properties: hash
//	    searchable: [name, owner_uuid]
//	    limitIndexColumns: [manifest_text]
type File struct {
	Resources []Spec `json:"resources"`
}

// Parse builds a Registry from YAML (or JSON) descriptor data.
func Parse(data []byte) (*Registry, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("resource: parse descriptors: %w", err)
	}

	ds := make([]*Descriptor, 0, len(f.Resources))
	for _, spec := range f.Resources {
		d, err := New(spec)
		if err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	return NewRegistry(ds...)
}

// LoadFile reads and parses a descriptor file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resource: %w", err)
	}
	return Parse(data)
}
