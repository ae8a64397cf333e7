// Package schema loads PostgreSQL catalog metadata (tables, views and their
// columns) so that statically declared resource descriptors can be checked
// against the live database at start-up.
package schema

import (
	"context"
	"fmt"

	pg "github.com/edgeflare/pglist/pkg/pgx"
)

type TableType string

const (
	TypeTable            TableType = "TABLE"
	TypeView             TableType = "VIEW"
	TypeMaterializedView TableType = "MATERIALIZED VIEW"
)

type Table struct {
	Schema  string    `json:"schema"`
	Name    string    `json:"name"`
	Type    TableType `json:"type"`
	Columns []Column  `json:"columns"`
}

type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
}

// FullName returns the "schema.name" key tables are indexed by.
func (t Table) FullName() string {
	return t.Schema + "." + t.Name
}

// Column looks up a column by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Load returns the tables, views and materialized views of the given schemas
// keyed by "schema.name".
func Load(ctx context.Context, db pg.Querier, schemas ...string) (map[string]Table, error) {
	if len(schemas) == 0 {
		schemas = []string{"public"}
	}

	tables := make(map[string]Table)
	for _, schema := range schemas {
		if isSystem(schema) {
			continue
		}
		if err := loadSchema(ctx, db, schema, tables); err != nil {
			return nil, fmt.Errorf("load schema %s: %w", schema, err)
		}
	}
	return tables, nil
}

func loadSchema(ctx context.Context, db pg.Querier, schema string, tables map[string]Table) error {
	tableRows, err := db.Query(ctx, `
    SELECT table_schema, table_name, 'TABLE'::text as table_type
        FROM information_schema.tables
        WHERE table_schema = $1 AND table_type = 'BASE TABLE'
        UNION ALL
        SELECT table_schema, table_name, 'VIEW'::text as table_type
        FROM information_schema.views
        WHERE table_schema = $1
        UNION ALL
        SELECT schemaname, matviewname, 'MATERIALIZED VIEW'::text as table_type
        FROM pg_matviews
        WHERE schemaname = $1
        ORDER BY table_schema, table_name`, schema)
	if err != nil {
		return err
	}
	defer tableRows.Close()

	for tableRows.Next() {
		var t Table
		var tableTypeStr string
		if err := tableRows.Scan(&t.Schema, &t.Name, &tableTypeStr); err != nil {
			return err
		}
		t.Type = TableType(tableTypeStr)
		tables[t.FullName()] = t
	}
	if err := tableRows.Err(); err != nil {
		return err
	}

	return loadColumns(ctx, db, schema, tables)
}

// loadColumns reads every column of the schema in one pass. pg_attribute is
// used instead of information_schema.columns so materialized views are
// included.
func loadColumns(ctx context.Context, db pg.Querier, schema string, tables map[string]Table) error {
	rows, err := db.Query(ctx, `
		SELECT c.relname, a.attname, format_type(a.atttypid, a.atttypmod), NOT a.attnotnull
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
			AND c.relkind IN ('r', 'v', 'm', 'p')
			AND a.attnum > 0
			AND NOT a.attisdropped
		ORDER BY c.relname, a.attnum`, schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var relname string
		var col Column
		if err := rows.Scan(&relname, &col.Name, &col.DataType, &col.IsNullable); err != nil {
			return err
		}
		key := schema + "." + relname
		t, ok := tables[key]
		if !ok {
			continue
		}
		t.Columns = append(t.Columns, col)
		tables[key] = t
	}
	return rows.Err()
}

func isSystem(schema string) bool {
	switch schema {
	case "information_schema", "pg_catalog", "pg_toast":
		return true
	default:
		return false
	}
}
