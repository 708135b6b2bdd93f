package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/metadata"
)

// GenerateDDL renders CREATE TABLE statements for every class in classes
// (or, if classes is empty, every entity the registry knows about), trimmed
// from the teacher's full migration-apply flow
// (cmd/chameleon/migrate.go's GenerateMigration call) down to a pure
// preview: no diffing against a previous version, no vault registration, no
// execution against the database -- applying and tracking schema changes is
// out of scope here.
func GenerateDDL(registry metadata.Registry, classes []string) (string, error) {
	if len(classes) == 0 {
		classes = registry.Names()
	}
	if len(classes) == 0 {
		return "", &MetadataError{Message: "no entities registered; nothing to generate"}
	}

	var out strings.Builder
	linkTables := make(map[string]string)

	for _, class := range classes {
		meta, err := registry.Get(class)
		if err != nil {
			return "", err
		}
		out.WriteString(tableDDL(registry, meta))
		out.WriteString("\n")

		for _, field := range meta.RelationOrder() {
			rel := meta.Relations[field]
			if rel.Kind != metadata.ManyToMany || rel.LinkTable == "" {
				continue
			}
			if _, seen := linkTables[rel.LinkTable]; seen {
				continue
			}
			linkTables[rel.LinkTable] = linkTableDDL(registry, meta, rel)
		}
	}

	if len(linkTables) > 0 {
		names := make([]string, 0, len(linkTables))
		for name := range linkTables {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			out.WriteString(linkTables[name])
			out.WriteString("\n")
		}
	}

	return out.String(), nil
}

// tableDDL renders one entity's CREATE TABLE, including its BelongsTo
// foreign keys inline (spec's expectation, per the teacher's migration
// test, that a FOREIGN KEY clause names the owning column and target
// table/column directly).
func tableDDL(registry metadata.Registry, meta *metadata.EntityMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", meta.Table)

	var lines []string
	for _, field := range meta.ColumnOrder() {
		col := meta.Columns[field]
		lines = append(lines, "    "+columnDDL(field, col, meta.IDField))
	}
	for _, field := range meta.RelationOrder() {
		rel := meta.Relations[field]
		if rel.Kind != metadata.BelongsTo {
			continue
		}
		null := "NOT NULL"
		if rel.Nullable {
			null = "NULL"
		}
		lines = append(lines, fmt.Sprintf("    %s uuid %s", rel.FKColumn, null))
		targetTable, targetIDCol := targetTableAndIDColumn(registry, rel.TargetEntity)
		lines = append(lines, fmt.Sprintf("    FOREIGN KEY (%s) REFERENCES %s(%s)", rel.FKColumn, targetTable, targetIDCol))
	}

	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n);\n")
	return b.String()
}

// targetTableAndIDColumn resolves a relation's target entity to its table
// name and primary-key column, falling back to the default naming
// convention and "id" when the target isn't registered (e.g. generating
// DDL for a single entity whose relations aren't all loaded).
func targetTableAndIDColumn(registry metadata.Registry, targetEntity string) (string, string) {
	if meta, err := registry.Get(targetEntity); err == nil {
		idCol := "id"
		if col, ok := meta.Columns[meta.IDField]; ok {
			idCol = col.Column
		}
		return meta.Table, idCol
	}
	return metadata.EntityToTableName(targetEntity), "id"
}

func columnDDL(field string, col metadata.ColumnInfo, idField string) string {
	var parts []string
	parts = append(parts, col.Column, sqlTypeOf(col))
	if field == idField {
		parts = append(parts, "PRIMARY KEY")
	} else if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	return strings.Join(parts, " ")
}

func sqlTypeOf(col metadata.ColumnInfo) string {
	if col.SQLType != "" {
		return col.SQLType
	}
	return "text"
}

// linkTableDDL renders the join table for one owning ManyToMany relation:
// two FK columns, a composite primary key, spec §3's association-table
// shape.
func linkTableDDL(registry metadata.Registry, owner *metadata.EntityMetadata, rel metadata.RelationInfo) string {
	targetTable, targetIDCol := targetTableAndIDColumn(registry, rel.TargetEntity)
	ownerIDCol := "id"
	if col, ok := owner.Columns[owner.IDField]; ok {
		ownerIDCol = col.Column
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", rel.LinkTable)
	fmt.Fprintf(&b, "    %s uuid NOT NULL,\n", rel.JoinColumn)
	fmt.Fprintf(&b, "    %s uuid NOT NULL,\n", rel.InverseJoinCol)
	fmt.Fprintf(&b, "    PRIMARY KEY (%s, %s),\n", rel.JoinColumn, rel.InverseJoinCol)
	fmt.Fprintf(&b, "    FOREIGN KEY (%s) REFERENCES %s(%s),\n", rel.JoinColumn, owner.Table, ownerIDCol)
	fmt.Fprintf(&b, "    FOREIGN KEY (%s) REFERENCES %s(%s)\n", rel.InverseJoinCol, targetTable, targetIDCol)
	b.WriteString(");\n")
	return b.String()
}
