// Package metadata describes the read-only entity/table mapping the
// persistence engine consumes. The engine never loads metadata itself;
// it is handed a Registry built by one of the adapters in this package
// (or a caller-supplied one).
package metadata

import "sort"

// RelationKind identifies the shape of an association between two entities.
type RelationKind string

const (
	HasOne     RelationKind = "HasOne"
	HasMany    RelationKind = "HasMany"
	BelongsTo  RelationKind = "BelongsTo"
	ManyToMany RelationKind = "ManyToMany"
)

// ColumnInfo describes a single mapped scalar column.
type ColumnInfo struct {
	Column        string
	SQLType       string
	Nullable      bool
	AutoIncrement bool
}

// RelationInfo describes one association field on an entity.
//
// Field meaning depends on Kind:
//
//	BelongsTo (many-to-one / owning one-to-one): FKColumn is set on this entity's table.
//	HasOne (inverse one-to-one): MappedByField names the owning field on TargetEntity.
//	HasMany (inverse one-to-many): MappedByField names the owning field on TargetEntity.
//	ManyToMany (owning side): LinkTable/JoinColumn/InverseJoinCol are set.
type RelationInfo struct {
	Field          string
	Kind           RelationKind
	TargetEntity   string
	FKColumn       string
	Nullable       bool
	MappedByField  string
	LinkTable      string
	JoinColumn     string
	InverseJoinCol string
	InverseOfField string

	// CascadePersist/CascadeRemove mark this relation as one whose target(s)
	// follow the owner into persist/remove (spec §4.5's "for any reachable
	// related entity marked with cascade-persist/cascade-remove semantics").
	CascadePersist bool
	CascadeRemove  bool
}

// EntityMetadata is the per-class description the engine needs to emit DML
// and detect changes: table name, primary key field, column mapping and
// relation descriptors.
type EntityMetadata struct {
	Name      string
	Table     string
	IDField   string
	Columns   map[string]ColumnInfo // Go field name -> column info
	Relations map[string]RelationInfo
}

// ColumnOrder returns column-mapped field names in a stable order, used
// wherever SQL must be generated deterministically (tests rely on this).
func (m *EntityMetadata) ColumnOrder() []string {
	names := make([]string, 0, len(m.Columns))
	for name := range m.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RelationOrder returns relation field names in a stable order.
func (m *EntityMetadata) RelationOrder() []string {
	names := make([]string, 0, len(m.Relations))
	for name := range m.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
