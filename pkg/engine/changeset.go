package engine

import (
	"reflect"

	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/metadata"
)

// FieldChange is one field-level diff between an entity's current value
// and its snapshot.
type FieldChange struct {
	Field string
	Old   interface{}
	New   interface{}
}

// ChangeSet is an ordered diff for a single entity (spec §3, §4.2). It is
// a slice rather than a map so iteration order is deterministic, which the
// "same flush twice" testable property depends on.
type ChangeSet []FieldChange

// IsEmpty reports whether the change set carries no diffs — spec §3
// treats an empty change set as "not dirty".
func (cs ChangeSet) IsEmpty() bool {
	return len(cs) == 0
}

// ByField returns the diff for field, if any.
func (cs ChangeSet) ByField(field string) (FieldChange, bool) {
	for _, c := range cs {
		if c.Field == field {
			return c, true
		}
	}
	return FieldChange{}, false
}

// PendingRef is the change-set sentinel for a many-to-one/owning-one-to-one
// field that points at a NEW entity with no primary key yet (spec §4.2).
// The flush orchestrator resolves it once the target entity is inserted.
type PendingRef struct {
	Target Entity
}

// detectChanges compares an entity's current field values against its
// captured snapshot, producing a ChangeSet. Scalar fields use
// reflect.DeepEqual (the gofer ORM's EqualWith idiom,
// other_examples/7653aa66_patrickascher-gofer__orm-snapshot.go.go);
// many-to-one / owning one-to-one fields compare by the referenced
// entity's primary key, substituting PendingRef when the target hasn't
// been assigned one yet.
func (e *Engine) detectChanges(entity Entity, meta *metadata.EntityMetadata, state *EntityState, adapter EntityAdapter) ChangeSet {
	var changes ChangeSet

	for _, field := range meta.ColumnOrder() {
		current, ok := adapter.Get(entity, field)
		if !ok {
			continue
		}

		old, hadSnapshot := state.Snapshot[field]
		if !hadSnapshot {
			// Never captured: the field was uninitialized when the
			// snapshot was taken. Report no change, matching spec §4.2's
			// "never set" rule (avoids a spurious nil -> nil UPDATE).
			continue
		}

		if !reflect.DeepEqual(old, current) {
			changes = append(changes, FieldChange{Field: field, Old: old, New: current})
		}
	}

	for fieldName, rel := range meta.Relations {
		if rel.Kind != metadata.BelongsTo {
			continue // HasOne/HasMany are inverse views, ManyToMany handled separately
		}

		current, ok := adapter.Get(entity, fieldName)
		if !ok || current == nil {
			continue
		}

		var newKey interface{}
		if ref, ok := current.(Entity); ok {
			if refState, tracked := e.identityMap.GetState(ref); tracked && refState.PrimaryKey != nil {
				newKey = refState.PrimaryKey
			} else {
				newKey = PendingRef{Target: ref}
			}
		} else {
			newKey = current
		}

		old := state.Snapshot[fieldName]
		if !reflect.DeepEqual(old, newKey) {
			changes = append(changes, FieldChange{Field: fieldName, Old: old, New: newKey})
		}
	}

	return changes
}

// captureSnapshot builds the field -> value map recorded when an entity
// becomes MANAGED (spec §3's EntityMetadataSnapshot). Relation fields are
// captured as the referenced entity's primary key, never the whole object.
func (e *Engine) captureSnapshot(entity Entity, meta *metadata.EntityMetadata, adapter EntityAdapter) map[string]interface{} {
	snapshot := make(map[string]interface{}, len(meta.Columns)+len(meta.Relations))

	for _, field := range meta.ColumnOrder() {
		if v, ok := adapter.Get(entity, field); ok {
			snapshot[field] = v
		}
	}

	for fieldName, rel := range meta.Relations {
		switch rel.Kind {
		case metadata.BelongsTo:
			v, ok := adapter.Get(entity, fieldName)
			if !ok || v == nil {
				continue
			}
			if ref, ok := v.(Entity); ok {
				if refState, tracked := e.identityMap.GetState(ref); tracked {
					snapshot[fieldName] = refState.PrimaryKey
					continue
				}
			}
			snapshot[fieldName] = v

		case metadata.ManyToMany:
			// Recorded under a namespaced key, never compared by
			// detectChanges: a relation-collection change is reconciled by
			// the link-table diff in linkops.go, not by an entity UPDATE
			// (spec: "pure relation-collection changes do not emit an
			// entity UPDATE").
			v, ok := adapter.Get(entity, fieldName)
			if !ok || v == nil {
				continue
			}
			snapshot[m2mSnapshotKey(fieldName)] = e.relatedPrimaryKeys(v)
		}
	}

	return snapshot
}

// m2mSnapshotKey namespaces a many-to-many relation's snapshot entry so it
// never collides with a column or BelongsTo field name.
func m2mSnapshotKey(field string) string {
	return "__m2m__" + field
}
