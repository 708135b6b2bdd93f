package engine

import (
	"context"
	"sort"

	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/metadata"
	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/query"
)

// relatedPrimaryKeys extracts the primary keys of every tracked entity
// currently held in a many-to-many relation field, sorted for a stable
// snapshot comparison. Untracked targets (no primary key yet) are skipped;
// they haven't been inserted, so there is nothing yet to link.
func (e *Engine) relatedPrimaryKeys(value interface{}) []interface{} {
	var keys []interface{}
	for _, t := range toEntitySlice(value) {
		if state, tracked := e.identityMap.GetState(t); tracked && state.PrimaryKey != nil {
			keys = append(keys, state.PrimaryKey)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return stableKey(keys[i]) < stableKey(keys[j])
	})
	return keys
}

// hasManyToManyDelta reports whether entity's current many-to-many field
// values differ from what was recorded at snapshot time.
func (e *Engine) hasManyToManyDelta(entity Entity, meta *metadata.EntityMetadata, adapter EntityAdapter, state *EntityState) bool {
	for field, rel := range meta.Relations {
		if rel.Kind != metadata.ManyToMany {
			continue
		}
		added, removed := e.diffManyToMany(entity, field, rel, adapter, state)
		if len(added) > 0 || len(removed) > 0 {
			return true
		}
	}
	return false
}

// diffManyToMany compares entity's current collection for field against
// its snapshot, returning the primary keys that must be linked and
// unlinked.
func (e *Engine) diffManyToMany(entity Entity, field string, rel metadata.RelationInfo, adapter EntityAdapter, state *EntityState) (added, removed []interface{}) {
	value, ok := adapter.Get(entity, field)
	if !ok || value == nil {
		value = []Entity{}
	}
	current := e.relatedPrimaryKeys(value)

	var before []interface{}
	if raw, ok := state.Snapshot[m2mSnapshotKey(field)]; ok {
		before, _ = raw.([]interface{})
	}

	beforeSet := make(map[string]interface{}, len(before))
	for _, k := range before {
		beforeSet[stableKey(k)] = k
	}
	currentSet := make(map[string]interface{}, len(current))
	for _, k := range current {
		currentSet[stableKey(k)] = k
	}

	for k, v := range currentSet {
		if _, ok := beforeSet[k]; !ok {
			added = append(added, v)
		}
	}
	for k, v := range beforeSet {
		if _, ok := currentSet[k]; !ok {
			removed = append(removed, v)
		}
	}
	return added, removed
}

// flushLinkOps runs step 10 of the protocol: for every managed entity's
// owning many-to-many relations, diff the current collection against its
// snapshot and emit DELETEs then INSERTs against the link table for
// exactly the rows that changed.
func (e *Engine) flushLinkOps(ctx context.Context) error {
	for _, entity := range e.identityMap.All() {
		state, _ := e.identityMap.GetState(entity)
		if state.Lifecycle != StateManaged || state.PrimaryKey == nil {
			continue
		}
		meta, err := e.registry.Get(state.Class)
		if err != nil {
			return err
		}
		adapter := e.adapters[state.Class]

		for _, field := range meta.RelationOrder() {
			rel := meta.Relations[field]
			if rel.Kind != metadata.ManyToMany {
				continue
			}

			added, removed := e.diffManyToMany(entity, field, rel, adapter, state)
			if len(added) == 0 && len(removed) == 0 {
				continue
			}

			if err := e.applyLinkDiff(ctx, rel, state.PrimaryKey, added, removed); err != nil {
				return err
			}

			value, _ := adapter.Get(entity, field)
			state.Snapshot[m2mSnapshotKey(field)] = e.relatedPrimaryKeys(value)
		}
	}
	return nil
}

// applyLinkDiff deletes unlinked rows then inserts newly linked rows
// against rel's link table, in that order (spec: "emit DELETEs then
// INSERTs against the link table").
func (e *Engine) applyLinkDiff(ctx context.Context, rel metadata.RelationInfo, ownerID interface{}, added, removed []interface{}) error {
	if len(removed) > 0 {
		del := query.NewDelete(e.qdb).From(rel.LinkTable).
			Where(rel.JoinColumn, ownerID, query.EQ, query.And).
			Where(rel.InverseJoinCol, removed, query.In, query.And)

		e.logger.SQL("unlink", rel.LinkTable, nil)
		if _, err := del.Execute(ctx); err != nil {
			return mapDatabaseError(err, rel.TargetEntity, "unlink", nil)
		}
	}

	if len(added) > 0 {
		rows := make([]map[string]interface{}, len(added))
		for i, v := range added {
			rows[i] = map[string]interface{}{
				rel.JoinColumn:     ownerID,
				rel.InverseJoinCol: v,
			}
		}
		ins := query.NewInsert(e.qdb).Into(rel.LinkTable).BatchValues(rows)

		e.logger.SQL("link", rel.LinkTable, nil)
		if _, err := ins.Execute(ctx); err != nil {
			return mapDatabaseError(err, rel.TargetEntity, "link", nil)
		}
	}

	return nil
}
