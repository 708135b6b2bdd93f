package engine

import (
	"context"
	"sort"

	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/metadata"
	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/query"
)

// pendingEntity bundles the lookups every flush phase needs repeatedly so
// they're computed once per pass instead of once per step.
type pendingEntity struct {
	entity  Entity
	class   string
	meta    *metadata.EntityMetadata
	adapter EntityAdapter
	state   *EntityState
}

// deferredFK records a BelongsTo field whose target could not be resolved
// at insert time because the two entities form a dependency cycle; its
// owner is inserted with the column NULL and fixed up by a follow-up
// UPDATE once every member of the cycle has a primary key.
type deferredFK struct {
	entity Entity
	meta   *metadata.EntityMetadata
	field  string
	rel    metadata.RelationInfo
}

// Flush runs the flush protocol: compute pending work, order and emit
// inserts, dispatch listeners, emit updates, reconcile many-to-many link
// tables, emit deletions, and finally dispatch postFlush. The whole
// protocol runs inside one transaction; nested Flush calls (from a
// listener) reuse the already-open transaction instead of opening a
// second one.
func (e *Engine) Flush(ctx context.Context) error {
	topLevel := !e.db.InTransaction()
	if topLevel {
		if err := e.db.BeginTx(ctx); err != nil {
			return err
		}
	}

	err := e.runProtocolWithPostFlush(ctx)

	if !topLevel {
		return err
	}
	if err != nil {
		_ = e.db.Rollback(ctx)
		return err
	}
	return e.db.Commit(ctx)
}

// runProtocolWithPostFlush runs the numbered protocol, dispatches
// postFlush, and repeats while postFlush listeners scheduled new work,
// bounded by maxFlushIterations (step 14's re-entrancy rule).
func (e *Engine) runProtocolWithPostFlush(ctx context.Context) error {
	for iteration := 0; iteration < e.maxFlushIterations; iteration++ {
		if err := e.runFlushPass(ctx); err != nil {
			return err
		}

		if err := e.dispatcher.dispatch(Event{Kind: EventPostFlush, Engine: e}); err != nil {
			return err
		}
		e.logger.Event(string(EventPostFlush), "*")

		if !e.hasPendingWork() {
			return nil
		}
	}
	return nil
}

// hasPendingWork reports whether any tracked entity still needs a flush
// pass: queued for insert, queued for removal, or dirty relative to its
// snapshot.
func (e *Engine) hasPendingWork() bool {
	for _, entity := range e.identityMap.All() {
		state, _ := e.identityMap.GetState(entity)
		switch state.Lifecycle {
		case StateNew, StateRemoved:
			return true
		case StateManaged:
			meta, err := e.registry.Get(state.Class)
			if err != nil {
				continue
			}
			adapter := e.adapters[state.Class]
			if !e.detectChanges(entity, meta, state, adapter).IsEmpty() {
				return true
			}
			if e.hasManyToManyDelta(entity, meta, adapter, state) {
				return true
			}
		}
	}
	return false
}

// runFlushPass executes one pass of steps 1-13: classify, order and emit
// inserts, compute deferred FK updates, emit updates, reconcile
// many-to-many link tables, and emit deletions.
func (e *Engine) runFlushPass(ctx context.Context) error {
	var news, dirties, removes []pendingEntity

	for _, entity := range e.identityMap.All() {
		state, _ := e.identityMap.GetState(entity)
		meta, err := e.registry.Get(state.Class)
		if err != nil {
			return err
		}
		adapter := e.adapters[state.Class]
		pe := pendingEntity{entity: entity, class: state.Class, meta: meta, adapter: adapter, state: state}

		switch state.Lifecycle {
		case StateNew:
			news = append(news, pe)
		case StateRemoved:
			removes = append(removes, pe)
		case StateManaged:
			if !e.detectChanges(entity, meta, state, adapter).IsEmpty() {
				dirties = append(dirties, pe)
			}
		}
	}

	var deferred []deferredFK
	if len(news) > 0 {
		var err error
		deferred, err = e.flushInserts(ctx, news)
		if err != nil {
			return err
		}
	}

	if err := e.flushUpdates(ctx, dirties, deferred); err != nil {
		return err
	}

	if err := e.flushLinkOps(ctx); err != nil {
		return err
	}

	if len(removes) > 0 {
		if err := e.flushRemoves(ctx, removes); err != nil {
			return err
		}
	}

	return nil
}

// orderInserts builds an insertion order over news using the dependency
// manager, deferring one nullable BelongsTo FK per unresolvable cycle
// instead of failing outright (spec's "if a cycle requires it, mark one FK
// for deferred update").
func (e *Engine) orderInserts(news []pendingEntity) ([]pendingEntity, []deferredFK, error) {
	byEntity := make(map[Entity]pendingEntity, len(news))
	for _, pe := range news {
		byEntity[pe.entity] = pe
	}
	deferredSet := make(map[Entity]map[string]bool)

	sequenceOf := func(x Entity) (string, uint64) {
		st, _ := e.identityMap.GetState(x)
		return st.Class, st.sequence
	}

	for attempt := 0; attempt <= len(news); attempt++ {
		dm := newDependencyManager()
		for _, pe := range news {
			dm.addNode(pe.entity)
		}
		for _, pe := range news {
			for _, field := range pe.meta.RelationOrder() {
				rel := pe.meta.Relations[field]
				if rel.Kind != metadata.BelongsTo || deferredSet[pe.entity][field] {
					continue
				}
				val, ok := pe.adapter.Get(pe.entity, field)
				if !ok || val == nil {
					continue
				}
				target, ok := val.(Entity)
				if !ok || target == pe.entity {
					continue
				}
				if _, isNew := byEntity[target]; isNew {
					dm.addEdge(pe.entity, target)
				}
			}
		}

		ordered, cyclic := dm.order(sequenceOf)
		if len(cyclic) == 0 {
			orderedPE := make([]pendingEntity, len(ordered))
			for i, ent := range ordered {
				orderedPE[i] = byEntity[ent]
			}
			var deferred []deferredFK
			for ent, fields := range deferredSet {
				pe := byEntity[ent]
				for field := range fields {
					deferred = append(deferred, deferredFK{entity: ent, meta: pe.meta, field: field, rel: pe.meta.Relations[field]})
				}
			}
			sort.Slice(deferred, func(i, j int) bool {
				si, _ := sequenceOf(deferred[i].entity)
				sj, _ := sequenceOf(deferred[j].entity)
				return si+deferred[i].field < sj+deferred[j].field
			})
			return orderedPE, deferred, nil
		}

		cycleSet := make(map[Entity]bool, len(cyclic))
		for _, c := range cyclic {
			cycleSet[c] = true
		}

		broken := false
		for _, c := range cyclic {
			pe := byEntity[c]
			for _, field := range pe.meta.RelationOrder() {
				rel := pe.meta.Relations[field]
				if rel.Kind != metadata.BelongsTo || !rel.Nullable || deferredSet[c][field] {
					continue
				}
				val, ok := pe.adapter.Get(c, field)
				if !ok || val == nil {
					continue
				}
				target, ok := val.(Entity)
				if !ok || !cycleSet[target] {
					continue
				}
				if deferredSet[c] == nil {
					deferredSet[c] = make(map[string]bool)
				}
				deferredSet[c][field] = true
				broken = true
				break
			}
			if broken {
				break
			}
		}

		if !broken {
			names := make([]string, 0, len(cyclic))
			for _, c := range cyclic {
				names = append(names, byEntity[c].meta.Name)
			}
			return nil, nil, &CycleBreakError{Entities: names}
		}
	}

	return nil, nil, &CycleBreakError{Entities: []string{"dependency resolution did not converge"}}
}

// flushInserts runs steps 2-5 of the protocol: order, dispatch prePersist,
// emit INSERTs, dispatch postPersist. Returns the FK fields that were
// deferred because of an unresolvable insertion cycle.
func (e *Engine) flushInserts(ctx context.Context, news []pendingEntity) ([]deferredFK, error) {
	for _, pe := range news {
		if err := e.assignPrimaryKeyIfNeeded(pe.entity, pe.meta, pe.adapter); err != nil {
			return nil, err
		}
	}

	ordered, deferred, err := e.orderInserts(news)
	if err != nil {
		return nil, err
	}

	deferredByEntity := make(map[Entity]map[string]bool)
	for _, d := range deferred {
		if deferredByEntity[d.entity] == nil {
			deferredByEntity[d.entity] = make(map[string]bool)
		}
		deferredByEntity[d.entity][d.field] = true
	}

	for _, pe := range ordered {
		if err := e.dispatcher.dispatch(Event{Kind: EventPrePersist, Entity: pe.entity, Engine: e}); err != nil {
			return nil, err
		}
	}

	for _, pe := range ordered {
		values := e.buildInsertValues(pe, deferredByEntity[pe.entity])
		idCol := e.columnFor(pe.meta, pe.meta.IDField)

		ins := query.NewInsert(e.qdb).Into(pe.meta.Table)
		for col, v := range values {
			ins.Set(col, v)
		}
		ins.Returning(idCol)

		e.logger.SQL("insert:"+pe.class, pe.meta.Table, nil)
		row, err := ins.FetchOne(ctx)
		if err != nil {
			return nil, mapDatabaseError(err, pe.class, "insert", values)
		}

		newID := row[idCol]
		if err := pe.adapter.Set(pe.entity, pe.meta.IDField, newID); err != nil {
			return nil, err
		}
		e.identityMap.UpdateID(pe.entity, newID)
		pe.state.PrimaryKey = newID
		pe.state.Lifecycle = StateManaged
		pe.state.Snapshot = e.captureSnapshot(pe.entity, pe.meta, pe.adapter)
	}

	for _, pe := range ordered {
		if err := e.dispatcher.dispatch(Event{Kind: EventPostPersist, Entity: pe.entity, Engine: e}); err != nil {
			return nil, err
		}
	}

	return deferred, nil
}

// buildInsertValues maps entity's current field values onto column names
// for an INSERT, binding BelongsTo FKs to their target's primary key (or
// NULL when deferred).
func (e *Engine) buildInsertValues(pe pendingEntity, deferredFields map[string]bool) map[string]interface{} {
	values := make(map[string]interface{})

	for _, field := range pe.meta.ColumnOrder() {
		col := pe.meta.Columns[field]
		if field == pe.meta.IDField && col.AutoIncrement {
			continue
		}
		v, _ := pe.adapter.Get(pe.entity, field)
		values[col.Column] = v
	}

	for _, field := range pe.meta.RelationOrder() {
		rel := pe.meta.Relations[field]
		if rel.Kind != metadata.BelongsTo {
			continue
		}
		if deferredFields[field] {
			values[rel.FKColumn] = nil
			continue
		}
		val, ok := pe.adapter.Get(pe.entity, field)
		if !ok || val == nil {
			continue
		}
		target, ok := val.(Entity)
		if !ok {
			continue
		}
		if targetState, tracked := e.identityMap.GetState(target); tracked {
			values[rel.FKColumn] = targetState.PrimaryKey
		}
	}

	return values
}

// flushUpdates runs steps 6-9: merge deferred FK fixups into the dirty
// set, dispatch preUpdate, emit UPDATEs, dispatch postUpdate.
func (e *Engine) flushUpdates(ctx context.Context, dirties []pendingEntity, deferred []deferredFK) error {
	dirtyByEntity := make(map[Entity]pendingEntity, len(dirties))
	for _, pe := range dirties {
		dirtyByEntity[pe.entity] = pe
	}
	extraChanges := make(map[Entity]ChangeSet)

	for _, d := range deferred {
		state, tracked := e.identityMap.GetState(d.entity)
		if !tracked {
			continue
		}

		if _, exists := dirtyByEntity[d.entity]; !exists {
			adapter := e.adapters[d.meta.Name]
			dirtyByEntity[d.entity] = pendingEntity{entity: d.entity, class: d.meta.Name, meta: d.meta, adapter: adapter, state: state}
		}
		extraChanges[d.entity] = append(extraChanges[d.entity], FieldChange{Field: d.field})
	}

	ordered := make([]pendingEntity, 0, len(dirtyByEntity))
	for _, pe := range dirtyByEntity {
		ordered = append(ordered, pe)
	}
	sortPendingByConstructionOrder(ordered)

	for _, pe := range ordered {
		changes := e.detectChanges(pe.entity, pe.meta, pe.state, pe.adapter)
		changes = append(changes, extraChanges[pe.entity]...)

		if err := e.dispatcher.dispatch(Event{Kind: EventPreUpdate, Entity: pe.entity, Engine: e, Changes: changes}); err != nil {
			return err
		}

		// Recompute after the listener: it may have mutated fields (spec
		// step 7, "ChangeSet is recomputed after the listener runs").
		changes = e.detectChanges(pe.entity, pe.meta, pe.state, pe.adapter)
		for _, d := range deferred {
			if d.entity != pe.entity {
				continue
			}
			targetVal, ok := pe.adapter.Get(pe.entity, d.field)
			if !ok || targetVal == nil {
				continue
			}
			target, ok := targetVal.(Entity)
			if !ok {
				continue
			}
			targetState, tracked := e.identityMap.GetState(target)
			if !tracked || targetState.PrimaryKey == nil {
				continue
			}
			changes = append(changes, FieldChange{Field: d.field, New: targetState.PrimaryKey})
		}

		if len(changes) == 0 {
			continue
		}

		if err := e.emitUpdate(ctx, pe, changes); err != nil {
			return err
		}

		if err := e.dispatcher.dispatch(Event{Kind: EventPostUpdate, Entity: pe.entity, Engine: e, Changes: changes}); err != nil {
			return err
		}

		pe.state.Snapshot = e.captureSnapshot(pe.entity, pe.meta, pe.adapter)
	}

	return nil
}

func sortPendingByConstructionOrder(pending []pendingEntity) {
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].class != pending[j].class {
			return pending[i].class < pending[j].class
		}
		return pending[i].state.sequence < pending[j].state.sequence
	})
}

// emitUpdate issues one UPDATE touching only the columns named in changes.
func (e *Engine) emitUpdate(ctx context.Context, pe pendingEntity, changes ChangeSet) error {
	upd := query.NewUpdate(e.qdb).Table(pe.meta.Table)
	touched := make(map[string]interface{})

	for _, c := range changes {
		if rel, isRel := pe.meta.Relations[c.Field]; isRel {
			if rel.Kind != metadata.BelongsTo {
				continue
			}
			val, _ := pe.adapter.Get(pe.entity, c.Field)
			if target, ok := val.(Entity); ok {
				if targetState, tracked := e.identityMap.GetState(target); tracked {
					touched[rel.FKColumn] = targetState.PrimaryKey
				}
			}
			continue
		}
		col := e.columnFor(pe.meta, c.Field)
		v, _ := pe.adapter.Get(pe.entity, c.Field)
		touched[col] = v
	}

	if len(touched) == 0 {
		return nil
	}
	for col, v := range touched {
		upd.Set(col, v)
	}
	upd.Where(e.columnFor(pe.meta, pe.meta.IDField), pe.state.PrimaryKey, query.EQ, query.And)

	e.logger.SQL("update:"+pe.class, pe.meta.Table, nil)
	if _, err := upd.Execute(ctx); err != nil {
		return mapDatabaseError(err, pe.class, "update", touched)
	}
	return nil
}

// flushRemoves runs steps 11-13: dispatch preRemove, order and emit
// deletions in reverse dependency order, dispatch postRemove.
func (e *Engine) flushRemoves(ctx context.Context, removes []pendingEntity) error {
	for _, pe := range removes {
		if err := e.dispatcher.dispatch(Event{Kind: EventPreRemove, Entity: pe.entity, Engine: e}); err != nil {
			return err
		}
	}

	ordered, err := e.orderDeletes(removes)
	if err != nil {
		return err
	}

	for _, pe := range ordered {
		del := query.NewDelete(e.qdb).From(pe.meta.Table).
			Where(e.columnFor(pe.meta, pe.meta.IDField), pe.state.PrimaryKey, query.EQ, query.And)

		e.logger.SQL("delete:"+pe.class, pe.meta.Table, nil)
		if _, err := del.Execute(ctx); err != nil {
			return mapDatabaseError(err, pe.class, "delete", nil)
		}
	}

	for _, pe := range ordered {
		if err := e.dispatcher.dispatch(Event{Kind: EventPostRemove, Entity: pe.entity, Engine: e}); err != nil {
			return err
		}
		e.identityMap.Remove(pe.entity)
	}

	return nil
}

// orderDeletes runs the dependency manager over the removal set and
// reverses the result, since a row must be deleted before whatever it
// depends on (spec: "deletion order is the reverse of the insertion
// topology").
func (e *Engine) orderDeletes(removes []pendingEntity) ([]pendingEntity, error) {
	byEntity := make(map[Entity]pendingEntity, len(removes))
	dm := newDependencyManager()
	for _, pe := range removes {
		dm.addNode(pe.entity)
		byEntity[pe.entity] = pe
	}
	for _, pe := range removes {
		for _, field := range pe.meta.RelationOrder() {
			rel := pe.meta.Relations[field]
			if rel.Kind != metadata.BelongsTo {
				continue
			}
			val, ok := pe.adapter.Get(pe.entity, field)
			if !ok || val == nil {
				continue
			}
			target, ok := val.(Entity)
			if !ok {
				continue
			}
			if _, isAlsoRemoved := byEntity[target]; isAlsoRemoved {
				dm.addEdge(pe.entity, target)
			}
		}
	}

	sequenceOf := func(x Entity) (string, uint64) {
		st, _ := e.identityMap.GetState(x)
		return st.Class, st.sequence
	}
	ordered, cyclic := dm.order(sequenceOf)
	ordered = append(ordered, cyclic...) // deletes never fail to order; a leftover cycle deletes in tie-break order

	out := make([]pendingEntity, len(ordered))
	for i := 0; i < len(ordered); i++ {
		out[i] = byEntity[ordered[len(ordered)-1-i]]
	}
	return out, nil
}
