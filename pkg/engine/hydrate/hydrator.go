package hydrate

import (
	"context"
	"fmt"

	"github.com/chameleon-db/chameleondb/chameleon/internal/logging"
	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/metadata"
	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/query"
)

// DefaultMaxDepth bounds how many relation hops a single hydration call
// will follow eagerly, the same depth-guard spec §4.6 describes ("eager
// loading is bounded by a configurable depth, default 3, to avoid
// unbounded graph traversal").
const DefaultMaxDepth = 3

// Hydrator turns query.Row result rows into managed entity instances,
// coalescing duplicates through the identity map and eagerly following
// relations up to MaxDepth (spec §4.6).
type Hydrator struct {
	Registry  metadata.Registry
	DB        query.DB
	Identity  IdentityMap
	Adapters  AdapterLookup
	MaxDepth  int
	Logger    *logging.Logger
}

// New builds a Hydrator with DefaultMaxDepth; set MaxDepth directly on the
// returned value to override it.
func New(registry metadata.Registry, db query.DB, identity IdentityMap, adapters AdapterLookup) *Hydrator {
	return &Hydrator{
		Registry: registry,
		DB:       db,
		Identity: identity,
		Adapters: adapters,
		MaxDepth: DefaultMaxDepth,
	}
}

// HydrateRow converts one result row of class into a managed entity,
// returning the identity-map's canonical instance if one is already
// tracked for this row's primary key (spec §4.6 step 2).
func (h *Hydrator) HydrateRow(ctx context.Context, class string, row query.Row) (Entity, error) {
	return h.hydrateRow(ctx, class, row, 0)
}

// HydrateRows converts every row into a (deduplicated) entity slice,
// preserving row order.
func (h *Hydrator) HydrateRows(ctx context.Context, class string, rows []query.Row) ([]Entity, error) {
	out := make([]Entity, 0, len(rows))
	for _, row := range rows {
		entity, err := h.HydrateRow(ctx, class, row)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

func (h *Hydrator) hydrateRow(ctx context.Context, class string, row query.Row, depth int) (Entity, error) {
	meta, err := h.Registry.Get(class)
	if err != nil {
		return nil, err
	}
	adapter, ok := h.Adapters(class)
	if !ok {
		return nil, fmt.Errorf("hydrate: no adapter registered for class %q", class)
	}

	idCol := h.columnFor(meta, meta.IDField)
	primaryKey, ok := row[idCol]
	if !ok {
		return nil, fmt.Errorf("hydrate: row for %q missing primary key column %q", class, idCol)
	}

	if existing, ok := h.Identity.GetByID(class, primaryKey); ok {
		return existing, nil
	}

	entity := adapter.New()
	snapshot := make(map[string]interface{}, len(meta.Columns))

	for _, field := range meta.ColumnOrder() {
		col := meta.Columns[field].Column
		value, ok := row[col]
		if !ok {
			continue
		}
		if err := adapter.Set(entity, field, value); err != nil {
			return nil, fmt.Errorf("hydrate: setting %s.%s: %w", class, field, err)
		}
		snapshot[field] = value
	}

	// Register as MANAGED before recursing into relations so that a cycle
	// in the relation graph (A belongs_to B belongs_to A) terminates on
	// the identity map's existing-instance check rather than recursing
	// forever.
	canonical, _ := h.Identity.RegisterManaged(entity, class, primaryKey, snapshot)

	if depth >= h.MaxDepth {
		return canonical, nil
	}

	if err := h.loadRelations(ctx, meta, canonical, adapter, row, depth); err != nil {
		return nil, err
	}

	return canonical, nil
}

// loadRelations eagerly populates every relation field on entity, one
// relation at a time, the same sequential eager-load order the teacher's
// mutation builders issue their queries in. The engine introduces no
// concurrency or locking of its own (spec §4.6); the identity map's
// byKey/byIdentity maps are plain, unsynchronized maps and a concurrent
// writer here would race them.
func (h *Hydrator) loadRelations(ctx context.Context, meta *metadata.EntityMetadata, entity Entity, adapter EntityAdapter, row query.Row, depth int) error {
	selfIDField := meta.IDField

	for _, field := range meta.RelationOrder() {
		rel := meta.Relations[field]

		var err error
		switch rel.Kind {
		case metadata.BelongsTo:
			err = h.loadBelongsTo(ctx, entity, adapter, field, rel, row, depth)
		case metadata.HasOne:
			err = h.loadHasOne(ctx, entity, adapter, selfIDField, field, rel, depth)
		case metadata.HasMany:
			err = h.loadHasMany(ctx, entity, adapter, selfIDField, field, rel, depth)
		case metadata.ManyToMany:
			err = h.loadManyToMany(ctx, entity, adapter, selfIDField, field, rel, depth)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// loadBelongsTo resolves the owning side of a relation from the foreign
// key column already present on row, following the identity map or a
// fresh lookup by primary key (spec §4.6, "owning relations are resolved
// by id lookup, never a fresh join").
func (h *Hydrator) loadBelongsTo(ctx context.Context, entity Entity, adapter EntityAdapter, field string, rel metadata.RelationInfo, row query.Row, depth int) error {
	fkValue, ok := row[rel.FKColumn]
	if !ok || fkValue == nil {
		return nil
	}

	target, err := h.findByID(ctx, rel.TargetEntity, fkValue, depth+1)
	if err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	return adapter.Set(entity, field, target)
}

// loadHasOne follows the inverse side of a one-to-one relation: the
// target table carries the foreign key, so it must be queried by it
// rather than read off the current row.
func (h *Hydrator) loadHasOne(ctx context.Context, entity Entity, adapter EntityAdapter, selfIDField, field string, rel metadata.RelationInfo, depth int) error {
	targetMeta, err := h.Registry.Get(rel.TargetEntity)
	if err != nil {
		return err
	}
	ownerCol := h.mappedByColumn(targetMeta, rel.MappedByField)
	return h.queryAndSetOne(ctx, entity, adapter, selfIDField, field, rel.TargetEntity, ownerCol, depth+1)
}

// loadHasMany queries every row on the inverse side whose foreign key
// points back at entity, populating a collection field.
func (h *Hydrator) loadHasMany(ctx context.Context, entity Entity, adapter EntityAdapter, selfIDField, field string, rel metadata.RelationInfo, depth int) error {
	targetMeta, err := h.Registry.Get(rel.TargetEntity)
	if err != nil {
		return err
	}
	ownerCol := h.mappedByColumn(targetMeta, rel.MappedByField)
	return h.queryAndSetMany(ctx, entity, adapter, selfIDField, field, rel.TargetEntity, ownerCol, depth+1)
}

// loadManyToMany joins through the link table to collect the related
// entities on the other side (spec §4.4's many-to-many link-table
// handling, mirrored here for reads instead of flush-time writes).
func (h *Hydrator) loadManyToMany(ctx context.Context, entity Entity, adapter EntityAdapter, selfIDField, field string, rel metadata.RelationInfo, depth int) error {
	ownerID := h.primaryKeyOf(entity, adapter, selfIDField)
	if ownerID == nil {
		return nil
	}

	sel := query.NewSelect(h.DB).
		Select("t.*").
		From(h.targetTable(rel.TargetEntity), "t").
		Join(query.InnerJoin, rel.LinkTable, fmt.Sprintf("t.%s", h.targetIDColumn(rel.TargetEntity)), fmt.Sprintf("link.%s", rel.InverseJoinCol), "link").
		Where(fmt.Sprintf("link.%s", rel.JoinColumn), ownerID, query.EQ, query.And)

	rows, err := sel.FetchAll(ctx)
	if err != nil {
		return err
	}

	related := make([]Entity, 0, len(rows))
	for _, r := range rows {
		child, err := h.hydrateRow(ctx, rel.TargetEntity, r, depth)
		if err != nil {
			return err
		}
		related = append(related, child)
	}
	return adapter.Set(entity, field, related)
}

// findByID loads a single related entity by primary key, consulting the
// identity map first.
func (h *Hydrator) findByID(ctx context.Context, class string, id interface{}, depth int) (Entity, error) {
	if existing, ok := h.Identity.GetByID(class, id); ok {
		return existing, nil
	}
	meta, err := h.Registry.Get(class)
	if err != nil {
		return nil, err
	}
	sel := query.NewSelect(h.DB).Select("*").From(meta.Table).
		Where(h.columnFor(meta, meta.IDField), id, query.EQ, query.And)
	row, found, err := sel.FetchOne(ctx)
	if err != nil || !found {
		return nil, err
	}
	return h.hydrateRow(ctx, class, row, depth)
}

// queryAndSetOne loads at most one related row whose ownerCol equals
// entity's primary key and sets it on field.
func (h *Hydrator) queryAndSetOne(ctx context.Context, entity Entity, adapter EntityAdapter, selfIDField, field, targetClass, ownerCol string, depth int) error {
	ownerID := h.primaryKeyOf(entity, adapter, selfIDField)
	if ownerID == nil {
		return nil
	}
	targetMeta, err := h.Registry.Get(targetClass)
	if err != nil {
		return err
	}
	sel := query.NewSelect(h.DB).Select("*").From(targetMeta.Table).
		Where(ownerCol, ownerID, query.EQ, query.And)
	row, found, err := sel.FetchOne(ctx)
	if err != nil || !found {
		return err
	}
	child, err := h.hydrateRow(ctx, targetClass, row, depth)
	if err != nil {
		return err
	}
	return adapter.Set(entity, field, child)
}

// queryAndSetMany loads every related row whose ownerCol equals entity's
// primary key, ordered by the target's primary key ascending, and sets the
// collection on field.
func (h *Hydrator) queryAndSetMany(ctx context.Context, entity Entity, adapter EntityAdapter, selfIDField, field, targetClass, ownerCol string, depth int) error {
	ownerID := h.primaryKeyOf(entity, adapter, selfIDField)
	if ownerID == nil {
		return adapter.Set(entity, field, []interface{}{})
	}
	targetMeta, err := h.Registry.Get(targetClass)
	if err != nil {
		return err
	}
	sel := query.NewSelect(h.DB).Select("*").From(targetMeta.Table).
		Where(ownerCol, ownerID, query.EQ, query.And).
		OrderBy(h.columnFor(targetMeta, targetMeta.IDField), "ASC")
	rows, err := sel.FetchAll(ctx)
	if err != nil {
		return err
	}
	related := make([]Entity, 0, len(rows))
	for _, row := range rows {
		child, err := h.hydrateRow(ctx, targetClass, row, depth)
		if err != nil {
			return err
		}
		related = append(related, child)
	}
	return adapter.Set(entity, field, related)
}

func (h *Hydrator) columnFor(meta *metadata.EntityMetadata, field string) string {
	if col, ok := meta.Columns[field]; ok {
		return col.Column
	}
	return field
}

func (h *Hydrator) mappedByColumn(targetMeta *metadata.EntityMetadata, mappedByField string) string {
	if rel, ok := targetMeta.Relations[mappedByField]; ok && rel.FKColumn != "" {
		return rel.FKColumn
	}
	return mappedByField
}

func (h *Hydrator) targetTable(class string) string {
	meta, err := h.Registry.Get(class)
	if err != nil {
		return class
	}
	return meta.Table
}

func (h *Hydrator) targetIDColumn(class string) string {
	meta, err := h.Registry.Get(class)
	if err != nil {
		return "id"
	}
	return h.columnFor(meta, meta.IDField)
}

// primaryKeyOf reads entity's primary key field through its adapter.
func (h *Hydrator) primaryKeyOf(entity Entity, adapter EntityAdapter, idField string) interface{} {
	value, ok := adapter.Get(entity, idField)
	if !ok {
		return nil
	}
	return value
}
