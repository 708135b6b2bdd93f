package engine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/chameleon-db/chameleondb/chameleon/internal/config"
	"github.com/chameleon-db/chameleondb/chameleon/internal/logging"
	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/cache"
	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/hydrate"
	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/metadata"
	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/query"
)

// Engine is the unit-of-work persistence engine: an identity map, a
// dependency manager, a change detector and an event dispatcher wired
// around one database connection. It keeps the teacher's construction
// style -- one struct owning the connector, the metadata registry and a
// debug context -- and replaces the vault-backed migration bootstrap with
// direct construction from a loaded config and an already-built registry.
//
// An Engine is owned by one logical caller at a time; it is not safe for
// concurrent use. Callers needing per-request isolation create one Engine
// per request, each with its own identity map.
type Engine struct {
	registry metadata.Registry
	db       DBHandle
	qdb      queryDB
	hydrator *hydrate.Hydrator

	adapters    map[string]EntityAdapter
	classByType map[reflect.Type]string

	identityMap *IdentityMap
	dispatcher  *Dispatcher
	cache       cache.Cache
	logger      *logging.Logger
	config      *config.Config

	maxFlushIterations int
}

// NewEngine builds an Engine from a loaded configuration, a metadata
// registry and a connected database handle.
func NewEngine(cfg *config.Config, registry metadata.Registry, db DBHandle) (*Engine, error) {
	if registry == nil {
		return nil, &MetadataError{Message: "NewEngine requires a non-nil metadata registry"}
	}
	if db == nil {
		return nil, &MetadataError{Message: "NewEngine requires a non-nil database handle"}
	}
	if cfg == nil {
		cfg = config.Defaults()
	}

	logger := logging.Default()
	logger.Level = logging.ParseLevel(cfg.Engine.DebugLevel)

	maxIter := cfg.Engine.MaxFlushIterations
	if maxIter <= 0 {
		maxIter = 16
	}

	e := &Engine{
		registry:           registry,
		db:                 db,
		qdb:                newQueryDB(db),
		adapters:           make(map[string]EntityAdapter),
		classByType:        make(map[reflect.Type]string),
		identityMap:        NewIdentityMap(),
		dispatcher:         NewDispatcher(),
		cache:              cache.NewInMemory(),
		logger:             logger,
		config:             cfg,
		maxFlushIterations: maxIter,
	}

	e.hydrator = hydrate.New(registry, e.qdb, e.identityMap, e.adapterLookup)
	if cfg.Engine.HydrationDepth > 0 {
		e.hydrator.MaxDepth = cfg.Engine.HydrationDepth
	}
	return e, nil
}

// RegisterEntity associates a class name (matching a metadata.Registry
// entry) with the EntityAdapter that reads and writes its Go struct. The
// adapter's prototype type is indexed so Persist/Remove/Merge can resolve
// an arbitrary entity pointer back to its registered class.
func (e *Engine) RegisterEntity(class string, adapter EntityAdapter) {
	e.adapters[class] = adapter
	e.classByType[reflect.TypeOf(adapter.New())] = class
}

func (e *Engine) adapterLookup(class string) (hydrate.EntityAdapter, bool) {
	a, ok := e.adapters[class]
	return a, ok
}

// On registers a lifecycle event listener.
func (e *Engine) On(kind EventKind, fn Listener) {
	e.dispatcher.On(kind, fn)
}

// Logger exposes the engine's debug logger, mainly so callers can bump its
// level at runtime (e.g. a CLI --debug flag).
func (e *Engine) Logger() *logging.Logger {
	return e.logger
}

// Cache exposes the engine's pluggable result cache.
func (e *Engine) Cache() cache.Cache {
	return e.cache
}

// classOf resolves the registered class, metadata and adapter for an
// arbitrary entity pointer by its concrete Go type.
func (e *Engine) classOf(entity Entity) (string, *metadata.EntityMetadata, EntityAdapter, error) {
	class, ok := e.classByType[reflect.TypeOf(entity)]
	if !ok {
		return "", nil, nil, &MetadataError{Message: fmt.Sprintf("no entity class registered for type %T", entity)}
	}
	meta, err := e.registry.Get(class)
	if err != nil {
		return "", nil, nil, err
	}
	return class, meta, e.adapters[class], nil
}

func (e *Engine) primaryKeyOf(entity Entity, meta *metadata.EntityMetadata, adapter EntityAdapter) interface{} {
	v, ok := adapter.Get(entity, meta.IDField)
	if !ok || isZeroPK(v) {
		return nil
	}
	return v
}

func (e *Engine) columnFor(meta *metadata.EntityMetadata, field string) string {
	if col, ok := meta.Columns[field]; ok {
		return col.Column
	}
	return field
}

// Query exposes the builder factory bound to this engine's connection.
func (e *Engine) Query() *Factory {
	return &Factory{db: e.qdb}
}

// Factory is a thin handle binding the four query builders to one
// engine's database connection, so callers never pass a DB around by hand.
type Factory struct {
	db queryDB
}

func (f *Factory) Select() *query.Select { return query.NewSelect(f.db) }
func (f *Factory) Insert() *query.Insert { return query.NewInsert(f.db) }
func (f *Factory) Update() *query.Update { return query.NewUpdate(f.db) }
func (f *Factory) Delete() *query.Delete { return query.NewDelete(f.db) }

// Repository returns a thin handle over the Select builder scoped to one
// entity class.
func (e *Engine) Repository(class string) (*Repository, error) {
	meta, err := e.registry.Get(class)
	if err != nil {
		return nil, err
	}
	return &Repository{engine: e, class: class, meta: meta}, nil
}

// ---------------------------------------------------------------------
// Lifecycle operations
// ---------------------------------------------------------------------

// Persist transitions entity toward MANAGED. NEW/MANAGED entities are a
// no-op; DETACHED entities are routed through Merge; REMOVED entities
// fail. Relations marked CascadePersist (or covered by the engine-wide
// Config.Features.CascadePersistDefault toggle) are recursively persisted.
func (e *Engine) Persist(entity Entity) error {
	class, meta, adapter, err := e.classOf(entity)
	if err != nil {
		return err
	}

	if state, tracked := e.identityMap.GetState(entity); tracked {
		if state.Lifecycle == StateRemoved {
			return &StateError{Entity: class, Operation: "persist", Message: "cannot persist a removed entity"}
		}
		if state.Lifecycle == StateDetached {
			if _, err := e.Merge(entity); err != nil {
				return err
			}
		}
	} else {
		pk := e.primaryKeyOf(entity, meta, adapter)
		if pk != nil {
			if existing, ok := e.identityMap.GetByID(class, pk); ok && existing != entity {
				return e.mergeFieldsInto(existing, entity, meta, adapter)
			}
		}
		e.identityMap.Add(entity, class, nil, StateNew, nil)
	}

	return e.cascade(entity, meta, adapter, func(rel metadata.RelationInfo) bool {
		return rel.CascadePersist || e.config.Features.CascadePersistDefault
	}, e.Persist)
}

// Remove transitions entity to REMOVED, queuing it for deletion at the
// next flush. Relations marked CascadeRemove are also removed.
func (e *Engine) Remove(entity Entity) error {
	_, meta, adapter, err := e.classOf(entity)
	if err != nil {
		return err
	}

	state, tracked := e.identityMap.GetState(entity)
	if !tracked {
		return nil
	}
	state.Lifecycle = StateRemoved

	return e.cascade(entity, meta, adapter, func(rel metadata.RelationInfo) bool {
		return rel.CascadeRemove
	}, e.Remove)
}

// cascade walks entity's relations, recursing into each target that
// passes shouldCascade and invoking op on it. Shared by Persist and Remove.
func (e *Engine) cascade(entity Entity, meta *metadata.EntityMetadata, adapter EntityAdapter, shouldCascade func(metadata.RelationInfo) bool, op func(Entity) error) error {
	for _, field := range meta.RelationOrder() {
		rel := meta.Relations[field]
		if !shouldCascade(rel) {
			continue
		}
		value, ok := adapter.Get(entity, field)
		if !ok || value == nil {
			continue
		}
		switch rel.Kind {
		case metadata.HasMany, metadata.ManyToMany:
			for _, t := range toEntitySlice(value) {
				if err := op(t); err != nil {
					return err
				}
			}
		default:
			if err := op(value); err != nil {
				return err
			}
		}
	}
	return nil
}

func toEntitySlice(value interface{}) []Entity {
	if slice, ok := value.([]Entity); ok {
		return slice
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return nil
	}
	out := make([]Entity, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// Merge copies incoming's non-relation field values onto the identity
// map's canonical instance for the same (class, key), returning that
// instance; if none is tracked yet, incoming itself is registered MANAGED.
func (e *Engine) Merge(entity Entity) (Entity, error) {
	class, meta, adapter, err := e.classOf(entity)
	if err != nil {
		return nil, err
	}
	pk := e.primaryKeyOf(entity, meta, adapter)
	if pk != nil {
		if existing, ok := e.identityMap.GetByID(class, pk); ok && existing != entity {
			if err := e.mergeFieldsInto(existing, entity, meta, adapter); err != nil {
				return nil, err
			}
			return existing, nil
		}
	}
	snapshot := e.captureSnapshot(entity, meta, adapter)
	canonical, _ := e.identityMap.RegisterManaged(entity, class, pk, snapshot)
	return canonical, nil
}

func (e *Engine) mergeFieldsInto(target, source Entity, meta *metadata.EntityMetadata, adapter EntityAdapter) error {
	for _, field := range meta.ColumnOrder() {
		v, ok := adapter.Get(source, field)
		if !ok {
			continue
		}
		if err := adapter.Set(target, field, v); err != nil {
			return err
		}
	}
	return nil
}

// Detach removes entity from the identity map; subsequent mutations
// become invisible to the engine.
func (e *Engine) Detach(entity Entity) {
	e.identityMap.Remove(entity)
}

// Refresh re-reads entity's row from the database, overwriting both its
// fields and its change-detection snapshot. Fails if entity has no
// primary key.
func (e *Engine) Refresh(ctx context.Context, entity Entity) error {
	class, meta, adapter, err := e.classOf(entity)
	if err != nil {
		return err
	}
	pk := e.primaryKeyOf(entity, meta, adapter)
	if pk == nil {
		return &StateError{Entity: class, Operation: "refresh", Message: "entity has no primary key"}
	}

	sel := query.NewSelect(e.qdb).Select("*").From(meta.Table).
		Where(e.columnFor(meta, meta.IDField), pk, query.EQ, query.And)
	row, found, err := sel.FetchOne(ctx)
	if err != nil {
		return mapDatabaseError(err, class, "refresh", nil)
	}
	if !found {
		return &StateError{Entity: class, Operation: "refresh", Message: "row no longer exists"}
	}

	for _, field := range meta.ColumnOrder() {
		col := meta.Columns[field].Column
		v, ok := row[col]
		if !ok {
			continue
		}
		if err := adapter.Set(entity, field, v); err != nil {
			return err
		}
	}

	snapshot := e.captureSnapshot(entity, meta, adapter)
	if state, tracked := e.identityMap.GetState(entity); tracked {
		state.Snapshot = snapshot
		state.Lifecycle = StateManaged
		state.PrimaryKey = pk
	} else {
		e.identityMap.RegisterManaged(entity, class, pk, snapshot)
	}
	return nil
}

// Clear drops every identity-map entry; all managed entities become
// detached in effect.
func (e *Engine) Clear() {
	e.identityMap.Clear()
}

// Find loads the entity of class with primary key id, through the
// identity map and, on a miss, the hydrator.
func (e *Engine) Find(ctx context.Context, class string, id interface{}) (Entity, error) {
	meta, err := e.registry.Get(class)
	if err != nil {
		return nil, err
	}
	if existing, ok := e.identityMap.GetByID(class, id); ok {
		return existing, nil
	}

	sel := query.NewSelect(e.qdb).Select("*").From(meta.Table).
		Where(e.columnFor(meta, meta.IDField), id, query.EQ, query.And)
	row, found, err := sel.FetchOne(ctx)
	if err != nil {
		return nil, mapDatabaseError(err, class, "find", nil)
	}
	if !found {
		return nil, nil
	}
	return e.hydrator.HydrateRow(ctx, class, row)
}

// assignPrimaryKeyIfNeeded gives entity a fresh UUID primary key when its
// metadata marks the id column as non-auto-increment and no value is
// already set -- PostgreSQL has no server-side default to fall back on
// for those, unlike a SERIAL/IDENTITY column.
func (e *Engine) assignPrimaryKeyIfNeeded(entity Entity, meta *metadata.EntityMetadata, adapter EntityAdapter) error {
	col := meta.Columns[meta.IDField]
	if col.AutoIncrement {
		return nil
	}
	current, _ := adapter.Get(entity, meta.IDField)
	if !isZeroPK(current) {
		return nil
	}
	return adapter.Set(entity, meta.IDField, uuid.NewString())
}

func isZeroPK(v interface{}) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return t == ""
	case int:
		return t == 0
	case int32:
		return t == 0
	case int64:
		return t == 0
	case uint:
		return t == 0
	case uint32:
		return t == 0
	case uint64:
		return t == 0
	default:
		return false
	}
}
