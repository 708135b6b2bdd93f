package engine

import (
	"context"

	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/metadata"
	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/query"
)

// Repository is a thin handle over the Select builder scoped to one
// entity class, returned by Engine.Repository(class) (spec §6's
// "get_repository(class)"). It saves callers from repeating From(table)
// and re-hydrating rows by hand on every query.
type Repository struct {
	engine *Engine
	class  string
	meta   *metadata.EntityMetadata
}

// Select starts a fresh Select builder already pointed at this
// repository's table, ready for Where/Join/OrderBy calls.
func (r *Repository) Select() *query.Select {
	return query.NewSelect(r.engine.qdb).Select("*").From(r.meta.Table)
}

// FindByID loads one entity by primary key through the engine's identity
// map and hydrator.
func (r *Repository) FindByID(ctx context.Context, id interface{}) (Entity, error) {
	return r.engine.Find(ctx, r.class, id)
}

// FindAll runs sel (expected to already be scoped to this repository's
// table) and hydrates every resulting row into a managed entity.
func (r *Repository) FindAll(ctx context.Context, sel *query.Select) ([]Entity, error) {
	rows, err := sel.FetchAll(ctx)
	if err != nil {
		return nil, mapDatabaseError(err, r.class, "select", nil)
	}
	return r.engine.hydrator.HydrateRows(ctx, r.class, rows)
}

// FindOne runs sel and hydrates the first resulting row, if any.
func (r *Repository) FindOne(ctx context.Context, sel *query.Select) (Entity, bool, error) {
	row, found, err := sel.FetchOne(ctx)
	if err != nil {
		return nil, false, mapDatabaseError(err, r.class, "select", nil)
	}
	if !found {
		return nil, false, nil
	}
	entity, err := r.engine.hydrator.HydrateRow(ctx, r.class, row)
	if err != nil {
		return nil, false, err
	}
	return entity, true, nil
}

// Count runs sel as a COUNT(*) query against this repository's table.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	sel := query.NewSelect(r.engine.qdb).Select("COUNT(*) AS count").From(r.meta.Table)
	v, err := sel.FetchScalar(ctx)
	if err != nil {
		return 0, mapDatabaseError(err, r.class, "count", nil)
	}
	count, _ := v.(int64)
	return count, nil
}
