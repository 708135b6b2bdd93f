// Package hydrate converts query result rows into managed entity instances
// (spec §4.6). It depends on pkg/engine/metadata, pkg/engine/query and
// internal/logging, not on pkg/engine;
// pkg/engine imports this package, not the other way around, so the
// contracts below are declared locally rather than imported from
// pkg/engine — the concrete *engine.IdentityMap and *engine.ReflectAdapter
// satisfy them structurally without either package referencing the other's
// named types.
package hydrate

// Entity is any pointer to a registered struct type.
type Entity = interface{}

// EntityAdapter is the read/write surface a hydrated entity type must
// expose. It mirrors engine.EntityAdapter's New/Get/Set exactly so that
// *engine.ReflectAdapter satisfies this interface for free.
type EntityAdapter interface {
	New() Entity
	Get(entity Entity, field string) (interface{}, bool)
	Set(entity Entity, field string, value interface{}) error
}

// IdentityMap is the subset of engine.IdentityMap the hydrator needs: look
// an entity up by (class, primary key), or register a freshly built one as
// MANAGED. Hydration never produces any other lifecycle state (spec §4.6
// step 3), so the narrower RegisterManaged method is all this interface
// requires — it never needs to name engine.EntityLifecycleState.
type IdentityMap interface {
	GetByID(class string, primaryKey interface{}) (Entity, bool)
	RegisterManaged(entity Entity, class string, primaryKey interface{}, snapshot map[string]interface{}) (Entity, bool)
}

// AdapterLookup resolves the EntityAdapter registered for an entity class.
type AdapterLookup func(class string) (EntityAdapter, bool)
