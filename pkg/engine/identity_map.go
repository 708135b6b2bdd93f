package engine

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// IdentityMap guarantees at most one in-memory instance per (class,
// primary key) and carries lifecycle metadata keyed by object identity
// (spec §3, §4.1). It generalizes the teacher's row-level string-keyed
// deduplication (pkg/engine/identity_map.go) from raw result rows to live
// entity pointers.
type IdentityMap struct {
	byKey      map[string]map[string]Entity
	byIdentity map[Entity]*EntityState
	sequence   uint64
}

// NewIdentityMap creates an empty identity map.
func NewIdentityMap() *IdentityMap {
	return &IdentityMap{
		byKey:      make(map[string]map[string]Entity),
		byIdentity: make(map[Entity]*EntityState),
	}
}

// Add associates entity with identity metadata. If primaryKey is non-nil
// and another instance is already registered for (class, key), the
// existing instance wins and is returned along with ok=false so the caller
// knows to discard the one it was about to register (spec §4.1).
func (im *IdentityMap) Add(entity Entity, class string, primaryKey interface{}, lifecycle EntityLifecycleState, snapshot map[string]interface{}) (Entity, bool) {
	if primaryKey != nil {
		key := stableKey(primaryKey)
		if im.byKey[class] == nil {
			im.byKey[class] = make(map[string]Entity)
		}
		if existing, ok := im.byKey[class][key]; ok {
			return existing, false
		}
		im.byKey[class][key] = entity
	}

	im.sequence++
	im.byIdentity[entity] = &EntityState{
		Class:      class,
		Lifecycle:  lifecycle,
		Snapshot:   snapshot,
		PrimaryKey: primaryKey,
		sequence:   im.sequence,
	}
	return entity, true
}

// RegisterManaged is Add specialized to StateManaged, the only lifecycle
// state hydration ever registers an entity under (spec §4.6 step 3). It is
// the shape pkg/engine/hydrate's decoupled IdentityMap interface expects,
// so the hydrator never needs to import this package's lifecycle enum.
func (im *IdentityMap) RegisterManaged(entity Entity, class string, primaryKey interface{}, snapshot map[string]interface{}) (Entity, bool) {
	return im.Add(entity, class, primaryKey, StateManaged, snapshot)
}

// GetByID returns the canonical instance for (class, primaryKey), used by
// the hydrator to coalesce duplicate rows into one instance.
func (im *IdentityMap) GetByID(class string, primaryKey interface{}) (Entity, bool) {
	byClass, ok := im.byKey[class]
	if !ok {
		return nil, false
	}
	entity, ok := byClass[stableKey(primaryKey)]
	return entity, ok
}

// GetState returns an entity's lifecycle metadata by object identity.
func (im *IdentityMap) GetState(entity Entity) (*EntityState, bool) {
	state, ok := im.byIdentity[entity]
	return state, ok
}

// Contains reports whether entity is currently tracked.
func (im *IdentityMap) Contains(entity Entity) bool {
	_, ok := im.byIdentity[entity]
	return ok
}

// Remove erases both the primary-key mapping and the identity-side state.
func (im *IdentityMap) Remove(entity Entity) {
	state, ok := im.byIdentity[entity]
	if !ok {
		return
	}
	if state.PrimaryKey != nil {
		if byClass, ok := im.byKey[state.Class]; ok {
			delete(byClass, stableKey(state.PrimaryKey))
		}
	}
	delete(im.byIdentity, entity)
}

// UpdateID registers the primary key an INSERT assigned to entity, called
// after an auto-increment id is read back (spec §4.1).
func (im *IdentityMap) UpdateID(entity Entity, newPrimaryKey interface{}) {
	state, ok := im.byIdentity[entity]
	if !ok {
		return
	}
	state.PrimaryKey = newPrimaryKey
	if im.byKey[state.Class] == nil {
		im.byKey[state.Class] = make(map[string]Entity)
	}
	im.byKey[state.Class][stableKey(newPrimaryKey)] = entity
}

// Clear drops every identity-map entry (spec §4.5's clear()).
func (im *IdentityMap) Clear() {
	im.byKey = make(map[string]map[string]Entity)
	im.byIdentity = make(map[Entity]*EntityState)
}

// All returns every tracked entity, in construction order, so flush can
// iterate deterministically.
func (im *IdentityMap) All() []Entity {
	entities := make([]Entity, 0, len(im.byIdentity))
	for e := range im.byIdentity {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool {
		return im.byIdentity[entities[i]].sequence < im.byIdentity[entities[j]].sequence
	})
	return entities
}

// stableKey converts a primary-key value of any comparable scalar type
// into a stable string key, the same fallback chain the teacher's
// IdentityMap.extractID uses for row identifiers.
func stableKey(id interface{}) string {
	switch v := id.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case [16]byte:
		return uuid.UUID(v).String()
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%d", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
