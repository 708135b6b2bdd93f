package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/metadata"
)

type csUser struct {
	ID   string `db:"id"`
	Name string `db:"name"`
	Age  int    `db:"age"`
}

type csOrder struct {
	ID     string  `db:"id"`
	Total  int     `db:"total"`
	Buyer  *csUser `db:"buyer"`
}

func userMetadata() *metadata.EntityMetadata {
	return &metadata.EntityMetadata{
		Name:    "User",
		Table:   "users",
		IDField: "id",
		Columns: map[string]metadata.ColumnInfo{
			"id":   {Column: "id"},
			"name": {Column: "name"},
			"age":  {Column: "age"},
		},
	}
}

func orderMetadata() *metadata.EntityMetadata {
	return &metadata.EntityMetadata{
		Name:    "Order",
		Table:   "orders",
		IDField: "id",
		Columns: map[string]metadata.ColumnInfo{
			"id":    {Column: "id"},
			"total": {Column: "total"},
		},
		Relations: map[string]metadata.RelationInfo{
			"buyer": {
				Field:        "buyer",
				Kind:         metadata.BelongsTo,
				TargetEntity: "User",
				FKColumn:     "buyer_id",
			},
		},
	}
}

func newEngineForChangeset(t *testing.T) *Engine {
	registry := metadata.NewStaticRegistry()
	registry.Register(userMetadata())
	registry.Register(orderMetadata())
	return newTestEngine(t, registry)
}

func TestDetectChangesNoDiff(t *testing.T) {
	e := newEngineForChangeset(t)
	adapter, err := NewReflectAdapter((*csUser)(nil))
	assert.NoError(t, err)

	u := &csUser{ID: "u-1", Name: "ana", Age: 30}
	snapshot := e.captureSnapshot(u, userMetadata(), adapter)
	state := &EntityState{Class: "User", Lifecycle: StateManaged, Snapshot: snapshot, PrimaryKey: "u-1"}

	changes := e.detectChanges(u, userMetadata(), state, adapter)
	assert.True(t, changes.IsEmpty())
}

func TestDetectChangesScalarDiff(t *testing.T) {
	e := newEngineForChangeset(t)
	adapter, _ := NewReflectAdapter((*csUser)(nil))

	u := &csUser{ID: "u-1", Name: "ana", Age: 30}
	snapshot := e.captureSnapshot(u, userMetadata(), adapter)
	state := &EntityState{Class: "User", Lifecycle: StateManaged, Snapshot: snapshot, PrimaryKey: "u-1"}

	u.Age = 31
	changes := e.detectChanges(u, userMetadata(), state, adapter)

	assert.False(t, changes.IsEmpty())
	change, ok := changes.ByField("age")
	assert.True(t, ok)
	assert.Equal(t, 30, change.Old)
	assert.Equal(t, 31, change.New)
}

func TestDetectChangesBelongsToTrackedTarget(t *testing.T) {
	e := newEngineForChangeset(t)
	userAdapter, _ := NewReflectAdapter((*csUser)(nil))
	orderAdapter, _ := NewReflectAdapter((*csOrder)(nil))

	buyer := &csUser{ID: "u-1"}
	e.identityMap.RegisterManaged(buyer, "User", "u-1", nil)

	order := &csOrder{ID: "o-1", Total: 100, Buyer: buyer}
	snapshot := e.captureSnapshot(order, orderMetadata(), orderAdapter)
	assert.Equal(t, "u-1", snapshot["buyer"])

	state := &EntityState{Class: "Order", Lifecycle: StateManaged, Snapshot: snapshot, PrimaryKey: "o-1"}

	newBuyer := &csUser{ID: "u-2"}
	e.identityMap.RegisterManaged(newBuyer, "User", "u-2", nil)
	order.Buyer = newBuyer

	changes := e.detectChanges(order, orderMetadata(), state, orderAdapter)
	change, ok := changes.ByField("buyer")
	assert.True(t, ok)
	assert.Equal(t, "u-1", change.Old)
	assert.Equal(t, "u-2", change.New)

	_ = userAdapter
}

func TestDetectChangesBelongsToPendingRef(t *testing.T) {
	e := newEngineForChangeset(t)
	orderAdapter, _ := NewReflectAdapter((*csOrder)(nil))

	order := &csOrder{ID: "o-1", Total: 100}
	snapshot := e.captureSnapshot(order, orderMetadata(), orderAdapter)
	state := &EntityState{Class: "Order", Lifecycle: StateManaged, Snapshot: snapshot, PrimaryKey: "o-1"}

	newBuyer := &csUser{} // NEW, not yet tracked, no primary key
	order.Buyer = newBuyer

	changes := e.detectChanges(order, orderMetadata(), state, orderAdapter)
	change, ok := changes.ByField("buyer")
	assert.True(t, ok)
	assert.Equal(t, PendingRef{Target: newBuyer}, change.New)
}

func TestChangeSetByFieldMissing(t *testing.T) {
	cs := ChangeSet{{Field: "name", Old: "a", New: "b"}}
	_, ok := cs.ByField("age")
	assert.False(t, ok)
}

func TestM2MSnapshotKeyNamespacesField(t *testing.T) {
	assert.Equal(t, "__m2m__tags", m2mSnapshotKey("tags"))
}
