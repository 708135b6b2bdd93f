package engine

import "time"

// EntityLifecycleState enumerates the four states an entity can occupy in
// an engine's identity map (spec §3).
type EntityLifecycleState int

const (
	// StateNew is tracked after Persist but not yet in the database; it is
	// inserted at the next flush.
	StateNew EntityLifecycleState = iota
	// StateManaged is tracked by the identity map and included in flush.
	StateManaged
	// StateRemoved is queued for deletion at the next flush.
	StateRemoved
	// StateDetached is no longer tracked; changes are invisible to the engine.
	StateDetached
)

func (s EntityLifecycleState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateManaged:
		return "MANAGED"
	case StateRemoved:
		return "REMOVED"
	case StateDetached:
		return "DETACHED"
	default:
		return "UNKNOWN"
	}
}

// EntityState is the side-table record the identity map keeps per tracked
// entity, addressed by object identity rather than by primary key (spec
// §3's "side map keyed by object identity").
type EntityState struct {
	Class      string
	Lifecycle  EntityLifecycleState
	Snapshot   map[string]interface{}
	CapturedAt time.Time
	PrimaryKey interface{}

	// sequence stamps construction order for deterministic tie-breaking in
	// the dependency manager (spec §4.3, "lexicographic by class, then by
	// construction order").
	sequence uint64
}
