package engine

// EventKind identifies one of the seven lifecycle events the flush
// protocol dispatches (spec §4.7).
type EventKind string

const (
	EventPrePersist  EventKind = "prePersist"
	EventPostPersist EventKind = "postPersist"
	EventPreUpdate   EventKind = "preUpdate"
	EventPostUpdate  EventKind = "postUpdate"
	EventPreRemove   EventKind = "preRemove"
	EventPostRemove  EventKind = "postRemove"
	EventPostFlush   EventKind = "postFlush"
)

// Event carries the entity the listener fires for, the engine handle (so
// listeners may call Persist/Remove/Flush), and, for update events, the
// computed ChangeSet.
type Event struct {
	Kind   EventKind
	Entity Entity
	Engine *Engine
	Changes ChangeSet
}

// Listener is a lifecycle event subscriber. Returning an error aborts the
// flush (spec §7, "Listener error").
type Listener func(Event) error

// Dispatcher routes lifecycle events to subscribed listeners, firing them
// in registration order (spec §4.7).
type Dispatcher struct {
	listeners map[EventKind][]Listener
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{listeners: make(map[EventKind][]Listener)}
}

// On registers fn to run whenever kind fires.
func (d *Dispatcher) On(kind EventKind, fn Listener) {
	d.listeners[kind] = append(d.listeners[kind], fn)
}

// dispatch invokes every listener registered for ev.Kind, in order,
// stopping and returning the first error (wrapped as a ListenerError).
func (d *Dispatcher) dispatch(ev Event) error {
	for _, listener := range d.listeners[ev.Kind] {
		if err := listener(ev); err != nil {
			return &ListenerError{Event: string(ev.Kind), Err: err}
		}
	}
	return nil
}
