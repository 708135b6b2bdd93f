package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherFiresListenersInRegistrationOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.On(EventPrePersist, func(ev Event) error {
		order = append(order, "first")
		return nil
	})
	d.On(EventPrePersist, func(ev Event) error {
		order = append(order, "second")
		return nil
	})

	err := d.dispatch(Event{Kind: EventPrePersist})

	assert.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatcherOnlyFiresMatchingKind(t *testing.T) {
	d := NewDispatcher()
	fired := false
	d.On(EventPostPersist, func(ev Event) error {
		fired = true
		return nil
	})

	err := d.dispatch(Event{Kind: EventPrePersist})

	assert.NoError(t, err)
	assert.False(t, fired)
}

func TestDispatcherStopsOnFirstError(t *testing.T) {
	d := NewDispatcher()
	var ran []string
	boom := errors.New("boom")

	d.On(EventPreRemove, func(ev Event) error {
		ran = append(ran, "first")
		return boom
	})
	d.On(EventPreRemove, func(ev Event) error {
		ran = append(ran, "second")
		return nil
	})

	err := d.dispatch(Event{Kind: EventPreRemove})

	assert.Error(t, err)
	assert.Equal(t, []string{"first"}, ran)

	var listenerErr *ListenerError
	assert.True(t, errors.As(err, &listenerErr))
	assert.Equal(t, "preRemove", listenerErr.Event)
	assert.ErrorIs(t, listenerErr, boom)
}

func TestDispatcherNoListenersIsNoop(t *testing.T) {
	d := NewDispatcher()
	err := d.dispatch(Event{Kind: EventPostFlush})
	assert.NoError(t, err)
}

func TestDispatcherReentrantListenerCanCallOnAgain(t *testing.T) {
	d := NewDispatcher()
	var nested bool

	d.On(EventPostPersist, func(ev Event) error {
		d.On(EventPostPersist, func(ev Event) error {
			nested = true
			return nil
		})
		return nil
	})

	assert.NoError(t, d.dispatch(Event{Kind: EventPostPersist}))
	assert.False(t, nested) // listener added mid-dispatch doesn't fire in the same pass

	assert.NoError(t, d.dispatch(Event{Kind: EventPostPersist}))
	assert.True(t, nested)
}
