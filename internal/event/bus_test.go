package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmit_DeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	bus.Subscribe("spawn", func(Event) { order = append(order, 1) })
	bus.Subscribe("spawn", func(Event) { order = append(order, 2) })
	bus.Subscribe("spawn", func(Event) { order = append(order, 3) })

	bus.Emit(Global("spawn", nil))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestEmit_CarriesFullEnvelope(t *testing.T) {
	bus := NewBus()

	var got Event
	bus.Subscribe(TypeScoreChange, func(ev Event) { got = ev })

	bus.Emit(Targeted(TypeScoreChange, "p1", 42))

	assert.Equal(t, TypeScoreChange, got.Type)
	assert.Equal(t, ScopeTargeted, got.Scope)
	assert.Equal(t, "p1", got.TargetID)
	assert.Equal(t, 42, got.Payload)
	assert.False(t, got.Timestamp.IsZero(), "Emit stamps the timestamp")
}

func TestEmit_UnknownTypeIsDeliverable(t *testing.T) {
	bus := NewBus()

	fired := false
	bus.Subscribe("somethingCustom", func(Event) { fired = true })

	bus.Emit(Grouped("somethingCustom", "entities", nil))
	assert.True(t, fired)
}

func TestEmit_NoSubscribersIsNoop(t *testing.T) {
	bus := NewBus()
	require.NotPanics(t, func() { bus.Emit(Global("bump", nil)) })
}

func TestEmit_PanickingSubscriberDoesNotAbortDispatch(t *testing.T) {
	bus := NewBus()

	var survived bool
	bus.Subscribe("bump", func(Event) { panic("listener bug") })
	bus.Subscribe("bump", func(Event) { survived = true })

	require.NotPanics(t, func() { bus.Emit(Global("bump", nil)) })
	assert.True(t, survived, "later subscribers still run after a panic")
}

func TestSubscribersFilterByScope(t *testing.T) {
	bus := NewBus()

	var mine int
	bus.Subscribe(TypeBump, func(ev Event) {
		if ev.Scope == ScopeTargeted && ev.TargetID == "p2" {
			mine++
		}
	})

	bus.Emit(Targeted(TypeBump, "p1", nil))
	bus.Emit(Targeted(TypeBump, "p2", nil))
	bus.Emit(Global(TypeBump, nil))

	assert.Equal(t, 1, mine)
}
