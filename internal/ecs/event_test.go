package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type eventTestDamage struct{ Amount int }

func (eventTestDamage) EventTypeID() uint32 { return 1001 }

type eventTestLoot struct{ ItemID string }

// Test_EventBus_Native_NotVisibleUntilSwap tests the double-buffer
// contract: a publish is invisible to Consume until SwapBuffers runs.
func Test_EventBus_Native_NotVisibleUntilSwap(t *testing.T) {
	bus := NewEventBus()

	PublishNative(bus, eventTestDamage{Amount: 5})
	assert.Empty(t, ConsumeNative[eventTestDamage](bus, eventTestDamage{}.EventTypeID()))

	bus.SwapBuffers()
	got := ConsumeNative[eventTestDamage](bus, eventTestDamage{}.EventTypeID())
	assert.Equal(t, []eventTestDamage{{Amount: 5}}, got)
}

// Test_EventBus_Native_PriorFrameClearedAfterNextSwap tests that a
// second SwapBuffers with no new publications produces an empty read
// buffer, rather than replaying the previous frame's events forever.
func Test_EventBus_Native_PriorFrameClearedAfterNextSwap(t *testing.T) {
	bus := NewEventBus()
	PublishNative(bus, eventTestDamage{Amount: 1})
	bus.SwapBuffers()
	assert.Len(t, ConsumeNative[eventTestDamage](bus, eventTestDamage{}.EventTypeID()), 1)

	bus.SwapBuffers()

	assert.Empty(t, ConsumeNative[eventTestDamage](bus, eventTestDamage{}.EventTypeID()))
}

// Test_EventBus_Managed_PublishConsumeSwap tests the managed (boxed)
// event stream's own publish/swap/consume cycle, keyed by type name
// rather than a declared EventTypeID.
func Test_EventBus_Managed_PublishConsumeSwap(t *testing.T) {
	bus := NewEventBus()

	PublishManaged(bus, eventTestLoot{ItemID: "sword"})
	assert.Empty(t, ConsumeManaged[eventTestLoot](bus))

	bus.SwapBuffers()

	got := ConsumeManaged[eventTestLoot](bus)
	assert.Equal(t, []eventTestLoot{{ItemID: "sword"}}, got)
}

// Test_EventBus_CaptureNative_InjectRaw_RoundTrip tests the
// recorder-facing raw capture/inject path: a captured native stream's
// bytes reinject into a fresh bus and read back identically after a
// swap.
func Test_EventBus_CaptureNative_InjectRaw_RoundTrip(t *testing.T) {
	src := NewEventBus()
	PublishNative(src, eventTestDamage{Amount: 7})
	src.SwapBuffers()

	captures := src.CaptureNative()
	var found NativeStreamCapture
	for _, c := range captures {
		if c.TypeID == eventTestDamage{}.EventTypeID() {
			found = c
		}
	}
	assert.NotZero(t, found.ElemSize)

	dst := NewEventBus()
	dst.InjectNativeRaw(found.TypeID, found.ElemSize, found.Raw)
	dst.SwapBuffers()

	got := ConsumeNative[eventTestDamage](dst, eventTestDamage{}.EventTypeID())
	assert.Equal(t, []eventTestDamage{{Amount: 7}}, got)
}

// Test_EventBus_InjectNativeRaw_UntypedBeforeTypedReader tests that
// raw bytes injected for a type_id with no prior typed stream are
// retained untyped and retrievable via UntypedNativeRaw.
func Test_EventBus_InjectNativeRaw_UntypedBeforeTypedReader(t *testing.T) {
	bus := NewEventBus()

	bus.InjectNativeRaw(99, 4, []byte{1, 2, 3, 4})

	elemSize, raw, ok := bus.UntypedNativeRaw(99)
	assert.True(t, ok)
	assert.Equal(t, 4, elemSize)
	assert.Equal(t, []byte{1, 2, 3, 4}, raw)
}

// Test_EventBus_CaptureManaged_ReportsTypeName tests that the managed
// capture snapshot carries the stream's type name for the recorder's
// reflective codec to resolve on replay.
func Test_EventBus_CaptureManaged_ReportsTypeName(t *testing.T) {
	bus := NewEventBus()
	PublishManaged(bus, eventTestLoot{ItemID: "shield"})
	bus.SwapBuffers()

	captures := bus.CaptureManaged()

	assert.Len(t, captures, 1)
	assert.Contains(t, captures[0].TypeName, "eventTestLoot")
	assert.Equal(t, []any{eventTestLoot{ItemID: "shield"}}, captures[0].Values)
}

// Test_EventBus_InjectManagedIntoCurrent_VisibleAfterSwap tests the
// managed-stream Playback injection path.
func Test_EventBus_InjectManagedIntoCurrent_VisibleAfterSwap(t *testing.T) {
	bus := NewEventBus()

	bus.InjectManagedIntoCurrent("ecs.eventTestLoot", eventTestLoot{ItemID: "potion"})
	bus.SwapBuffers()

	got := ConsumeManaged[eventTestLoot](bus)
	assert.Equal(t, []eventTestLoot{{ItemID: "potion"}}, got)
}

// Test_EventBus_ClearCurrentBuffers_DropsGraveyardNotReadBuffer tests
// that ClearCurrentBuffers does not disturb the already-swapped read
// buffer.
func Test_EventBus_ClearCurrentBuffers_DropsGraveyardNotReadBuffer(t *testing.T) {
	bus := NewEventBus()
	PublishNative(bus, eventTestDamage{Amount: 3})
	bus.SwapBuffers()

	bus.ClearCurrentBuffers()

	got := ConsumeNative[eventTestDamage](bus, eventTestDamage{}.EventTypeID())
	assert.Equal(t, []eventTestDamage{{Amount: 3}}, got)
}
