package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test_Error_Error_FormatsContext tests that Error() renders entity and
// type context when present, and falls back gracefully when absent.
func Test_Error_Error_FormatsContext(t *testing.T) {
	bare := NewError(ErrOverflow, "registry exhausted")
	assert.Equal(t, "[OVERFLOW] registry exhausted", bare.Error())

	withEntity := NewEntityError(ErrStaleHandle, "stale", Entity{Index: 1, Generation: 2})
	assert.Contains(t, withEntity.Error(), "Entity(1#2)")

	withType := NewTypeError(ErrNotRegistered, "not registered", -1, "Health")
	assert.Contains(t, withType.Error(), "Health")

	withBoth := NewEntityError(ErrMissingComponent, "missing", Entity{Index: 3}).WithType(5, "Physics")
	assert.Contains(t, withBoth.Error(), "Physics")
	assert.Contains(t, withBoth.Error(), "Entity(3#0)")
}

// Test_Error_Builders tests the With* chainable mutators.
func Test_Error_Builders(t *testing.T) {
	e := NewError(ErrUnsupported, "nope").
		WithEntity(Entity{Index: 9}).
		WithType(4, "AI").
		WithSystem("recorder").
		WithDetails("extra context")

	assert.Equal(t, uint32(9), e.Entity.Index)
	assert.Equal(t, 4, e.TypeID)
	assert.Equal(t, "AI", e.TypeName)
	assert.Equal(t, "recorder", e.System)
	assert.Equal(t, "extra context", e.Details)
}

// Test_Error_PredicateHelpers tests the Is* code-matching helpers,
// including that they report false for an unrelated error type.
func Test_Error_PredicateHelpers(t *testing.T) {
	assert.True(t, IsStaleHandle(StaleHandleErr(Entity{Index: 1})))
	assert.True(t, IsMissingComponent(MissingComponentErr(Entity{Index: 1}, 1, "Health")))
	assert.True(t, IsWrongPhase(WrongPhaseErr(Entity{Index: 1}, "Health", "Teardown")))
	assert.True(t, IsCorruptFrame(CorruptFrameErr("bad bytes")))

	assert.False(t, IsStaleHandle(CorruptFrameErr("bad bytes")))
	assert.False(t, IsMissingComponent(nil))
}

// Test_Error_Factories_SetExpectedCodes tests that each factory closure
// stamps the code its Is* predicate checks for.
func Test_Error_Factories_SetExpectedCodes(t *testing.T) {
	assert.Equal(t, ErrOverflow, OverflowErr(256).Code)
	assert.Equal(t, ErrAuthorityConflict, AuthorityConflictErr(Entity{}, 1, "Health").Code)
	assert.Equal(t, ErrPayloadTooLarge, PayloadTooLargeErr(100, 10).Code)
	assert.Equal(t, ErrFormatMismatch, FormatMismatchErr(2, 1).Code)
	assert.Equal(t, ErrUnknownType, UnknownTypeErr("Ghost").Code)
	assert.Equal(t, ErrNotRegistered, NotRegisteredErr("Ghost").Code)
}
