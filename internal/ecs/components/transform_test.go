package components

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjanec/FastDataPlane-sub004/internal/ecs"
)

func newTestWorld(t *testing.T) *ecs.World {
	t.Helper()
	w := ecs.NewDefaultWorld()
	t.Cleanup(func() { _ = w.Close() })
	return w
}

// Test_Transform_WorldPosition_NoParent tests that a root transform's
// world position equals its local position.
func Test_Transform_WorldPosition_NoParent(t *testing.T) {
	// Given: a world with a registered Transform type and one entity
	w := newTestWorld(t)
	_, err := ecs.RegisterComponent[Transform](w)
	require.NoError(t, err)
	e := w.CreateEntity()
	tr := NewTransform()
	tr.Position = Vector2{X: 3, Y: 4}
	require.NoError(t, ecs.Add(w, e, tr))

	// When: resolving world position with no parent set
	pos, err := WorldPosition(w, e)
	require.NoError(t, err)

	// Then: it equals the local position
	assert.Equal(t, Vector2{X: 3, Y: 4}, pos)
}

// Test_Transform_SetParent_RejectsCycle tests that SetParent refuses to
// create a cycle in the parent chain.
func Test_Transform_SetParent_RejectsCycle(t *testing.T) {
	// Given: two entities, child parented to parent
	w := newTestWorld(t)
	_, err := ecs.RegisterComponent[Transform](w)
	require.NoError(t, err)
	parent := w.CreateEntity()
	child := w.CreateEntity()
	require.NoError(t, ecs.Add(w, parent, NewTransform()))
	require.NoError(t, ecs.Add(w, child, NewTransform()))
	require.NoError(t, SetParent(w, child, parent))

	// When: attempting to parent parent under child (would cycle)
	err = SetParent(w, parent, child)

	// Then: it is rejected
	assert.Error(t, err)
}

// Test_Transform_WorldPosition_WithParent tests that a child's world
// position composes its parent's translation, rotation and scale.
func Test_Transform_WorldPosition_WithParent(t *testing.T) {
	// Given: a parent offset from origin and a child offset from parent
	w := newTestWorld(t)
	_, err := ecs.RegisterComponent[Transform](w)
	require.NoError(t, err)
	parent := w.CreateEntity()
	child := w.CreateEntity()
	pt := NewTransform()
	pt.Position = Vector2{X: 10, Y: 0}
	require.NoError(t, ecs.Add(w, parent, pt))
	ct := NewTransform()
	ct.Position = Vector2{X: 1, Y: 0}
	require.NoError(t, ecs.Add(w, child, ct))
	require.NoError(t, SetParent(w, child, parent))

	// When: resolving the child's world position
	pos, err := WorldPosition(w, child)
	require.NoError(t, err)

	// Then: it is translated by the parent's position
	assert.InDelta(t, 11.0, pos.X, 1e-9)
	assert.InDelta(t, 0.0, pos.Y, 1e-9)
}
