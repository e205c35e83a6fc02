package components

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjanec/FastDataPlane-sub004/internal/ecs"
)

// Test_Components_MixedEntity tests that an entity carrying every
// example component type — unmanaged and managed together — round
// trips through Add/AddManaged and a With/With query, the way the
// teacher's integration_test.go exercises the full component set on one
// entity.
func Test_Components_MixedEntity(t *testing.T) {
	// Given: a world with every example component registered
	w := newTestWorld(t)
	_, err := ecs.RegisterComponent[Transform](w)
	require.NoError(t, err)
	_, err = ecs.RegisterComponent[Physics](w)
	require.NoError(t, err)
	_, err = ecs.RegisterComponent[Health](w)
	require.NoError(t, err)
	_, err = ecs.RegisterManagedComponent[*AIBlackboard](w)
	require.NoError(t, err)
	_, err = ecs.RegisterManagedComponent[*Inventory](w)
	require.NoError(t, err)

	// When: one entity is given all five components
	e := w.CreateEntity()
	require.NoError(t, ecs.Add(w, e, NewTransform()))
	require.NoError(t, ecs.Add(w, e, NewPhysics()))
	require.NoError(t, ecs.Add(w, e, NewHealth(100)))
	require.NoError(t, ecs.AddManaged(w, e, NewAIBlackboard()))
	require.NoError(t, ecs.AddManaged(w, e, NewInventory(4)))

	// Then: every component is independently retrievable
	assert.True(t, ecs.Has[Transform](w, e))
	assert.True(t, ecs.Has[Physics](w, e))
	assert.True(t, ecs.Has[Health](w, e))

	ai, err := ecs.GetManagedRO[*AIBlackboard](w, e)
	require.NoError(t, err)
	assert.Equal(t, AIStateIdle, ai.State)

	inv, err := ecs.GetManagedRO[*Inventory](w, e)
	require.NoError(t, err)
	assert.Equal(t, 4, inv.Capacity)

	// And: a query over all three unmanaged types finds the entity
	q := ecs.With[Health](ecs.With[Physics](ecs.With[Transform](w.Query()))).Build()
	assert.Equal(t, 1, q.Count())
}

// Test_Components_Query_ExcludesMissingType tests that an entity
// lacking a queried-for component is excluded from the match set.
func Test_Components_Query_ExcludesMissingType(t *testing.T) {
	// Given: two entities, only one carrying Health
	w := newTestWorld(t)
	_, err := ecs.RegisterComponent[Transform](w)
	require.NoError(t, err)
	_, err = ecs.RegisterComponent[Health](w)
	require.NoError(t, err)

	withHealth := w.CreateEntity()
	require.NoError(t, ecs.Add(w, withHealth, NewTransform()))
	require.NoError(t, ecs.Add(w, withHealth, NewHealth(10)))

	withoutHealth := w.CreateEntity()
	require.NoError(t, ecs.Add(w, withoutHealth, NewTransform()))

	// When: querying for entities with both Transform and Health
	q := ecs.With[Health](ecs.With[Transform](w.Query())).Build()

	// Then: only the entity with both is matched
	assert.Equal(t, 1, q.Count())
	first, ok := q.FirstOrNull()
	require.True(t, ok)
	assert.Equal(t, withHealth, first)
}
