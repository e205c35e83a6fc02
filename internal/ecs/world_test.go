package ecs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test_World_CreateDestroyEntity tests the basic entity lifecycle
// through World rather than EntityIndex directly.
func Test_World_CreateDestroyEntity(t *testing.T) {
	w := NewDefaultWorld()
	defer w.Close()

	e := w.CreateEntity()
	assert.True(t, w.IsAlive(e))

	require.NoError(t, w.DestroyEntity(e))
	assert.False(t, w.IsAlive(e))
}

// Test_World_Tick_IncrementsGlobalVersionByOne tests that Tick is a
// monotonic +1, never skipping or resetting.
func Test_World_Tick_IncrementsGlobalVersionByOne(t *testing.T) {
	w := NewDefaultWorld()
	defer w.Close()

	assert.Equal(t, uint32(0), w.GlobalVersion())
	assert.Equal(t, uint32(1), w.Tick())
	assert.Equal(t, uint32(2), w.Tick())
	assert.Equal(t, uint32(2), w.GlobalVersion())
}

// Test_World_SetPhase_DelegatesToGate tests that an illegal phase jump
// is rejected the same way phaseGate.SetPhase rejects it directly.
func Test_World_SetPhase_DelegatesToGate(t *testing.T) {
	w := NewDefaultWorld()
	defer w.Close()

	assert.Error(t, w.SetPhase(PhaseSimulation))
	assert.Equal(t, PhaseInitialization, w.Phase())

	require.NoError(t, w.SetPhase(PhaseInput))
	assert.Equal(t, PhaseInput, w.Phase())
}

// Test_World_CreateStagedEntity tests that a staged entity starts in
// Constructing lifecycle with the given authority pre-seeded.
func Test_World_CreateStagedEntity(t *testing.T) {
	w := NewDefaultWorld()
	defer w.Close()
	var required, authority BitMask256
	required.Set(1)
	authority.Set(1)

	e, desc := w.CreateStagedEntity(required, authority)

	h, err := w.Index().GetHeader(e)
	require.NoError(t, err)
	assert.Equal(t, LifecycleConstructing, h.Lifecycle)
	assert.True(t, h.AuthorityMask.Test(1))
	assert.False(t, desc.Ready())
}

// Test_World_AdvanceZombies_PromotesReadyEntity tests that a staged
// entity whose required modules have all acknowledged is promoted to
// Active and removed from the tracked set.
func Test_World_AdvanceZombies_PromotesReadyEntity(t *testing.T) {
	w := NewDefaultWorld()
	defer w.Close()
	var required BitMask256
	required.Set(1)
	e, desc := w.CreateStagedEntity(required, BitMask256{})
	desc.Ack(1)
	pairs := map[Entity]*LifecycleDescriptor{e: desc}

	w.AdvanceZombies(pairs, 0.01)

	assert.Empty(t, pairs)
	h, err := w.Index().GetHeader(e)
	require.NoError(t, err)
	assert.Equal(t, LifecycleActive, h.Lifecycle)
	assert.True(t, w.IsAlive(e))
}

// Test_World_AdvanceZombies_DestroysExpiredEntity tests that a staged
// entity that never becomes ready is destroyed once its timeout budget
// is exhausted.
func Test_World_AdvanceZombies_DestroysExpiredEntity(t *testing.T) {
	w := NewDefaultWorld()
	defer w.Close()
	var required BitMask256
	required.Set(1)
	e, desc := w.CreateStagedEntity(required, BitMask256{})
	pairs := map[Entity]*LifecycleDescriptor{e: desc}

	w.AdvanceZombies(pairs, StagedCreationTimeout.Seconds()+1)

	assert.Empty(t, pairs)
	assert.False(t, w.IsAlive(e))
}

// Test_World_AdvanceZombies_HonorsConfiguredTimeout tests that a World
// built with a shorter Config.ZombieTimeout destroys a staged entity
// sooner than StagedCreationTimeout would, proving the descriptor
// actually inherits the per-World budget rather than always falling
// back to the package-level default.
func Test_World_AdvanceZombies_HonorsConfiguredTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ZombieTimeout = 100 * time.Millisecond
	w := NewWorld(cfg, nil)
	defer w.Close()
	var required BitMask256
	required.Set(1)
	e, desc := w.CreateStagedEntity(required, BitMask256{})
	assert.Equal(t, cfg.ZombieTimeout, desc.Timeout)
	pairs := map[Entity]*LifecycleDescriptor{e: desc}

	w.AdvanceZombies(pairs, 0.2)

	assert.Empty(t, pairs)
	assert.False(t, w.IsAlive(e))
}

// Test_World_TableFor_NotRegistered tests that an unregistered type ID
// returns NotRegistered rather than a nil-table panic.
func Test_World_TableFor_NotRegistered(t *testing.T) {
	w := NewDefaultWorld()
	defer w.Close()

	_, err := w.tableFor(250)

	assert.Error(t, err)
}
