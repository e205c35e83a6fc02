package components

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test_Inventory_Add_MergesExistingStack tests that adding an item
// already present merges into its existing stack rather than opening a
// new slot.
func Test_Inventory_Add_MergesExistingStack(t *testing.T) {
	// Given: an inventory already holding some potions
	inv := NewInventory(2)
	assert.True(t, inv.Add("potion", 3))

	// When: adding more potions
	ok := inv.Add("potion", 2)

	// Then: they merge into the one slot
	assert.True(t, ok)
	assert.Len(t, inv.Slots, 1)
	assert.Equal(t, 5, inv.Count("potion"))
}

// Test_Inventory_Add_RespectsCapacity tests that Add refuses a new item
// once all slots are full.
func Test_Inventory_Add_RespectsCapacity(t *testing.T) {
	// Given: a one-slot inventory already holding an item
	inv := NewInventory(1)
	assert.True(t, inv.Add("sword", 1))

	// When: adding a different item
	ok := inv.Add("shield", 1)

	// Then: it is rejected
	assert.False(t, ok)
}

// Test_Inventory_Remove_DeletesEmptiedSlot tests that Remove deletes a
// slot once its quantity reaches zero.
func Test_Inventory_Remove_DeletesEmptiedSlot(t *testing.T) {
	// Given: an inventory with one stack
	inv := NewInventory(2)
	inv.Add("arrow", 10)

	// When: removing exactly the held quantity
	ok := inv.Remove("arrow", 10)

	// Then: the slot is gone and the count is zero
	assert.True(t, ok)
	assert.Empty(t, inv.Slots)
	assert.Equal(t, 0, inv.Count("arrow"))
}

// Test_Inventory_Remove_InsufficientQuantity tests that Remove refuses
// to go negative.
func Test_Inventory_Remove_InsufficientQuantity(t *testing.T) {
	inv := NewInventory(2)
	inv.Add("arrow", 3)
	assert.False(t, inv.Remove("arrow", 4))
	assert.Equal(t, 3, inv.Count("arrow"))
}
