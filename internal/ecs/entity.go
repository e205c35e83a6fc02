package ecs

import "fmt"

// Entity is a generation-checked handle into a Repository's EntityIndex.
// Index is the slot in the header array; Generation increments every time
// the slot is recycled so stale handles can be detected cheaply.
type Entity struct {
	Index      uint32
	Generation uint16
}

// NullEntity is the reserved (0,0) handle; it never refers to a live slot.
var NullEntity = Entity{}

// IsNull reports whether e is the reserved null handle.
func (e Entity) IsNull() bool {
	return e.Index == 0 && e.Generation == 0
}

func (e Entity) String() string {
	return fmt.Sprintf("Entity(%d#%d)", e.Index, e.Generation)
}

// Placeholder handles minted by a CommandBuffer carry a negative index so
// they can never collide with a real slot; PlaceholderIndex extracts the
// buffer-local ordinal from such a handle.
func PlaceholderEntity(ordinal int32) Entity {
	if ordinal >= 0 {
		panic("ecs: placeholder ordinal must be negative")
	}
	return Entity{Index: uint32(ordinal), Generation: 0}
}

// IsPlaceholder reports whether e was minted by CommandBuffer.CreateEntity
// and still needs remapping via Playback.
func (e Entity) IsPlaceholder() bool {
	return int32(e.Index) < 0
}
