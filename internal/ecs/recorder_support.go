package ecs

import "sync/atomic"

// This file is the seam the internal/ecs/recorder package is built
// against: a small set of exported World accessors that exist only to
// let a one-directional dependent capture and restore state it has no
// business reaching into World's unexported fields for directly.

// ForEachTable invokes fn once per registered component table, in no
// particular order. Used by the recorder to enumerate dirty chunks and
// by Playback to locate a table by type_id.
func (w *World) ForEachTable(fn func(typeID int, t IComponentTable)) {
	for id, t := range w.tables {
		fn(id, t)
	}
}

// TableFor exposes tableFor to the recorder package.
func (w *World) TableFor(typeID int) (IComponentTable, error) {
	return w.tableFor(typeID)
}

// ForEachSingleton invokes fn once per currently-set singleton value.
func (w *World) ForEachSingleton(fn func(typeID int, value any)) {
	for id, v := range w.singletons.values {
		fn(id, v)
	}
}

// SetSingletonRaw installs value as the singleton for typeID without
// going through the generic SetSingleton[T] entry point; used by
// Playback, which only has a type ID and a decoded any from the
// recording (spec §4.11 step 4).
func (w *World) SetSingletonRaw(typeID int, value any) {
	w.singletons.set(typeID, value)
}

// SetGlobalVersion force-sets global_version to tick, bypassing the
// normal monotonic Tick() increment; used by Playback, which must pin
// the repository's clock to the frame it is replaying (spec §4.11
// step 1).
func (w *World) SetGlobalVersion(tick uint32) {
	atomic.StoreUint32(&w.globalVersion, tick)
}

// ResetAll clears every entity, mask and component table's contents
// while retaining the tables themselves and their type registrations;
// used by Playback before restoring a keyframe (spec §4.11 step 1).
func (w *World) ResetAll() {
	w.index.ResetAll()
	for _, t := range w.tables {
		t.Reset()
	}
	w.singletons.values = make(map[int]any, len(w.singletons.values))
}
