package ecs

import (
	"unsafe"

	"github.com/pjanec/FastDataPlane-sub004/internal/ecs/chunk"
)

// IComponentTable is the common contract both ComponentTable[T] and
// ManagedTable[T] satisfy, dispatched on by type ID from World's
// per-type table array. Grounded on the teacher's component.go
// ComponentStore interface surface, narrowed to the raw-bytes contract
// spec §4.5 actually needs (World.AddComponent/GetRW/... are typed
// wrappers built on top of this for each concrete T).
type IComponentTable interface {
	TypeID() int
	ElementSize() int
	IsManaged() bool
	HasChanges(since uint32) bool
	VersionForEntity(idx uint32) uint32
	SetRaw(idx uint32, data []byte, version uint32) error
	SetRawObject(idx uint32, obj any) error
	GetRawObject(idx uint32) (any, error)
	ClearRaw(idx uint32)
	SyncFrom(other IComponentTable, dirtyOnly bool, sinceVersion uint32) error
	ChunkCount() int
	ChunkVersion(c int) uint32
	Reset()
}

// RawChunkTable is implemented by unmanaged tables: the recorder
// copies chunk bytes directly, bit-exact, without going through a
// ReflectiveCodec.
type RawChunkTable interface {
	IComponentTable
	CopyChunkRawTo(c int, dst []byte)
	RestoreChunkRawFrom(c int, src []byte) error
	SanitizeChunkRaw(c int, liveness []bool)
	ChunkCap() int
}

// ManagedChunkTable is implemented by managed tables: the recorder
// must go through the host-supplied ReflectiveCodec to turn references
// into bytes and back.
type ManagedChunkTable interface {
	IComponentTable
	ChunkSlotCount(c int) int
	SlotAt(c, o int) (any, bool)
	SetSlotAt(c, o int, value any)
}

// unmanagedChunkCapFor returns floor(chunk.Size / elemSize), the number
// of T elements that fit in one 64 KiB chunk.
func unmanagedChunkCapFor(elemSize int) int {
	if elemSize <= 0 {
		return 0
	}
	return chunk.Size / elemSize
}

// ComponentTable is the bit-exact, chunked, unmanaged storage for a
// plain-old-data component type T. Grounded on lazyecs's archetype
// component arrays (raw unsafe.Pointer slices backed by reflect-made
// storage, word-wise memCopy) adapted to per-type chunked tables
// instead of per-archetype columns, and on the teacher's
// storage/component_store.go naming (AddComponent/GetComponent/
// RemoveComponent-shaped methods, stats accessors).
type ComponentTable[T any] struct {
	typeID    int
	alloc     *chunk.Allocator
	elemSize  int
	chunkCap  int
	chunks    [][]T    // one slice per allocated chunk, each chunkCap long
	regions   [][]byte // raw backing regions, parallel to chunks, for Free
	versions  []uint32 // per-chunk version counter
}

// NewComponentTable allocates an (initially chunk-less) unmanaged table
// for T, identified by typeID, backed by alloc.
func NewComponentTable[T any](typeID int, alloc *chunk.Allocator) *ComponentTable[T] {
	var zero T
	return &ComponentTable[T]{
		typeID:   typeID,
		alloc:    alloc,
		elemSize: int(unsafe.Sizeof(zero)),
		chunkCap: unmanagedChunkCapFor(int(unsafe.Sizeof(zero))),
	}
}

func (t *ComponentTable[T]) chunkFor(idx uint32) (chunk int, offset int) {
	return int(idx) / t.chunkCap, int(idx) % t.chunkCap
}

func (t *ComponentTable[T]) ensureChunk(c int) error {
	for len(t.chunks) <= c {
		region, err := t.alloc.Reserve(1)
		if err != nil {
			return err
		}
		if err := t.alloc.Commit(region); err != nil {
			return err
		}
		slice := unsafe.Slice((*T)(unsafe.Pointer(&region[0])), t.chunkCap)
		t.chunks = append(t.chunks, slice)
		t.regions = append(t.regions, region)
		t.versions = append(t.versions, 0)
	}
	return nil
}

// TypeID implements IComponentTable.
func (t *ComponentTable[T]) TypeID() int { return t.typeID }

// ElementSize implements IComponentTable.
func (t *ComponentTable[T]) ElementSize() int { return t.elemSize }

// IsManaged implements IComponentTable.
func (t *ComponentTable[T]) IsManaged() bool { return false }

// CopyChunkRawTo implements RawChunkTable: dst must be exactly
// chunkCap*elemSize bytes.
func (t *ComponentTable[T]) CopyChunkRawTo(c int, dst []byte) {
	if c >= len(t.chunks) {
		return
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(&t.chunks[c][0])), t.chunkCap*t.elemSize)
	copy(dst, src)
}

// RestoreChunkRawFrom implements RawChunkTable, growing the table on demand.
func (t *ComponentTable[T]) RestoreChunkRawFrom(c int, src []byte) error {
	if err := t.ensureChunk(c); err != nil {
		return err
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(&t.chunks[c][0])), t.chunkCap*t.elemSize)
	copy(dst, src)
	return nil
}

// ChunkCount implements IComponentTable.
func (t *ComponentTable[T]) ChunkCount() int { return len(t.chunks) }

// ChunkVersion implements IComponentTable.
func (t *ComponentTable[T]) ChunkVersion(c int) uint32 { return t.versions[c] }

// Reset frees every allocated chunk, returning the table to its
// just-constructed state; used by Playback to clear a world before
// restoring a keyframe (spec §4.11 step 1). The table itself (and its
// type registration) is retained, only its contents are erased.
func (t *ComponentTable[T]) Reset() {
	for _, region := range t.regions {
		_ = t.alloc.Free(region)
	}
	t.chunks = nil
	t.regions = nil
	t.versions = nil
}

// HasChanges implements IComponentTable: true if any chunk's version
// exceeds since.
func (t *ComponentTable[T]) HasChanges(since uint32) bool {
	for _, v := range t.versions {
		if v > since {
			return true
		}
	}
	return false
}

// VersionForEntity implements IComponentTable.
func (t *ComponentTable[T]) VersionForEntity(idx uint32) uint32 {
	c, _ := t.chunkFor(idx)
	if c >= len(t.versions) {
		return 0
	}
	return t.versions[c]
}

// GetRW returns a mutable pointer to idx's slot and stamps its chunk's
// version to version. Growing the table on demand.
func (t *ComponentTable[T]) GetRW(idx uint32, version uint32) (*T, error) {
	c, o := t.chunkFor(idx)
	if err := t.ensureChunk(c); err != nil {
		return nil, err
	}
	t.versions[c] = version
	return &t.chunks[c][o], nil
}

// GetRO returns an immutable pointer to idx's slot without stamping a
// version; returns MissingComponent if the chunk was never allocated.
func (t *ComponentTable[T]) GetRO(idx uint32) (*T, error) {
	c, o := t.chunkFor(idx)
	if c >= len(t.chunks) {
		return nil, NewError(ErrMissingComponent, "component chunk not allocated")
	}
	return &t.chunks[c][o], nil
}

// SetRaw implements IComponentTable: overwrites idx's slot from raw
// bytes, which must be exactly ElementSize() long.
func (t *ComponentTable[T]) SetRaw(idx uint32, data []byte, version uint32) error {
	if len(data) != t.elemSize {
		return NewError(ErrPayloadTooLarge, "raw payload size mismatch")
	}
	ptr, err := t.GetRW(idx, version)
	if err != nil {
		return err
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), t.elemSize)
	copy(dst, data)
	return nil
}

// SetRawObject implements IComponentTable for unmanaged tables by
// type-asserting obj to T and delegating to SetRaw's memcpy semantics.
func (t *ComponentTable[T]) SetRawObject(idx uint32, obj any) error {
	v, ok := obj.(T)
	if !ok {
		return NewError(ErrUnsupported, "object does not match unmanaged component type")
	}
	c, o := t.chunkFor(idx)
	if err := t.ensureChunk(c); err != nil {
		return err
	}
	t.chunks[c][o] = v
	return nil
}

// GetRawObject implements IComponentTable.
func (t *ComponentTable[T]) GetRawObject(idx uint32) (any, error) {
	return t.GetRO(idx)
}

// ClearRaw implements IComponentTable: zeroes idx's slot bytes. Called
// by the recorder's sanitize pass before a dead slot is emitted.
func (t *ComponentTable[T]) ClearRaw(idx uint32) {
	c, o := t.chunkFor(idx)
	if c >= len(t.chunks) {
		return
	}
	var zero T
	t.chunks[c][o] = zero
}

// SyncFrom implements IComponentTable: a per-table shallow copy of
// dirty chunks from other, used by World.SyncFrom for backup/replication
// workflows (spec §4.6).
func (t *ComponentTable[T]) SyncFrom(other IComponentTable, dirtyOnly bool, sinceVersion uint32) error {
	src, ok := other.(*ComponentTable[T])
	if !ok {
		return NewError(ErrUnsupported, "sync source type mismatch")
	}
	for c := range src.chunks {
		if dirtyOnly && src.versions[c] <= sinceVersion {
			continue
		}
		if err := t.ensureChunk(c); err != nil {
			return err
		}
		copy(t.chunks[c], src.chunks[c])
		t.versions[c] = src.versions[c]
	}
	return nil
}

// CopyChunkTo bit-exact copies chunk c into dst (dst must be chunkCap
// elements), used by the recorder to emit a dirty chunk blob.
func (t *ComponentTable[T]) CopyChunkTo(c int, dst []T) {
	copy(dst, t.chunks[c])
}

// RestoreChunkFrom bit-exact overwrites chunk c from src, growing the
// table on demand. Used by Playback.
func (t *ComponentTable[T]) RestoreChunkFrom(c int, src []T) error {
	if err := t.ensureChunk(c); err != nil {
		return err
	}
	copy(t.chunks[c], src)
	return nil
}

// SanitizeChunkRaw zeroes every slot in chunk c whose liveness bit is
// false, so reclaimed data never leaves the process via the recorder
// (spec §4.5/§4.11). Implements RawChunkTable.
func (t *ComponentTable[T]) SanitizeChunkRaw(c int, liveness []bool) {
	if c >= len(t.chunks) {
		return
	}
	var zero T
	for o, alive := range liveness {
		if o >= len(t.chunks[c]) {
			break
		}
		if !alive {
			t.chunks[c][o] = zero
		}
	}
}

// ChunkCap is the number of T elements per chunk.
func (t *ComponentTable[T]) ChunkCap() int { return t.chunkCap }

// Close releases every chunk this table allocated.
func (t *ComponentTable[T]) Close() error {
	for _, r := range t.regions {
		if err := t.alloc.Free(r); err != nil {
			return err
		}
	}
	t.chunks = nil
	t.regions = nil
	return nil
}

// managedChunkCap is the fixed number of reference slots per managed
// chunk (spec §3/§4.5).
const managedChunkCap = 16384

// ManagedChunkCap is the fixed number of reference slots per managed
// table chunk; exported so the recorder package can size a restore
// loop without a live ManagedChunkTable to ask (a not-yet-allocated
// chunk reports ChunkSlotCount 0).
const ManagedChunkCap = managedChunkCap

// ManagedTable is the lazily-allocated, reference-typed storage for a
// managed component type T. Grounded on the teacher's
// storage/sparse_set.go (SparseSet dense/sparse arrays) adapted to
// per-chunk slices of T instead of one flat map.
type ManagedTable[T any] struct {
	typeID   int
	chunks   [][]T // lazily allocated, each managedChunkCap long
	present  [][]bool
	versions []uint32
}

// NewManagedTable allocates an (initially chunk-less) managed table.
func NewManagedTable[T any](typeID int) *ManagedTable[T] {
	return &ManagedTable[T]{typeID: typeID}
}

func (t *ManagedTable[T]) chunkFor(idx uint32) (chunk int, offset int) {
	return int(idx) / managedChunkCap, int(idx) % managedChunkCap
}

func (t *ManagedTable[T]) ensureChunk(c int) {
	for len(t.chunks) <= c {
		t.chunks = append(t.chunks, make([]T, managedChunkCap))
		t.present = append(t.present, make([]bool, managedChunkCap))
		t.versions = append(t.versions, 0)
	}
}

// TypeID implements IComponentTable.
func (t *ManagedTable[T]) TypeID() int { return t.typeID }

// IsManaged implements IComponentTable.
func (t *ManagedTable[T]) IsManaged() bool { return true }

// ChunkSlotCount implements ManagedChunkTable.
func (t *ManagedTable[T]) ChunkSlotCount(c int) int {
	if c >= len(t.chunks) {
		return 0
	}
	return managedChunkCap
}

// SlotAt implements ManagedChunkTable, boxing slot (c,o) as an any for
// the recorder's codec-driven serialization path.
func (t *ManagedTable[T]) SlotAt(c, o int) (any, bool) {
	if c >= len(t.chunks) || !t.present[c][o] {
		return nil, false
	}
	return t.chunks[c][o], true
}

// SetSlotAt implements ManagedChunkTable, unboxing value into slot
// (c,o), growing the table on demand. A nil value clears the slot.
func (t *ManagedTable[T]) SetSlotAt(c, o int, value any) {
	t.ensureChunk(c)
	if value == nil {
		var zero T
		t.chunks[c][o] = zero
		t.present[c][o] = false
		return
	}
	v, ok := value.(T)
	if !ok {
		return
	}
	t.chunks[c][o] = v
	t.present[c][o] = true
}

// ElementSize implements IComponentTable: managed references have no
// fixed byte size, reported as the size of a pointer for bookkeeping.
func (t *ManagedTable[T]) ElementSize() int { return int(unsafe.Sizeof(uintptr(0))) }

// ChunkCount implements IComponentTable.
func (t *ManagedTable[T]) ChunkCount() int { return len(t.chunks) }

// ChunkVersion implements IComponentTable.
func (t *ManagedTable[T]) ChunkVersion(c int) uint32 { return t.versions[c] }

// Reset drops every chunk's references and presence bits, returning the
// table to its just-constructed state; see ComponentTable.Reset.
func (t *ManagedTable[T]) Reset() {
	t.chunks = nil
	t.present = nil
	t.versions = nil
}

// HasChanges implements IComponentTable.
func (t *ManagedTable[T]) HasChanges(since uint32) bool {
	for _, v := range t.versions {
		if v > since {
			return true
		}
	}
	return false
}

// VersionForEntity implements IComponentTable.
func (t *ManagedTable[T]) VersionForEntity(idx uint32) uint32 {
	c, _ := t.chunkFor(idx)
	if c >= len(t.versions) {
		return 0
	}
	return t.versions[c]
}

// Set stores value at idx and stamps its chunk's version.
func (t *ManagedTable[T]) Set(idx uint32, value T, version uint32) {
	c, o := t.chunkFor(idx)
	t.ensureChunk(c)
	t.chunks[c][o] = value
	t.present[c][o] = true
	t.versions[c] = version
}

// Get returns idx's reference; MissingComponent if never set.
func (t *ManagedTable[T]) Get(idx uint32) (T, error) {
	var zero T
	c, o := t.chunkFor(idx)
	if c >= len(t.chunks) || !t.present[c][o] {
		return zero, NewError(ErrMissingComponent, "managed component not set")
	}
	return t.chunks[c][o], nil
}

// Clear removes idx's reference (sets the present bit false, drops the
// reference so the GC can reclaim it).
func (t *ManagedTable[T]) Clear(idx uint32) {
	c, o := t.chunkFor(idx)
	if c >= len(t.chunks) {
		return
	}
	var zero T
	t.chunks[c][o] = zero
	t.present[c][o] = false
}

// SetRaw implements IComponentTable: managed tables cannot accept raw
// byte payloads, spec §4.5's Unsupported error.
func (t *ManagedTable[T]) SetRaw(idx uint32, data []byte, version uint32) error {
	return NewError(ErrUnsupported, "set_raw is unsupported on a managed table")
}

// SetRawObject implements IComponentTable by type-asserting obj to T.
func (t *ManagedTable[T]) SetRawObject(idx uint32, obj any) error {
	v, ok := obj.(T)
	if !ok {
		return NewError(ErrUnsupported, "object does not match managed component type")
	}
	t.Set(idx, v, t.VersionForEntity(idx))
	return nil
}

// GetRawObject implements IComponentTable.
func (t *ManagedTable[T]) GetRawObject(idx uint32) (any, error) {
	return t.Get(idx)
}

// ClearRaw implements IComponentTable.
func (t *ManagedTable[T]) ClearRaw(idx uint32) {
	t.Clear(idx)
}

// SyncFrom implements IComponentTable: a shallow copy of references
// from other's dirty chunks. Mutability of the referent after sync
// remains the caller's responsibility (spec §4.5).
func (t *ManagedTable[T]) SyncFrom(other IComponentTable, dirtyOnly bool, sinceVersion uint32) error {
	src, ok := other.(*ManagedTable[T])
	if !ok {
		return NewError(ErrUnsupported, "sync source type mismatch")
	}
	for c := range src.chunks {
		if dirtyOnly && src.versions[c] <= sinceVersion {
			continue
		}
		t.ensureChunk(c)
		copy(t.chunks[c], src.chunks[c])
		copy(t.present[c], src.present[c])
		t.versions[c] = src.versions[c]
	}
	return nil
}

// Present reports whether a reference is live at slot (c,o) in chunk c.
func (t *ManagedTable[T]) Present(c, o int) bool {
	if c >= len(t.present) {
		return false
	}
	return t.present[c][o]
}

// CopyChunkTo copies chunk c's references into dst.
func (t *ManagedTable[T]) CopyChunkTo(c int, dst []T) {
	copy(dst, t.chunks[c])
}

// RestoreChunkFrom overwrites chunk c from src, allocating on demand.
func (t *ManagedTable[T]) RestoreChunkFrom(c int, src []T) {
	t.ensureChunk(c)
	copy(t.chunks[c], src)
	for o := range src {
		t.present[c][o] = true
	}
}
