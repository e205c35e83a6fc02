package ecs

// EntityHeader is the 96-byte, 32-byte-aligned slot metadata every entity
// owns. Grounded on the teacher's types.go (EntityID/flags conventions)
// generalized from a bare uint64 ID into the spec's full header, and on
// lazyecs's entityMeta (archetypeIndex/index/version) for the free-list
// recycling idiom, widened with the fields spec §3 names.
type EntityHeader struct {
	ComponentMask  BitMask256 // 32 bytes
	AuthorityMask  BitMask256 // 32 bytes
	Generation     uint16
	Flags          uint16
	LastChangeTick uint64
	KindTag        uint64
	Lifecycle      Lifecycle
	_pad           [11]byte // pad to 96 bytes, keeps 32-byte alignment of the two masks
}

// FlagActive is bit 0 of EntityHeader.Flags: the slot is currently live.
const FlagActive uint16 = 1 << 0

// Active reports whether the header's active flag is set.
func (h *EntityHeader) Active() bool {
	return h.Flags&FlagActive != 0
}

func (h *EntityHeader) setActive(active bool) {
	if active {
		h.Flags |= FlagActive
	} else {
		h.Flags &^= FlagActive
	}
}

// headerChunkCap is the number of EntityHeader slots per 64 KiB page:
// floor(65536 / sizeof(EntityHeader)).
const headerChunkCap = 65536 / 96

// destroyedSlot is one entry of the per-frame destruction log consumed
// by the recorder (spec §4.11 step 2) and by Query.query_delta-style
// consumers that need to know what left this frame.
type destroyedSlot struct {
	Index      uint32
	Generation uint16
}

// EntityIndex owns the growing, chunked array of EntityHeaders and the
// LIFO free list used to recycle destroyed slots. Grounded on the
// teacher's entity_manager.go (DefaultEntityManager's activeEntities/
// recycledIDs bookkeeping), restructured from a map-based active set
// into chunked arrays per spec §4.4.
type EntityIndex struct {
	chunks       [][]EntityHeader // each chunk has headerChunkCap slots
	chunkVersion []uint32         // per-chunk version counter, stamped on structural writes
	chunkLivePop []int            // per-chunk count of active headers
	freeList     []uint32         // LIFO stack of recyclable slot indices
	maxIssued    uint32           // one past the highest slot index ever handed out
	activeCount  int
	destroyed    []destroyedSlot // this frame's destruction log
}

// NewEntityIndex returns an empty index.
func NewEntityIndex() *EntityIndex {
	return &EntityIndex{}
}

func (idx *EntityIndex) chunkFor(slot uint32) (chunk int, offset int) {
	return int(slot) / headerChunkCap, int(slot) % headerChunkCap
}

func (idx *EntityIndex) ensureChunk(chunk int) {
	for len(idx.chunks) <= chunk {
		idx.chunks = append(idx.chunks, make([]EntityHeader, headerChunkCap))
		idx.chunkVersion = append(idx.chunkVersion, 0)
		idx.chunkLivePop = append(idx.chunkLivePop, 0)
	}
}

// Create pops a free slot (or grows the index) and returns a fresh
// Entity handle: active, generation bumped, masks cleared.
func (idx *EntityIndex) Create() Entity {
	var slot uint32
	if n := len(idx.freeList); n > 0 {
		slot = idx.freeList[n-1]
		idx.freeList = idx.freeList[:n-1]
	} else {
		slot = idx.maxIssued
		idx.maxIssued++
	}
	c, o := idx.chunkFor(slot)
	idx.ensureChunk(c)
	h := &idx.chunks[c][o]
	gen := h.Generation + 1
	if gen == 0 {
		gen = 1 // generation is never zero, spec §3
	}
	*h = EntityHeader{Generation: gen, Lifecycle: LifecycleActive}
	h.setActive(true)
	idx.chunkLivePop[c]++
	idx.activeCount++
	return Entity{Index: slot, Generation: gen}
}

// Destroy validates e's generation, clears its masks, marks it inactive,
// pushes the slot onto the free list, and appends it to the frame
// destruction log. Returns StaleHandle if e does not match the header.
func (idx *EntityIndex) Destroy(e Entity) error {
	h, err := idx.header(e)
	if err != nil {
		return err
	}
	c, _ := idx.chunkFor(e.Index)
	h.ComponentMask.ClearAll()
	h.AuthorityMask.ClearAll()
	h.setActive(false)
	h.Lifecycle = LifecycleTearDown
	idx.chunkLivePop[c]--
	idx.activeCount--
	idx.freeList = append(idx.freeList, e.Index)
	idx.destroyed = append(idx.destroyed, destroyedSlot{Index: e.Index, Generation: e.Generation})
	return nil
}

// header resolves e to its EntityHeader, validating the generation and
// that the slot is active.
func (idx *EntityIndex) header(e Entity) (*EntityHeader, error) {
	if e.Index >= idx.maxIssued {
		return nil, StaleHandleErr(e)
	}
	c, o := idx.chunkFor(e.Index)
	h := &idx.chunks[c][o]
	if h.Generation != e.Generation || !h.Active() {
		return nil, StaleHandleErr(e)
	}
	return h, nil
}

// GetHeader returns e's header after validating the handle.
func (idx *EntityIndex) GetHeader(e Entity) (*EntityHeader, error) {
	return idx.header(e)
}

// GetHeaderUnchecked returns the header at a raw slot index without
// generation validation; used by iterators that already know the slot
// is in range (e.g. query iteration over [0, max_issued)).
func (idx *EntityIndex) GetHeaderUnchecked(slot uint32) *EntityHeader {
	c, o := idx.chunkFor(slot)
	return &idx.chunks[c][o]
}

// IsAlive reports whether e currently refers to a live slot.
func (idx *EntityIndex) IsAlive(e Entity) bool {
	_, err := idx.header(e)
	return err == nil
}

// MaxIssued is one past the highest slot index ever allocated.
func (idx *EntityIndex) MaxIssued() uint32 { return idx.maxIssued }

// ActiveCount is the number of currently live entities.
func (idx *EntityIndex) ActiveCount() int { return idx.activeCount }

// ChunkCount is the number of allocated header chunks.
func (idx *EntityIndex) ChunkCount() int { return len(idx.chunks) }

// HeaderChunkCap is the number of EntityHeader slots per chunk, needed
// by the recorder to size a raw-byte scratch buffer for type_id -1
// blobs.
func (idx *EntityIndex) HeaderChunkCap() int { return headerChunkCap }

// ChunkLivePopulation returns the number of active headers in chunk c.
func (idx *EntityIndex) ChunkLivePopulation(c int) int { return idx.chunkLivePop[c] }

// ChunkVersion returns chunk c's version counter.
func (idx *EntityIndex) ChunkVersion(c int) uint32 { return idx.chunkVersion[c] }

// touchChunk stamps chunk c's version to the repository's current
// global_version; called whenever a header field changes structurally.
func (idx *EntityIndex) touchChunk(slot uint32, version uint32) {
	c, _ := idx.chunkFor(slot)
	idx.chunkVersion[c] = version
}

// DrainDestructions returns and clears this frame's destruction log;
// called once per frame by the recorder and by command-buffer playback
// bookkeeping.
func (idx *EntityIndex) DrainDestructions() []destroyedSlot {
	out := idx.destroyed
	idx.destroyed = nil
	return out
}

// ForceRestore hydrates a slot at a specific generation; used by
// Playback to reinstate entities from a recording without going
// through the normal Create free-list path.
func (idx *EntityIndex) ForceRestore(slot uint32, active bool, generation uint16, mask BitMask256, kind uint64) {
	c, o := idx.chunkFor(slot)
	idx.ensureChunk(c)
	h := &idx.chunks[c][o]
	*h = EntityHeader{ComponentMask: mask, Generation: generation, KindTag: kind}
	h.setActive(active)
	if slot >= idx.maxIssued {
		idx.maxIssued = slot + 1
	}
}

// CopyChunkTo copies header chunk c's raw bytes into dst, which must be
// at least headerChunkCap elements long. Used by the recorder to emit
// dirty header chunks as type_id -1 blobs.
func (idx *EntityIndex) CopyChunkTo(c int, dst []EntityHeader) {
	copy(dst, idx.chunks[c])
}

// RestoreChunkFrom overwrites header chunk c with src, growing the
// index if c has not been allocated yet. Used by Playback.
func (idx *EntityIndex) RestoreChunkFrom(c int, src []EntityHeader) {
	idx.ensureChunk(c)
	copy(idx.chunks[c], src)
}

// ResetAll discards every chunk, returning the index to its
// just-constructed state; used by Playback before restoring a keyframe
// (spec §4.11 step 1).
func (idx *EntityIndex) ResetAll() {
	idx.chunks = nil
	idx.chunkVersion = nil
	idx.chunkLivePop = nil
	idx.freeList = nil
	idx.maxIssued = 0
	idx.activeCount = 0
	idx.destroyed = nil
}

// RebuildMetadata recomputes active_count, max_issued and per-chunk live
// populations after a bulk restore; spec §4.4/§4.11 step 6.
func (idx *EntityIndex) RebuildMetadata() {
	idx.activeCount = 0
	idx.maxIssued = 0
	idx.freeList = idx.freeList[:0]
	for c := range idx.chunks {
		live := 0
		for o := range idx.chunks[c] {
			h := &idx.chunks[c][o]
			slot := uint32(c*headerChunkCap + o)
			if h.Generation == 0 {
				continue
			}
			if slot+1 > idx.maxIssued {
				idx.maxIssued = slot + 1
			}
			if h.Active() {
				live++
				idx.activeCount++
			} else {
				idx.freeList = append(idx.freeList, slot)
			}
		}
		idx.chunkLivePop[c] = live
	}
}
