package ecs

import (
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Hint steers for_each_parallel's batch sizing (spec §4.7).
type Hint int

const (
	HintLight Hint = iota
	HintMedium
	HintHeavy
	HintVeryHeavy
)

func (h Hint) baselineBatch() int {
	switch h {
	case HintLight:
		return 1024
	case HintMedium:
		return 256
	case HintHeavy:
		return 64
	case HintVeryHeavy:
		return 16
	default:
		return 1024
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Query is the immutable, compiled filter spec §4.7 describes: an
// include/exclude component mask pair, an include/exclude authority
// mask pair, and an optional kind-tag filter. Grounded on the teacher's
// query/builder.go fluent With/Without/WithAll builder (trimmed to this
// filter surface — the teacher's spatial/hierarchical/temporal/grouping
// extensions have no place in this spec) and query/bitset.go's
// composite-predicate style.
type Query struct {
	world    *World
	include  BitMask256
	exclude  BitMask256
	authIn   BitMask256
	authEx   BitMask256
	kindSet  bool
	kindMask uint64
	kindVal  uint64
}

// QueryBuilder accumulates filter terms before Build compiles them into
// an immutable Query.
type QueryBuilder struct {
	q Query
}

// NewQueryBuilder starts a fresh builder bound to world.
func NewQueryBuilder(world *World) *QueryBuilder {
	return &QueryBuilder{q: Query{world: world}}
}

// Query returns a builder bound to w, the entry point named in spec §4.6.
func (w *World) Query() *QueryBuilder {
	return NewQueryBuilder(w)
}

// With requires component T to be present.
func With[T any](b *QueryBuilder) *QueryBuilder {
	id, err := TypeIDFor[T]()
	if err == nil {
		b.q.include.Set(id)
	}
	return b
}

// Without excludes entities carrying component T.
func Without[T any](b *QueryBuilder) *QueryBuilder {
	id, err := TypeIDFor[T]()
	if err == nil {
		b.q.exclude.Set(id)
	}
	return b
}

// WithAuthority requires authority over component T.
func WithAuthority[T any](b *QueryBuilder) *QueryBuilder {
	id, err := TypeIDFor[T]()
	if err == nil {
		b.q.authIn.Set(id)
	}
	return b
}

// WithoutAuthority excludes entities with authority over T.
func WithoutAuthority[T any](b *QueryBuilder) *QueryBuilder {
	id, err := TypeIDFor[T]()
	if err == nil {
		b.q.authEx.Set(id)
	}
	return b
}

// WithKind adds the optional header kind-tag filter: entities match
// only if (header.kind_tag & mask) == value.
func (b *QueryBuilder) WithKind(mask, value uint64) *QueryBuilder {
	b.q.kindSet = true
	b.q.kindMask = mask
	b.q.kindVal = value
	return b
}

// Build compiles the accumulated terms into an immutable Query.
func (b *QueryBuilder) Build() *Query {
	q := b.q
	return &q
}

// Matches reports whether header h satisfies the query.
func (q *Query) Matches(h *EntityHeader) bool {
	if !Matches(h.ComponentMask, q.include, q.exclude) {
		return false
	}
	if !Matches(h.AuthorityMask, q.authIn, q.authEx) {
		return false
	}
	if q.kindSet && (h.KindTag&q.kindMask) != q.kindVal {
		return false
	}
	return true
}

// auditMaskDesync walks every live entity and compares each registered
// component table's presence bit against the entity header's
// component_mask, publishing a MaskDesyncEvent (spec §9 "mask-vs-table
// drift") for every disagreement rather than silently trusting either
// side. Gated by Config.DebugAudit since it touches every table for
// every live entity.
func (q *Query) auditMaskDesync() {
	idx := q.world.index
	for slot := uint32(0); slot < idx.MaxIssued(); slot++ {
		h := idx.GetHeaderUnchecked(slot)
		if !h.Active() {
			continue
		}
		for typeID, table := range q.world.tables {
			inMask := h.ComponentMask.Test(typeID)
			_, err := table.GetRawObject(slot)
			present := err == nil
			if inMask != present {
				PublishManaged(q.world.bus, MaskDesyncEvent{
					Entity:       Entity{Index: slot, Generation: h.Generation},
					TypeID:       typeID,
					InMask:       inMask,
					TablePresent: present,
				})
			}
		}
	}
}

// ForEach linearly scans [0, max_issued) in ascending index order,
// invoking action for every active header that matches. If
// Config.DebugAudit is set, runs the MaskDesync diagnostic audit first.
func (q *Query) ForEach(action func(e Entity, h *EntityHeader)) {
	if q.world.cfg.DebugAudit {
		q.auditMaskDesync()
	}
	idx := q.world.index
	for slot := uint32(0); slot < idx.MaxIssued(); slot++ {
		h := idx.GetHeaderUnchecked(slot)
		if !h.Active() || !q.Matches(h) {
			continue
		}
		action(Entity{Index: slot, Generation: h.Generation}, h)
	}
}

// ForEachChunked skips header chunks with zero live population before
// iterating within a chunk, still in ascending index order.
func (q *Query) ForEachChunked(action func(e Entity, h *EntityHeader)) {
	idx := q.world.index
	for c := 0; c < idx.ChunkCount(); c++ {
		if idx.ChunkLivePopulation(c) == 0 {
			continue
		}
		base := uint32(c * headerChunkCap)
		for o := 0; o < headerChunkCap; o++ {
			slot := base + uint32(o)
			if slot >= idx.MaxIssued() {
				return
			}
			h := idx.GetHeaderUnchecked(slot)
			if !h.Active() || !q.Matches(h) {
				continue
			}
			action(Entity{Index: slot, Generation: h.Generation}, h)
		}
	}
}

// ForEachParallel splits populated chunks into batches sized per hint
// and fans them out over an errgroup bounded by GOMAXPROCS (spec §4.7,
// wiring choice recorded in SPEC_FULL §10). action must not mutate the
// world directly; it should enqueue onto a thread-local CommandBuffer.
// Batches are disjoint and ordered by construction.
func (q *Query) ForEachParallel(action func(e Entity, h *EntityHeader), hint Hint) error {
	idx := q.world.index
	active := idx.ActiveCount()
	batch := hint.baselineBatch()
	if hint == HintLight {
		cores := runtime.GOMAXPROCS(0)
		if cores < 1 {
			cores = 1
		}
		batch = clampInt(active/(cores*2), 512, 8192)
		if active < 1024 {
			q.ForEach(action)
			return nil
		}
	}

	var g errgroup.Group
	maxIssued := idx.MaxIssued()
	for start := uint32(0); start < maxIssued; start += uint32(batch) {
		end := start + uint32(batch)
		if end > maxIssued {
			end = maxIssued
		}
		s, e := start, end
		g.Go(func() error {
			for slot := s; slot < e; slot++ {
				h := idx.GetHeaderUnchecked(slot)
				if !h.Active() || !q.Matches(h) {
					continue
				}
				action(Entity{Index: slot, Generation: h.Generation}, h)
			}
			return nil
		})
	}
	return g.Wait()
}

// Count returns the number of matching entities.
func (q *Query) Count() int {
	n := 0
	q.ForEach(func(Entity, *EntityHeader) { n++ })
	return n
}

// Any reports whether at least one entity matches.
func (q *Query) Any() bool {
	found := false
	idx := q.world.index
	for slot := uint32(0); slot < idx.MaxIssued() && !found; slot++ {
		h := idx.GetHeaderUnchecked(slot)
		if h.Active() && q.Matches(h) {
			found = true
		}
	}
	return found
}

// FirstOrNull returns the first matching entity, if any.
func (q *Query) FirstOrNull() (Entity, bool) {
	idx := q.world.index
	for slot := uint32(0); slot < idx.MaxIssued(); slot++ {
		h := idx.GetHeaderUnchecked(slot)
		if h.Active() && q.Matches(h) {
			return Entity{Index: slot, Generation: h.Generation}, true
		}
	}
	return NullEntity, false
}

// QueryDelta matches only entities whose header changed since `since`
// or whose With-component chunk version exceeds `since` (spec §4.7).
// withTypeIDs names the component types whose chunk versions should be
// consulted (normally the query's own include set).
func (q *Query) QueryDelta(since uint32, withTypeIDs []int, action func(e Entity, h *EntityHeader)) {
	idx := q.world.index
	for slot := uint32(0); slot < idx.MaxIssued(); slot++ {
		h := idx.GetHeaderUnchecked(slot)
		if !h.Active() || !q.Matches(h) {
			continue
		}
		if uint32(h.LastChangeTick) > since {
			action(Entity{Index: slot, Generation: h.Generation}, h)
			continue
		}
		for _, id := range withTypeIDs {
			table, err := q.world.tableFor(id)
			if err != nil {
				continue
			}
			if table.VersionForEntity(slot) > since {
				action(Entity{Index: slot, Generation: h.Generation}, h)
				break
			}
		}
	}
}

// IterState tracks a resumable position for QueryTimeSliced.
type IterState struct {
	NextIndex uint32
}

// Metric selects what QueryTimeSliced bounds its work by.
type Metric int

const (
	MetricWallClock Metric = iota
	MetricProcessedCount
)

// QueryTimeSliced resumes from state.NextIndex and processes entities
// until either a wall-clock budget (nanoseconds) or a processed-count
// budget is exhausted, whichever `metric` names; state is advanced in
// place so the next call continues where this one left off.
func (q *Query) QueryTimeSliced(state *IterState, budget int64, metric Metric, action func(e Entity, h *EntityHeader)) {
	idx := q.world.index
	start := time.Now()
	processed := int64(0)
	for slot := state.NextIndex; slot < idx.MaxIssued(); slot++ {
		h := idx.GetHeaderUnchecked(slot)
		if h.Active() && q.Matches(h) {
			action(Entity{Index: slot, Generation: h.Generation}, h)
			processed++
		}
		state.NextIndex = slot + 1
		switch metric {
		case MetricWallClock:
			if time.Since(start).Nanoseconds() >= budget {
				return
			}
		case MetricProcessedCount:
			if processed >= budget {
				return
			}
		}
	}
}
