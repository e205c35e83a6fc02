package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queryTestA struct{ V int }
type queryTestB struct{ V int }

func newQueryTestWorld(t *testing.T) *World {
	t.Helper()
	w := NewDefaultWorld()
	t.Cleanup(w.Close)
	return w
}

// Test_Query_With_Without_FilterCombination tests that a query
// combining With and Without only matches entities satisfying both.
func Test_Query_With_Without_FilterCombination(t *testing.T) {
	w := newQueryTestWorld(t)
	_, err := RegisterComponent[queryTestA](w)
	require.NoError(t, err)
	_, err = RegisterComponent[queryTestB](w)
	require.NoError(t, err)

	both := w.CreateEntity()
	require.NoError(t, Add(w, both, queryTestA{V: 1}))
	require.NoError(t, Add(w, both, queryTestB{V: 1}))

	onlyA := w.CreateEntity()
	require.NoError(t, Add(w, onlyA, queryTestA{V: 1}))

	q := Without[queryTestB](With[queryTestA](w.Query())).Build()

	var matched []Entity
	q.ForEach(func(e Entity, h *EntityHeader) { matched = append(matched, e) })

	assert.Equal(t, []Entity{onlyA}, matched)
}

// Test_Query_WithAuthority tests the authority-mask filter family.
func Test_Query_WithAuthority(t *testing.T) {
	w := newQueryTestWorld(t)
	_, err := RegisterComponent[queryTestA](w)
	require.NoError(t, err)

	owned := w.CreateEntity()
	require.NoError(t, Add(w, owned, queryTestA{V: 1}))
	require.NoError(t, SetAuthority[queryTestA](w, owned, true))

	unowned := w.CreateEntity()
	require.NoError(t, Add(w, unowned, queryTestA{V: 1}))

	q := WithAuthority[queryTestA](w.Query()).Build()

	assert.Equal(t, 1, q.Count())
	found, ok := q.FirstOrNull()
	assert.True(t, ok)
	assert.Equal(t, owned, found)
}

// Test_Query_WithKind tests the optional kind-tag bitmask filter.
func Test_Query_WithKind(t *testing.T) {
	w := newQueryTestWorld(t)
	e := w.CreateEntity()
	h, err := w.Index().GetHeader(e)
	require.NoError(t, err)
	h.KindTag = 0b10

	matching := w.Query().WithKind(0b11, 0b10).Build()
	nonMatching := w.Query().WithKind(0b11, 0b01).Build()

	assert.True(t, matching.Any())
	assert.False(t, nonMatching.Any())
}

// Test_Query_ForEachChunked_MatchesForEach tests that the
// chunk-skipping iteration visits the same entity set as the plain
// linear scan.
func Test_Query_ForEachChunked_MatchesForEach(t *testing.T) {
	w := newQueryTestWorld(t)
	_, err := RegisterComponent[queryTestA](w)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		e := w.CreateEntity()
		require.NoError(t, Add(w, e, queryTestA{V: i}))
	}

	q := With[queryTestA](w.Query()).Build()
	var linear, chunked []Entity
	q.ForEach(func(e Entity, h *EntityHeader) { linear = append(linear, e) })
	q.ForEachChunked(func(e Entity, h *EntityHeader) { chunked = append(chunked, e) })

	assert.Equal(t, linear, chunked)
}

// Test_Query_ForEachParallel_VisitsAllMatches tests that the parallel
// iterator covers the full matching set exactly once, regardless of
// batch hint.
func Test_Query_ForEachParallel_VisitsAllMatches(t *testing.T) {
	w := newQueryTestWorld(t)
	_, err := RegisterComponent[queryTestA](w)
	require.NoError(t, err)
	const n = 50
	for i := 0; i < n; i++ {
		e := w.CreateEntity()
		require.NoError(t, Add(w, e, queryTestA{V: i}))
	}

	q := With[queryTestA](w.Query()).Build()
	seen := make(chan Entity, n)
	err = q.ForEachParallel(func(e Entity, h *EntityHeader) { seen <- e }, HintVeryHeavy)
	require.NoError(t, err)
	close(seen)

	count := 0
	for range seen {
		count++
	}
	assert.Equal(t, n, count)
}

// Test_Query_Count_Any_FirstOrNull_EmptyResult tests the convenience
// accessors on a query with zero matches.
func Test_Query_Count_Any_FirstOrNull_EmptyResult(t *testing.T) {
	w := newQueryTestWorld(t)
	_, err := RegisterComponent[queryTestA](w)
	require.NoError(t, err)

	q := With[queryTestA](w.Query()).Build()

	assert.Equal(t, 0, q.Count())
	assert.False(t, q.Any())
	_, ok := q.FirstOrNull()
	assert.False(t, ok)
}

// Test_Query_QueryDelta_HeaderVersusChunkVersion tests that QueryDelta
// catches both a header-level change and a chunk-level change that
// left the header's own LastChangeTick untouched.
func Test_Query_QueryDelta_HeaderVersusChunkVersion(t *testing.T) {
	w := newQueryTestWorld(t)
	aID, err := RegisterComponent[queryTestA](w)
	require.NoError(t, err)
	e := w.CreateEntity()
	require.NoError(t, Add(w, e, queryTestA{V: 1}))
	baseline := w.GlobalVersion()

	w.Tick()
	_, err = GetRW[queryTestA](w, e)
	require.NoError(t, err)

	q := With[queryTestA](w.Query()).Build()
	var hit []Entity
	q.QueryDelta(baseline, []int{aID}, func(e Entity, h *EntityHeader) { hit = append(hit, e) })

	assert.Equal(t, []Entity{e}, hit)
}

// Test_Query_QueryTimeSliced_ResumesFromNextIndex tests that a
// count-bounded time slice stops mid-scan and a follow-up call
// resumes from the saved position rather than restarting.
func Test_Query_QueryTimeSliced_ResumesFromNextIndex(t *testing.T) {
	w := newQueryTestWorld(t)
	_, err := RegisterComponent[queryTestA](w)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		e := w.CreateEntity()
		require.NoError(t, Add(w, e, queryTestA{V: i}))
	}

	q := With[queryTestA](w.Query()).Build()
	var state IterState
	var first, second []Entity
	q.QueryTimeSliced(&state, 2, MetricProcessedCount, func(e Entity, h *EntityHeader) { first = append(first, e) })
	q.QueryTimeSliced(&state, 100, MetricProcessedCount, func(e Entity, h *EntityHeader) { second = append(second, e) })

	assert.Len(t, first, 2)
	assert.Len(t, second, 3)
}

// Test_Query_DebugAudit_PublishesMaskDesyncOnDrift tests that enabling
// Config.DebugAudit surfaces a MaskDesync event when an entity header's
// component_mask disagrees with the table's actual presence bit,
// instead of ForEach silently trusting the mask.
func Test_Query_DebugAudit_PublishesMaskDesyncOnDrift(t *testing.T) {
	w := NewWorld(func() Config {
		cfg := DefaultConfig()
		cfg.DebugAudit = true
		return cfg
	}(), nil)
	t.Cleanup(w.Close)
	aID, err := RegisterComponent[queryTestA](w)
	require.NoError(t, err)

	e := w.CreateEntity()
	require.NoError(t, Add(w, e, queryTestA{V: 1}))
	h, err := w.Index().GetHeader(e)
	require.NoError(t, err)
	h.ComponentMask.Clear(aID) // desync: table still has the row, mask says absent

	q := w.Query().Build()
	q.ForEach(func(Entity, *EntityHeader) {})
	w.Bus().SwapBuffers()

	events := ConsumeManaged[MaskDesyncEvent](w.Bus())
	require.Len(t, events, 1)
	assert.Equal(t, aID, events[0].TypeID)
	assert.False(t, events[0].InMask)
	assert.True(t, events[0].TablePresent)
}
