package octree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"octaworld/internal/geom"
)

func box(minX, minY, minZ, maxX, maxY, maxZ float64) geom.AABB {
	return geom.AABB{
		Min: geom.Vector3{X: minX, Y: minY, Z: minZ},
		Max: geom.Vector3{X: maxX, Y: maxY, Z: maxZ},
	}
}

func worldBounds() geom.AABB {
	return box(-100, -100, -100, 100, 100, 100)
}

func TestNewRejectsInvalidBounds(t *testing.T) {
	_, err := New[int](worldBounds(), 0, 4)
	require.Error(t, err)

	_, err = New[int](worldBounds(), 4, -1)
	require.Error(t, err)
}

func TestInsertAndSearchRoundTrip(t *testing.T) {
	idx, err := New[string](worldBounds(), 4, 4)
	require.NoError(t, err)

	h := idx.Insert("a", box(1, 1, 1, 2, 2, 2))
	require.Equal(t, 1, idx.Len())
	require.False(t, idx.IsEmpty())

	hits := idx.Search(box(0, 0, 0, 3, 3, 3))
	require.Contains(t, hits, h)
}

// S1: two boxes that share a face must both be returned by a query that
// touches that face, under the closed-interval overlap predicate.
func TestS1SharedFaceBoxesBothMatch(t *testing.T) {
	idx, err := New[string](worldBounds(), 4, 4)
	require.NoError(t, err)

	left := idx.Insert("left", box(0, 0, 0, 5, 5, 5))
	right := idx.Insert("right", box(5, 0, 0, 10, 5, 5))

	hits := idx.Search(box(4, 0, 0, 6, 5, 5))
	require.ElementsMatch(t, []Handle{left, right}, hits)
}

// S2: an item too large to fit any child of a node at capacity is still
// admitted at that node, exceeding the soft capacity.
func TestS2OversizedItemAdmittedAtCapacity(t *testing.T) {
	idx, err := New[int](worldBounds(), 1, 3)
	require.NoError(t, err)

	idx.Insert(1, box(-1, -1, -1, 1, 1, 1))

	huge := worldBounds()
	h := idx.Insert(2, huge)

	require.Equal(t, 2, idx.Len())
	hits := idx.Search(huge)
	require.Contains(t, hits, h)
}

// S3: relocating a handle is observationally equivalent to a remove
// followed by a re-insert at the new box, but the handle identity survives.
func TestS3RelocateRoundTrip(t *testing.T) {
	idx, err := New[string](worldBounds(), 2, 4)
	require.NoError(t, err)

	h := idx.Insert("mover", box(0, 0, 0, 1, 1, 1))
	require.NoError(t, idx.Relocate(h, box(50, 50, 50, 51, 51, 51)))

	require.Empty(t, idx.Search(box(0, 0, 0, 1, 1, 1)))

	hits := idx.Search(box(50, 50, 50, 51, 51, 51))
	require.Equal(t, []Handle{h}, hits)

	v, err := idx.Value(h)
	require.NoError(t, err)
	require.Equal(t, "mover", *v)
}

// S4: a query box that fully contains a whole subtree must return every
// item in that subtree without re-testing each one against the query.
func TestS4QueryCoveringSubtreeDumpsWithoutIntersectionTest(t *testing.T) {
	idx, err := New[int](worldBounds(), 1, 3)
	require.NoError(t, err)

	// Force subdivision: insert enough small, child-containable boxes that
	// a child node is created and populated.
	idx.Insert(1, box(1, 1, 1, 2, 2, 2))
	idx.Insert(2, box(1, 1, 1, 1.5, 1.5, 1.5))
	idx.Insert(3, box(1.6, 1.6, 1.6, 1.9, 1.9, 1.9))

	all := idx.Search(worldBounds())
	require.Len(t, all, 3)
}

// A migrated item's arena back-link must follow it to its new node so
// that later Remove/Relocate calls through its original handle operate
// on the list element actually holding it, not a stale, already-removed
// one in the old node.
func TestMigratedItemHandleStaysValidAfterRebalance(t *testing.T) {
	idx, err := New[string](worldBounds(), 1, 3)
	require.NoError(t, err)

	migratable := idx.Insert("migratable", box(1, 1, 1, 2, 2, 2))

	// Triggers the root's rebalance: root is at capacity (1) with an item
	// that DOES fit a child, and the new item below doesn't fit any child,
	// so "migratable" is pushed down into the positive octant.
	oversized := idx.Insert("oversized", worldBounds())
	require.Equal(t, 2, idx.Len())

	// If the back-link were stale, this would silently no-op (removing a
	// list element already unlinked from its old list by the migration),
	// leaving a ghost entry in the child node forever.
	require.NoError(t, idx.Remove(migratable))
	require.Equal(t, 1, idx.Len())

	replacement := idx.Insert("replacement", box(1, 1, 1, 2, 2, 2))
	hits := idx.Search(box(1, 1, 1, 2, 2, 2))
	require.Equal(t, []Handle{oversized, replacement}, hits, "a stale back-link would leave a duplicate ghost entry for the migrated slot")

	hits = idx.Search(worldBounds())
	require.ElementsMatch(t, []Handle{oversized, replacement}, hits)
}

func TestRemoveInvalidatesHandle(t *testing.T) {
	idx, err := New[int](worldBounds(), 4, 4)
	require.NoError(t, err)

	h := idx.Insert(7, box(0, 0, 0, 1, 1, 1))
	require.NoError(t, idx.Remove(h))
	require.Equal(t, 0, idx.Len())

	_, err = idx.Value(h)
	require.Error(t, err)

	err = idx.Remove(h)
	require.Error(t, err)

	err = idx.Relocate(h, box(0, 0, 0, 1, 1, 1))
	require.Error(t, err)
}

func TestHandleReuseAfterRemoveDoesNotAliasOldHandle(t *testing.T) {
	idx, err := New[int](worldBounds(), 4, 4)
	require.NoError(t, err)

	h1 := idx.Insert(1, box(0, 0, 0, 1, 1, 1))
	require.NoError(t, idx.Remove(h1))

	h2 := idx.Insert(2, box(0, 0, 0, 1, 1, 1))

	_, err = idx.Value(h1)
	require.Error(t, err, "a stale handle must not resolve even if its slot index is reused")

	v2, err := idx.Value(h2)
	require.NoError(t, err)
	require.Equal(t, 2, *v2)
}

func TestRemoveWhereFindsByIdentity(t *testing.T) {
	idx, err := New[string](worldBounds(), 4, 4)
	require.NoError(t, err)

	idx.Insert("a", box(0, 0, 0, 1, 1, 1))
	target := idx.Insert("target", box(2, 2, 2, 3, 3, 3))
	idx.Insert("b", box(4, 4, 4, 5, 5, 5))

	h, ok := idx.RemoveWhere(func(payload string) bool { return payload == "target" })
	require.True(t, ok)
	require.Equal(t, target, h)
	require.Equal(t, 2, idx.Len())

	_, err = idx.Value(target)
	require.Error(t, err)
}

func TestRemoveWhereReportsNoMatch(t *testing.T) {
	idx, err := New[string](worldBounds(), 4, 4)
	require.NoError(t, err)

	idx.Insert("a", box(0, 0, 0, 1, 1, 1))
	_, ok := idx.RemoveWhere(func(payload string) bool { return payload == "missing" })
	require.False(t, ok)
	require.Equal(t, 1, idx.Len())
}

func TestClearInvalidatesAllHandles(t *testing.T) {
	idx, err := New[int](worldBounds(), 4, 4)
	require.NoError(t, err)

	h := idx.Insert(1, box(0, 0, 0, 1, 1, 1))
	idx.Clear()

	require.Equal(t, 0, idx.Len())
	require.True(t, idx.IsEmpty())

	_, err = idx.Value(h)
	require.Error(t, err)
}

func TestHandleReuseAfterClearDoesNotAliasOldHandle(t *testing.T) {
	idx, err := New[int](worldBounds(), 4, 4)
	require.NoError(t, err)

	h := idx.Insert(1, box(0, 0, 0, 1, 1, 1))
	idx.Clear()

	// Reoccupies the same slot index the cleared handle pointed at.
	h2 := idx.Insert(2, box(0, 0, 0, 1, 1, 1))

	_, err = idx.Value(h)
	require.Error(t, err, "a handle from before Clear must not resolve even if its slot index is reused")

	v2, err := idx.Value(h2)
	require.NoError(t, err)
	require.Equal(t, 2, *v2)
}

func TestResizeClearsAndRebinds(t *testing.T) {
	idx, err := New[int](worldBounds(), 4, 4)
	require.NoError(t, err)

	idx.Insert(1, box(0, 0, 0, 1, 1, 1))
	idx.Resize(box(-10, -10, -10, 10, 10, 10))

	require.Equal(t, 0, idx.Len())
	require.Equal(t, box(-10, -10, -10, 10, 10, 10), idx.Bounds())
}

func TestContainmentSoundnessDeepTree(t *testing.T) {
	idx, err := New[int](worldBounds(), 1, 6)
	require.NoError(t, err)

	var handles []Handle
	for i := 0; i < 64; i++ {
		f := float64(i % 8)
		b := box(f, f, f, f+0.5, f+0.5, f+0.5)
		handles = append(handles, idx.Insert(i, b))
	}

	for i, h := range handles {
		b, err := idx.Box(h)
		require.NoError(t, err)
		hits := idx.Search(b)
		require.Contains(t, hits, h, "item %d must be found by a query over its own box", i)
	}
}
