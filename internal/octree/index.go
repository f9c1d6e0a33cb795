// Package octree implements the dynamic hierarchical spatial index
// described in spec section 4.2-4.3: a recursive 8-way tree over
// axis-aligned bounding volumes, owned by an Index that hands out stable
// Handles to inserted items.
package octree

import (
	"container/list"

	"octaworld/internal/geom"
)

// DefaultCapacity is the soft cap on items per node when none is given.
const DefaultCapacity = 4

// DefaultDepth is the maximum subdivision depth from root when none is given.
const DefaultDepth = 5

// Handle is a stable, generation-checked reference to an item inserted
// into an Index. It stays valid across any number of inserts and
// relocates of other items, and across relocates of itself; it is
// invalidated only by an explicit Remove of this handle or a Clear of the
// owning Index.
type Handle struct {
	index      int
	generation uint32
}

// slot is one arena entry. Slots are heap-allocated individually
// (arena holds *slot[T], not slot[T]) so a pointer handed out by Value
// stays valid even if the arena's backing slice is reallocated by growth.
type slot[T any] struct {
	payload    T
	box        geom.AABB
	generation uint32
	occupied   bool
	node       *node
	elem       *list.Element
}

// Index is the owning container described in spec section 4.3: a stable
// arena of items paired with a back-pointer to the tree node and list
// entry currently holding each item's box.
type Index[T any] struct {
	root     *node
	bounds   geom.AABB
	capacity int
	depth    int

	slots []*slot[T]
	free  []int
	count int

	// epoch seeds the generation of every freshly-allocated slot (one not
	// recycled off the free list) and is advanced by Clear past every
	// generation stamped so far. Without it, a
	// slot index freed wholesale by Clear would restart at generation 0
	// and silently re-validate a stale pre-Clear handle to that same
	// index, aliasing the wrong payload instead of failing.
	epoch uint32
}

// New builds an Index over bounds with the given capacity (soft cap on
// items per node, must be >= 1) and depth (remaining subdivision budget,
// 0 disables subdivision).
func New[T any](bounds geom.AABB, capacity, depth int) (*Index[T], error) {
	if capacity < 1 {
		return nil, newInvalidBoundsError("capacity must be >= 1")
	}
	if depth < 0 {
		return nil, newInvalidBoundsError("depth must be >= 0")
	}

	return &Index[T]{
		root:     newNode(bounds, capacity, depth),
		bounds:   bounds,
		capacity: capacity,
		depth:    depth,
	}, nil
}

// Len returns the number of items currently indexed.
func (idx *Index[T]) Len() int { return idx.count }

// IsEmpty reports whether the index holds no items.
func (idx *Index[T]) IsEmpty() bool { return idx.count == 0 }

// Bounds returns the root boundary the index was built or last resized with.
func (idx *Index[T]) Bounds() geom.AABB { return idx.bounds }

// Insert admits payload under box and returns a stable handle to it.
// Insert never fails.
func (idx *Index[T]) Insert(payload T, box geom.AABB) Handle {
	var slotIdx int
	var gen uint32

	if n := len(idx.free); n > 0 {
		slotIdx = idx.free[n-1]
		idx.free = idx.free[:n-1]
		gen = idx.slots[slotIdx].generation
	} else {
		slotIdx = len(idx.slots)
		idx.slots = append(idx.slots, nil)
		gen = idx.epoch
	}

	n, elem := idx.root.insert(slotIdx, box, idx.relink)
	idx.slots[slotIdx] = &slot[T]{
		payload:    payload,
		box:        box,
		generation: gen,
		occupied:   true,
		node:       n,
		elem:       elem,
	}
	idx.count++

	return Handle{index: slotIdx, generation: gen}
}

// relink updates the arena back-link of an item moved to a new node as a
// side effect of inserting something else (the rebalance migration in
// spec section 4.3 step 4).
func (idx *Index[T]) relink(slotIdx int, n *node, elem *list.Element) {
	s := idx.slots[slotIdx]
	s.node = n
	s.elem = elem
}

// resolve returns the live slot for h, or an error if h has been removed.
func (idx *Index[T]) resolve(h Handle) (*slot[T], error) {
	if h.index < 0 || h.index >= len(idx.slots) {
		return nil, newUseAfterRemoveError(h)
	}
	s := idx.slots[h.index]
	if s == nil || !s.occupied || s.generation != h.generation {
		return nil, newUseAfterRemoveError(h)
	}
	return s, nil
}

// Value returns a pointer to h's payload for read/write access, or an
// error if h is no longer valid.
func (idx *Index[T]) Value(h Handle) (*T, error) {
	s, err := idx.resolve(h)
	if err != nil {
		return nil, err
	}
	return &s.payload, nil
}

// Box returns the box h is currently indexed under.
func (idx *Index[T]) Box(h Handle) (geom.AABB, error) {
	s, err := idx.resolve(h)
	if err != nil {
		return geom.AABB{}, err
	}
	return s.box, nil
}

// Relocate changes h's box without invalidating the handle: observationally
// equivalent to Remove(h) followed by Insert(payload(h), newBox), except the
// handle identity is preserved.
func (idx *Index[T]) Relocate(h Handle, newBox geom.AABB) error {
	s, err := idx.resolve(h)
	if err != nil {
		return err
	}

	s.node.items.Remove(s.elem)
	n, elem := idx.root.insert(h.index, newBox, idx.relink)
	s.node = n
	s.elem = elem
	s.box = newBox
	return nil
}

// Remove erases h from the index. It is infallible provided h was not
// previously removed.
func (idx *Index[T]) Remove(h Handle) error {
	s, err := idx.resolve(h)
	if err != nil {
		return err
	}

	s.node.items.Remove(s.elem)
	s.occupied = false
	s.generation++
	idx.slots[h.index] = s
	idx.free = append(idx.free, h.index)
	idx.count--
	return nil
}

// RemoveWhere does a linear scan for the first item whose payload
// satisfies match and removes it, per OctNode.remove in spec section 4.2
// ("used only for infrequent removal by identity"). It reports the
// removed handle and whether anything matched.
func (idx *Index[T]) RemoveWhere(match func(T) bool) (Handle, bool) {
	slotIdx, ok := idx.root.removeWhere(func(i int) bool {
		s := idx.slots[i]
		return s != nil && s.occupied && match(s.payload)
	})
	if !ok {
		return Handle{}, false
	}

	s := idx.slots[slotIdx]
	h := Handle{index: slotIdx, generation: s.generation}
	s.occupied = false
	s.generation++
	idx.free = append(idx.free, slotIdx)
	idx.count--
	return h, true
}

// Search returns the handles of every currently-indexed item whose box
// overlaps query, per the closed-interval predicate in spec section 3.
func (idx *Index[T]) Search(query geom.AABB) []Handle {
	var raw []int
	idx.root.search(query, &raw)

	out := make([]Handle, 0, len(raw))
	for _, slotIdx := range raw {
		s := idx.slots[slotIdx]
		out = append(out, Handle{index: slotIdx, generation: s.generation})
	}
	return out
}

// Clear empties the index. Every handle previously returned by Insert is
// invalidated. Advancing epoch past every generation the arena has stamped
// (rather than just discarding the arena) is what stops a handle into slot
// i from before Clear re-validating against a new item that lands back in
// slot i afterward.
func (idx *Index[T]) Clear() {
	next := idx.epoch + 1
	for _, s := range idx.slots {
		if s != nil && s.generation >= next {
			next = s.generation + 1
		}
	}

	idx.root.clear()
	idx.slots = nil
	idx.free = nil
	idx.count = 0
	idx.epoch = next
}

// Resize clears the tree and replaces the root bounds. Callers must
// re-insert any surviving items; Resize does not persist items across
// the resize.
func (idx *Index[T]) Resize(newBounds geom.AABB) {
	idx.Clear()
	idx.bounds = newBounds
	idx.root = newNode(newBounds, idx.capacity, idx.depth)
}
