// Package octaworld is the public facade over the octree and streaming
// core: a dynamic spatial index with stable handles, and a streaming
// world grid that loads and unloads cells around a moving observer.
package octaworld

import (
	"github.com/aukilabs/go-tooling/pkg/logs"

	"octaworld/internal/geom"
	"octaworld/internal/octree"
	"octaworld/internal/stream"
)

// Vector3, AABB and Handle are re-exported so callers never need to import
// the internal packages directly.
type (
	Vector3 = geom.Vector3
	AABB    = geom.AABB
	Handle  = octree.Handle
)

// Item is one payload and the box it occupies in world space, as handed
// to WorldGrid.Insert.
type Item[T any] struct {
	Payload T
	Box     AABB
}

// Config holds the options recognised by OctreeIndex (spec section 6).
type Config struct {
	// Capacity is the soft cap on items per node. Must be >= 1.
	Capacity int
	// Depth is the maximum subdivision depth from root. 0 disables
	// subdivision.
	Depth int
}

// DefaultConfig returns the spec's default capacity (4) and depth (5).
func DefaultConfig() Config {
	return Config{Capacity: octree.DefaultCapacity, Depth: octree.DefaultDepth}
}

// OctreeIndex is a spatial index over opaque payloads of type T, handed
// out as stable Handles that survive inserts and relocates of other
// items.
type OctreeIndex[T any] struct {
	idx *octree.Index[T]
}

// NewOctreeIndex builds an index over bounds using config. It fails only
// on InvalidBounds: capacity < 1 or depth < 0.
func NewOctreeIndex[T any](bounds AABB, config Config) (*OctreeIndex[T], error) {
	idx, err := octree.New[T](bounds, config.Capacity, config.Depth)
	if err != nil {
		return nil, err
	}
	return &OctreeIndex[T]{idx: idx}, nil
}

// Insert admits payload under box and returns a handle to it. Never fails.
func (o *OctreeIndex[T]) Insert(payload T, box AABB) Handle {
	return o.idx.Insert(payload, box)
}

// Search returns the handles of every item whose box overlaps query.
func (o *OctreeIndex[T]) Search(query AABB) []Handle {
	return o.idx.Search(query)
}

// Relocate moves h to newBox in place, preserving its identity. Returns
// UseAfterRemove if h is no longer valid.
func (o *OctreeIndex[T]) Relocate(h Handle, newBox AABB) error {
	return o.idx.Relocate(h, newBox)
}

// Remove erases h from the index. Returns UseAfterRemove if h was already
// removed.
func (o *OctreeIndex[T]) Remove(h Handle) error {
	return o.idx.Remove(h)
}

// Value returns a pointer to h's payload, or UseAfterRemove if h is no
// longer valid.
func (o *OctreeIndex[T]) Value(h Handle) (*T, error) {
	return o.idx.Value(h)
}

// Clear empties the index, invalidating every handle.
func (o *OctreeIndex[T]) Clear() {
	o.idx.Clear()
}

// Resize clears the index and replaces its root bounds. Surviving items
// are not re-inserted automatically.
func (o *OctreeIndex[T]) Resize(newBounds AABB) {
	o.idx.Resize(newBounds)
}

// Len returns the number of items currently indexed.
func (o *OctreeIndex[T]) Len() int { return o.idx.Len() }

// IsEmpty reports whether the index holds no items.
func (o *OctreeIndex[T]) IsEmpty() bool { return o.idx.IsEmpty() }

// WorldGridConfig holds the options recognised by WorldGrid (spec section 6).
type WorldGridConfig struct {
	// CellSizeX, CellSizeY are (sx, sy) in world units; Z is implicitly
	// unbounded.
	CellSizeX, CellSizeY float64
	// WorkerCount is the number of goroutines loading cells. Must be >= 1.
	WorkerCount int
	// Capacity and Depth are forwarded to every cell's OctreeIndex.
	Capacity int
	Depth    int
}

// DefaultWorldGridConfig returns a 100x100 cell grid with 4 workers and
// the octree index defaults.
func DefaultWorldGridConfig() WorldGridConfig {
	return WorldGridConfig{
		CellSizeX:   100,
		CellSizeY:   100,
		WorkerCount: 4,
		Capacity:    octree.DefaultCapacity,
		Depth:       octree.DefaultDepth,
	}
}

// WorldGrid is an infinite 2D grid of streamed cells kept resident in a
// fixed 3x3 window around a moving observer.
type WorldGrid[T any] struct {
	grid *stream.WorldGrid[T]
}

// NewWorldGrid builds a grid per config. It fails only on InvalidBounds:
// a non-positive cell size component, capacity < 1 or depth < 0.
func NewWorldGrid[T any](config WorldGridConfig) (*WorldGrid[T], error) {
	g, err := stream.NewWorldGrid[T](config.CellSizeX, config.CellSizeY, config.WorkerCount, config.Capacity, config.Depth)
	if err != nil {
		return nil, err
	}
	return &WorldGrid[T]{grid: g}, nil
}

// Insert routes each item to its owning cell and stages it there.
func (w *WorldGrid[T]) Insert(items []Item[T]) {
	forwarded := make([]stream.Item[T], len(items))
	for i, item := range items {
		forwarded[i] = stream.Item[T]{Payload: item.Payload, Box: item.Box}
	}
	w.grid.Insert(forwarded)
}

// Update drives residency around observerPosition. It is idempotent and
// safe to call on every frame.
func (w *WorldGrid[T]) Update(observerPosition Vector3) {
	w.grid.Update(observerPosition)
}

// Query fans out to every Resident cell overlapping aabb and concatenates
// the results. Non-Resident cells silently contribute nothing.
func (w *WorldGrid[T]) Query(aabb AABB) []Handle {
	return w.grid.Query(aabb)
}

// Shutdown stops the grid's worker pool. No worker touches a cell after
// Shutdown returns.
func (w *WorldGrid[T]) Shutdown() {
	logs.WithTag("component", "world_grid").Info("shutting down")
	w.grid.Shutdown()
}
