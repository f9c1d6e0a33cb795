package stream

import (
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"

	"octaworld/internal/geom"
	"octaworld/internal/octree"
)

// loadWarnThreshold matches original_source/WorldPartition.hpp's debug
// build logging a cell load when it exceeds 0.1s.
const loadWarnThreshold = 100 * time.Millisecond

// CellState is one state of the Cell state machine in spec section 4.4.
type CellState int

const (
	// CellEmpty is the initial state: no load has ever been scheduled.
	CellEmpty CellState = iota
	// CellLoading means a load job is in flight on a worker goroutine.
	CellLoading
	// CellResident means the cell's index is populated and queryable.
	CellResident
	// CellUnloaded means the cell was Resident and has since been cleared.
	CellUnloaded
)

func (s CellState) String() string {
	switch s {
	case CellEmpty:
		return "empty"
	case CellLoading:
		return "loading"
	case CellResident:
		return "resident"
	case CellUnloaded:
		return "unloaded"
	default:
		return "unknown"
	}
}

type stagedItem[T any] struct {
	payload T
	box     geom.AABB
}

// Cell owns one OctreeIndex over a column of world space, plus the queue
// and state machine described in spec section 4.4. A Cell never blocks its
// caller: staging and searching are always non-blocking, and loads run on
// a worker goroutine supplied by the owning WorldGrid.
type Cell[T any] struct {
	ID        uuid.UUID
	footprint geom.AABB

	mu     sync.Mutex
	state  CellState
	queue  []stagedItem[T]
	loaded int // prefix of queue already replayed into index
	index  *octree.Index[T]

	capacity int
	depth    int
}

func newCell[T any](footprint geom.AABB, capacity, depth int) *Cell[T] {
	idx, err := octree.New[T](footprint, capacity, depth)
	if err != nil {
		// NewWorldGrid rejects capacity < 1 and depth < 0 before any cell
		// is ever created, so this path is unreachable from public API
		// input; it only guards against a future caller of newCell (this
		// package is the only one that can call it) skipping that check.
		panic(err)
	}

	return &Cell[T]{
		ID:        uuid.New(),
		footprint: footprint,
		state:     CellEmpty,
		index:     idx,
		capacity:  capacity,
		depth:     depth,
	}
}

// State returns the cell's current state.
func (c *Cell[T]) State() CellState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Footprint returns the AABB of the world-space column this cell owns.
func (c *Cell[T]) Footprint() geom.AABB {
	return c.footprint
}

// Stage appends (payload, box) to the cell's replay queue in every state,
// so a subsequent or in-flight load picks it up, per the ordering
// guarantees in spec section 5. While Resident it is also inserted
// directly into the live index.
func (c *Cell[T]) Stage(payload T, box geom.AABB) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queue = append(c.queue, stagedItem[T]{payload: payload, box: box})
	if c.state == CellResident {
		c.index.Insert(payload, box)
	}
}

// tryScheduleLoad transitions Empty or Unloaded to Loading and reports
// whether the transition happened. Loading or Resident cells report false
// so the caller enqueues at most one load job per cell per residency gap.
func (c *Cell[T]) tryScheduleLoad() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CellEmpty && c.state != CellUnloaded {
		return false
	}
	c.state = CellLoading
	return true
}

// loadBody replays the full staged queue into the index and marks the
// cell Resident. It is the only operation that runs off the caller's
// thread; the octree index is safe to mutate here because no search or
// unload may run concurrently with an in-flight load of the same cell
// (spec section 5). It drains in batches rather than one snapshot so that
// items staged by the grid while this load is still in flight are also
// inserted before the cell turns Resident, per the visibility guarantee
// in spec section 5.
func (c *Cell[T]) loadBody() {
	start := time.Now()

	for {
		c.mu.Lock()
		pending := c.queue[c.loaded:]
		if len(pending) == 0 {
			c.state = CellResident
			c.mu.Unlock()
			break
		}
		batch := make([]stagedItem[T], len(pending))
		copy(batch, pending)
		c.loaded += len(batch)
		c.mu.Unlock()

		for _, item := range batch {
			c.index.Insert(item.payload, item.box)
		}
	}

	if elapsed := time.Since(start); elapsed > loadWarnThreshold {
		logs.WithTag("cell_id", c.ID).WithTag("duration", elapsed).Warn("cell load exceeded threshold")
	}
}

// unload clears the index and transitions Resident to Unloaded, retaining
// the staged queue so a subsequent load can replay it.
func (c *Cell[T]) unload() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CellResident {
		return
	}
	c.index.Clear()
	c.loaded = 0
	c.state = CellUnloaded
}

// search returns every handle whose box overlaps query, or an empty slice
// without blocking if the cell is not Resident (spec section 4.4, 4.5).
func (c *Cell[T]) search(query geom.AABB) []octree.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CellResident {
		return nil
	}
	return c.index.Search(query)
}
