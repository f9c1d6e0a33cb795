package stream

import (
	"math"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"octaworld/internal/geom"
	"octaworld/internal/octree"
)

var (
	residentCells = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "octaworld_world_grid_resident_cells",
		Help: "Number of cells currently in the Resident state.",
	})

	gridCellCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "octaworld_world_grid_known_cells",
		Help: "Number of cells the grid has ever created.",
	})
)

// gridCoord is a floor-divided integer grid cell coordinate. Division must
// be floor, not truncation, so negative world positions map to the cell a
// reader would expect (spec section 9).
type gridCoord struct {
	x, y int
}

func floorDiv(v, size float64) int {
	return int(math.Floor(v / size))
}

// Item is one payload and the box it occupies in world space, as handed to
// WorldGrid.Insert.
type Item[T any] struct {
	Payload T
	Box     geom.AABB
}

// WorldGrid is an infinite 2D grid of Cells streamed in and out around a
// moving observer, per spec section 4.5. Z is implicitly unbounded: cell
// footprints extend the full Z range.
type WorldGrid[T any] struct {
	sizeX, sizeY float64
	capacity     int
	depth        int
	pool         *WorkerPool

	mu    sync.Mutex
	cells map[gridCoord]*Cell[T]
}

// NewWorldGrid builds a grid with cells of size (sx, sy) in world units and
// workerCount worker goroutines for cell loads. capacity and depth are
// forwarded to every cell's OctreeIndex; both are validated here, up front,
// so a bad value fails at construction (spec section 7) rather than
// panicking later inside newCell the first time a cell is lazily created.
func NewWorldGrid[T any](sx, sy float64, workerCount, capacity, depth int) (*WorldGrid[T], error) {
	if sx <= 0 || sy <= 0 {
		return nil, newInvalidCellSizeError("cellSize components must be > 0")
	}
	if capacity < 1 {
		return nil, newInvalidCellSizeError("capacity must be >= 1")
	}
	if depth < 0 {
		return nil, newInvalidCellSizeError("depth must be >= 0")
	}

	return &WorldGrid[T]{
		sizeX:    sx,
		sizeY:    sy,
		capacity: capacity,
		depth:    depth,
		pool:     NewWorkerPool(workerCount),
		cells:    make(map[gridCoord]*Cell[T]),
	}, nil
}

func (g *WorldGrid[T]) coordOf(pos geom.Vector3) gridCoord {
	return gridCoord{x: floorDiv(pos.X, g.sizeX), y: floorDiv(pos.Y, g.sizeY)}
}

// effectivelyInfiniteZ bounds a cell's Z extent, per spec section 4.4's
// "2-D column extruded in Z to effectively infinite". A literal math.Inf
// cannot be used here: AABB.Octants halves the box's size and adds it back
// onto Min to get each child's bounds, and Inf - Inf is NaN, which would
// make every Z-axis containment test against a cell's child nodes silently
// false forever, disabling subdivision on that axis for every cell.
const effectivelyInfiniteZ = 1e12

func (g *WorldGrid[T]) footprintOf(c gridCoord) geom.AABB {
	return geom.AABB{
		Min: geom.Vector3{X: float64(c.x) * g.sizeX, Y: float64(c.y) * g.sizeY, Z: -effectivelyInfiniteZ},
		Max: geom.Vector3{X: float64(c.x+1) * g.sizeX, Y: float64(c.y+1) * g.sizeY, Z: effectivelyInfiniteZ},
	}
}

// cellAt returns the cell at c, creating it if absent. Caller must hold g.mu.
func (g *WorldGrid[T]) cellAt(c gridCoord) *Cell[T] {
	cell, ok := g.cells[c]
	if !ok {
		cell = newCell[T](g.footprintOf(c), g.capacity, g.depth)
		g.cells[c] = cell
		gridCellCount.Set(float64(len(g.cells)))
	}
	return cell
}

// Insert routes every item to the cell its position's box falls in and
// stages it there, creating the cell if this is its first item.
func (g *WorldGrid[T]) Insert(items []Item[T]) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, item := range items {
		c := g.coordOf(item.Box.Center())
		g.cellAt(c).Stage(item.Payload, item.Box)
	}
}

// Update drives residency around observerPos: it is idempotent and may be
// called as often as the caller likes. Every cell in the fixed 3x3 window
// centred on the observer's grid coordinate is scheduled for load if it is
// Empty or Unloaded; every Resident cell outside the window is unloaded.
func (g *WorldGrid[T]) Update(observerPos geom.Vector3) {
	toLoad := g.refreshResidency(g.coordOf(observerPos))

	for _, cell := range toLoad {
		cell := cell
		if err := g.pool.Enqueue(cell.loadBody); err != nil {
			logs.WithTag("cell_id", cell.ID).Warn(err)
		}
	}
}

// refreshResidency does the mutex-guarded bookkeeping for Update: schedule
// loads for the window around center, unload cells that fell outside it,
// and report the resident-cell gauge. Split out of Update so the lock is
// always released via defer, even if cellAt or a cell method panics.
func (g *WorldGrid[T]) refreshResidency(center gridCoord) []*Cell[T] {
	g.mu.Lock()
	defer g.mu.Unlock()

	var toLoad []*Cell[T]
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			c := gridCoord{x: center.x + dx, y: center.y + dy}
			cell := g.cellAt(c)
			if cell.tryScheduleLoad() {
				toLoad = append(toLoad, cell)
			}
		}
	}

	var resident int
	for coord, cell := range g.cells {
		if abs(coord.x-center.x) > 1 || abs(coord.y-center.y) > 1 {
			cell.unload()
		}
		if cell.State() == CellResident {
			resident++
		}
	}
	residentCells.Set(float64(resident))
	return toLoad
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Query fans out query to every Resident cell whose footprint overlaps it
// and concatenates the results. A cell that is not Resident contributes
// nothing, never blocks, and is not an error (spec section 7).
func (g *WorldGrid[T]) Query(query geom.AABB) []octree.Handle {
	cells := g.overlappingCells(query)

	var out []octree.Handle
	for _, cell := range cells {
		out = append(out, cell.search(query)...)
	}
	return out
}

func (g *WorldGrid[T]) overlappingCells(query geom.AABB) []*Cell[T] {
	g.mu.Lock()
	defer g.mu.Unlock()

	cells := make([]*Cell[T], 0, len(g.cells))
	for _, cell := range g.cells {
		if cell.Footprint().Overlaps(query) {
			cells = append(cells, cell)
		}
	}
	return cells
}

// Shutdown terminates the worker pool. No worker touches a cell after
// Shutdown returns.
func (g *WorldGrid[T]) Shutdown() {
	g.pool.Shutdown()
}
