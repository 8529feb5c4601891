// Package heightcache answers ground-height and terrain-collision queries for the
// dynamics worker.
//
// Heights live on a grid of corner samples covering the union of all terrain
// bounds. Corners are ray-tested lazily on first use and incrementally in the
// background via Precalc; the whole grid is invalidated whenever the terrain set
// changes. The cache is owned by the worker goroutine and is not safe for
// concurrent use, apart from the parallel section inside Precalc.
package heightcache

import (
	"math"
	"runtime"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/remeh/sizedwaitgroup"

	"github.com/pthm-cable/bgdynamics/physics"
)

// Params controls grid resolution and background work.
type Params struct {
	CellSize       float32
	MaxCells       int     // Per axis
	NoGroundHeight float32 // Returned where no terrain lies below a point
	PrecalcBudget  int     // Corners per Precalc call
}

// Hit is a raycast result against cached terrain.
type Hit = physics.RayHit

// Cache is the height and collision cache.
type Cache struct {
	params Params
	geoms  []*physics.TriMesh

	min, max mgl32.Vec3
	cell     float32
	nx, nz   int // Corner counts per axis
	heights  []float32
	computed []bool
	done     int
	cursor   int

	workers int
}

// New creates an empty cache.
func New(p Params) *Cache {
	if p.CellSize <= 0 {
		p.CellSize = 0.5
	}
	if p.MaxCells < 1 {
		p.MaxCells = 256
	}
	return &Cache{
		params:  p,
		workers: runtime.GOMAXPROCS(0),
	}
}

// SetGeoms replaces the terrain set and invalidates every cached height.
func (c *Cache) SetGeoms(geoms []*physics.TriMesh) {
	c.geoms = append(c.geoms[:0], geoms...)
	c.heights = nil
	c.computed = nil
	c.done = 0
	c.cursor = 0
	c.nx, c.nz = 0, 0

	first := true
	for _, g := range c.geoms {
		if g.TriangleCount() == 0 {
			continue
		}
		lo, hi := g.Bounds()
		if first {
			c.min, c.max = lo, hi
			first = false
			continue
		}
		c.min = mgl32.Vec3{min(c.min[0], lo[0]), min(c.min[1], lo[1]), min(c.min[2], lo[2])}
		c.max = mgl32.Vec3{max(c.max[0], hi[0]), max(c.max[1], hi[1]), max(c.max[2], hi[2])}
	}
	if first {
		return
	}

	extent := max(c.max[0]-c.min[0], c.max[2]-c.min[2])
	c.cell = max(c.params.CellSize, extent/float32(c.params.MaxCells))
	c.nx = int(math.Ceil(float64((c.max[0]-c.min[0])/c.cell))) + 1
	c.nz = int(math.Ceil(float64((c.max[2]-c.min[2])/c.cell))) + 1
	c.heights = make([]float32, c.nx*c.nz)
	c.computed = make([]bool, c.nx*c.nz)
}

// GeomCount returns the number of terrain meshes in the cache.
func (c *Cache) GeomCount() int {
	return len(c.geoms)
}

// Stats returns how many grid corners have been computed out of the total.
func (c *Cache) Stats() (computed, total int) {
	return c.done, len(c.heights)
}

// Sample returns the interpolated ground height below pos.
func (c *Cache) Sample(pos mgl32.Vec3) float32 {
	if len(c.heights) == 0 {
		return c.params.NoGroundHeight
	}
	fx := (pos[0] - c.min[0]) / c.cell
	fz := (pos[2] - c.min[2]) / c.cell
	if fx < 0 || fz < 0 || fx > float32(c.nx-1) || fz > float32(c.nz-1) {
		return c.params.NoGroundHeight
	}
	x0 := min(int(fx), c.nx-2)
	z0 := min(int(fz), c.nz-2)
	if c.nx == 1 || c.nz == 1 {
		return c.corner(int(fx), int(fz))
	}
	tx := fx - float32(x0)
	tz := fz - float32(z0)

	h00 := c.corner(x0, z0)
	h10 := c.corner(x0+1, z0)
	h01 := c.corner(x0, z0+1)
	h11 := c.corner(x0+1, z0+1)

	// A missing corner would drag the blend toward the no-ground height; use the
	// highest real neighbour instead.
	noGround := c.params.NoGroundHeight
	if h00 == noGround || h10 == noGround || h01 == noGround || h11 == noGround {
		best := noGround
		for _, h := range [4]float32{h00, h10, h01, h11} {
			best = max(best, h)
		}
		return best
	}

	a := h00 + (h10-h00)*tx
	b := h01 + (h11-h01)*tx
	return a + (b-a)*tz
}

func (c *Cache) corner(x, z int) float32 {
	idx := z*c.nx + x
	if !c.computed[idx] {
		c.heights[idx] = c.rayHeight(x, z)
		c.computed[idx] = true
		c.done++
	}
	return c.heights[idx]
}

// rayHeight casts straight down through every geom at the corner. Safe for
// concurrent use: it only reads the meshes.
func (c *Cache) rayHeight(x, z int) float32 {
	top := c.max[1] + 1
	from := mgl32.Vec3{c.min[0] + float32(x)*c.cell, top, c.min[2] + float32(z)*c.cell}
	depth := top - c.min[1] + 1
	best := c.params.NoGroundHeight
	for _, g := range c.geoms {
		if hit, ok := g.Raycast(from, mgl32.Vec3{0, -1, 0}, depth); ok {
			best = max(best, hit.Point[1])
		}
	}
	return best
}

// Precalc computes the next budgeted batch of uncomputed corners in parallel.
func (c *Cache) Precalc() {
	total := len(c.heights)
	if total == 0 || c.done >= total {
		return
	}
	budget := c.params.PrecalcBudget
	if budget <= 0 {
		return
	}

	batch := make([]int, 0, budget)
	for c.cursor < total && len(batch) < budget {
		if !c.computed[c.cursor] {
			batch = append(batch, c.cursor)
		}
		c.cursor++
	}

	swg := sizedwaitgroup.New(c.workers)
	for _, idx := range batch {
		swg.Add()
		go func(idx int) {
			defer swg.Done()
			// Each goroutine owns a distinct slot
			c.heights[idx] = c.rayHeight(idx%c.nx, idx/c.nx)
		}(idx)
	}
	swg.Wait()

	for _, idx := range batch {
		c.computed[idx] = true
	}
	c.done += len(batch)
}

// CollideAgainstShape reports contacts between a body's shape and every cached geom.
func (c *Cache) CollideAgainstShape(b *physics.Body, fn func(physics.Contact)) {
	emit := func(point, normal mgl32.Vec3, depth float32) {
		fn(physics.Contact{
			Body:     b,
			Point:    point,
			Normal:   normal,
			Depth:    depth,
			Friction: b.Friction,
			Bounce:   b.Bounce,
		})
	}
	for _, g := range c.geoms {
		switch s := b.Shape.(type) {
		case physics.Sphere:
			g.CollideSphere(b.Pos, s.Radius, emit)
		case physics.Box:
			g.CollideBox(b.Pos, b.Rot, s.Half, emit)
		}
	}
}

// Raycast returns the nearest terrain hit along dir within maxDist.
func (c *Cache) Raycast(from, dir mgl32.Vec3, maxDist float32) (Hit, bool) {
	var best Hit
	found := false
	for _, g := range c.geoms {
		if hit, ok := g.Raycast(from, dir, maxDist); ok && (!found || hit.Distance < best.Distance) {
			best = hit
			found = true
		}
	}
	return best, found
}
