package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// trimeshBuckets is the bucket grid resolution along the mesh's longer XZ axis.
const trimeshBuckets = 32

// Triangle is a single terrain face with a precomputed unit normal.
type Triangle struct {
	A, B, C mgl32.Vec3
	Normal  mgl32.Vec3
}

// RayHit describes the nearest intersection of a ray with a mesh.
type RayHit struct {
	Point    mgl32.Vec3
	Normal   mgl32.Vec3
	Distance float32
}

// TriMesh is a static triangle mesh with an XZ bucket grid for broad-phase queries.
// All query methods are read-only and safe for concurrent use.
type TriMesh struct {
	tris     []Triangle
	min, max mgl32.Vec3
	cell     float32
	nx, nz   int
	buckets  [][]int32
}

// NewTriMesh builds a mesh from indexed vertices. Degenerate triangles are skipped.
func NewTriMesh(vertices []mgl32.Vec3, indices []uint32) *TriMesh {
	m := &TriMesh{tris: make([]Triangle, 0, len(indices)/3)}
	inf := float32(math.Inf(1))
	m.min = mgl32.Vec3{inf, inf, inf}
	m.max = mgl32.Vec3{-inf, -inf, -inf}

	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := vertices[indices[i]], vertices[indices[i+1]], vertices[indices[i+2]]
		n := b.Sub(a).Cross(c.Sub(a))
		l := n.Len()
		if l < 1e-9 {
			continue
		}
		m.tris = append(m.tris, Triangle{A: a, B: b, C: c, Normal: n.Mul(1 / l)})
		for _, v := range [3]mgl32.Vec3{a, b, c} {
			m.min = minVec(m.min, v)
			m.max = maxVec(m.max, v)
		}
	}

	if len(m.tris) == 0 {
		m.min, m.max = mgl32.Vec3{}, mgl32.Vec3{}
		return m
	}

	extent := max(m.max[0]-m.min[0], m.max[2]-m.min[2])
	m.cell = max(extent/trimeshBuckets, 1e-3)
	m.nx = int((m.max[0]-m.min[0])/m.cell) + 1
	m.nz = int((m.max[2]-m.min[2])/m.cell) + 1
	m.buckets = make([][]int32, m.nx*m.nz)

	for i, t := range m.tris {
		x0, z0 := m.cellOf(minVec(minVec(t.A, t.B), t.C))
		x1, z1 := m.cellOf(maxVec(maxVec(t.A, t.B), t.C))
		for z := z0; z <= z1; z++ {
			for x := x0; x <= x1; x++ {
				idx := z*m.nx + x
				m.buckets[idx] = append(m.buckets[idx], int32(i))
			}
		}
	}
	return m
}

// Bounds returns the mesh's axis-aligned bounding box.
func (m *TriMesh) Bounds() (mgl32.Vec3, mgl32.Vec3) {
	return m.min, m.max
}

// TriangleCount returns the number of non-degenerate triangles.
func (m *TriMesh) TriangleCount() int {
	return len(m.tris)
}

func (m *TriMesh) cellOf(p mgl32.Vec3) (int, int) {
	x := int((p[0] - m.min[0]) / m.cell)
	z := int((p[2] - m.min[2]) / m.cell)
	return clampInt(x, 0, m.nx-1), clampInt(z, 0, m.nz-1)
}

// visit calls fn once per triangle whose bucket range overlaps the XZ box [lo, hi].
// A triangle spanning several buckets is reported only from the first bucket
// shared by both ranges, so no scratch state is needed for deduplication.
func (m *TriMesh) visit(lo, hi mgl32.Vec3, fn func(t *Triangle)) {
	if len(m.tris) == 0 {
		return
	}
	if hi[0] < m.min[0] || lo[0] > m.max[0] || hi[2] < m.min[2] || lo[2] > m.max[2] {
		return
	}
	qx0, qz0 := m.cellOf(lo)
	qx1, qz1 := m.cellOf(hi)
	for z := qz0; z <= qz1; z++ {
		for x := qx0; x <= qx1; x++ {
			for _, ti := range m.buckets[z*m.nx+x] {
				t := &m.tris[ti]
				tx0, tz0 := m.cellOf(minVec(minVec(t.A, t.B), t.C))
				if max(tx0, qx0) != x || max(tz0, qz0) != z {
					continue
				}
				fn(t)
			}
		}
	}
}

// Raycast returns the nearest front- or back-facing hit within maxDist.
func (m *TriMesh) Raycast(from, dir mgl32.Vec3, maxDist float32) (RayHit, bool) {
	l := dir.Len()
	if l < 1e-9 || maxDist <= 0 {
		return RayHit{}, false
	}
	dir = dir.Mul(1 / l)
	to := from.Add(dir.Mul(maxDist))

	best := RayHit{Distance: maxDist}
	found := false
	m.visit(minVec(from, to), maxVec(from, to), func(t *Triangle) {
		if d, ok := rayTriangle(from, dir, t); ok && d <= best.Distance {
			best = RayHit{Point: from.Add(dir.Mul(d)), Normal: t.Normal, Distance: d}
			found = true
		}
	})
	return best, found
}

// CollideSphere reports contacts between a sphere and the mesh.
func (m *TriMesh) CollideSphere(center mgl32.Vec3, radius float32, fn func(point, normal mgl32.Vec3, depth float32)) {
	r := mgl32.Vec3{radius, radius, radius}
	m.visit(center.Sub(r), center.Add(r), func(t *Triangle) {
		planeDist := center.Sub(t.A).Dot(t.Normal)
		if planeDist > radius || planeDist < -radius {
			return
		}
		cp := closestPointOnTriangle(center, t)
		d := center.Sub(cp)
		dist := d.Len()
		if planeDist < 0 {
			// Center slipped under the surface; push out along the face normal
			if dist > 1e-4 && !insideTriangle(center.Sub(t.Normal.Mul(planeDist)), t) {
				return
			}
			fn(cp, t.Normal, radius-planeDist)
			return
		}
		if dist >= radius {
			return
		}
		normal := t.Normal
		if dist > 1e-6 {
			normal = d.Mul(1 / dist)
		}
		fn(cp, normal, radius-dist)
	})
}

// CollideBox reports corner contacts between an oriented box and the mesh.
func (m *TriMesh) CollideBox(pos mgl32.Vec3, rot mgl32.Quat, half mgl32.Vec3, fn func(point, normal mgl32.Vec3, depth float32)) {
	var corners [8]mgl32.Vec3
	lo, hi := pos, pos
	for i := range corners {
		local := mgl32.Vec3{half[0], half[1], half[2]}
		if i&1 != 0 {
			local[0] = -local[0]
		}
		if i&2 != 0 {
			local[1] = -local[1]
		}
		if i&4 != 0 {
			local[2] = -local[2]
		}
		corners[i] = pos.Add(rot.Rotate(local))
		lo = minVec(lo, corners[i])
		hi = maxVec(hi, corners[i])
	}
	maxDepth := 2 * max(half[0], max(half[1], half[2]))

	m.visit(lo, hi, func(t *Triangle) {
		for _, c := range corners {
			planeDist := c.Sub(t.A).Dot(t.Normal)
			if planeDist >= 0 || planeDist < -maxDepth {
				continue
			}
			if !insideTriangle(c.Sub(t.Normal.Mul(planeDist)), t) {
				continue
			}
			fn(c, t.Normal, -planeDist)
		}
	})
}

// rayTriangle is the Moller-Trumbore intersection test.
func rayTriangle(from, dir mgl32.Vec3, t *Triangle) (float32, bool) {
	e1 := t.B.Sub(t.A)
	e2 := t.C.Sub(t.A)
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if det > -1e-9 && det < 1e-9 {
		return 0, false
	}
	inv := 1 / det
	s := from.Sub(t.A)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	d := e2.Dot(q) * inv
	if d < 0 {
		return 0, false
	}
	return d, true
}

func insideTriangle(p mgl32.Vec3, t *Triangle) bool {
	c0 := t.B.Sub(t.A).Cross(p.Sub(t.A)).Dot(t.Normal)
	c1 := t.C.Sub(t.B).Cross(p.Sub(t.B)).Dot(t.Normal)
	c2 := t.A.Sub(t.C).Cross(p.Sub(t.C)).Dot(t.Normal)
	return c0 >= 0 && c1 >= 0 && c2 >= 0
}

// closestPointOnTriangle follows Ericson's region-based formulation.
func closestPointOnTriangle(p mgl32.Vec3, t *Triangle) mgl32.Vec3 {
	a, b, c := t.A, t.B, t.C
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)
	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return a.Add(ab.Mul(v))
	}
	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return a.Add(ac.Mul(w))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).Mul(w))
	}
	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.Add(ab.Mul(v)).Add(ac.Mul(w))
}

func minVec(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{min(a[0], b[0]), min(a[1], b[1]), min(a[2], b[2])}
}

func maxVec(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{max(a[0], b[0]), max(a[1], b[1]), max(a[2], b[2])}
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
