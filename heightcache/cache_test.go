package heightcache

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/physics"
)

func slope(size float32) *physics.TriMesh {
	// y = x/4 over [-size/2, size/2]
	h := size / 2
	verts := []mgl32.Vec3{{-h, -h / 4, -h}, {h, h / 4, -h}, {-h, -h / 4, h}, {h, h / 4, h}}
	return physics.NewTriMesh(verts, []uint32{0, 2, 1, 1, 2, 3})
}

func flat(size, height float32) *physics.TriMesh {
	h := size / 2
	verts := []mgl32.Vec3{{-h, height, -h}, {h, height, -h}, {-h, height, h}, {h, height, h}}
	return physics.NewTriMesh(verts, []uint32{0, 2, 1, 1, 2, 3})
}

func newCache() *Cache {
	return New(Params{CellSize: 0.5, MaxCells: 64, NoGroundHeight: -1000, PrecalcBudget: 50})
}

func TestSampleEmpty(t *testing.T) {
	c := newCache()
	if h := c.Sample(mgl32.Vec3{0, 0, 0}); h != -1000 {
		t.Errorf("empty cache height = %v, want -1000", h)
	}
}

func TestSampleInterpolates(t *testing.T) {
	c := newCache()
	c.SetGeoms([]*physics.TriMesh{slope(8)})

	tests := []struct {
		x, z float32
		want float32
	}{
		{0, 0, 0},
		{2, 1, 0.5},
		{-3.3, 2.2, -0.825},
	}
	for _, tc := range tests {
		got := c.Sample(mgl32.Vec3{tc.x, 10, tc.z})
		if math.Abs(float64(got-tc.want)) > 1e-3 {
			t.Errorf("Sample(%v, %v) = %v, want %v", tc.x, tc.z, got, tc.want)
		}
	}

	if h := c.Sample(mgl32.Vec3{50, 0, 0}); h != -1000 {
		t.Errorf("outside grid = %v, want no-ground", h)
	}
}

func TestSetGeomsInvalidates(t *testing.T) {
	c := newCache()
	c.SetGeoms([]*physics.TriMesh{flat(4, 1)})
	if h := c.Sample(mgl32.Vec3{0, 0, 0}); math.Abs(float64(h-1)) > 1e-4 {
		t.Fatalf("height = %v, want 1", h)
	}

	c.SetGeoms([]*physics.TriMesh{flat(4, 2)})
	if h := c.Sample(mgl32.Vec3{0, 0, 0}); math.Abs(float64(h-2)) > 1e-4 {
		t.Errorf("height after rebuild = %v, want 2", h)
	}

	c.SetGeoms(nil)
	if computed, total := c.Stats(); computed != 0 || total != 0 {
		t.Errorf("stats after clearing = %d/%d, want 0/0", computed, total)
	}
	if c.GeomCount() != 0 {
		t.Errorf("geoms = %d, want 0", c.GeomCount())
	}
}

func TestOverlappingGeomsTakeHighest(t *testing.T) {
	c := newCache()
	c.SetGeoms([]*physics.TriMesh{flat(10, 0), flat(2, 3)})
	if h := c.Sample(mgl32.Vec3{0, 0, 0}); math.Abs(float64(h-3)) > 1e-4 {
		t.Errorf("height = %v, want 3 from the raised platform", h)
	}
	if h := c.Sample(mgl32.Vec3{4, 0, 4}); math.Abs(float64(h)) > 1e-4 {
		t.Errorf("height = %v, want 0 off the platform", h)
	}
}

func TestPrecalcCompletes(t *testing.T) {
	c := newCache()
	c.SetGeoms([]*physics.TriMesh{slope(8)})
	_, total := c.Stats()
	if total == 0 {
		t.Fatal("grid not allocated")
	}

	calls := 0
	for {
		before, _ := c.Stats()
		c.Precalc()
		after, _ := c.Stats()
		calls++
		if after == before {
			break
		}
		if after-before > 50 {
			t.Fatalf("precalc computed %d corners, budget is 50", after-before)
		}
		if calls > total {
			t.Fatal("precalc did not converge")
		}
	}
	if computed, _ := c.Stats(); computed != total {
		t.Errorf("computed %d of %d corners", computed, total)
	}

	// Precomputed values must match lazily computed ones
	lazy := newCache()
	lazy.SetGeoms([]*physics.TriMesh{slope(8)})
	p := mgl32.Vec3{1.3, 0, -2.1}
	if a, b := c.Sample(p), lazy.Sample(p); math.Abs(float64(a-b)) > 1e-5 {
		t.Errorf("precalc height %v != lazy height %v", a, b)
	}
}

func TestCollideAgainstShape(t *testing.T) {
	c := newCache()
	c.SetGeoms([]*physics.TriMesh{flat(10, 0)})

	body := physics.NewBody(physics.Sphere{Radius: 0.2}, 1)
	body.Pos = mgl32.Vec3{1, 0.1, 1}
	body.Friction = 0.5

	var contacts []physics.Contact
	c.CollideAgainstShape(body, func(ct physics.Contact) { contacts = append(contacts, ct) })
	if len(contacts) == 0 {
		t.Fatal("expected contacts")
	}
	for _, ct := range contacts {
		if ct.Body != body || ct.Friction != 0.5 {
			t.Errorf("contact not bound to body material: %+v", ct)
		}
	}

	body.Pos = mgl32.Vec3{1, 2, 1}
	contacts = contacts[:0]
	c.CollideAgainstShape(body, func(ct physics.Contact) { contacts = append(contacts, ct) })
	if len(contacts) != 0 {
		t.Errorf("airborne body produced %d contacts", len(contacts))
	}
}

func TestRaycastPicksNearest(t *testing.T) {
	c := newCache()
	c.SetGeoms([]*physics.TriMesh{flat(10, 0), flat(10, 2)})
	hit, ok := c.Raycast(mgl32.Vec3{0, 5, 0}, mgl32.Vec3{0, -1, 0}, 10)
	if !ok {
		t.Fatal("expected hit")
	}
	if math.Abs(float64(hit.Distance-3)) > 1e-4 {
		t.Errorf("distance = %v, want 3", hit.Distance)
	}
}
