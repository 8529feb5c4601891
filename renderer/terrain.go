package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/asset"
)

// sunDir is the light direction used to shade terrain faces.
var sunDir = mgl32.Vec3{0.4, 1, 0.3}.Normalize()

// TerrainRenderer renders a collision mesh with flat, height-tinted faces.
type TerrainRenderer struct {
	tris []triangle
}

// NewTerrainRenderer converts mesh into shaded triangles. The mesh is read
// once; later changes to it are not picked up.
func NewTerrainRenderer(mesh *asset.CollisionMesh, low, high rl.Color) *TerrainRenderer {
	r := &TerrainRenderer{}
	if mesh == nil || len(mesh.Vertices) == 0 {
		return r
	}

	minY, maxY := mesh.Vertices[0][1], mesh.Vertices[0][1]
	for _, v := range mesh.Vertices {
		minY = min(minY, v[1])
		maxY = max(maxY, v[1])
	}
	span := max(maxY-minY, 1e-3)

	for i := 0; i+2 < len(mesh.Indices); i += 3 {
		a := mesh.Vertices[mesh.Indices[i]]
		b := mesh.Vertices[mesh.Indices[i+1]]
		c := mesh.Vertices[mesh.Indices[i+2]]

		n := b.Sub(a).Cross(c.Sub(a))
		light := float32(0.35)
		if l := n.Len(); l > 1e-9 {
			light += 0.65 * max(abs32(n.Mul(1/l).Dot(sunDir)), 0)
		}
		h := ((a[1]+b[1]+c[1])/3 - minY) / span
		r.tris = append(r.tris, triangle{
			a:     vec(a),
			b:     vec(b),
			c:     vec(c),
			color: scaleColor(lerpColor(low, high, h), light),
		})
	}
	return r
}

// Triangles returns the number of triangles drawn.
func (r *TerrainRenderer) Triangles() int { return len(r.tris) }

// Draw renders the terrain. Must be called in 3D mode.
func (r *TerrainRenderer) Draw() {
	for i := range r.tris {
		t := &r.tris[i]
		rl.DrawTriangle3D(t.a, t.b, t.c, t.color)
	}
}

func lerpColor(a, b rl.Color, t float32) rl.Color {
	t = min(max(t, 0), 1)
	mix := func(x, y uint8) uint8 {
		return uint8(float32(x) + (float32(y)-float32(x))*t)
	}
	return rl.NewColor(mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), mix(a.A, b.A))
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
