package renderer

import (
	"testing"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/asset"
	"github.com/pthm-cable/bgdynamics/client"
	"github.com/pthm-cable/bgdynamics/snapshot"
)

var _ client.Frame = (*Frame)(nil)

func spriteBuffer(color mgl32.Vec3) *snapshot.Buffer[snapshot.VertexSprite] {
	b := snapshot.NewBuilder[snapshot.VertexSprite]("test")
	b.Reserve(8, 12)
	snapshot.AddSprite(b, snapshot.GroundQuad(mgl32.Vec3{}, 1), 1, color)
	snapshot.AddSprite(b, snapshot.GroundQuad(mgl32.Vec3{2, 0, 0}, 1), 1, color)
	return b.Finish()
}

func TestMeshUpload(t *testing.T) {
	f := NewFrame()

	m := f.NewMesh(snapshot.LayerSparks).(*Mesh)
	m.UploadSprites(spriteBuffer(mgl32.Vec3{1, 0.5, 0}))
	if m.Triangles() != 4 {
		t.Fatalf("triangles = %d, want 4", m.Triangles())
	}
	if c := m.tris[0].color; c.R != 255 || c.G != 128 || c.B != 0 {
		t.Errorf("spark colour = %v", c)
	}

	// Re-upload replaces, nil clears
	m.UploadSprites(spriteBuffer(mgl32.Vec3{1, 1, 1}))
	if m.Triangles() != 4 {
		t.Errorf("re-upload appended: %d triangles", m.Triangles())
	}
	m.UploadSprites(nil)
	if m.Triangles() != 0 {
		t.Errorf("nil upload left %d triangles", m.Triangles())
	}
}

func TestShadowSpritesAreBlack(t *testing.T) {
	m := NewFrame().NewMesh(snapshot.LayerShadows).(*Mesh)
	m.UploadSprites(spriteBuffer(mgl32.Vec3{1, 1, 1}))
	c := m.tris[0].color
	if c.R != 0 || c.G != 0 || c.B != 0 {
		t.Errorf("shadow rgb = %v, want black", c)
	}
	if c.A != unorm(shadowAlpha) {
		t.Errorf("shadow alpha = %d, want %d", c.A, unorm(shadowAlpha))
	}
}

func TestSmokeColor(t *testing.T) {
	tests := []struct {
		name      string
		v         snapshot.VertexSmoke
		wantAlpha uint8
	}{
		{"solid", snapshot.VertexSmoke{Erosion: 1, Glow: [4]uint8{0, 0, 0, 255}, Diffuse: 0.5}, 255},
		{"eroded", snapshot.VertexSmoke{Erosion: 0, Glow: [4]uint8{0, 0, 0, 255}, Diffuse: 0.5}, 0},
		{"faded", snapshot.VertexSmoke{Erosion: 1, Glow: [4]uint8{0, 0, 0, 0}, Diffuse: 0.5}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := smokeColor(&tt.v).A; got != tt.wantAlpha {
				t.Errorf("alpha = %d, want %d", got, tt.wantAlpha)
			}
		})
	}

	// Glow adds to the diffuse grey
	v := snapshot.VertexSmoke{Erosion: 1, Glow: [4]uint8{255, 0, 0, 255}, Diffuse: 0.2}
	if c := smokeColor(&v); c.R != 255 || c.G != unorm(0.2) {
		t.Errorf("glow colour = %v", c)
	}
}

func TestTerrainRenderer(t *testing.T) {
	mesh := asset.NewGroundPlane("ground", 10, 0)
	low := rl.NewColor(10, 20, 30, 255)
	r := NewTerrainRenderer(mesh, low, rl.NewColor(200, 200, 200, 255))
	if r.Triangles() != mesh.TriangleCount() {
		t.Fatalf("triangles = %d, want %d", r.Triangles(), mesh.TriangleCount())
	}
	// A flat plane is lit by the vertical part of the sun direction
	want := scaleColor(low, 0.35+0.65*sunDir[1])
	got := r.tris[0].color
	if diff(got.R, want.R) > 1 || diff(got.G, want.G) > 1 || diff(got.B, want.B) > 1 {
		t.Errorf("flat face colour = %v, want %v", got, want)
	}

	if NewTerrainRenderer(nil, low, low).Triangles() != 0 {
		t.Error("nil mesh produced triangles")
	}
}

func TestLerpColor(t *testing.T) {
	a := rl.NewColor(0, 0, 0, 0)
	b := rl.NewColor(200, 100, 50, 255)
	if got := lerpColor(a, b, 0.5); got != rl.NewColor(100, 50, 25, 127) {
		t.Errorf("lerp = %v", got)
	}
	if got := lerpColor(a, b, 2); got != b {
		t.Errorf("lerp clamps high: %v", got)
	}
}

func diff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
