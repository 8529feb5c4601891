package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/camera"
	"github.com/pthm-cable/bgdynamics/client"
	"github.com/pthm-cable/bgdynamics/snapshot"
)

const (
	shadowAlpha = 0.55 // Darkest a shadow gets at full density
	spriteAlpha = 0.7
	sphereRings = 6
)

// Camera3D converts an orbit camera to a raylib perspective camera.
func Camera3D(c *camera.Camera) rl.Camera3D {
	return rl.Camera3D{
		Position:   vec(c.Eye()),
		Target:     vec(c.Target),
		Up:         rl.NewVector3(0, 1, 0),
		Fovy:       c.FovY,
		Projection: rl.CameraPerspective,
	}
}

// Frame draws snapshots with raylib immediate-mode triangles. It implements
// client.Frame; calls must happen between Begin and End.
type Frame struct{}

// NewFrame creates a frame renderer.
func NewFrame() *Frame {
	return &Frame{}
}

// Begin enters 3D mode for cam.
func (f *Frame) Begin(cam rl.Camera3D) {
	rl.BeginMode3D(cam)
	// Sprite and ribbon winding depends on the camera side
	rl.DisableBackfaceCulling()
}

// End leaves 3D mode.
func (f *Frame) End() {
	rl.EnableBackfaceCulling()
	rl.EndMode3D()
}

// NewMesh implements client.Frame.
func (f *Frame) NewMesh(layer snapshot.Layer) client.Mesh {
	return &Mesh{layer: layer}
}

// DrawMesh implements client.Frame.
func (f *Frame) DrawMesh(m client.Mesh, sh client.Shading) {
	mesh, ok := m.(*Mesh)
	if !ok {
		return
	}
	if sh.Additive {
		rl.BeginBlendMode(rl.BlendAdditive)
		defer rl.EndBlendMode()
	}
	for i := range mesh.tris {
		t := &mesh.tris[i]
		rl.DrawTriangle3D(t.a, t.b, t.c, t.color)
	}
}

// DrawInstanced implements client.Frame. Boxes are transformed on the CPU so
// rotation is kept; spheres only need position and scale.
func (f *Frame) DrawInstanced(shape client.Shape, transforms []mgl32.Mat4, sh client.Shading) {
	if sh.Additive {
		rl.BeginBlendMode(rl.BlendAdditive)
		defer rl.EndBlendMode()
	}
	color := shadeColor(sh)
	for _, m := range transforms {
		switch shape {
		case client.ShapeSphere:
			r := m.Col(0).Vec3().Len() / 2
			rl.DrawSphereEx(vec(m.Col(3).Vec3()), r, sphereRings, sphereRings, color)
		default:
			drawBox(m, color)
		}
	}
}

// unitBox holds the corners of a unit cube centred on the origin.
var unitBox = [8]mgl32.Vec3{
	{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5},
	{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5},
}

var boxFaces = [6][4]int{
	{0, 3, 2, 1}, {4, 5, 6, 7}, {0, 4, 7, 3},
	{1, 2, 6, 5}, {3, 7, 6, 2}, {0, 1, 5, 4},
}

// boxFaceShade darkens side and bottom faces so boxes read without lighting.
var boxFaceShade = [6]float32{0.75, 0.85, 0.7, 0.8, 1, 0.5}

func drawBox(m mgl32.Mat4, color rl.Color) {
	var c [8]rl.Vector3
	for i, p := range unitBox {
		c[i] = vec(mgl32.TransformCoordinate(p, m))
	}
	for i, f := range boxFaces {
		fc := scaleColor(color, boxFaceShade[i])
		rl.DrawTriangle3D(c[f[0]], c[f[1]], c[f[2]], fc)
		rl.DrawTriangle3D(c[f[0]], c[f[2]], c[f[3]], fc)
	}
}

type triangle struct {
	a, b, c rl.Vector3
	color   rl.Color
}

// Mesh is a layer converted to raylib triangles. Uploading replaces the
// previous contents and reuses the triangle slice.
type Mesh struct {
	layer snapshot.Layer
	tris  []triangle
}

// Triangles returns the number of triangles uploaded.
func (m *Mesh) Triangles() int { return len(m.tris) }

// UploadSprites implements client.Mesh.
func (m *Mesh) UploadSprites(b *snapshot.Buffer[snapshot.VertexSprite]) {
	m.tris = m.tris[:0]
	if b == nil {
		return
	}
	for i := 0; i+2 < len(b.Indices); i += 3 {
		v0 := &b.Vertices[b.Indices[i]]
		m.tris = append(m.tris, triangle{
			a:     arr(v0.Pos),
			b:     arr(b.Vertices[b.Indices[i+1]].Pos),
			c:     arr(b.Vertices[b.Indices[i+2]].Pos),
			color: spriteColor(m.layer, v0.Color),
		})
	}
}

// UploadSmoke implements client.Mesh.
func (m *Mesh) UploadSmoke(b *snapshot.Buffer[snapshot.VertexSmoke]) {
	m.tris = m.tris[:0]
	if b == nil {
		return
	}
	for i := 0; i+2 < len(b.Indices); i += 3 {
		v0 := &b.Vertices[b.Indices[i]]
		m.tris = append(m.tris, triangle{
			a:     arr(v0.Pos),
			b:     arr(b.Vertices[b.Indices[i+1]].Pos),
			c:     arr(b.Vertices[b.Indices[i+2]].Pos),
			color: smokeColor(v0),
		})
	}
}

// UploadSimple implements client.Mesh.
func (m *Mesh) UploadSimple(b *snapshot.Buffer[snapshot.VertexSimple]) {
	m.tris = m.tris[:0]
	if b == nil {
		return
	}
	for i := 0; i+2 < len(b.Indices); i += 3 {
		v0 := &b.Vertices[b.Indices[i]]
		c := v0.Color
		m.tris = append(m.tris, triangle{
			a:     arr(v0.Pos),
			b:     arr(b.Vertices[b.Indices[i+1]].Pos),
			c:     arr(b.Vertices[b.Indices[i+2]].Pos),
			color: rl.NewColor(c[0], c[1], c[2], c[3]),
		})
	}
}

// spriteColor maps a sprite vertex colour to a draw colour. Shadow sprites
// carry their density in every channel and draw as translucent black.
func spriteColor(layer snapshot.Layer, c [3]float32) rl.Color {
	if layer == snapshot.LayerShadows {
		return rl.NewColor(0, 0, 0, unorm(c[0]*shadowAlpha))
	}
	return rl.NewColor(unorm(c[0]), unorm(c[1]), unorm(c[2]), unorm(spriteAlpha))
}

// smokeColor combines the diffuse grey, the glow tint and the opacity of a
// tendril vertex. Eroded points are more transparent.
func smokeColor(v *snapshot.VertexSmoke) rl.Color {
	d := v.Diffuse
	g := v.Glow
	alpha := float32(g[3]) / 255 * min(max(v.Erosion, 0), 1)
	return rl.NewColor(
		unorm(d+float32(g[0])/255),
		unorm(d+float32(g[1])/255),
		unorm(d+float32(g[2])/255),
		unorm(alpha),
	)
}

func shadeColor(sh client.Shading) rl.Color {
	c := sh.Color.Mul(1 + sh.Glow*0.25)
	// Reflective materials are drawn a little brighter
	c = c.Add(mgl32.Vec3{1, 1, 1}.Mul(sh.Reflection * 0.15))
	return rl.NewColor(unorm(c[0]), unorm(c[1]), unorm(c[2]), 255)
}

func scaleColor(c rl.Color, f float32) rl.Color {
	return rl.NewColor(uint8(float32(c.R)*f), uint8(float32(c.G)*f), uint8(float32(c.B)*f), c.A)
}

func unorm(v float32) uint8 {
	return uint8(min(max(v, 0), 1)*255 + 0.5)
}

func vec(v mgl32.Vec3) rl.Vector3 {
	return rl.NewVector3(v[0], v[1], v[2])
}

func arr(v [3]float32) rl.Vector3 {
	return rl.NewVector3(v[0], v[1], v[2])
}
