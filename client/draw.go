package client

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/components"
	"github.com/pthm-cable/bgdynamics/snapshot"
)

// Shape is the instanced model a chunk category is drawn with.
type Shape uint8

const (
	ShapeBox Shape = iota
	ShapeSphere
)

// Shading is the fixed material applied to one draw category.
type Shading struct {
	Color      mgl32.Vec3
	Reflection float32 // Environment reflection amount in [0, 1]
	Glow       float32 // Emissive multiplier on Color
	Additive   bool
}

// Mesh is a renderer-side copy of one snapshot layer. Only the upload
// matching the layer's vertex format is ever called.
type Mesh interface {
	UploadSprites(b *snapshot.Buffer[snapshot.VertexSprite])
	UploadSmoke(b *snapshot.Buffer[snapshot.VertexSmoke])
	UploadSimple(b *snapshot.Buffer[snapshot.VertexSimple])
}

// Frame is the renderer a snapshot is submitted to.
type Frame interface {
	NewMesh(layer snapshot.Layer) Mesh
	DrawMesh(m Mesh, sh Shading)
	DrawInstanced(shape Shape, transforms []mgl32.Mat4, sh Shading)
}

var layerShading = [snapshot.NumLayers]Shading{
	snapshot.LayerShadows:  {Color: mgl32.Vec3{0, 0, 0}},
	snapshot.LayerLights:   {Color: mgl32.Vec3{1, 1, 1}, Glow: 1, Additive: true},
	snapshot.LayerSparks:   {Color: mgl32.Vec3{1, 1, 1}, Glow: 2, Additive: true},
	snapshot.LayerTendrils: {Color: mgl32.Vec3{0.8, 0.8, 0.85}, Glow: 1},
	snapshot.LayerFuses:    {Color: mgl32.Vec3{1, 1, 1}},
}

var chunkShading = [components.NumChunkCategories]Shading{
	components.ChunkRock:      {Color: mgl32.Vec3{0.45, 0.42, 0.4}},
	components.ChunkIce:       {Color: mgl32.Vec3{0.75, 0.9, 1}, Reflection: 0.6},
	components.ChunkSlime:     {Color: mgl32.Vec3{0.35, 0.85, 0.25}, Reflection: 0.3, Glow: 0.2},
	components.ChunkMetal:     {Color: mgl32.Vec3{0.6, 0.62, 0.66}, Reflection: 0.8},
	components.ChunkSpark:     {Color: mgl32.Vec3{1, 0.6, 0.2}, Glow: 3, Additive: true},
	components.ChunkSplinter:  {Color: mgl32.Vec3{0.55, 0.38, 0.2}},
	components.ChunkSweat:     {Color: mgl32.Vec3{0.7, 0.85, 1}, Reflection: 0.5},
	components.ChunkFlagStand: {Color: mgl32.Vec3{0.9, 0.9, 0.88}, Reflection: 0.2},
}

// LayerShading returns the material a layer is drawn with.
func LayerShading(l snapshot.Layer) Shading { return layerShading[l] }

// ChunkShading returns the material a chunk category is drawn with.
func ChunkShading(c components.ChunkCategory) Shading { return chunkShading[c] }

// Draw submits the displayed snapshot to f. Meshes are created on first use
// and re-uploaded only when a new snapshot has arrived since the last draw.
func (c *Client) Draw(f Frame) {
	s := c.snap
	if s == nil {
		return
	}
	for l := range snapshot.NumLayers {
		if s.LayerLen(l) == 0 {
			continue
		}
		m := c.meshes[l]
		if m == nil {
			m = f.NewMesh(l)
			c.meshes[l] = m
		}
		if c.uploaded[l] != s {
			upload(m, s, l)
			c.uploaded[l] = s
		}
		f.DrawMesh(m, layerShading[l])
	}
	for cat, transforms := range s.Chunks {
		if len(transforms) > 0 {
			f.DrawInstanced(c.shapes[cat], transforms, chunkShading[cat])
		}
	}
}

func upload(m Mesh, s *snapshot.Snapshot, l snapshot.Layer) {
	switch l {
	case snapshot.LayerShadows:
		m.UploadSprites(s.Shadows)
	case snapshot.LayerLights:
		m.UploadSprites(s.Lights)
	case snapshot.LayerSparks:
		m.UploadSprites(s.Sparks)
	case snapshot.LayerTendrils:
		m.UploadSmoke(s.Tendrils)
	case snapshot.LayerFuses:
		m.UploadSimple(s.Fuses)
	}
}
