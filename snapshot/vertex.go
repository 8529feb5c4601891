// Package snapshot holds the render-ready geometry the dynamics worker hands
// to the client once per step.
//
// The vertex structs are the wire format consumed by renderers. Their field
// order and sizes must not change.
package snapshot

import "github.com/go-gl/mathgl/mgl32"

// VertexSprite is a corner of a sprite quad: shadows, lights and sparks.
type VertexSprite struct {
	Pos   [3]float32
	UV    [2]float32
	Size  float32 // Sprite radius, for soft edges
	Color [3]float32
}

// VertexSmoke is a tendril ribbon vertex.
type VertexSmoke struct {
	Pos     [3]float32
	UV      [2]float32
	Erosion float32
	Glow    [4]uint8 // RGB glow, A is opacity
	Diffuse float32
}

// VertexSimple is a flat-coloured vertex used for fuses.
type VertexSimple struct {
	Pos   [3]float32
	Color [4]uint8
}

// Vertex strides in bytes.
const (
	SpriteStride = 36
	SmokeStride  = 32
	SimpleStride = 16
)

func v3(v mgl32.Vec3) [3]float32 {
	return [3]float32{v[0], v[1], v[2]}
}

// PackColor converts a linear colour in [0, 1] to bytes, saturating out-of-range values.
func PackColor(c mgl32.Vec3, alpha float32) [4]uint8 {
	return [4]uint8{unorm8(c[0]), unorm8(c[1]), unorm8(c[2]), unorm8(alpha)}
}

func unorm8(v float32) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}
