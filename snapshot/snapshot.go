package snapshot

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/components"
)

// Layer names a drawable geometry category of a snapshot.
type Layer uint8

const (
	LayerShadows Layer = iota
	LayerLights
	LayerSparks
	LayerTendrils
	LayerFuses

	NumLayers
)

var layerNames = [NumLayers]string{"shadows", "lights", "sparks", "tendrils", "fuses"}

func (l Layer) String() string {
	if l < NumLayers {
		return layerNames[l]
	}
	return fmt.Sprintf("layer(%d)", uint8(l))
}

// TendrilShadow is the ground blob cast by one tendril.
type TendrilShadow struct {
	Pos     mgl32.Vec3
	Density float32
}

// Snapshot is the complete draw state of one simulation step. Once posted it
// is owned by the client and never touched by the worker again.
type Snapshot struct {
	Step   uint64
	TimeMS float64

	Shadows  *Buffer[VertexSprite]
	Lights   *Buffer[VertexSprite]
	Sparks   *Buffer[VertexSprite]
	Tendrils *Buffer[VertexSmoke]
	Fuses    *Buffer[VertexSimple]

	// Chunk model transforms, including size and shrink scale
	Chunks [components.NumChunkCategories][]mgl32.Mat4

	TendrilShadows []TendrilShadow
}

// LayerLen returns the index count of a layer, zero when absent.
func (s *Snapshot) LayerLen(l Layer) int {
	switch l {
	case LayerShadows:
		return s.Shadows.Len()
	case LayerLights:
		return s.Lights.Len()
	case LayerSparks:
		return s.Sparks.Len()
	case LayerTendrils:
		return s.Tendrils.Len()
	case LayerFuses:
		return s.Fuses.Len()
	}
	return 0
}

// ChunkCount returns the number of chunk transforms across all categories.
func (s *Snapshot) ChunkCount() int {
	n := 0
	for _, t := range s.Chunks {
		n += len(t)
	}
	return n
}

// SmokeVertex builds a tendril vertex.
func SmokeVertex(pos mgl32.Vec3, u, v, erosion float32, glow mgl32.Vec3, opacity, diffuse float32) VertexSmoke {
	return VertexSmoke{
		Pos:     v3(pos),
		UV:      [2]float32{u, v},
		Erosion: erosion,
		Glow:    PackColor(glow, opacity),
		Diffuse: diffuse,
	}
}

// SimpleVertex builds a flat-coloured vertex.
func SimpleVertex(pos, color mgl32.Vec3, alpha float32) VertexSimple {
	return VertexSimple{Pos: v3(pos), Color: PackColor(color, alpha)}
}
