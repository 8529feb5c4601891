package asset

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ojrac/opensimplex-go"
)

// HeightfieldParams controls procedural terrain generation.
type HeightfieldParams struct {
	Seed       int64
	Size       float32 // World extent along X and Z, centered on the origin
	Resolution int     // Quads per side
	Amplitude  float32
	Frequency  float64
	Octaves    int
}

// GenerateHeightfield builds a grid collision mesh displaced by fractal simplex noise.
func GenerateHeightfield(p HeightfieldParams) (*CollisionMesh, error) {
	if p.Resolution < 1 {
		return nil, fmt.Errorf("heightfield resolution must be >= 1, got %d", p.Resolution)
	}
	if p.Octaves < 1 {
		p.Octaves = 1
	}
	if p.Frequency == 0 {
		p.Frequency = 0.1
	}

	noise := opensimplex.New(p.Seed)
	n := p.Resolution + 1
	step := p.Size / float32(p.Resolution)
	half := p.Size / 2

	vertices := make([]mgl32.Vec3, 0, n*n)
	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			wx := float32(x)*step - half
			wz := float32(z)*step - half
			h := fbm(noise, float64(wx), float64(wz), p.Frequency, p.Octaves)
			vertices = append(vertices, mgl32.Vec3{wx, float32(h) * p.Amplitude, wz})
		}
	}

	indices := make([]uint32, 0, p.Resolution*p.Resolution*6)
	for z := 0; z < p.Resolution; z++ {
		for x := 0; x < p.Resolution; x++ {
			i0 := uint32(z*n + x)
			i1 := i0 + 1
			i2 := i0 + uint32(n)
			i3 := i2 + 1
			// Counter-clockwise seen from above so normals point up
			indices = append(indices, i0, i2, i1, i1, i2, i3)
		}
	}

	return NewCollisionMesh(fmt.Sprintf("heightfield-%d", p.Seed), vertices, indices)
}

func fbm(noise opensimplex.Noise, x, z, freq float64, octaves int) float64 {
	var sum, amp, norm float64 = 0, 1, 0
	for i := 0; i < octaves; i++ {
		sum += noise.Eval2(x*freq, z*freq) * amp
		norm += amp
		amp *= 0.5
		freq *= 2
	}
	return sum / norm
}

// NewGroundPlane builds a flat two-triangle square at the given height.
func NewGroundPlane(name string, size, height float32) *CollisionMesh {
	h := size / 2
	vertices := []mgl32.Vec3{
		{-h, height, -h},
		{h, height, -h},
		{-h, height, h},
		{h, height, h},
	}
	indices := []uint32{0, 2, 1, 1, 2, 3}
	mesh, err := NewCollisionMesh(name, vertices, indices)
	if err != nil {
		panic(err)
	}
	return mesh
}
