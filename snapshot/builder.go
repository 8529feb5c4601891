package snapshot

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Buffer is an index and vertex buffer for one draw category.
type Buffer[V any] struct {
	Indices  []uint32
	Vertices []V
}

// Len returns the number of indices.
func (b *Buffer[V]) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Indices)
}

// Builder fills a Buffer up to a maximum computed before building. Writing
// past the maximum is a programming error and panics.
type Builder[V any] struct {
	name     string
	verts    []V
	indices  []uint32
	maxVerts int
	maxIdx   int
	nv, ni   int
}

// NewBuilder creates a named builder. The name appears in overrun panics.
func NewBuilder[V any](name string) *Builder[V] {
	return &Builder[V]{name: name}
}

// Reserve allocates room for exactly maxVerts vertices and maxIndices indices
// and resets the fill counts.
func (b *Builder[V]) Reserve(maxVerts, maxIndices int) {
	b.verts = make([]V, maxVerts)
	b.indices = make([]uint32, maxIndices)
	b.maxVerts, b.maxIdx = maxVerts, maxIndices
	b.nv, b.ni = 0, 0
}

func (b *Builder[V]) vertex(v V) uint32 {
	if b.nv >= b.maxVerts {
		panic(fmt.Sprintf("snapshot: %s vertex overrun: max %d", b.name, b.maxVerts))
	}
	b.verts[b.nv] = v
	b.nv++
	return uint32(b.nv - 1)
}

func (b *Builder[V]) index(i ...uint32) {
	if b.ni+len(i) > b.maxIdx {
		panic(fmt.Sprintf("snapshot: %s index overrun: max %d", b.name, b.maxIdx))
	}
	b.ni += copy(b.indices[b.ni:], i)
}

// Quad adds four corners as two triangles (0,1,2) and (0,2,3).
func (b *Builder[V]) Quad(v0, v1, v2, v3 V) {
	i0 := b.vertex(v0)
	b.vertex(v1)
	b.vertex(v2)
	b.vertex(v3)
	b.index(i0, i0+1, i0+2, i0, i0+2, i0+3)
}

// Strip adds a ribbon from left/right vertex pairs. pairs holds 2n vertices
// ordered left, right per cross-section; n-1 quads are emitted.
func (b *Builder[V]) Strip(pairs []V) {
	if len(pairs) < 4 {
		return
	}
	base := uint32(b.nv)
	for _, v := range pairs {
		b.vertex(v)
	}
	for i := uint32(0); i+3 < uint32(len(pairs)); i += 2 {
		l0, r0, l1, r1 := base+i, base+i+1, base+i+2, base+i+3
		b.index(l0, r0, r1, l0, r1, l1)
	}
}

// Count returns the vertices and indices written so far.
func (b *Builder[V]) Count() (verts, indices int) {
	return b.nv, b.ni
}

// Finish returns the built buffer. An empty build returns nil; a partial one
// is copied into exactly sized slices so no unused capacity is retained.
func (b *Builder[V]) Finish() *Buffer[V] {
	defer func() {
		b.verts, b.indices = nil, nil
		b.maxVerts, b.maxIdx, b.nv, b.ni = 0, 0, 0, 0
	}()
	if b.ni == 0 || b.nv == 0 {
		return nil
	}
	out := &Buffer[V]{Vertices: b.verts, Indices: b.indices}
	if b.nv < b.maxVerts {
		out.Vertices = append(make([]V, 0, b.nv), b.verts[:b.nv]...)
	}
	if b.ni < b.maxIdx {
		out.Indices = append(make([]uint32, 0, b.ni), b.indices[:b.ni]...)
	}
	return out
}

// Billboard returns the corners of a camera-facing square of half-size r at centre.
func Billboard(centre, camPos mgl32.Vec3, r float32) [4]mgl32.Vec3 {
	fwd := camPos.Sub(centre)
	if fwd.LenSqr() < 1e-8 {
		fwd = mgl32.Vec3{0, 0, 1}
	}
	fwd = fwd.Normalize()
	up := mgl32.Vec3{0, 1, 0}
	if abs(fwd.Dot(up)) > 0.99 {
		up = mgl32.Vec3{0, 0, 1}
	}
	right := up.Cross(fwd).Normalize().Mul(r)
	up = fwd.Cross(right.Normalize()).Mul(r)
	return [4]mgl32.Vec3{
		centre.Sub(right).Sub(up),
		centre.Add(right).Sub(up),
		centre.Add(right).Add(up),
		centre.Sub(right).Add(up),
	}
}

// GroundQuad returns the corners of a horizontal square of half-size r at centre.
func GroundQuad(centre mgl32.Vec3, r float32) [4]mgl32.Vec3 {
	return [4]mgl32.Vec3{
		centre.Add(mgl32.Vec3{-r, 0, -r}),
		centre.Add(mgl32.Vec3{r, 0, -r}),
		centre.Add(mgl32.Vec3{r, 0, r}),
		centre.Add(mgl32.Vec3{-r, 0, r}),
	}
}

var quadUV = [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

// AddSprite adds a sprite quad over corners with a uniform colour.
func AddSprite(b *Builder[VertexSprite], corners [4]mgl32.Vec3, size float32, color mgl32.Vec3) {
	var v [4]VertexSprite
	for i := range v {
		v[i] = VertexSprite{Pos: v3(corners[i]), UV: quadUV[i], Size: size, Color: v3(color)}
	}
	b.Quad(v[0], v[1], v[2], v[3])
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
