// Package asset provides reference-counted collision mesh assets.
//
// Meshes are owned by the logic thread. The dynamics worker only ever holds a
// MeshRef, and hands it back to the logic thread to be released there.
package asset

import (
	"fmt"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// CollisionMesh is an indexed triangle soup used to build terrain collision shapes.
type CollisionMesh struct {
	Name     string
	Vertices []mgl32.Vec3
	Indices  []uint32

	refs atomic.Int32
}

// NewCollisionMesh creates a mesh asset. Indices must come in triples.
func NewCollisionMesh(name string, vertices []mgl32.Vec3, indices []uint32) (*CollisionMesh, error) {
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("mesh %q: index count %d is not a multiple of 3", name, len(indices))
	}
	for _, idx := range indices {
		if int(idx) >= len(vertices) {
			return nil, fmt.Errorf("mesh %q: index %d out of range (%d vertices)", name, idx, len(vertices))
		}
	}
	return &CollisionMesh{Name: name, Vertices: vertices, Indices: indices}, nil
}

// TriangleCount returns the number of triangles.
func (m *CollisionMesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Refs returns the number of live strong references.
func (m *CollisionMesh) Refs() int {
	return int(m.refs.Load())
}

// Acquire takes a strong reference to the mesh.
func (m *CollisionMesh) Acquire() *MeshRef {
	m.refs.Add(1)
	return &MeshRef{mesh: m}
}

// MeshRef is a strong reference to a CollisionMesh. It must be released exactly once.
type MeshRef struct {
	mesh     *CollisionMesh
	released atomic.Bool
}

// Mesh returns the referenced mesh. Panics after release.
func (r *MeshRef) Mesh() *CollisionMesh {
	if r.released.Load() {
		panic(fmt.Sprintf("asset: mesh %q used after release", r.mesh.Name))
	}
	return r.mesh
}

// Release drops the reference. Releasing twice panics.
func (r *MeshRef) Release() {
	if !r.released.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("asset: mesh %q released twice", r.mesh.Name))
	}
	r.mesh.refs.Add(-1)
}
