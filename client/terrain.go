package client

import (
	"github.com/pthm-cable/bgdynamics/asset"
	"github.com/pthm-cable/bgdynamics/components"
)

// Terrain is a collision surface registered with the worker. The worker
// holds a reference to the mesh until it has torn the shape down.
type Terrain struct {
	c       *Client
	id      components.TerrainID
	mesh    *asset.CollisionMesh
	removed bool
}

// AddTerrain registers mesh as collision geometry.
func (c *Client) AddTerrain(mesh *asset.CollisionMesh) (*Terrain, error) {
	id := components.TerrainID(c.newID())
	ref := mesh.Acquire()
	if err := c.server.AddTerrain(id, ref); err != nil {
		ref.Release()
		return nil, err
	}
	return &Terrain{c: c, id: id, mesh: mesh}, nil
}

func (t *Terrain) ID() components.TerrainID { return t.id }

func (t *Terrain) Mesh() *asset.CollisionMesh { return t.mesh }

// Remove unregisters the terrain. Every chunk, tendril and field is cleared
// with it. The mesh reference comes back through Pump.
func (t *Terrain) Remove() error {
	if t.removed {
		return ErrTerrainRemoved
	}
	t.removed = true
	return t.c.server.RemoveTerrain(t.id)
}
