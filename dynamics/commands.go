package dynamics

import (
	"fmt"
	"slices"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/bgdynamics/asset"
	"github.com/pthm-cable/bgdynamics/components"
	"github.com/pthm-cable/bgdynamics/physics"
)

func (s *Server) terrainIndex(id components.TerrainID) int {
	return slices.IndexFunc(s.terrains, func(t *terrain) bool { return t.id == id })
}

func (s *Server) addTerrain(id components.TerrainID, ref *asset.MeshRef) {
	if s.terrainIndex(id) >= 0 {
		s.toClient(ref.Release)
		s.fatal(fmt.Errorf("%w: terrain %d", ErrDuplicate, id))
		return
	}
	m := ref.Mesh()
	t := &terrain{id: id, ref: ref, mesh: physics.NewTriMesh(m.Vertices, m.Indices)}
	s.terrains = append(s.terrains, t)
	s.rebuildCache()
	s.publish()
	s.log.Info("bgdynamics terrain added", "terrain_id", id, "mesh", m.Name, "triangles", t.mesh.TriangleCount())
}

// removeTerrain drops the collision shape, rebuilds the cache and clears all
// entities, since they may rest on or collide with the removed geometry. The
// mesh reference is released on the client only after the rebuild.
func (s *Server) removeTerrain(id components.TerrainID) {
	i := s.terrainIndex(id)
	if i < 0 {
		s.fatal(fmt.Errorf("%w: %d", ErrUnknownTerrain, id))
		return
	}
	t := s.terrains[i]
	s.terrains = slices.Delete(s.terrains, i, i+1)
	s.rebuildCache()
	s.clear()
	s.toClient(t.ref.Release)
	s.publish()
	s.log.Info("bgdynamics terrain removed", "terrain_id", id, "terrains", len(s.terrains))
}

func (s *Server) rebuildCache() {
	geoms := make([]*physics.TriMesh, len(s.terrains))
	for i, t := range s.terrains {
		geoms[i] = t.mesh
	}
	s.cache.SetGeoms(geoms)
}

func (s *Server) emit(ev components.EmitEvent) {
	res := s.emitter.Emit(s.world, ev, s.tier, s.pop, s.clockMS)
	s.pop.Chunks += res.Chunks
	s.pop.ThinTendrils += res.ThinTendrils
	s.pop.ThickTendrils += res.ThickTendrils
	s.pop.Fields += res.Fields
	s.publish()
}

func (s *Server) prune() {
	chunks := s.chunks.OldestChunks(s.cfg.Worker.PruneChunkFraction)
	for _, e := range chunks {
		s.destroyChunk(e)
	}
	tendrils := s.tendrils.OldestTendrils(s.cfg.Worker.PruneTendrilFraction)
	for _, e := range tendrils {
		s.destroyTendril(e)
	}
	s.pruned += len(chunks) + len(tendrils)
	s.publish()
	s.log.Info("bgdynamics pruned", "chunks", len(chunks), "tendrils", len(tendrils), "remaining_chunks", s.pop.Chunks)
}

// clear removes every chunk, tendril and field, and all particles.
func (s *Server) clear() {
	for _, e := range s.chunks.All() {
		s.destroyChunk(e)
	}
	for _, e := range s.tendrils.All() {
		s.destroyTendril(e)
	}
	for _, e := range s.fields.All() {
		s.destroyField(e)
	}
	s.parts.Clear()
	s.phys.ClearContacts()
}

func (s *Server) destroyChunk(e ecs.Entity) {
	s.chunks.Destroy(s.world, e)
	s.pop.Chunks--
}

func (s *Server) destroyTendril(e ecs.Entity) {
	if s.tendrils.Kind(e).Thin() {
		s.pop.ThinTendrils--
	} else {
		s.pop.ThickTendrils--
	}
	s.tendrils.Destroy(s.world, e)
}

func (s *Server) destroyField(e ecs.Entity) {
	s.world.RemoveEntity(e)
	s.pop.Fields--
}
