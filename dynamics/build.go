package dynamics

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/components"
	"github.com/pthm-cable/bgdynamics/snapshot"
	"github.com/pthm-cable/bgdynamics/systems"
)

const (
	shadowLift       = 0.02 // Above the ground to avoid z-fighting
	chunkShadowScale = 0.6
	sparkGlowScale   = 6
	lightSpriteScale = 0.25
)

var (
	sparkGlowColor = mgl32.Vec3{1, 0.55, 0.15}
	fuseColor      = mgl32.Vec3{0.22, 0.17, 0.12}
)

// builders are reused across steps; only the finished buffers leave the worker.
type builders struct {
	shadows  *snapshot.Builder[snapshot.VertexSprite]
	lights   *snapshot.Builder[snapshot.VertexSprite]
	sparks   *snapshot.Builder[snapshot.VertexSprite]
	tendrils *snapshot.Builder[snapshot.VertexSmoke]
	fuses    *snapshot.Builder[snapshot.VertexSimple]

	smokePairs []snapshot.VertexSmoke
	fusePairs  []snapshot.VertexSimple
}

func newBuilders() builders {
	return builders{
		shadows:  snapshot.NewBuilder[snapshot.VertexSprite](snapshot.LayerShadows.String()),
		lights:   snapshot.NewBuilder[snapshot.VertexSprite](snapshot.LayerLights.String()),
		sparks:   snapshot.NewBuilder[snapshot.VertexSprite](snapshot.LayerSparks.String()),
		tendrils: snapshot.NewBuilder[snapshot.VertexSmoke](snapshot.LayerTendrils.String()),
		fuses:    snapshot.NewBuilder[snapshot.VertexSimple](snapshot.LayerFuses.String()),
	}
}

// sizes holds the maximum item counts of one snapshot.
type sizes struct {
	perCategory    [components.NumChunkCategories]int
	chunkShadows   int
	sparkLights    int
	tendrilShadows int
	smokeVerts     int
	smokeIndices   int
	fuseVerts      int
	fuseIndices    int
}

func stripSize(n int) (verts, indices int) {
	if n < 2 {
		return 0, 0
	}
	return 2 * n, 6 * (n - 1)
}

func (s *Server) measure() sizes {
	var z sizes
	query := s.chunkFilter.Query()
	for query.Next() {
		c := query.Get()
		z.perCategory[c.Category]++
		if c.ShadowDensity > 0 {
			z.chunkShadows++
		}
		if c.Category == components.ChunkSpark {
			z.sparkLights++
		}
	}
	tq := s.tendrilFilter.Query()
	for tq.Next() {
		t := tq.Get()
		if t.ShadowDensity > 0 {
			z.tendrilShadows++
		}
		v, i := stripSize(len(t.Slices))
		z.smokeVerts += v
		z.smokeIndices += i
	}
	for _, f := range s.fuses {
		v, i := stripSize(len(f.Points))
		z.fuseVerts += v
		z.fuseIndices += i
	}
	return z
}

// buildSnapshot builds every layer for the current state. Each builder is
// reserved for the maximum measured beforehand; items skipped while filling
// leave the buffer clipped to what was drawn.
func (s *Server) buildSnapshot() *snapshot.Snapshot {
	snap := &snapshot.Snapshot{Step: s.steps, TimeMS: s.clockMS}
	b := &s.build
	z := s.measure()

	nShadows := len(s.shadows) + z.chunkShadows + z.tendrilShadows
	b.shadows.Reserve(4*nShadows, 6*nShadows)
	nLights := z.sparkLights + len(s.lights)
	b.lights.Reserve(4*nLights, 6*nLights)
	nSparks := s.parts.Len()
	b.sparks.Reserve(4*nSparks, 6*nSparks)
	b.tendrils.Reserve(z.smokeVerts, z.smokeIndices)
	b.fuses.Reserve(z.fuseVerts, z.fuseIndices)

	for cat, n := range z.perCategory {
		if n > 0 {
			snap.Chunks[cat] = make([]mgl32.Mat4, 0, n)
		}
	}
	if z.tendrilShadows > 0 {
		snap.TendrilShadows = make([]snapshot.TendrilShadow, 0, z.tendrilShadows)
	}

	lift := mgl32.Vec3{0, shadowLift, 0}
	for _, w := range s.shadows {
		if w.Density <= 0 {
			continue
		}
		snapshot.AddSprite(b.shadows, snapshot.GroundQuad(w.GroundPos.Add(lift), w.Scale), w.Scale, gray(w.Density))
	}

	query := s.chunkFilter.Query()
	for query.Next() {
		c := query.Get()
		snap.Chunks[c.Category] = append(snap.Chunks[c.Category], c.RenderTransform())

		pos := c.Position()
		r := maxComponent(c.Size) * c.Scale
		if c.ShadowDensity > 0 {
			ground := mgl32.Vec3{pos[0], pos[1] - c.GroundDist + shadowLift, pos[2]}
			sr := r * chunkShadowScale
			snapshot.AddSprite(b.shadows, snapshot.GroundQuad(ground, sr), sr, gray(c.ShadowDensity))
		}
		if c.Category == components.ChunkSpark {
			gr := r * sparkGlowScale
			snapshot.AddSprite(b.lights, snapshot.Billboard(pos, s.camPos, gr), gr, sparkGlowColor.Mul(c.Scale))
		}
	}

	for _, l := range s.lights {
		if l.Radius <= 0 || l.Intensity <= 0 {
			continue
		}
		r := l.Radius * lightSpriteScale
		snapshot.AddSprite(b.lights, snapshot.Billboard(l.Pos, s.camPos, r), r, l.Color.Mul(l.Intensity))
	}

	for _, p := range s.parts.Particles() {
		snapshot.AddSprite(b.sparks, snapshot.Billboard(p.Pos, s.camPos, p.Size), p.Size, p.Color.Mul(min(max(p.Life, 0), 1)))
	}

	tq := s.tendrilFilter.Query()
	for tq.Next() {
		t := tq.Get()
		if t.ShadowDensity > 0 {
			snap.TendrilShadows = append(snap.TendrilShadows, snapshot.TendrilShadow{Pos: t.ShadowPos, Density: t.ShadowDensity})
			r := s.tendrils.Params(t.Kind).Width * 2
			snapshot.AddSprite(b.shadows, snapshot.GroundQuad(t.ShadowPos.Add(lift), r), r, gray(t.ShadowDensity))
		}
		s.addSmoke(t)
	}

	for _, f := range s.fuses {
		s.addFuse(f)
	}

	snap.Shadows = b.shadows.Finish()
	snap.Lights = b.lights.Finish()
	snap.Sparks = b.sparks.Finish()
	snap.Tendrils = b.tendrils.Finish()
	snap.Fuses = b.fuses.Finish()
	return snap
}

// addSmoke adds a tendril ribbon: one left/right vertex pair per slice.
func (s *Server) addSmoke(t *components.Tendril) {
	if len(t.Slices) < 2 {
		return
	}
	b := &s.build
	pairs := b.smokePairs[:0]
	for i := range t.Slices {
		for side := range t.Slices[i].P {
			p := &t.Slices[i].P[side]
			pairs = append(pairs, snapshot.SmokeVertex(p.PosDist, p.TexCoord, float32(side), p.Erosion, p.Glow, p.Fade, p.Brightness))
		}
	}
	b.tendrils.Strip(pairs)
	b.smokePairs = pairs
}

// addFuse adds a camera-facing ribbon through the fuse control points. A
// burning fuse has a glowing tip.
func (s *Server) addFuse(f *components.FuseWorker) {
	n := len(f.Points)
	if n < 2 {
		return
	}
	b := &s.build
	half := float32(s.cfg.Fuses.Width) / 2
	pairs := b.fusePairs[:0]
	for i, p := range f.Points {
		var tangent mgl32.Vec3
		if i+1 < n {
			tangent = f.Points[i+1].Sub(p)
		} else {
			tangent = p.Sub(f.Points[i-1])
		}
		side := tangent.Cross(s.camPos.Sub(p))
		if l := side.Len(); l > 1e-6 {
			side = side.Mul(half / l)
		} else {
			side = mgl32.Vec3{half, 0, 0}
		}
		color := fuseColor
		if f.Burning && i == n-1 {
			color = systems.FuseSparkColor(f.Length)
		}
		pairs = append(pairs,
			snapshot.SimpleVertex(p.Sub(side), color, 1),
			snapshot.SimpleVertex(p.Add(side), color, 1))
	}
	b.fuses.Strip(pairs)
	b.fusePairs = pairs
}

// gray encodes a shadow density in every colour channel.
func gray(v float32) mgl32.Vec3 {
	return mgl32.Vec3{v, v, v}
}

func maxComponent(v mgl32.Vec3) float32 {
	return max(v[0], v[1], v[2])
}
