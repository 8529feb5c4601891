package systems

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/bgdynamics/components"
	"github.com/pthm-cable/bgdynamics/config"
	"github.com/pthm-cable/bgdynamics/physics"
)

// Sweat beads drift upward instead of falling.
const sweatLift = 0.4

// chunkParams holds the float32 per-category constants used in the hot loop.
type chunkParams struct {
	linearDrag  float32
	angularDrag float32
}

// ChunkSystem integrates debris: drag, terrain contacts, end-of-life shrink and
// sinking, shadows, and the position of attached tendrils.
type ChunkSystem struct {
	filter   *ecs.Filter1[components.Chunk]
	chunks   *ecs.Map[components.Chunk]
	tendrils *ecs.Map[components.Tendril]
	phys     *physics.World
	ground   Ground

	params      [components.NumChunkCategories]chunkParams
	killHeight  float32
	noGround    float32
	shrinkMS    float64
	sinkRate    float32
	restSpeed   float32
	shadowDist  float32
	maxContacts int

	dead     []ecs.Entity
	contacts int
}

// NewChunkSystem creates a new chunk system.
func NewChunkSystem(w *ecs.World, cfg *config.Config, phys *physics.World, ground Ground) *ChunkSystem {
	s := &ChunkSystem{
		filter:      ecs.NewFilter1[components.Chunk](w),
		chunks:      ecs.NewMap[components.Chunk](w),
		tendrils:    ecs.NewMap[components.Tendril](w),
		phys:        phys,
		ground:      ground,
		killHeight:  cfg.Derived.KillHeight32,
		noGround:    cfg.Derived.NoGround32,
		shrinkMS:    cfg.Chunks.ShrinkMS,
		sinkRate:    float32(cfg.Chunks.SinkRate),
		restSpeed:   float32(cfg.Chunks.RestSpeed),
		shadowDist:  float32(cfg.Chunks.ShadowDistance),
		maxContacts: cfg.Physics.MaxContactsPerChunk,
	}
	for c := components.ChunkCategory(0); c < components.NumChunkCategories; c++ {
		cat := cfg.Chunks.Categories[c.String()]
		s.params[c] = chunkParams{
			linearDrag:  float32(cat.LinearDrag),
			angularDrag: float32(cat.AngularDrag),
		}
	}
	return s
}

// Update advances every chunk by dt seconds and returns the chunks that died.
// The returned slice is reused by the next call.
func (s *ChunkSystem) Update(w *ecs.World, nowMS float64, dt float32) []ecs.Entity {
	s.dead = s.dead[:0]
	s.contacts = 0

	query := s.filter.Query()
	for query.Next() {
		c := query.Get()
		age := nowMS - c.BirthMS
		if age >= c.LifespanMS {
			s.dead = append(s.dead, query.Entity())
			continue
		}
		if c.Dynamic && c.Body != nil && c.Body.Pos[1] < s.killHeight {
			s.dead = append(s.dead, query.Entity())
			continue
		}

		p := s.params[c.Category]
		if c.Body != nil {
			s.updateDynamic(c, p, nowMS, dt)
		} else {
			s.updateStatic(c, p, dt)
		}

		remaining := c.LifespanMS - age
		c.Scale = 1
		if s.shrinkMS > 0 && remaining < s.shrinkMS {
			c.Scale = float32(remaining / s.shrinkMS)
		}

		pos := c.Position()
		ground := s.ground.Sample(pos)
		if ground <= s.noGround {
			c.GroundDist = float32(math.Inf(1))
			c.ShadowDensity = 0
		} else {
			c.GroundDist = pos[1] - ground
			c.ShadowDensity = 0
			if s.shadowDist > 0 && c.GroundDist >= 0 {
				c.ShadowDensity = clamp01(1-c.GroundDist/s.shadowDist) * c.Scale
			}
		}

		s.refreshTendril(w, c)
	}
	return s.dead
}

func (s *ChunkSystem) updateDynamic(c *components.Chunk, p chunkParams, nowMS float64, dt float32) {
	b := c.Body
	b.Vel = b.Vel.Mul(decay(p.linearDrag, dt))
	b.AngVel = b.AngVel.Mul(decay(p.angularDrag, dt))

	remaining := c.LifespanMS - (nowMS - c.BirthMS)
	if !c.Sinking && remaining < s.shrinkMS && b.Vel.Len() < s.restSpeed && c.GroundDist < c.Size.Len() {
		// Resting near end of life: stop colliding and sink into the ground
		c.Sinking = true
		b.Collide = false
		b.GravityScale = 0
		b.AngVel = mgl32.Vec3{}
	}
	if c.Sinking {
		b.Vel = mgl32.Vec3{0, -s.sinkRate, 0}
		return
	}
	if !b.Collide {
		return
	}

	n := 0
	s.ground.CollideAgainstShape(b, func(ct physics.Contact) {
		if n >= s.maxContacts {
			return
		}
		s.phys.AddContact(ct)
		n++
	})
	s.contacts += n
}

func (s *ChunkSystem) updateStatic(c *components.Chunk, p chunkParams, dt float32) {
	if c.Category == components.ChunkSweat {
		c.Vel[1] += sweatLift * dt
	}
	c.Vel = c.Vel.Mul(decay(p.linearDrag, dt))
	c.Pos = c.Pos.Add(c.Vel.Mul(dt))
	c.Transform.SetCol(3, c.Pos.Vec4(1))
}

// refreshTendril moves an attached tendril head with the chunk, or forgets a
// tendril that has already been destroyed.
func (s *ChunkSystem) refreshTendril(w *ecs.World, c *components.Chunk) {
	if !linked(w, c.Tendril) {
		c.Tendril = ecs.Entity{}
		return
	}
	t := s.tendrils.Get(c.Tendril)
	t.Head = c.Position()
	t.HeadVel = c.Velocity()
	t.EmitRate = c.Scale
}

// Destroy removes a chunk with its physics body. An attached tendril loses its
// controller and stops emitting. Must not be called while a query is open.
func (s *ChunkSystem) Destroy(w *ecs.World, e ecs.Entity) {
	c := s.chunks.Get(e)
	if c.Body != nil && c.Body.Attached() {
		s.phys.RemoveBody(c.Body)
	}
	if linked(w, c.Tendril) {
		t := s.tendrils.Get(c.Tendril)
		t.Controller = ecs.Entity{}
		t.Emitting = false
	}
	w.RemoveEntity(e)
}

// Contacts returns the number of terrain contacts generated by the last Update.
func (s *ChunkSystem) Contacts() int {
	return s.contacts
}

// linked reports whether a weak entity link still points at a live entity.
func linked(w *ecs.World, e ecs.Entity) bool {
	return e != (ecs.Entity{}) && w.Alive(e)
}
