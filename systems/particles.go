package systems

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Particle is a spark or sparkle drawn as a camera-facing sprite.
type Particle struct {
	Pos     mgl32.Vec3
	Vel     mgl32.Vec3
	Color   mgl32.Vec3
	Size    float32
	Life    float32 // Remaining life in [0, 1]; scales brightness
	Decay   float32 // Life lost per second
	Gravity float32 // Multiplier on the set's gravity
}

// ParticleSet is a double-buffered particle array. Each update writes the
// survivors of the current array into the alternate one and swaps them.
type ParticleSet struct {
	cur, alt  []Particle
	max       int
	gravity   float32
	drag      float32
	lifeDecay float32
}

// NewParticleSet creates an empty set holding at most max particles.
// lifeDecay scales every particle's own decay rate.
func NewParticleSet(max int, gravity, drag, lifeDecay float32) *ParticleSet {
	return &ParticleSet{
		cur:       make([]Particle, 0, max),
		alt:       make([]Particle, 0, max),
		max:       max,
		gravity:   gravity,
		drag:      drag,
		lifeDecay: lifeDecay,
	}
}

// Emit appends a particle, dropping it when the set is full.
func (s *ParticleSet) Emit(p Particle) bool {
	if len(s.cur) >= s.max {
		return false
	}
	s.cur = append(s.cur, p)
	return true
}

// Update integrates every particle and compacts live ones into the alternate
// buffer. Dead particles (no life left or non-positive size) are dropped.
func (s *ParticleSet) Update(dt float32) {
	damp := decay(s.drag, dt)
	next := s.alt[:0]
	for i := range s.cur {
		p := s.cur[i]
		p.Life -= p.Decay * s.lifeDecay * dt
		if p.Life <= 0 || p.Size <= 0 {
			continue
		}
		p.Vel[1] += s.gravity * p.Gravity * dt
		p.Vel = p.Vel.Mul(damp)
		p.Pos = p.Pos.Add(p.Vel.Mul(dt))
		next = append(next, p)
	}
	s.alt = s.cur[:0]
	s.cur = next
}

// Particles returns the live particles. The slice is only valid until the next Update.
func (s *ParticleSet) Particles() []Particle {
	return s.cur
}

// Len returns the current number of live particles.
func (s *ParticleSet) Len() int {
	return len(s.cur)
}

// Clear drops every particle.
func (s *ParticleSet) Clear() {
	s.cur = s.cur[:0]
}
