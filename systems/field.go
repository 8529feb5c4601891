package systems

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/bgdynamics/components"
)

// envelopeSegment is one smoothstep ramp of the field intensity envelope.
type envelopeSegment struct {
	end      float32 // Normalized age at which the segment ends
	from, to float32
}

// Suck, bulge, secondary suck, settle.
var fieldEnvelope = [...]envelopeSegment{
	{0.10, 0, -0.5},
	{0.35, -0.5, 1},
	{0.60, 1, -0.25},
	{1.00, -0.25, 0},
}

// FieldEnvelope returns the unscaled intensity of a field at normalized age t.
func FieldEnvelope(t float32) float32 {
	if t <= 0 || t >= 1 {
		return 0
	}
	start := float32(0)
	for _, seg := range fieldEnvelope {
		if t <= seg.end {
			return lerp(seg.from, seg.to, smoothstep((t-start)/(seg.end-start)))
		}
		start = seg.end
	}
	return 0
}

// FieldSystem ages distortion fields and answers displacement queries.
type FieldSystem struct {
	filter *ecs.Filter1[components.Field]
	active []components.Field
	dead   []ecs.Entity
}

// NewFieldSystem creates a new field system.
func NewFieldSystem(w *ecs.World) *FieldSystem {
	return &FieldSystem{
		filter: ecs.NewFilter1[components.Field](w),
	}
}

// Update recomputes field intensities and returns the fields whose lifespan is over.
// The returned slice is reused by the next call.
func (s *FieldSystem) Update(nowMS float64) []ecs.Entity {
	s.active = s.active[:0]
	s.dead = s.dead[:0]

	query := s.filter.Query()
	for query.Next() {
		f := query.Get()
		age := nowMS - f.BirthMS
		if f.LifespanMS <= 0 || age >= f.LifespanMS {
			f.Intensity = 0
			s.dead = append(s.dead, query.Entity())
			continue
		}
		f.Intensity = f.Magnitude * FieldEnvelope(float32(age/f.LifespanMS))
		if f.Intensity != 0 {
			s.active = append(s.active, *f)
		}
	}
	return s.dead
}

// Active returns the number of fields with a non-zero intensity after the last Update.
func (s *FieldSystem) Active() int {
	return len(s.active)
}

// Displace returns the summed offset that active fields apply at p. Positive
// intensity pushes away from the field centre, negative pulls toward it.
func (s *FieldSystem) Displace(p mgl32.Vec3) mgl32.Vec3 {
	var out mgl32.Vec3
	for i := range s.active {
		f := &s.active[i]
		if f.Radius <= 0 {
			continue
		}
		d := p.Sub(f.Pos)
		dist := d.Len()
		if dist >= f.Radius {
			continue
		}
		falloff := 1 - dist/f.Radius
		// Points at the centre have no direction; push straight up
		dir := safeNormalize(d, mgl32.Vec3{0, 1, 0})
		out = out.Add(dir.Mul(f.Intensity * falloff * falloff))
	}
	return out
}

// All returns every live field.
func (s *FieldSystem) All() []ecs.Entity {
	var out []ecs.Entity
	query := s.filter.Query()
	for query.Next() {
		out = append(out, query.Entity())
	}
	return out
}
