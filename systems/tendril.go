package systems

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/bgdynamics/components"
	"github.com/pthm-cable/bgdynamics/config"
)

// Upper bound on slices appended in one step, so a teleporting head cannot
// flood a tendril.
const maxSlicesPerStep = 32

// TendrilParams holds the float32 per-kind tendril constants.
type TendrilParams struct {
	SpanLength   float32
	Width        float32
	SpreadRate   float32
	ErosionStart float32
	ErosionRate  float32
	FadeDelayMS  float32
	FadeRate     float32
	EmitMS       float64
	HeadDrag     float32
	PointDrag    float32
	Rise         float32
	Brightness   float32
	Color        mgl32.Vec3
	TexRate      float32
}

// NewTendrilParams converts a config table.
func NewTendrilParams(k config.TendrilKindConfig) TendrilParams {
	return TendrilParams{
		SpanLength:   float32(k.SpanLength),
		Width:        float32(k.Width),
		SpreadRate:   float32(k.SpreadRate),
		ErosionStart: float32(k.ErosionStart),
		ErosionRate:  float32(k.ErosionRate),
		FadeDelayMS:  float32(k.FadeDelayMS),
		FadeRate:     float32(k.FadeRate),
		EmitMS:       k.EmitMS,
		HeadDrag:     float32(k.HeadDrag),
		PointDrag:    float32(k.PointDrag),
		Rise:         float32(k.Rise),
		Brightness:   float32(k.Brightness),
		Color:        mgl32.Vec3{float32(k.Color[0]), float32(k.Color[1]), float32(k.Color[2])},
		TexRate:      float32(k.TexRate),
	}
}

// TendrilSystem grows, ages, distorts and prunes tendril ribbons.
type TendrilSystem struct {
	filter   *ecs.Filter1[components.Tendril]
	tendrils *ecs.Map[components.Tendril]
	chunks   *ecs.Map[components.Chunk]
	ground   Ground

	kinds      [components.NumTendrilKinds]TendrilParams
	maxSlices  int
	noGround   float32
	shadowDist float32

	dead   []ecs.Entity
	slices int
}

// NewTendrilSystem creates a new tendril system.
func NewTendrilSystem(w *ecs.World, cfg *config.Config, ground Ground) *TendrilSystem {
	s := &TendrilSystem{
		filter:     ecs.NewFilter1[components.Tendril](w),
		tendrils:   ecs.NewMap[components.Tendril](w),
		chunks:     ecs.NewMap[components.Chunk](w),
		ground:     ground,
		maxSlices:  cfg.Tendrils.MaxSlices,
		noGround:   cfg.Derived.NoGround32,
		shadowDist: float32(cfg.Chunks.ShadowDistance),
	}
	for k := components.TendrilKind(0); k < components.NumTendrilKinds; k++ {
		s.kinds[k] = NewTendrilParams(cfg.Tendrils.Kinds[k.String()])
	}
	if s.maxSlices < 2 {
		s.maxSlices = 2
	}
	return s
}

// Params returns the constants for a tendril kind.
func (s *TendrilSystem) Params(k components.TendrilKind) TendrilParams {
	return s.kinds[k]
}

// Update advances every tendril by dt seconds and returns the tendrils to
// destroy. The returned slice is reused by the next call.
func (s *TendrilSystem) Update(w *ecs.World, nowMS float64, dt float32, fields *FieldSystem, lights []components.VolumeLightWorker) []ecs.Entity {
	s.dead = s.dead[:0]
	s.slices = 0

	query := s.filter.Query()
	for query.Next() {
		t := query.Get()
		p := &s.kinds[t.Kind]

		if t.Controller != (ecs.Entity{}) && !w.Alive(t.Controller) {
			t.Controller = ecs.Entity{}
			t.Emitting = false
		}
		if t.EmitEndMS > 0 && nowMS >= t.EmitEndMS {
			t.Emitting = false
		}

		if t.Controller == (ecs.Entity{}) {
			t.HeadVel = t.HeadVel.Mul(decay(p.HeadDrag, dt))
			t.HeadVel[1] += p.Rise * dt
			t.Head = t.Head.Add(t.HeadVel.Mul(dt))
		}
		if t.Emitting {
			t.TexCoord += p.TexRate * dt
			s.march(t, p, nowMS)
		}

		s.updatePoints(t, p, nowMS, dt, fields, lights)
		prune(t)

		if !t.Emitting && len(t.Slices) < 2 {
			s.dead = append(s.dead, query.Entity())
			continue
		}
		s.updateShadow(t)
		s.slices += len(t.Slices)
	}
	return s.dead
}

// march appends slices from the last emitted position toward the head in
// fixed spans, interpolating the per-slice head values along the way.
func (s *TendrilSystem) march(t *components.Tendril, p *TendrilParams, nowMS float64) {
	anchor, tex, emit, erosion, spread, ok := t.Anchor()
	if !ok {
		t.Side = perpendicular(t.HeadVel)
		s.appendSlice(t, p, t.Head, t.TexCoord, t.EmitRate, t.ErosionStart, t.SpreadStart, nowMS)
		t.SetAnchor(t.Head, t.TexCoord, t.EmitRate, t.ErosionStart, t.SpreadStart)
		return
	}

	delta := t.Head.Sub(anchor)
	dist := delta.Len()
	if dist < p.SpanLength || p.SpanLength <= 0 {
		return
	}
	flat := mgl32.Vec3{delta[0], 0, delta[2]}
	if flat.Len() > 1e-4 {
		t.Side = perpendicular(delta)
	}

	steps := int(dist / p.SpanLength)
	steps = min(steps, maxSlicesPerStep)
	var f float32
	for i := 1; i <= steps; i++ {
		f = float32(i) * p.SpanLength / dist
		pos := anchor.Add(delta.Mul(f))
		s.appendSlice(t, p, pos,
			lerp(tex, t.TexCoord, f),
			lerp(emit, t.EmitRate, f),
			lerp(erosion, t.ErosionStart, f),
			lerp(spread, t.SpreadStart, f),
			nowMS)
	}
	if steps == maxSlicesPerStep {
		// Skip the rest of the gap rather than catching up over several steps
		f = 1
	}
	t.SetAnchor(anchor.Add(delta.Mul(f)),
		lerp(tex, t.TexCoord, f),
		lerp(emit, t.EmitRate, f),
		lerp(erosion, t.ErosionStart, f),
		lerp(spread, t.SpreadStart, f))
}

func (s *TendrilSystem) appendSlice(t *components.Tendril, p *TendrilParams, pos mgl32.Vec3, tex, emit, erosion, spread float32, nowMS float64) {
	if len(t.Slices) >= s.maxSlices {
		copy(t.Slices, t.Slices[1:])
		t.Slices = t.Slices[:len(t.Slices)-1]
	}
	half := t.Side.Mul(p.Width * 0.5)
	base := t.HeadVel.Mul(0.2)

	var slice components.TendrilSlice
	for i, sign := range [2]float32{-1, 1} {
		slice.P[i] = components.TendrilPoint{
			Pos:         pos.Add(half.Mul(sign)),
			Vel:         base.Add(t.Side.Mul(sign * spread)),
			Erosion:     erosion * clamp01(emit),
			ErosionRate: p.ErosionRate,
			Fade:        clamp01(emit),
			FadeRate:    p.FadeRate,
			FadeDelayMS: p.FadeDelayMS,
			Brightness:  t.Brightness,
			TexCoord:    tex,
			BirthMS:     nowMS,
		}
		slice.P[i].PosDist = slice.P[i].Pos
	}
	t.Slices = append(t.Slices, slice)
}

func (s *TendrilSystem) updatePoints(t *components.Tendril, p *TendrilParams, nowMS float64, dt float32, fields *FieldSystem, lights []components.VolumeLightWorker) {
	drag := decay(p.PointDrag, dt)
	for i := range t.Slices {
		for j := range t.Slices[i].P {
			pt := &t.Slices[i].P[j]
			pt.Vel = pt.Vel.Mul(drag)
			pt.Vel[1] += p.Rise * dt
			pt.Pos = pt.Pos.Add(pt.Vel.Mul(dt))

			pt.Erosion *= decay(pt.ErosionRate, dt)
			if float32(nowMS-pt.BirthMS) > pt.FadeDelayMS {
				pt.Fade = max(0, pt.Fade-pt.FadeRate*dt)
			}

			pt.PosDist = pt.Pos
			if fields != nil {
				pt.PosDist = pt.Pos.Add(fields.Displace(pt.Pos))
			}
			var glow mgl32.Vec3
			for k := range lights {
				glow = glow.Add(lights[k].Contribution(pt.PosDist))
			}
			pt.Glow = glow
		}
	}
}

// prune drops fully transparent runs from both ends of the slice list.
func prune(t *components.Tendril) {
	start := 0
	for start < len(t.Slices) && t.Slices[start].Transparent() {
		start++
	}
	end := len(t.Slices)
	for end > start && t.Slices[end-1].Transparent() {
		end--
	}
	if start == 0 && end == len(t.Slices) {
		return
	}
	n := copy(t.Slices, t.Slices[start:end])
	t.Slices = t.Slices[:n]
}

func (s *TendrilSystem) updateShadow(t *components.Tendril) {
	t.ShadowDensity = 0
	if len(t.Slices) == 0 {
		return
	}
	var centre mgl32.Vec3
	var opacity float32
	for i := range t.Slices {
		for j := range t.Slices[i].P {
			pt := &t.Slices[i].P[j]
			centre = centre.Add(pt.Pos)
			opacity += pt.Fade * pt.Erosion
		}
	}
	n := float32(2 * len(t.Slices))
	centre = centre.Mul(1 / n)
	opacity /= n

	ground := s.ground.Sample(centre)
	if ground <= s.noGround || s.shadowDist <= 0 {
		return
	}
	height := centre[1] - ground
	if height < 0 {
		return
	}
	t.ShadowPos = mgl32.Vec3{centre[0], ground, centre[2]}
	t.ShadowDensity = clamp01(opacity * (1 - height/s.shadowDist))
}

// SliceCount returns the number of live slices after the last Update.
func (s *TendrilSystem) SliceCount() int {
	return s.slices
}

// Destroy removes a tendril and clears the owning chunk's link to it.
// Must not be called while a query is open.
func (s *TendrilSystem) Destroy(w *ecs.World, e ecs.Entity) {
	t := s.tendrils.Get(e)
	if linked(w, t.Controller) {
		c := s.chunks.Get(t.Controller)
		if c.Tendril == e {
			c.Tendril = ecs.Entity{}
		}
	}
	w.RemoveEntity(e)
}
