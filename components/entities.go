package components

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/bgdynamics/physics"
)

// Chunk is a single debris particle. Dynamic chunks are driven by a physics
// body; static chunks keep a precomputed transform and drift ballistically.
type Chunk struct {
	Category ChunkCategory
	Dynamic  bool
	Size     mgl32.Vec3 // Full extents

	BirthMS    float64
	LifespanMS float64

	// Tendril is the attached tendril controller, zero when none. The link is
	// weak: either side may be destroyed first.
	Tendril ecs.Entity

	Body *physics.Body // Dynamic only

	// Static only
	Transform mgl32.Mat4
	Pos, Vel  mgl32.Vec3

	// Updated every step
	Scale         float32 // End-of-life shrink, 1 while healthy
	GroundDist    float32
	Sinking       bool
	ShadowDensity float32
}

// Position returns the chunk's world position.
func (c *Chunk) Position() mgl32.Vec3 {
	if c.Body != nil {
		return c.Body.Pos
	}
	return c.Pos
}

// Velocity returns the chunk's linear velocity.
func (c *Chunk) Velocity() mgl32.Vec3 {
	if c.Body != nil {
		return c.Body.Vel
	}
	return c.Vel
}

// RenderTransform returns the chunk's transform including size and shrink scale.
func (c *Chunk) RenderTransform() mgl32.Mat4 {
	s := c.Size.Mul(c.Scale)
	var base mgl32.Mat4
	if c.Body != nil {
		base = c.Body.Transform()
	} else {
		base = c.Transform
	}
	return base.Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

// Field is a transient radial distortion source.
type Field struct {
	Pos        mgl32.Vec3
	Radius     float32
	Magnitude  float32
	BirthMS    float64
	LifespanMS float64

	// Intensity is recomputed from age each step.
	Intensity float32
}

// TendrilPoint is one edge of a tendril slice.
type TendrilPoint struct {
	Pos     mgl32.Vec3
	Vel     mgl32.Vec3
	PosDist mgl32.Vec3 // Pos displaced by nearby fields; what gets drawn

	Erosion     float32 // Remaining solidity, decays exponentially toward 0
	ErosionRate float32
	Fade        float32 // Opacity, ramps down after FadeDelayMS
	FadeRate    float32
	FadeDelayMS float32

	Brightness float32
	Glow       mgl32.Vec3
	TexCoord   float32
	BirthMS    float64
}

// Transparent reports whether the point no longer contributes to the image.
func (p *TendrilPoint) Transparent() bool {
	return p.Fade <= 0 || p.Erosion <= 0.01
}

// TendrilSlice is a cross-section of a tendril ribbon: left and right points.
type TendrilSlice struct {
	P [2]TendrilPoint
}

// Transparent reports whether both points of the slice are transparent.
func (s *TendrilSlice) Transparent() bool {
	return s.P[0].Transparent() && s.P[1].Transparent()
}

// Tendril is a growing ribbon of slices.
type Tendril struct {
	Kind     TendrilKind
	Emitting bool
	BirthMS  float64
	// EmitEndMS stops emission at this time; 0 means "until the controller stops it".
	EmitEndMS float64

	Head    mgl32.Vec3
	HeadVel mgl32.Vec3

	Slices []TendrilSlice

	// Values at the head; slices marched toward the head interpolate from the
	// values stored when the previous slice was emitted.
	TexCoord     float32
	EmitRate     float32
	ErosionStart float32
	SpreadStart  float32

	lastTex, lastEmitRate, lastErosion, lastSpread float32
	lastPos                                        mgl32.Vec3
	started                                        bool

	// Controller is the owning chunk, zero when free-standing.
	Controller ecs.Entity

	Color      mgl32.Vec3
	Brightness float32
	Side       mgl32.Vec3 // Unit vector separating left and right points

	ShadowPos     mgl32.Vec3
	ShadowDensity float32
}

// Anchor returns the position and head values the next slice march starts from.
func (t *Tendril) Anchor() (pos mgl32.Vec3, tex, emit, erosion, spread float32, ok bool) {
	return t.lastPos, t.lastTex, t.lastEmitRate, t.lastErosion, t.lastSpread, t.started
}

// SetAnchor records the state of the most recently emitted slice.
func (t *Tendril) SetAnchor(pos mgl32.Vec3, tex, emit, erosion, spread float32) {
	t.lastPos = pos
	t.lastTex = tex
	t.lastEmitRate = emit
	t.lastErosion = erosion
	t.lastSpread = spread
	t.started = true
}
