package systems

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/components"
	"github.com/pthm-cable/bgdynamics/config"
)

// FuseSystem relaxes fuse control points and emits sparks from burning tips.
type FuseSystem struct {
	points        int
	maxLength     float32
	followRate    float32
	followFalloff float32
	sparkRate     float32
	sparkLife     float32
	sparkSize     float32

	rng *rand.Rand
}

// NewFuseSystem creates a new fuse system.
func NewFuseSystem(cfg *config.Config, rng *rand.Rand) *FuseSystem {
	return &FuseSystem{
		points:        cfg.Fuses.Points,
		maxLength:     float32(cfg.Fuses.MaxLength),
		followRate:    float32(cfg.Fuses.FollowRate),
		followFalloff: float32(cfg.Fuses.FollowFalloff),
		sparkRate:     float32(cfg.Fuses.SparkRate),
		sparkLife:     float32(cfg.Fuses.SparkLife),
		sparkSize:     float32(cfg.Fuses.SparkSize),
		rng:           rng,
	}
}

// FollowRate returns the relaxation rate of control point i. The base point
// is pinned; rates fall off toward the tip so it trails behind movement.
func (s *FuseSystem) FollowRate(i int) float32 {
	return s.followRate * float32(math.Pow(float64(s.followFalloff), float64(i-1)))
}

// Update relaxes each fuse toward its transform and emits tip sparks into particles.
func (s *FuseSystem) Update(fuses []*components.FuseWorker, dt float32, particles *ParticleSet) {
	for _, f := range fuses {
		s.relax(f, dt)
		if f.Burning && f.Length > 0 && particles != nil {
			s.emitSparks(f, dt, particles)
		}
	}
}

func (s *FuseSystem) relax(f *components.FuseWorker, dt float32) {
	if len(f.Points) != s.points {
		f.Points = make([]mgl32.Vec3, s.points)
		f.Initialized = false
	}
	base := mgl32.TransformCoordinate(mgl32.Vec3{}, f.Transform)
	up := safeNormalize(f.Transform.Col(1).Vec3(), mgl32.Vec3{0, 1, 0})
	segment := clamp01(f.Length) * s.maxLength / float32(s.points-1)

	f.Points[0] = base
	for i := 1; i < s.points; i++ {
		target := f.Points[i-1].Add(up.Mul(segment))
		if !f.Initialized {
			f.Points[i] = target
			continue
		}
		k := 1 - decay(s.FollowRate(i), dt)
		f.Points[i] = f.Points[i].Add(target.Sub(f.Points[i]).Mul(k))
	}
	f.Initialized = true
}

// FuseSparkColor shifts from white-hot on a fresh fuse to deep orange near the end.
func FuseSparkColor(length float32) mgl32.Vec3 {
	t := clamp01(length)
	return mgl32.Vec3{1, lerp(0.35, 0.95, t), lerp(0.05, 0.7, t)}
}

func (s *FuseSystem) emitSparks(f *components.FuseWorker, dt float32, particles *ParticleSet) {
	f.SparkAccum += s.sparkRate * dt
	tip := f.Points[len(f.Points)-1]
	color := FuseSparkColor(f.Length)
	for f.SparkAccum >= 1 {
		f.SparkAccum--
		particles.Emit(Particle{
			Pos:     tip,
			Vel:     randUnit(s.rng).Mul(randRange(s.rng, 0.5, 2)),
			Color:   color,
			Size:    s.sparkSize * randRange(s.rng, 0.6, 1.2),
			Life:    1,
			Decay:   1 / max(s.sparkLife, 0.01),
			Gravity: 1,
		})
	}
}
