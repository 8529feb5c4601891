package systems

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/components"
	"github.com/pthm-cable/bgdynamics/config"
)

// ShadowSystem projects dynamic shadows onto the ground.
type ShadowSystem struct {
	ground       Ground
	noGround     float32
	maxDistance  float32
	scalePerUnit float32
}

// NewShadowSystem creates a new shadow system.
func NewShadowSystem(cfg *config.Config, ground Ground) *ShadowSystem {
	return &ShadowSystem{
		ground:       ground,
		noGround:     cfg.Derived.NoGround32,
		maxDistance:  float32(cfg.Shadows.MaxDistance),
		scalePerUnit: float32(cfg.Shadows.ScalePerUnit),
	}
}

// Update samples the ground below each shadow caster. Shadows spread and
// fade with height, vanishing at the configured maximum distance.
func (s *ShadowSystem) Update(shadows []*components.ShadowWorker) {
	for _, sh := range shadows {
		sh.Density = 0
		if !sh.Visible || s.maxDistance <= 0 {
			continue
		}
		ground := s.ground.Sample(sh.Pos)
		if ground <= s.noGround {
			continue
		}
		height := sh.Pos[1] - ground
		if height < 0 || height >= s.maxDistance {
			continue
		}
		sh.GroundPos = mgl32.Vec3{sh.Pos[0], ground, sh.Pos[2]}
		sh.Scale = sh.Size * (1 + height*s.scalePerUnit)
		sh.Density = 1 - height/s.maxDistance
	}
}
