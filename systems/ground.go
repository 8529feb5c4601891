package systems

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/physics"
)

// Ground is the terrain query surface the effect systems consume.
// heightcache.Cache implements it.
type Ground interface {
	Sample(pos mgl32.Vec3) float32
	Raycast(from, dir mgl32.Vec3, maxDist float32) (physics.RayHit, bool)
	CollideAgainstShape(b *physics.Body, fn func(physics.Contact))
}
