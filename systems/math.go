package systems

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// clampFloat clamps a float32 value between min and max.
func clampFloat(v, minVal, maxVal float32) float32 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// clamp01 clamps a float32 value to the [0, 1] range.
func clamp01(v float32) float32 {
	return clampFloat(v, 0, 1)
}

// smoothstep is the cubic Hermite ramp on t in [0, 1].
func smoothstep(t float32) float32 {
	t = clamp01(t)
	return t * t * (3 - 2*t)
}

// lerp interpolates linearly between a and b.
func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// decay returns the factor exp(-rate*dt) used for frame-rate independent drag.
func decay(rate, dt float32) float32 {
	return float32(math.Exp(float64(-rate * dt)))
}

// safeNormalize returns v normalized, or fallback when v is near zero length.
func safeNormalize(v, fallback mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l < 1e-6 {
		return fallback
	}
	return v.Mul(1 / l)
}

// randRange returns a uniform value in [lo, hi).
func randRange(rng *rand.Rand, lo, hi float32) float32 {
	return lo + rng.Float32()*(hi-lo)
}

// randInSphere returns a uniform point inside the unit sphere.
func randInSphere(rng *rand.Rand) mgl32.Vec3 {
	for {
		v := mgl32.Vec3{rng.Float32()*2 - 1, rng.Float32()*2 - 1, rng.Float32()*2 - 1}
		if v.LenSqr() <= 1 {
			return v
		}
	}
}

// randUnit returns a uniform direction.
func randUnit(rng *rand.Rand) mgl32.Vec3 {
	return safeNormalize(randInSphere(rng), mgl32.Vec3{0, 1, 0})
}

// randRotation returns a uniformly random orientation.
func randRotation(rng *rand.Rand) mgl32.Quat {
	axis := randUnit(rng)
	return mgl32.QuatRotate(rng.Float32()*2*math.Pi, axis)
}

// perpendicular returns a horizontal unit vector perpendicular to dir.
func perpendicular(dir mgl32.Vec3) mgl32.Vec3 {
	side := mgl32.Vec3{0, 1, 0}.Cross(dir)
	return safeNormalize(mgl32.Vec3{side[0], 0, side[2]}, mgl32.Vec3{1, 0, 0})
}
