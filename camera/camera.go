// Package camera provides an orbit camera for the sandbox viewer.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera orbits a target point at a distance.
type Camera struct {
	// Target is the point the camera looks at
	Target mgl32.Vec3

	// Orbit angles in radians. Pitch is measured up from the XZ plane.
	Yaw, Pitch float32

	// Distance from the target
	Distance float32

	// Vertical field of view in degrees
	FovY float32

	// Constraints
	MinDistance, MaxDistance float32
	MinPitch, MaxPitch       float32
}

// New creates a camera looking at target from the given distance, slightly
// above the horizon.
func New(target mgl32.Vec3, distance float32) *Camera {
	c := &Camera{
		Target:      target,
		Yaw:         0,
		Pitch:       0.35,
		FovY:        45,
		MinDistance: 2,
		MaxDistance: 200,
		MinPitch:    0.05,
		MaxPitch:    1.5,
	}
	c.SetDistance(distance)
	return c
}

// Eye returns the camera position in world coordinates.
func (c *Camera) Eye() mgl32.Vec3 {
	cp := float32(math.Cos(float64(c.Pitch)))
	offset := mgl32.Vec3{
		cp * float32(math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		cp * float32(math.Cos(float64(c.Yaw))),
	}
	return c.Target.Add(offset.Mul(c.Distance))
}

// View returns the view matrix.
func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye(), c.Target, mgl32.Vec3{0, 1, 0})
}

// Orbit rotates the camera around the target. Pitch is clamped.
func (c *Camera) Orbit(dYaw, dPitch float32) {
	c.Yaw = float32(math.Mod(float64(c.Yaw+dYaw), 2*math.Pi))
	c.Pitch = clamp(c.Pitch+dPitch, c.MinPitch, c.MaxPitch)
}

// SetDistance sets the orbit distance, clamped to min/max.
func (c *Camera) SetDistance(d float32) {
	c.Distance = clamp(d, c.MinDistance, c.MaxDistance)
}

// ZoomBy multiplies the current distance by the given factor.
func (c *Camera) ZoomBy(factor float32) {
	c.SetDistance(c.Distance * factor)
}

// Pan moves the target within the ground plane, relative to the view
// direction.
func (c *Camera) Pan(right, forward float32) {
	sy := float32(math.Sin(float64(c.Yaw)))
	cy := float32(math.Cos(float64(c.Yaw)))
	// Forward points from the eye toward the target, projected onto XZ
	fwd := mgl32.Vec3{-sy, 0, -cy}
	side := mgl32.Vec3{cy, 0, -sy}
	c.Target = c.Target.Add(side.Mul(right)).Add(fwd.Mul(forward))
}

// clamp restricts a value to a range.
func clamp(x, lo, hi float32) float32 {
	return min(max(x, lo), hi)
}
