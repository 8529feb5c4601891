// Package physics implements the small rigid-body world that drives debris chunks.
//
// Only bodies move; terrain is static and lives in TriMesh shapes queried through
// the height cache. Contacts are transient: they are generated against terrain
// every step, consumed by World.Step, and cleared before the next step.
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Shape describes a body's collision geometry in its local frame.
type Shape interface {
	Volume() float32
	// Inertia returns the diagonal of the inertia tensor for the given mass.
	Inertia(mass float32) mgl32.Vec3
	BoundingRadius() float32
}

// Sphere is a sphere centered on the body origin.
type Sphere struct {
	Radius float32
}

func (s Sphere) Volume() float32 {
	return 4.0 / 3.0 * math.Pi * s.Radius * s.Radius * s.Radius
}

func (s Sphere) Inertia(mass float32) mgl32.Vec3 {
	i := 0.4 * mass * s.Radius * s.Radius
	return mgl32.Vec3{i, i, i}
}

func (s Sphere) BoundingRadius() float32 { return s.Radius }

// Box is an oriented box centered on the body origin.
type Box struct {
	Half mgl32.Vec3
}

func (b Box) Volume() float32 {
	return 8 * b.Half[0] * b.Half[1] * b.Half[2]
}

func (b Box) Inertia(mass float32) mgl32.Vec3 {
	x, y, z := 2*b.Half[0], 2*b.Half[1], 2*b.Half[2]
	k := mass / 12
	return mgl32.Vec3{k * (y*y + z*z), k * (x*x + z*z), k * (x*x + y*y)}
}

func (b Box) BoundingRadius() float32 { return b.Half.Len() }

// Body is a dynamic rigid body.
type Body struct {
	Pos    mgl32.Vec3
	Rot    mgl32.Quat
	Vel    mgl32.Vec3
	AngVel mgl32.Vec3

	InvMass    float32
	InvInertia mgl32.Vec3 // Diagonal, body frame

	Friction     float32
	Bounce       float32
	GravityScale float32

	Shape Shape

	// Enabled bodies integrate; Collide controls whether terrain contacts are generated.
	Enabled bool
	Collide bool

	index int // slot in World.bodies, -1 when detached
}

// NewBody creates a body for the shape with mass derived from density.
func NewBody(shape Shape, density float32) *Body {
	mass := shape.Volume() * density
	if mass <= 0 {
		mass = 1
	}
	inertia := shape.Inertia(mass)
	return &Body{
		Rot:          mgl32.QuatIdent(),
		InvMass:      1 / mass,
		InvInertia:   mgl32.Vec3{safeInv(inertia[0]), safeInv(inertia[1]), safeInv(inertia[2])},
		GravityScale: 1,
		Shape:        shape,
		Enabled:      true,
		Collide:      true,
		index:        -1,
	}
}

// Attached reports whether the body belongs to a world.
func (b *Body) Attached() bool {
	return b.index >= 0
}

// Transform returns the body's rigid transform (no scale).
func (b *Body) Transform() mgl32.Mat4 {
	return mgl32.Translate3D(b.Pos[0], b.Pos[1], b.Pos[2]).Mul4(b.Rot.Mat4())
}

// PointVelocity returns the velocity of a world-space point attached to the body.
func (b *Body) PointVelocity(p mgl32.Vec3) mgl32.Vec3 {
	return b.Vel.Add(b.AngVel.Cross(p.Sub(b.Pos)))
}

func (b *Body) invInertiaWorld() mgl32.Mat3 {
	r := b.Rot.Mat4().Mat3()
	return r.Mul3(mgl32.Diag3(b.InvInertia)).Mul3(r.Transpose())
}

func (b *Body) applyImpulse(j, r mgl32.Vec3, iw mgl32.Mat3) {
	b.Vel = b.Vel.Add(j.Mul(b.InvMass))
	b.AngVel = b.AngVel.Add(iw.Mul3x1(r.Cross(j)))
}

func safeInv(v float32) float32 {
	if v <= 1e-12 {
		return 0
	}
	return 1 / v
}
