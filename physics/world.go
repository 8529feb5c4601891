package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// bounceThreshold is the approach speed below which contacts do not bounce.
const bounceThreshold = 0.5

// Contact is a transient constraint between a body and static terrain.
type Contact struct {
	Body     *Body
	Point    mgl32.Vec3 // World space
	Normal   mgl32.Vec3 // Points out of the terrain, toward the body
	Depth    float32
	Friction float32
	Bounce   float32
}

// World integrates rigid bodies and resolves their terrain contacts.
type World struct {
	Gravity    mgl32.Vec3
	Iterations int
	Slop       float32

	bodies   []*Body
	contacts []Contact
}

// NewWorld creates an empty world.
func NewWorld(gravity mgl32.Vec3, iterations int, slop float32) *World {
	if iterations < 1 {
		iterations = 1
	}
	return &World{
		Gravity:    gravity,
		Iterations: iterations,
		Slop:       slop,
		bodies:     make([]*Body, 0, 256),
		contacts:   make([]Contact, 0, 512),
	}
}

// AddBody attaches a body. Adding an attached body panics.
func (w *World) AddBody(b *Body) {
	if b.index >= 0 {
		panic("physics: body already attached")
	}
	b.index = len(w.bodies)
	w.bodies = append(w.bodies, b)
}

// RemoveBody detaches a body. Removing a body this world does not own panics.
func (w *World) RemoveBody(b *Body) {
	if b.index < 0 || b.index >= len(w.bodies) || w.bodies[b.index] != b {
		panic(fmt.Sprintf("physics: removing unattached body (index %d)", b.index))
	}
	last := len(w.bodies) - 1
	moved := w.bodies[last]
	w.bodies[b.index] = moved
	moved.index = b.index
	w.bodies[last] = nil
	w.bodies = w.bodies[:last]
	b.index = -1
}

// BodyCount returns the number of attached bodies.
func (w *World) BodyCount() int {
	return len(w.bodies)
}

// AddContact queues a contact for the next Step.
func (w *World) AddContact(c Contact) {
	w.contacts = append(w.contacts, c)
}

// ClearContacts drops all queued contacts.
func (w *World) ClearContacts() {
	w.contacts = w.contacts[:0]
}

// ContactCount returns the number of queued contacts.
func (w *World) ContactCount() int {
	return len(w.contacts)
}

// Step advances the world by dt seconds.
func (w *World) Step(dt float32) {
	if dt <= 0 {
		return
	}

	for _, b := range w.bodies {
		if !b.Enabled {
			continue
		}
		b.Vel = b.Vel.Add(w.Gravity.Mul(b.GravityScale * dt))
	}

	for it := 0; it < w.Iterations; it++ {
		for i := range w.contacts {
			c := &w.contacts[i]
			if c.Body.Enabled && c.Body.index >= 0 {
				resolveVelocity(c)
			}
		}
	}

	// Positional correction so resting bodies do not slowly sink into terrain
	for i := range w.contacts {
		c := &w.contacts[i]
		if !c.Body.Enabled || c.Body.index < 0 {
			continue
		}
		if pen := c.Depth - w.Slop; pen > 0 {
			c.Body.Pos = c.Body.Pos.Add(c.Normal.Mul(pen * 0.4))
		}
	}

	for _, b := range w.bodies {
		if !b.Enabled {
			continue
		}
		b.Pos = b.Pos.Add(b.Vel.Mul(dt))
		b.Rot = integrateRotation(b.Rot, b.AngVel, dt)
	}
}

func resolveVelocity(c *Contact) {
	b := c.Body
	r := c.Point.Sub(b.Pos)
	vRel := b.Vel.Add(b.AngVel.Cross(r))
	vn := vRel.Dot(c.Normal)
	if vn >= 0 {
		return
	}

	iw := b.invInertiaWorld()
	kn := b.InvMass + iw.Mul3x1(r.Cross(c.Normal)).Cross(r).Dot(c.Normal)
	if kn <= 1e-9 {
		return
	}
	bounce := c.Bounce
	if -vn < bounceThreshold {
		bounce = 0
	}
	jn := -(1 + bounce) * vn / kn
	b.applyImpulse(c.Normal.Mul(jn), r, iw)

	// Coulomb friction against the post-impulse tangential velocity
	vRel = b.Vel.Add(b.AngVel.Cross(r))
	vt := vRel.Sub(c.Normal.Mul(vRel.Dot(c.Normal)))
	speed := vt.Len()
	if speed < 1e-6 {
		return
	}
	t := vt.Mul(1 / speed)
	kt := b.InvMass + iw.Mul3x1(r.Cross(t)).Cross(r).Dot(t)
	if kt <= 1e-9 {
		return
	}
	jt := -speed / kt
	if maxF := c.Friction * jn; jt < -maxF {
		jt = -maxF
	}
	b.applyImpulse(t.Mul(jt), r, iw)
}

func integrateRotation(q mgl32.Quat, w mgl32.Vec3, dt float32) mgl32.Quat {
	if w.LenSqr() == 0 {
		return q
	}
	spin := mgl32.Quat{W: 0, V: w}.Mul(q).Scale(0.5 * dt)
	next := q.Add(spin)
	if l := next.Len(); l > 1e-9 && !math.IsNaN(float64(l)) {
		return next.Scale(1 / l)
	}
	return mgl32.QuatIdent()
}
