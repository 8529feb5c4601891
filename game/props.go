package game

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/client"
	"github.com/pthm-cable/bgdynamics/config"
)

// Prop motion
const (
	orbitRadius  = 8
	orbitPeriod  = 9000 // ms
	bobHeight    = 2.5
	bobPeriod    = 2300 // ms
	fuseBurnMS   = 20000
	lightRadius  = 6
	lightPeriod  = 13000 // ms
	ballRadius   = 0.6
	fusePostSize = 0.3
)

// props are the client-owned objects the sandbox attaches to the simulation:
// a bouncing ball with a shadow, a burning fuse and a drifting light.
type props struct {
	ball  *client.Shadow
	fuse  *client.Fuse
	light *client.VolumeLight

	ballPos  mgl32.Vec3
	fuseBase mgl32.Vec3
	fusePts  []mgl32.Vec3
}

func newProps(c *client.Client, cfg *config.Config) (*props, error) {
	p := &props{}
	var err error
	if p.ball, err = c.NewShadow(); err != nil {
		return nil, err
	}
	if p.fuse, err = c.NewFuse(); err != nil {
		return nil, err
	}
	if p.light, err = c.NewVolumeLight(); err != nil {
		return nil, err
	}
	p.ball.SetVisible(true)
	p.fuse.SetBurning(true)
	p.fusePts = make([]mgl32.Vec3, 0, cfg.Fuses.Points)
	return p, nil
}

// update moves the props to their positions at timeMS.
func (p *props) update(timeMS float64, height func(x, z float32) float32) {
	a := phase(timeMS, orbitPeriod)
	x := orbitRadius * float32(math.Cos(a))
	z := orbitRadius * float32(math.Sin(a))
	bob := float32(math.Abs(math.Sin(phase(timeMS, bobPeriod))))
	p.ballPos = mgl32.Vec3{x, height(x, z) + ballRadius + bob*bobHeight, z}
	p.ball.Set(p.ballPos, ballRadius)

	// The fuse burns down and relights
	p.fuseBase = mgl32.Vec3{-6, height(-6, 6) + 1.5, 6}
	p.fuse.SetTransform(mgl32.Translate3D(p.fuseBase[0], p.fuseBase[1], p.fuseBase[2]))
	p.fuse.SetLength(1 - float32(math.Mod(timeMS, fuseBurnMS)/fuseBurnMS))

	la := phase(timeMS, lightPeriod)
	lx := 5 * float32(math.Sin(la))
	lz := 5 * float32(math.Cos(2*la))
	p.light.Set(mgl32.Vec3{lx, height(lx, lz) + 2, lz}, lightRadius, mgl32.Vec3{0.4, 0.6, 1}, 1.5)
}

// points returns the fuse control points of the last completed step.
func (p *props) points() []mgl32.Vec3 {
	p.fusePts, _ = p.fuse.Points(p.fusePts[:0])
	return p.fusePts
}

func (p *props) close() {
	p.ball.Close()
	p.fuse.Close()
	p.light.Close()
}

func phase(timeMS, periodMS float64) float64 {
	return 2 * math.Pi * math.Mod(timeMS, periodMS) / periodMS
}
