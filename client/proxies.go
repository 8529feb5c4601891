package client

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/components"
	"github.com/pthm-cable/bgdynamics/dynamics"
)

// Shadow is a ground shadow cast by a client-side object. Set the fields
// every frame; they reach the worker with the next step.
type Shadow struct {
	c    *Client
	id   components.ShadowID
	view components.ShadowClient
	dead bool
}

// NewShadow registers a shadow with the worker.
func (c *Client) NewShadow() (*Shadow, error) {
	id := components.ShadowID(c.newID())
	if err := c.server.AddShadow(id); err != nil {
		return nil, err
	}
	s := &Shadow{c: c, id: id}
	c.shadows = append(c.shadows, s)
	return s, nil
}

func (s *Shadow) ID() components.ShadowID { return s.id }

// Set updates the caster position and radius.
func (s *Shadow) Set(pos mgl32.Vec3, size float32) {
	s.view.Pos = pos
	s.view.Size = size
}

func (s *Shadow) SetVisible(v bool) { s.view.Visible = v }

// Worker returns the worker's view as of the last completed step.
func (s *Shadow) Worker() (components.ShadowWorker, bool) {
	if s.dead {
		return components.ShadowWorker{}, false
	}
	return s.c.server.Shadow(s.id)
}

// Close marks the shadow dead and posts its removal. The worker frees it.
func (s *Shadow) Close() error {
	if s.dead {
		return ErrClosed
	}
	s.dead = true
	return s.c.server.RemoveShadow(s.id)
}

// Fuse is a burning rope hanging from a client-side transform.
type Fuse struct {
	c    *Client
	id   components.FuseID
	view components.FuseClient
	dead bool
}

// NewFuse registers a fuse with the worker. It starts at full length.
func (c *Client) NewFuse() (*Fuse, error) {
	id := components.FuseID(c.newID())
	if err := c.server.AddFuse(id); err != nil {
		return nil, err
	}
	f := &Fuse{c: c, id: id, view: components.FuseClient{Transform: mgl32.Ident4(), Length: 1}}
	c.fuses = append(c.fuses, f)
	return f, nil
}

func (f *Fuse) ID() components.FuseID { return f.id }

func (f *Fuse) SetTransform(m mgl32.Mat4) { f.view.Transform = m }

// SetLength sets the remaining length, clamped to [0, 1].
func (f *Fuse) SetLength(l float32) { f.view.Length = min(max(l, 0), 1) }

func (f *Fuse) SetBurning(b bool) { f.view.Burning = b }

// Points appends the fuse control points of the last completed step to dst.
func (f *Fuse) Points(dst []mgl32.Vec3) ([]mgl32.Vec3, bool) {
	if f.dead {
		return dst, false
	}
	return f.c.server.FusePoints(f.id, dst)
}

// Close marks the fuse dead and posts its removal.
func (f *Fuse) Close() error {
	if f.dead {
		return ErrClosed
	}
	f.dead = true
	return f.c.server.RemoveFuse(f.id)
}

// VolumeLight tints nearby tendrils.
type VolumeLight struct {
	c    *Client
	id   components.VolumeLightID
	view components.VolumeLightClient
	dead bool
}

// NewVolumeLight registers a volume light with the worker. It starts dark.
func (c *Client) NewVolumeLight() (*VolumeLight, error) {
	id := components.VolumeLightID(c.newID())
	if err := c.server.AddVolumeLight(id); err != nil {
		return nil, err
	}
	l := &VolumeLight{c: c, id: id}
	c.lights = append(c.lights, l)
	return l, nil
}

func (l *VolumeLight) ID() components.VolumeLightID { return l.id }

func (l *VolumeLight) Set(pos mgl32.Vec3, radius float32, color mgl32.Vec3, intensity float32) {
	l.view = components.VolumeLightClient{Pos: pos, Radius: radius, Color: color, Intensity: intensity}
}

// Close marks the light dead and posts its removal.
func (l *VolumeLight) Close() error {
	if l.dead {
		return ErrClosed
	}
	l.dead = true
	return l.c.server.RemoveVolumeLight(l.id)
}

// syncShadows copies every shadow into msg. Dead shadows are sent once with
// a nil view and dropped from the list.
func syncShadows(msg *dynamics.StepMessage, list []*Shadow) []*Shadow {
	live := list[:0]
	for _, s := range list {
		if s.dead {
			msg.Shadows = append(msg.Shadows, dynamics.ShadowSync{ID: s.id})
			continue
		}
		v := s.view
		msg.Shadows = append(msg.Shadows, dynamics.ShadowSync{ID: s.id, View: &v})
		live = append(live, s)
	}
	clear(list[len(live):])
	return live
}

func syncFuses(msg *dynamics.StepMessage, list []*Fuse) []*Fuse {
	live := list[:0]
	for _, f := range list {
		if f.dead {
			msg.Fuses = append(msg.Fuses, dynamics.FuseSync{ID: f.id})
			continue
		}
		v := f.view
		msg.Fuses = append(msg.Fuses, dynamics.FuseSync{ID: f.id, View: &v})
		live = append(live, f)
	}
	clear(list[len(live):])
	return live
}

func syncLights(msg *dynamics.StepMessage, list []*VolumeLight) []*VolumeLight {
	live := list[:0]
	for _, l := range list {
		if l.dead {
			msg.Lights = append(msg.Lights, dynamics.LightSync{ID: l.id})
			continue
		}
		v := l.view
		msg.Lights = append(msg.Lights, dynamics.LightSync{ID: l.id, View: &v})
		live = append(live, l)
	}
	clear(list[len(live):])
	return live
}
