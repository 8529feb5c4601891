package dynamics

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/components"
)

// ShadowSync carries a copy of a shadow's client fields. A nil View marks a
// shadow closed on the client since the previous step.
type ShadowSync struct {
	ID   components.ShadowID
	View *components.ShadowClient
}

// FuseSync carries a copy of a fuse's client fields; nil View means closed.
type FuseSync struct {
	ID   components.FuseID
	View *components.FuseClient
}

// LightSync carries a copy of a volume light's client fields; nil View means closed.
type LightSync struct {
	ID   components.VolumeLightID
	View *components.VolumeLightClient
}

// StepMessage is handed to the worker by PushStep. The worker owns it from
// then on; the sender must not touch it again.
type StepMessage struct {
	CameraPos mgl32.Vec3
	DeltaMS   float64

	// Quality applies only when SetQuality is true; a message without it
	// keeps the worker's current tier.
	Quality    components.QualityTier
	SetQuality bool

	Shadows []ShadowSync
	Fuses   []FuseSync
	Lights  []LightSync
}
