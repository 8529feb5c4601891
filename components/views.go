package components

import "github.com/go-gl/mathgl/mgl32"

// Handles for client-owned effects. The client allocates them from a
// monotonically increasing counter and never reuses a value, so a stale
// handle can never alias a newer entity on the worker.
type (
	TerrainID     uint64
	ShadowID      uint64
	FuseID        uint64
	VolumeLightID uint64
)

// ShadowClient is the client-writable part of a dynamic shadow.
type ShadowClient struct {
	Pos     mgl32.Vec3 // Caster position
	Size    float32    // Shadow radius when the caster touches the ground
	Visible bool
}

// ShadowWorker is the worker's view of a shadow: the synchronized client
// fields plus results computed against the ground.
type ShadowWorker struct {
	ShadowClient

	GroundPos mgl32.Vec3
	Scale     float32
	Density   float32
}

// Synchronize copies the client-writable fields into the worker view.
func (w *ShadowWorker) Synchronize(c ShadowClient) {
	w.ShadowClient = c
}

// FuseClient is the client-writable part of a fuse.
type FuseClient struct {
	Transform mgl32.Mat4 // Base of the fuse; local +Y is "up"
	Length    float32    // Remaining length as a fraction in [0, 1]
	Burning   bool
}

// FuseWorker holds the relaxed control points of a fuse.
type FuseWorker struct {
	FuseClient

	Points      []mgl32.Vec3
	Initialized bool
	SparkAccum  float32
}

// Synchronize copies the client-writable fields into the worker view.
func (w *FuseWorker) Synchronize(c FuseClient) {
	w.FuseClient = c
}

// VolumeLightClient is the client-writable part of a volume light.
type VolumeLightClient struct {
	Pos       mgl32.Vec3
	Radius    float32
	Color     mgl32.Vec3
	Intensity float32
}

// VolumeLightWorker is the worker's view of a volume light.
type VolumeLightWorker struct {
	VolumeLightClient
}

// Synchronize copies the client-writable fields into the worker view.
func (w *VolumeLightWorker) Synchronize(c VolumeLightClient) {
	w.VolumeLightClient = c
}

// Contribution returns the light's glow at p with quadratic falloff.
func (w *VolumeLightWorker) Contribution(p mgl32.Vec3) mgl32.Vec3 {
	if w.Radius <= 0 || w.Intensity <= 0 {
		return mgl32.Vec3{}
	}
	d := p.Sub(w.Pos).Len()
	if d >= w.Radius {
		return mgl32.Vec3{}
	}
	f := 1 - d/w.Radius
	return w.Color.Mul(w.Intensity * f * f)
}
