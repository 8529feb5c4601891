// Package client is the logic-thread side of the background dynamics engine.
//
// Every type here is owned by the client goroutine. Nothing touches worker
// state directly: terrain, emission and lifetime changes are posted to the
// server, and snapshots and released assets come back through the client
// mailbox, which Pump drains.
package client

import (
	"errors"
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/time/rate"

	"github.com/pthm-cable/bgdynamics/asset"
	"github.com/pthm-cable/bgdynamics/components"
	"github.com/pthm-cable/bgdynamics/config"
	"github.com/pthm-cable/bgdynamics/dynamics"
	"github.com/pthm-cable/bgdynamics/snapshot"
)

var (
	ErrTerrainRemoved = errors.New("client: terrain already removed")
	ErrInvalidEmit    = errors.New("client: invalid emit event")
	ErrClosed         = errors.New("client: proxy already closed")
)

// Server is the part of the simulation core the client talks to.
// *dynamics.Server implements it.
type Server interface {
	AddTerrain(id components.TerrainID, ref *asset.MeshRef) error
	RemoveTerrain(id components.TerrainID) error
	Emit(ev components.EmitEvent) error
	PushStep(msg *dynamics.StepMessage) error
	Prune() error
	StepsInFlight() int

	AddShadow(id components.ShadowID) error
	RemoveShadow(id components.ShadowID) error
	AddFuse(id components.FuseID) error
	RemoveFuse(id components.FuseID) error
	AddVolumeLight(id components.VolumeLightID) error
	RemoveVolumeLight(id components.VolumeLightID) error

	Shadow(id components.ShadowID) (components.ShadowWorker, bool)
	FusePoints(id components.FuseID, dst []mgl32.Vec3) ([]mgl32.Vec3, bool)

	SetSnapshotSink(fn dynamics.SnapshotSink)
}

// StepResult reports what Step did with a frame.
type StepResult uint8

const (
	StepSent    StepResult = iota // A step message was pushed
	StepSkipped                   // Withheld; the worker is behind
	StepPruned                    // Withheld and a prune was requested
)

func (r StepResult) String() string {
	switch r {
	case StepSent:
		return "sent"
	case StepSkipped:
		return "skipped"
	case StepPruned:
		return "pruned"
	}
	return "unknown"
}

// Totals counts Step outcomes since the client was created.
type Totals struct {
	Sent    uint64
	Skipped uint64
	Pruned  uint64
}

// Client owns the proxies of one simulation.
type Client struct {
	cfg    *config.Config
	server Server
	inbox  *dynamics.Mailbox
	log    *slog.Logger
	warn   *rate.Limiter

	nextID    uint64
	quality   components.QualityTier
	pendingMS float64 // Delta of withheld frames, carried into the next sent step
	totals    Totals

	shadows []*Shadow
	fuses   []*Fuse
	lights  []*VolumeLight

	snap     *snapshot.Snapshot
	meshes   [snapshot.NumLayers]Mesh
	uploaded [snapshot.NumLayers]*snapshot.Snapshot
	shapes   [components.NumChunkCategories]Shape
}

// New creates a client for srv. Snapshots and released assets arrive on
// inbox, which must be the mailbox the server posts to. A nil logger uses
// slog.Default().
func New(cfg *config.Config, srv Server, inbox *dynamics.Mailbox, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:     cfg,
		server:  srv,
		inbox:   inbox,
		log:     logger,
		warn:    rate.NewLimiter(rate.Every(time.Second), 1),
		quality: components.QualityHigh,
	}
	for cat := range components.NumChunkCategories {
		if cfg.Chunks.Categories[cat.String()].Shape == "sphere" {
			c.shapes[cat] = ShapeSphere
		}
	}
	srv.SetSnapshotSink(c.SetSnapshot)
	return c
}

// Pump runs every closure the server has posted to the client and returns
// how many ran. Call it once per frame from the client goroutine.
func (c *Client) Pump() int {
	n := 0
	for {
		k := c.inbox.Drain()
		if k == 0 {
			return n
		}
		n += k
	}
}

func (c *Client) newID() uint64 {
	c.nextID++
	return c.nextID
}

// SetQuality selects the graphics quality tier sent with the next step.
func (c *Client) SetQuality(q components.QualityTier) {
	if q.Valid() {
		c.quality = q
	}
}

func (c *Client) Quality() components.QualityTier { return c.quality }

func (c *Client) Totals() Totals { return c.totals }

// Step is called once per client frame. When the worker is behind it
// withholds the step, and when it is far behind it also asks the worker to
// prune. Withheld time is carried into the next step that is sent.
func (c *Client) Step(camPos mgl32.Vec3, deltaMS float64) (StepResult, error) {
	c.pendingMS += max(deltaMS, 0)

	inFlight := c.server.StepsInFlight()
	if inFlight > c.cfg.Worker.PruneAbove {
		c.totals.Pruned++
		if c.warn.Allow() {
			c.log.Warn("bgdynamics behind, pruning", "in_flight", inFlight)
		}
		return StepPruned, c.server.Prune()
	}
	if inFlight > c.cfg.Worker.SkipStepAbove {
		c.totals.Skipped++
		if c.warn.Allow() {
			c.log.Warn("bgdynamics behind, skipping step", "in_flight", inFlight)
		}
		return StepSkipped, nil
	}

	msg := &dynamics.StepMessage{
		CameraPos:  camPos,
		DeltaMS:    c.pendingMS,
		Quality:    c.quality,
		SetQuality: true,
	}
	c.shadows = syncShadows(msg, c.shadows)
	c.fuses = syncFuses(msg, c.fuses)
	c.lights = syncLights(msg, c.lights)

	if err := c.server.PushStep(msg); err != nil {
		c.totals.Skipped++
		return StepSkipped, err
	}
	c.pendingMS = 0
	c.totals.Sent++
	return StepSent, nil
}

// SetSnapshot replaces the displayed snapshot. The previous one is dropped.
func (c *Client) SetSnapshot(s *snapshot.Snapshot) {
	c.snap = s
}

// Snapshot returns the displayed snapshot, nil before the first step lands.
func (c *Client) Snapshot() *snapshot.Snapshot {
	return c.snap
}
