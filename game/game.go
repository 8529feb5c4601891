// Package game runs the sandbox: a terrain, a few attached props and a
// stream of emissions driving the dynamics server through the client layer.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/asset"
	"github.com/pthm-cable/bgdynamics/camera"
	"github.com/pthm-cable/bgdynamics/client"
	"github.com/pthm-cable/bgdynamics/components"
	"github.com/pthm-cable/bgdynamics/config"
	"github.com/pthm-cable/bgdynamics/dynamics"
	"github.com/pthm-cable/bgdynamics/renderer"
	"github.com/pthm-cable/bgdynamics/telemetry"
	"github.com/pthm-cable/bgdynamics/ui"
)

// Terrain generation
const (
	TerrainSize       = 60
	TerrainResolution = 48
	TerrainAmplitude  = 2.5
	TerrainFrequency  = 0.06
	TerrainOctaves    = 4
)

// HeadlessStepMS is the fixed frame time of headless runs.
const HeadlessStepMS = 1000.0 / 60.0

// AutoEmitMS is the interval between automatic emissions.
const AutoEmitMS = 400

// Options configures a sandbox run.
type Options struct {
	Config    *config.Config
	Seed      int64
	OutputDir string
	Headless  bool
	AutoEmit  bool // Emit on a timer; always on when headless
	Logger    *slog.Logger
}

// Game holds the complete sandbox state.
type Game struct {
	cfg *config.Config
	log *slog.Logger
	rng *rand.Rand

	cancel context.CancelFunc
	server *dynamics.Server
	client *client.Client

	terrainMesh *asset.CollisionMesh
	terrain     *client.Terrain
	props       *props
	output      *telemetry.OutputManager

	// Rendering (nil when headless)
	camera     *camera.Camera
	frame      *renderer.Frame
	terrainR   *renderer.TerrainRenderer
	background *renderer.BackgroundRenderer
	hud        *ui.HUD
	perfPanel  *ui.PerfPanel
	controls   *ui.ControlsPanel
	showPerf   bool

	// State
	steps      uint64 // Steps sent to the worker
	timeMS     float64
	nextEmitMS float64
	autoEmit   bool
	paused     bool

	screenWidth, screenHeight int32
}

// NewGameWithOptions creates the sandbox and starts the worker. Graphical
// mode must be called after the raylib window exists.
func NewGameWithOptions(opts Options) (*Game, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Game{
		cfg:          cfg,
		log:          logger,
		rng:          rand.New(rand.NewSource(opts.Seed)),
		autoEmit:     opts.AutoEmit || opts.Headless,
		screenWidth:  int32(cfg.Screen.Width),
		screenHeight: int32(cfg.Screen.Height),
	}

	mesh, err := generateTerrain(opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("generating terrain: %w", err)
	}
	g.terrainMesh = mesh

	g.server, err = dynamics.New(dynamics.Options{
		Config: cfg,
		Logger: logger,
		Seed:   opts.Seed,
		OnFatal: func(err error) {
			logger.Error("dynamics desync", "error", err)
			panic(err)
		},
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.server.Start(ctx)

	g.client = client.New(cfg, g.server, g.server.ClientQueue(), logger)
	if g.terrain, err = g.client.AddTerrain(mesh); err != nil {
		g.Unload()
		return nil, fmt.Errorf("adding terrain: %w", err)
	}
	if g.props, err = newProps(g.client, cfg); err != nil {
		g.Unload()
		return nil, fmt.Errorf("creating props: %w", err)
	}

	if g.output, err = telemetry.NewOutputManager(opts.OutputDir); err != nil {
		g.Unload()
		return nil, fmt.Errorf("creating output: %w", err)
	}
	if err := g.output.WriteConfig(cfg); err != nil {
		logger.Error("failed to write config", "error", err)
	}

	if !opts.Headless {
		g.initRendering()
	}
	return g, nil
}

// Update advances one graphical frame of deltaMS.
func (g *Game) Update(deltaMS float64) {
	g.handleInput()
	g.client.SetQuality(g.controls.Quality())
	g.advance(deltaMS, g.camera.Eye())
}

// UpdateHeadless advances one fixed frame and waits for the worker to finish
// the step, so headless runs are paced by the worker.
func (g *Game) UpdateHeadless() {
	eye := mgl32.Vec3{0, 12, 30}
	if g.advance(HeadlessStepMS, eye) {
		g.waitForWorker()
	}
}

// advance runs the per-frame client work and reports whether a step was sent.
func (g *Game) advance(deltaMS float64, eye mgl32.Vec3) bool {
	g.client.Pump()
	if g.paused {
		return false
	}

	g.timeMS += deltaMS
	if g.autoEmit && g.timeMS >= g.nextEmitMS {
		g.nextEmitMS = g.timeMS + AutoEmitMS
		g.emit(g.randomEvent())
	}
	g.props.update(g.timeMS, g.terrainHeight)

	res, err := g.client.Step(eye, deltaMS)
	if err != nil {
		g.log.Error("step failed", "error", err)
		return false
	}
	if res != client.StepSent {
		return false
	}
	g.steps++
	g.flushTelemetry()
	return true
}

func (g *Game) waitForWorker() {
	for g.server.StepsInFlight() > 0 {
		// Completion is published just after the snapshot is posted
		select {
		case <-g.server.ClientQueue().Ready():
		case <-time.After(time.Millisecond):
		}
		g.client.Pump()
	}
	g.client.Pump()
}

func (g *Game) emit(ev components.EmitEvent) {
	if err := g.client.Emit(ev); err != nil {
		g.log.Warn("emit rejected", "error", err)
	}
}

// randomEvent picks an emission somewhere above the middle of the terrain.
func (g *Game) randomEvent() components.EmitEvent {
	x := (g.rng.Float32() - 0.5) * TerrainSize * 0.5
	z := (g.rng.Float32() - 0.5) * TerrainSize * 0.5
	kinds := []components.EmitKind{
		components.EmitChunks, components.EmitChunks, components.EmitChunks,
		components.EmitStickers, components.EmitTendrils, components.EmitDistortion,
		components.EmitFairyDust,
	}
	return components.EmitEvent{
		Pos:      mgl32.Vec3{x, g.terrainHeight(x, z) + 4, z},
		Vel:      mgl32.Vec3{0, 3, 0},
		Count:    5 + g.rng.Intn(30),
		Scale:    0.5 + g.rng.Float32(),
		Spread:   1,
		Category: components.ChunkCategory(g.rng.Intn(int(components.ChunkFlagStand))),
		Kind:     kinds[g.rng.Intn(len(kinds))],
		Tendril:  components.TendrilKind(g.rng.Intn(int(components.NumTendrilKinds))),
	}
}

func generateTerrain(seed int64) (*asset.CollisionMesh, error) {
	return asset.GenerateHeightfield(asset.HeightfieldParams{
		Seed:       seed,
		Size:       TerrainSize,
		Resolution: TerrainResolution,
		Amplitude:  TerrainAmplitude,
		Frequency:  TerrainFrequency,
		Octaves:    TerrainOctaves,
	})
}

// terrainHeight returns the height of the nearest terrain vertex.
func (g *Game) terrainHeight(x, z float32) float32 {
	step := float32(TerrainSize) / TerrainResolution
	ix := min(max(int((x+TerrainSize/2)/step+0.5), 0), TerrainResolution)
	iz := min(max(int((z+TerrainSize/2)/step+0.5), 0), TerrainResolution)
	return g.terrainMesh.Vertices[iz*(TerrainResolution+1)+ix][1]
}

// Steps returns the number of steps sent to the worker.
func (g *Game) Steps() uint64 {
	return g.steps
}

// Unload removes the terrain, stops the worker and releases everything
// handed back to the client.
func (g *Game) Unload() {
	if g.props != nil {
		g.props.close()
	}
	if g.terrain != nil {
		if err := g.terrain.Remove(); err != nil {
			g.log.Warn("removing terrain", "error", err)
		}
	}
	g.server.Stop()
	g.cancel()
	g.client.Pump()
	if g.terrainMesh.Refs() != 0 {
		g.log.Warn("terrain mesh still referenced", "refs", g.terrainMesh.Refs())
	}
	if err := g.output.Close(); err != nil {
		g.log.Error("closing output", "error", err)
	}
}
