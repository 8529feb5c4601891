package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/camera"
	"github.com/pthm-cable/bgdynamics/renderer"
	"github.com/pthm-cable/bgdynamics/ui"
)

const (
	hudWidth        = 320
	controlsWidth   = 220
	perfPanelWidth  = 260
	perfPanelHeight = 200
)

var (
	skyTop      = rl.Color{R: 24, G: 30, B: 48, A: 255}
	skyBottom   = rl.Color{R: 70, G: 78, B: 96, A: 255}
	terrainLow  = rl.Color{R: 52, G: 62, B: 48, A: 255}
	terrainHigh = rl.Color{R: 150, G: 140, B: 120, A: 255}
	ballColor   = rl.Color{R: 220, G: 80, B: 60, A: 255}
	postColor   = rl.Color{R: 90, G: 70, B: 50, A: 255}
	tipColor    = rl.Color{R: 255, G: 200, B: 90, A: 255}
)

func (g *Game) initRendering() {
	g.camera = camera.New(mgl32.Vec3{0, 0, 0}, 35)
	g.frame = renderer.NewFrame()
	g.terrainR = renderer.NewTerrainRenderer(g.terrainMesh, terrainLow, terrainHigh)
	g.background = renderer.NewBackgroundRenderer(g.screenWidth, g.screenHeight, skyTop, skyBottom)
	g.hud = ui.NewHUD(hudWidth)
	g.perfPanel = ui.NewPerfPanel(10, g.screenHeight-perfPanelHeight, perfPanelWidth)
	g.controls = ui.NewControlsPanel(g.screenWidth-controlsWidth-10, 10, controlsWidth)
}

// Draw renders the scene and UI.
func (g *Game) Draw() {
	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)
	g.background.Draw()

	g.frame.Begin(renderer.Camera3D(g.camera))
	g.terrainR.Draw()
	g.drawProps()
	g.client.Draw(g.frame)
	g.frame.End()

	g.drawUI()
	rl.EndDrawing()
}

// drawProps draws the client-owned objects the shadows and fuse belong to.
func (g *Game) drawProps() {
	rl.DrawSphere(vec(g.props.ballPos), ballRadius, ballColor)

	base := g.props.fuseBase
	post := mgl32.Vec3{base[0], base[1] - 0.75, base[2]}
	rl.DrawCubeV(vec(post), rl.NewVector3(fusePostSize, 1.5, fusePostSize), postColor)
	if pts := g.props.points(); len(pts) > 0 {
		rl.DrawSphere(vec(pts[len(pts)-1]), 0.05, tipColor)
	}
}

func (g *Game) drawUI() {
	data := &ui.HUDData{
		Population: g.server.Counts(),
		Perf:       g.server.PerfStats(),
		Caps:       ui.CapsFor(g.cfg, g.client.Quality()),
		Quality:    g.client.Quality(),
		InFlight:   g.server.StepsInFlight(),
		Totals:     g.client.Totals(),
		FPS:        rl.GetFPS(),
		Paused:     g.paused,
	}
	g.hud.Draw(data)
	if g.showPerf {
		g.perfPanel.Draw(data.Perf)
	}

	res := g.controls.Draw()
	if res.Emit {
		g.emitAtTarget()
	}
	if res.Prune {
		if err := g.server.Prune(); err != nil {
			g.log.Warn("prune failed", "error", err)
		}
	}
	if res.Clear {
		if err := g.server.Clear(); err != nil {
			g.log.Warn("clear failed", "error", err)
		}
	}

	g.hud.DrawControlsHint(g.screenHeight, "Space: emit | K/C: kind/category | A: auto emit | P: pause | Tab: panel | F3: perf | RMB: orbit | Arrows: pan | Wheel: zoom")
}

func vec(v mgl32.Vec3) rl.Vector3 {
	return rl.NewVector3(v[0], v[1], v[2])
}
