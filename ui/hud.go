package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/bgdynamics/client"
	"github.com/pthm-cable/bgdynamics/components"
	"github.com/pthm-cable/bgdynamics/config"
	"github.com/pthm-cable/bgdynamics/systems"
	"github.com/pthm-cable/bgdynamics/telemetry"
)

// Caps holds the hard population caps of the current quality tier.
type Caps struct {
	Chunks        int
	ThinTendrils  int
	ThickTendrils int
	Particles     int
}

// CapsFor scales the configured hard caps by the tier's cap scale.
func CapsFor(cfg *config.Config, q components.QualityTier) Caps {
	s := cfg.Tier(q.String()).CapScale
	scale := func(n int) int { return int(float64(n) * s) }
	return Caps{
		Chunks:        scale(cfg.Chunks.HardCap),
		ThinTendrils:  scale(cfg.Tendrils.ThinHardCap),
		ThickTendrils: scale(cfg.Tendrils.ThickHardCap),
		Particles:     cfg.Particles.MaxParticles,
	}
}

// HUDData holds all the data needed to render the HUD.
type HUDData struct {
	Population telemetry.PopulationStats
	Perf       telemetry.PerfStats
	Caps       Caps
	Quality    components.QualityTier
	InFlight   int
	Totals     client.Totals
	FPS        int32
	Paused     bool
}

func hud(data any) *HUDData { return data.(*HUDData) }

// PopulationSection lists live entity counts against their caps.
var PopulationSection = SectionDescriptor{
	ID:    "population",
	Title: "Population",
	Fields: []FieldDescriptor{
		{ID: "chunks", Label: "Chunks", Widget: WidgetEnergyBar,
			Getter:    func(d any) float32 { return float32(hud(d).Population.Chunks) },
			MaxGetter: func(d any) float32 { return float32(hud(d).Caps.Chunks) }},
		{ID: "thin", Label: "Thin smoke", Widget: WidgetEnergyBar,
			Getter:    func(d any) float32 { return float32(hud(d).Population.ThinTendrils) },
			MaxGetter: func(d any) float32 { return float32(hud(d).Caps.ThinTendrils) }},
		{ID: "thick", Label: "Tendrils", Widget: WidgetEnergyBar,
			Getter:    func(d any) float32 { return float32(hud(d).Population.ThickTendrils) },
			MaxGetter: func(d any) float32 { return float32(hud(d).Caps.ThickTendrils) }},
		{ID: "particles", Label: "Particles", Widget: WidgetEnergyBar,
			Getter:    func(d any) float32 { return float32(hud(d).Population.Particles) },
			MaxGetter: func(d any) float32 { return float32(hud(d).Caps.Particles) }},
		{ID: "fields", Label: "Fields", Widget: WidgetText, Format: "%.0f",
			Getter: func(d any) float32 { return float32(hud(d).Population.Fields) }},
		{ID: "attached", Label: "Attached", Widget: WidgetText,
			TextGetter: func(d any) string {
				p := hud(d).Population
				return fmt.Sprintf("%d shadows, %d fuses, %d lights", p.Shadows, p.Fuses, p.Lights)
			}},
		{ID: "cache", Label: "Height cache", Widget: WidgetBar,
			Visible: func(d any) bool { return hud(d).Population.CacheTotal > 0 },
			Getter: func(d any) float32 {
				p := hud(d).Population
				return float32(p.CacheComputed) / float32(p.CacheTotal)
			}},
	},
}

// WorkerSection shows step timing and backpressure.
var WorkerSection = SectionDescriptor{
	ID:    "worker",
	Title: "Worker",
	Fields: []FieldDescriptor{
		{ID: "quality", Label: "Quality", Widget: WidgetText,
			TextGetter: func(d any) string { return hud(d).Quality.String() }},
		{ID: "step", Label: "Step", Widget: WidgetText,
			TextGetter: func(d any) string {
				p := hud(d).Perf
				return fmt.Sprintf("%.2fms avg, %.2fms p95", float64(p.AvgStep.Microseconds())/1000, float64(p.P95Step.Microseconds())/1000)
			}},
		{ID: "over_budget", Label: "Over budget", Widget: WidgetBar,
			Getter: func(d any) float32 { return float32(hud(d).Perf.OverBudget) }},
		{ID: "in_flight", Label: "In flight", Widget: WidgetText, Format: "%.0f",
			Getter: func(d any) float32 { return float32(hud(d).InFlight) }},
		{ID: "totals", Label: "Steps", Widget: WidgetText,
			TextGetter: func(d any) string {
				t := hud(d).Totals
				return fmt.Sprintf("%d sent, %d skipped, %d pruned", t.Sent, t.Skipped, t.Pruned)
			}},
		{ID: "pruned", Label: "Pruned", Widget: WidgetText, Format: "%.0f",
			Visible: func(d any) bool { return hud(d).Population.Pruned > 0 },
			Getter:  func(d any) float32 { return float32(hud(d).Population.Pruned) }},
	},
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
	width    int32
}

// NewHUD creates a new HUD renderer.
func NewHUD(width int32) *HUD {
	return &HUD{
		renderer: NewRenderer(),
		width:    width,
	}
}

// Draw renders the HUD in the top-left corner.
func (h *HUD) Draw(data *HUDData) {
	r := h.renderer
	padding := r.Theme.Padding

	rl.DrawText("Background Dynamics", padding, padding, 20, rl.White)
	status := fmt.Sprintf("FPS: %d | t=%.1fs", data.FPS, data.Population.TimeSec)
	if data.Paused {
		status += " | PAUSED"
	}
	rl.DrawText(status, padding, padding+24, 14, rl.LightGray)

	y := padding + 48
	height := r.SectionHeight(PopulationSection, data) + r.SectionHeight(WorkerSection, data) + padding*2
	r.DrawPanel(padding, y, h.width, height)

	y += padding
	y = r.DrawSection(padding*2, y, PopulationSection, data, h.width-padding*2)
	r.DrawSection(padding*2, y, WorkerSection, data, h.width-padding*2)
}

// PerfPanel renders a per-phase timing breakdown.
type PerfPanel struct {
	renderer *Renderer
	registry *systems.SystemRegistry
	x, y     int32
	width    int32
}

// NewPerfPanel creates a new perf panel.
func NewPerfPanel(x, y, width int32) *PerfPanel {
	return &PerfPanel{
		renderer: NewRenderer(),
		registry: systems.NewSystemRegistry(),
		x:        x,
		y:        y,
		width:    width,
	}
}

// SetPosition moves the panel.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the share of step time spent in each phase.
func (p *PerfPanel) Draw(stats telemetry.PerfStats) {
	r := p.renderer
	phases := p.registry.All()
	lines := int32(len(phases))
	height := r.Theme.LineHeight*2 + lines*(r.Theme.LineHeight+2) + r.Theme.Padding*2
	r.DrawPanel(p.x, p.y, p.width, height)

	y := p.y + r.Theme.Padding
	y = r.DrawSectionHeader(p.x+r.Theme.Padding, y, "Step phases")
	y = r.DrawLabelValue(p.x+r.Theme.Padding, y, "Rate", fmt.Sprintf("%.0f steps/s", stats.StepsPerSecond), p.width)
	for _, info := range phases {
		y = r.DrawBar(p.x+r.Theme.Padding, y, info.Name, float32(stats.PhasePct[info.ID]/100), p.width-r.Theme.Padding*2)
	}
}

// DrawControlsHint renders keyboard help at the bottom of the screen.
func (h *HUD) DrawControlsHint(screenHeight int32, text string) {
	rl.DrawText(text, h.renderer.Theme.Padding, screenHeight-24, 14, rl.Gray)
}
