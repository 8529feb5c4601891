package ui

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/components"
)

// ControlsResult reports what the user asked for this frame.
type ControlsResult struct {
	Quality components.QualityTier
	Emit    bool // Emit with the selected settings; see Event
	Prune   bool
	Clear   bool
}

// ControlsPanel renders the right-side emission and quality controls.
type ControlsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	visible  bool

	quality  float32
	count    float32
	scale    float32
	kind     components.EmitKind
	category components.ChunkCategory
	tendril  components.TendrilKind
}

// NewControlsPanel creates a new controls panel.
func NewControlsPanel(x, y, width int32) *ControlsPanel {
	return &ControlsPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
		visible:  true,
		quality:  float32(components.QualityHigh),
		count:    20,
		scale:    1,
	}
}

// Toggle switches panel visibility.
func (c *ControlsPanel) Toggle() bool {
	c.visible = !c.visible
	return c.visible
}

// Quality returns the selected quality tier.
func (c *ControlsPanel) Quality() components.QualityTier {
	return components.QualityTier(min(max(int(c.quality+0.5), 0), int(components.NumQualityTiers)-1))
}

// Event returns an emission at pos with the selected settings.
func (c *ControlsPanel) Event(pos mgl32.Vec3) components.EmitEvent {
	return components.EmitEvent{
		Pos:      pos,
		Vel:      mgl32.Vec3{0, 3 * c.scale, 0},
		Count:    int(c.count),
		Scale:    c.scale,
		Spread:   0.5 * c.scale,
		Category: c.category,
		Kind:     c.kind,
		Tendril:  c.tendril,
	}
}

// CycleKind selects the next emit kind.
func (c *ControlsPanel) CycleKind() {
	c.kind = (c.kind + 1) % components.NumEmitKinds
}

// CycleCategory selects the next chunk category.
func (c *ControlsPanel) CycleCategory() {
	c.category = (c.category + 1) % components.NumChunkCategories
}

// CycleTendril selects the next tendril kind.
func (c *ControlsPanel) CycleTendril() {
	c.tendril = (c.tendril + 1) % components.NumTendrilKinds
}

// Draw renders the panel. The emission position is filled in by the caller.
func (c *ControlsPanel) Draw() ControlsResult {
	res := ControlsResult{Quality: c.Quality()}
	if !c.visible {
		return res
	}

	r := c.renderer
	padding := float32(r.Theme.Padding)
	x := float32(c.x) + padding
	w := float32(c.width) - padding*2
	r.DrawPanel(c.x, c.y, c.width, 330)

	y := float32(c.y) + padding
	rl.DrawText("Emit", int32(x), int32(y), 16, rl.White)
	y += 26

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w, Height: 24}, "Kind: "+c.kind.String()) {
		c.CycleKind()
	}
	y += 30
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w, Height: 24}, "Category: "+c.category.String()) {
		c.CycleCategory()
	}
	y += 30
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w, Height: 24}, "Tendril: "+c.tendril.String()) {
		c.CycleTendril()
	}
	y += 34

	rl.DrawText(fmt.Sprintf("Count %d", int(c.count)), int32(x), int32(y), 12, rl.LightGray)
	y += 14
	c.count = gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 16}, "", "", c.count, 1, components.MaxEmitCount)
	y += 22
	rl.DrawText(fmt.Sprintf("Scale %.2f", c.scale), int32(x), int32(y), 12, rl.LightGray)
	y += 14
	c.scale = gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 16}, "", "", c.scale, 0.1, 4)
	y += 22
	rl.DrawText("Quality "+c.Quality().String(), int32(x), int32(y), 12, rl.LightGray)
	y += 14
	c.quality = gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 16}, "", "", c.quality, 0, float32(components.NumQualityTiers-1))
	res.Quality = c.Quality()
	y += 28

	half := (w - padding) / 2
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w, Height: 28}, "Emit (Space)") {
		res.Emit = true
	}
	y += 34
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: half, Height: 24}, "Prune") {
		res.Prune = true
	}
	if gui.Button(rl.Rectangle{X: x + half + padding, Y: y, Width: half, Height: 24}, "Clear") {
		res.Clear = true
	}
	return res
}
