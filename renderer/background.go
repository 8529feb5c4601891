package renderer

import rl "github.com/gen2brain/raylib-go/raylib"

// BackgroundRenderer renders a vertical sky gradient behind the scene.
type BackgroundRenderer struct {
	top, bottom      rl.Color
	screenW, screenH int32
}

// NewBackgroundRenderer creates a new background renderer.
func NewBackgroundRenderer(screenW, screenH int32, top, bottom rl.Color) *BackgroundRenderer {
	return &BackgroundRenderer{
		top:     top,
		bottom:  bottom,
		screenW: screenW,
		screenH: screenH,
	}
}

// Resize updates the screen size.
func (b *BackgroundRenderer) Resize(screenW, screenH int32) {
	b.screenW = screenW
	b.screenH = screenH
}

// Draw renders the gradient. Call before entering 3D mode.
func (b *BackgroundRenderer) Draw() {
	rl.DrawRectangleGradientV(0, 0, b.screenW, b.screenH, b.top, b.bottom)
}
