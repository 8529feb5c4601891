package components

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxEmitCount bounds the count of a single emission.
const MaxEmitCount = 500

// EmitEvent describes one effect emission.
type EmitEvent struct {
	Pos      mgl32.Vec3
	Vel      mgl32.Vec3
	Count    int
	Scale    float32
	Spread   float32
	Category ChunkCategory
	Kind     EmitKind
	Tendril  TendrilKind
}

// Validate rejects events that would put NaNs or out-of-range tags into the simulation.
func (e EmitEvent) Validate() error {
	if !finite(e.Pos) || !finite(e.Vel) {
		return errors.New("position and velocity must be finite")
	}
	if e.Count < 1 || e.Count > MaxEmitCount {
		return fmt.Errorf("count %d out of range [1, %d]", e.Count, MaxEmitCount)
	}
	if !(e.Scale > 0) || math.IsInf(float64(e.Scale), 0) {
		return fmt.Errorf("scale %v must be positive", e.Scale)
	}
	if !(e.Spread >= 0) || math.IsInf(float64(e.Spread), 0) {
		return fmt.Errorf("spread %v must be non-negative", e.Spread)
	}
	if e.Category >= NumChunkCategories {
		return fmt.Errorf("unknown chunk category %d", e.Category)
	}
	if e.Kind >= NumEmitKinds {
		return fmt.Errorf("unknown emit kind %d", e.Kind)
	}
	if e.Tendril >= NumTendrilKinds {
		return fmt.Errorf("unknown tendril kind %d", e.Tendril)
	}
	return nil
}

func finite(v mgl32.Vec3) bool {
	for _, c := range v {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
