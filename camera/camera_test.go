package camera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func near(a, b mgl32.Vec3) bool {
	return a.Sub(b).Len() < 1e-4
}

func TestNew(t *testing.T) {
	cam := New(mgl32.Vec3{1, 0, 2}, 10)

	if cam.Distance != 10 {
		t.Errorf("expected distance 10, got %f", cam.Distance)
	}
	if d := cam.Eye().Sub(cam.Target).Len(); math.Abs(float64(d-10)) > 1e-4 {
		t.Errorf("eye is %f from target, want 10", d)
	}
	if cam.Eye()[1] <= 0 {
		t.Errorf("default eye should be above the target, got %v", cam.Eye())
	}
}

func TestEyeAxes(t *testing.T) {
	tests := []struct {
		name       string
		yaw, pitch float32
		want       mgl32.Vec3
	}{
		{"front", 0, 0, mgl32.Vec3{0, 0, 5}},
		{"side", math.Pi / 2, 0, mgl32.Vec3{5, 0, 0}},
		{"above", 0, math.Pi / 2, mgl32.Vec3{0, 5, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := &Camera{Yaw: tt.yaw, Pitch: tt.pitch, Distance: 5}
			if got := cam.Eye(); !near(got, tt.want) {
				t.Errorf("eye = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestViewLooksAtTarget(t *testing.T) {
	cam := New(mgl32.Vec3{3, 1, -2}, 8)
	cam.Orbit(0.7, 0.2)

	// The target sits on the view axis at the orbit distance
	p := cam.View().Mul4x1(cam.Target.Vec4(1))
	if math.Abs(float64(p[0])) > 1e-3 || math.Abs(float64(p[1])) > 1e-3 {
		t.Errorf("target off axis in view space: %v", p)
	}
	if math.Abs(float64(-p[2]-cam.Distance)) > 1e-3 {
		t.Errorf("target depth = %f, want %f", -p[2], cam.Distance)
	}
}

func TestClamps(t *testing.T) {
	cam := New(mgl32.Vec3{}, 10)

	cam.ZoomBy(1000)
	if cam.Distance != cam.MaxDistance {
		t.Errorf("distance = %f, want max %f", cam.Distance, cam.MaxDistance)
	}
	cam.SetDistance(0)
	if cam.Distance != cam.MinDistance {
		t.Errorf("distance = %f, want min %f", cam.Distance, cam.MinDistance)
	}

	cam.Orbit(0, 10)
	if cam.Pitch != cam.MaxPitch {
		t.Errorf("pitch = %f, want max %f", cam.Pitch, cam.MaxPitch)
	}
	cam.Orbit(0, -10)
	if cam.Pitch != cam.MinPitch {
		t.Errorf("pitch = %f, want min %f", cam.Pitch, cam.MinPitch)
	}
}

func TestPanStaysOnGround(t *testing.T) {
	cam := New(mgl32.Vec3{0, 2, 0}, 10)
	cam.Orbit(1.1, 0.4)
	before := cam.Eye().Sub(cam.Target)

	cam.Pan(3, -4)
	if cam.Target[1] != 2 {
		t.Errorf("pan changed target height: %v", cam.Target)
	}
	if moved := cam.Target.Sub(mgl32.Vec3{0, 2, 0}).Len(); math.Abs(float64(moved-5)) > 1e-4 {
		t.Errorf("pan moved %f, want 5", moved)
	}
	if !near(cam.Eye().Sub(cam.Target), before) {
		t.Error("pan changed orbit offset")
	}

	// Forward pan moves toward where the camera looks
	cam = New(mgl32.Vec3{}, 10)
	cam.Pan(0, 1)
	if cam.Target[2] >= 0 {
		t.Errorf("forward pan at yaw 0 should move toward -Z, got %v", cam.Target)
	}
}
