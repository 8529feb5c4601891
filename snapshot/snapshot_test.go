package snapshot

import (
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

func TestVertexLayout(t *testing.T) {
	tests := []struct {
		name string
		size uintptr
		want int
	}{
		{"sprite", unsafe.Sizeof(VertexSprite{}), SpriteStride},
		{"smoke", unsafe.Sizeof(VertexSmoke{}), SmokeStride},
		{"simple", unsafe.Sizeof(VertexSimple{}), SimpleStride},
	}
	for _, tc := range tests {
		if int(tc.size) != tc.want {
			t.Errorf("%s vertex = %d bytes, want %d", tc.name, tc.size, tc.want)
		}
	}
	if off := unsafe.Offsetof(VertexSmoke{}.Glow); off != 24 {
		t.Errorf("smoke glow offset = %d, want 24", off)
	}
}

func TestBuilderSizing(t *testing.T) {
	tests := []struct {
		name      string
		max, add  int
		wantNil   bool
		wantVerts int
	}{
		{"empty", 4, 0, true, 0},
		{"partial", 4, 1, false, 4},
		{"full", 3, 3, false, 12},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuilder[VertexSimple]("test")
			b.Reserve(tc.max*4, tc.max*6)
			for i := 0; i < tc.add; i++ {
				v := SimpleVertex(mgl32.Vec3{float32(i), 0, 0}, mgl32.Vec3{1, 1, 1}, 1)
				b.Quad(v, v, v, v)
			}
			buf := b.Finish()
			if tc.wantNil {
				if buf != nil {
					t.Fatalf("empty build = %+v, want nil", buf)
				}
				return
			}
			if len(buf.Vertices) != tc.wantVerts || cap(buf.Vertices) != tc.wantVerts {
				t.Errorf("vertices len %d cap %d, want exactly %d", len(buf.Vertices), cap(buf.Vertices), tc.wantVerts)
			}
			if want := tc.add * 6; len(buf.Indices) != want || cap(buf.Indices) != want {
				t.Errorf("indices len %d cap %d, want exactly %d", len(buf.Indices), cap(buf.Indices), want)
			}
		})
	}
}

func TestBuilderOverrunPanics(t *testing.T) {
	b := NewBuilder[VertexSprite]("sprites")
	b.Reserve(4, 6)
	AddSprite(b, GroundQuad(mgl32.Vec3{}, 1), 1, mgl32.Vec3{1, 1, 1})

	defer func() {
		if recover() == nil {
			t.Error("expected panic on overrun")
		}
	}()
	AddSprite(b, GroundQuad(mgl32.Vec3{}, 1), 1, mgl32.Vec3{1, 1, 1})
}

func TestStripIndices(t *testing.T) {
	b := NewBuilder[VertexSmoke]("tendrils")
	b.Reserve(6, 12)
	pairs := make([]VertexSmoke, 6)
	b.Strip(pairs)
	buf := b.Finish()
	want := []uint32{0, 1, 3, 0, 3, 2, 2, 3, 5, 2, 5, 4}
	if len(buf.Indices) != len(want) {
		t.Fatalf("indices = %v", buf.Indices)
	}
	for i := range want {
		if buf.Indices[i] != want[i] {
			t.Fatalf("indices = %v, want %v", buf.Indices, want)
		}
	}
}

func TestBillboardFacesCamera(t *testing.T) {
	c := Billboard(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 10}, 1)
	for _, p := range c {
		if p[2] != 0 {
			t.Errorf("corner %v not in the plane facing the camera", p)
		}
		if l := p.Len(); l < 1.41 || l > 1.42 {
			t.Errorf("corner distance = %v, want sqrt(2)", l)
		}
	}
	// Looking straight down must not degenerate
	c = Billboard(mgl32.Vec3{}, mgl32.Vec3{0, 10, 0}, 1)
	if c[0] == c[2] {
		t.Error("degenerate billboard when viewed from above")
	}
}

func TestPackColorSaturates(t *testing.T) {
	got := PackColor(mgl32.Vec3{-1, 0.5, 3}, 1)
	if got != [4]uint8{0, 128, 255, 255} {
		t.Errorf("PackColor = %v", got)
	}
}

func TestSnapshotLayerLen(t *testing.T) {
	s := &Snapshot{Fuses: &Buffer[VertexSimple]{Indices: make([]uint32, 6)}}
	if s.LayerLen(LayerFuses) != 6 || s.LayerLen(LayerShadows) != 0 {
		t.Errorf("layer lengths wrong: fuses %d shadows %d", s.LayerLen(LayerFuses), s.LayerLen(LayerShadows))
	}
}
