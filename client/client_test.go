package client

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/asset"
	"github.com/pthm-cable/bgdynamics/components"
	"github.com/pthm-cable/bgdynamics/config"
	"github.com/pthm-cable/bgdynamics/dynamics"
	"github.com/pthm-cable/bgdynamics/snapshot"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeServer records commands without simulating anything.
type fakeServer struct {
	inFlight int
	err      error

	steps   []*dynamics.StepMessage
	prunes  int
	emits   []components.EmitEvent
	refs    map[components.TerrainID]*asset.MeshRef
	removed []uint64
	sink    dynamics.SnapshotSink
}

func newFake() *fakeServer {
	return &fakeServer{refs: make(map[components.TerrainID]*asset.MeshRef)}
}

func (f *fakeServer) AddTerrain(id components.TerrainID, ref *asset.MeshRef) error {
	if f.err != nil {
		return f.err
	}
	f.refs[id] = ref
	return nil
}

func (f *fakeServer) RemoveTerrain(id components.TerrainID) error {
	f.removed = append(f.removed, uint64(id))
	return f.err
}

func (f *fakeServer) Emit(ev components.EmitEvent) error {
	f.emits = append(f.emits, ev)
	return f.err
}

func (f *fakeServer) PushStep(msg *dynamics.StepMessage) error {
	if f.err != nil {
		return f.err
	}
	f.steps = append(f.steps, msg)
	return nil
}

func (f *fakeServer) Prune() error {
	f.prunes++
	return f.err
}

func (f *fakeServer) StepsInFlight() int { return f.inFlight }

func (f *fakeServer) AddShadow(components.ShadowID) error           { return f.err }
func (f *fakeServer) AddFuse(components.FuseID) error               { return f.err }
func (f *fakeServer) AddVolumeLight(components.VolumeLightID) error { return f.err }

func (f *fakeServer) RemoveShadow(id components.ShadowID) error {
	f.removed = append(f.removed, uint64(id))
	return f.err
}

func (f *fakeServer) RemoveFuse(id components.FuseID) error {
	f.removed = append(f.removed, uint64(id))
	return f.err
}

func (f *fakeServer) RemoveVolumeLight(id components.VolumeLightID) error {
	f.removed = append(f.removed, uint64(id))
	return f.err
}

func (f *fakeServer) Shadow(components.ShadowID) (components.ShadowWorker, bool) {
	return components.ShadowWorker{}, false
}

func (f *fakeServer) FusePoints(_ components.FuseID, dst []mgl32.Vec3) ([]mgl32.Vec3, bool) {
	return dst, false
}

func (f *fakeServer) SetSnapshotSink(fn dynamics.SnapshotSink) { f.sink = fn }

func newFakeClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()
	cfg := config.Default()
	cfg.Worker.SkipStepAbove = 1
	cfg.Worker.PruneAbove = 3
	f := newFake()
	return New(cfg, f, dynamics.NewMailbox(), discard), f
}

func TestStepBackpressure(t *testing.T) {
	tests := []struct {
		inFlight int
		want     StepResult
		prunes   int
	}{
		{0, StepSent, 0},
		{1, StepSent, 0},
		{2, StepSkipped, 0},
		{3, StepSkipped, 0},
		{4, StepPruned, 1},
		{10, StepPruned, 1},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			c, f := newFakeClient(t)
			f.inFlight = tt.inFlight

			got, err := c.Step(mgl32.Vec3{}, 16)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("in flight %d: got %v, want %v", tt.inFlight, got, tt.want)
			}
			if f.prunes != tt.prunes {
				t.Errorf("in flight %d: prunes = %d, want %d", tt.inFlight, f.prunes, tt.prunes)
			}
			if sent := len(f.steps) == 1; sent != (tt.want == StepSent) {
				t.Errorf("in flight %d: pushed %d steps", tt.inFlight, len(f.steps))
			}
		})
	}
}

func TestWithheldDeltaCarriesOver(t *testing.T) {
	c, f := newFakeClient(t)

	f.inFlight = 2
	c.Step(mgl32.Vec3{}, 16)
	f.inFlight = 5
	c.Step(mgl32.Vec3{}, 20)
	f.inFlight = 0
	c.SetQuality(components.QualityLow)
	cam := mgl32.Vec3{1, 2, 3}
	if res, _ := c.Step(cam, 10); res != StepSent {
		t.Fatalf("step not sent: %v", res)
	}

	msg := f.steps[0]
	if msg.DeltaMS != 46 {
		t.Errorf("delta = %v, want 46", msg.DeltaMS)
	}
	if msg.CameraPos != cam || msg.Quality != components.QualityLow || !msg.SetQuality {
		t.Errorf("message = %+v", msg)
	}

	c.Step(cam, 16)
	if f.steps[1].DeltaMS != 16 {
		t.Errorf("delta after send = %v, want 16", f.steps[1].DeltaMS)
	}
	if got := c.Totals(); got != (Totals{Sent: 2, Skipped: 1, Pruned: 1}) {
		t.Errorf("totals = %+v", got)
	}
}

func TestStepPushFailure(t *testing.T) {
	c, f := newFakeClient(t)
	f.err = dynamics.ErrServerStopped
	res, err := c.Step(mgl32.Vec3{}, 16)
	if !errors.Is(err, dynamics.ErrServerStopped) {
		t.Errorf("err = %v, want ErrServerStopped", err)
	}
	if res != StepSkipped {
		t.Errorf("result = %v, want skipped", res)
	}
	if got := c.Totals(); got != (Totals{Skipped: 1}) {
		t.Errorf("totals = %+v, want one skipped", got)
	}
}

func TestClosedProxiesSentOnce(t *testing.T) {
	c, f := newFakeClient(t)
	s, _ := c.NewShadow()
	fu, _ := c.NewFuse()
	l, _ := c.NewVolumeLight()
	s.Set(mgl32.Vec3{0, 3, 0}, 1)
	s.SetVisible(true)
	fu.SetLength(2)
	l.Set(mgl32.Vec3{}, 4, mgl32.Vec3{1, 0, 0}, 1)

	c.Step(mgl32.Vec3{}, 16)
	msg := f.steps[0]
	if len(msg.Shadows) != 1 || msg.Shadows[0].View == nil || msg.Shadows[0].View.Pos[1] != 3 {
		t.Fatalf("shadow sync = %+v", msg.Shadows)
	}
	if len(msg.Fuses) != 1 || msg.Fuses[0].View.Length != 1 {
		t.Errorf("fuse length not clamped: %+v", msg.Fuses)
	}
	if len(msg.Lights) != 1 || msg.Lights[0].View.Radius != 4 {
		t.Errorf("light sync = %+v", msg.Lights)
	}

	// The copy is detached from the proxy
	s.Set(mgl32.Vec3{0, 9, 0}, 1)
	if msg.Shadows[0].View.Pos[1] != 3 {
		t.Error("step message aliases proxy state")
	}

	for _, closer := range []interface{ Close() error }{s, fu, l} {
		if err := closer.Close(); err != nil {
			t.Fatal(err)
		}
		if err := closer.Close(); !errors.Is(err, ErrClosed) {
			t.Errorf("second close = %v, want ErrClosed", err)
		}
	}
	if len(f.removed) != 3 {
		t.Errorf("removes posted = %d, want 3", len(f.removed))
	}

	c.Step(mgl32.Vec3{}, 16)
	msg = f.steps[1]
	if len(msg.Shadows) != 1 || msg.Shadows[0].View != nil || msg.Shadows[0].ID != s.ID() {
		t.Errorf("dead shadow sync = %+v", msg.Shadows)
	}
	if len(msg.Fuses) != 1 || msg.Fuses[0].View != nil || len(msg.Lights) != 1 || msg.Lights[0].View != nil {
		t.Errorf("dead fuse/light sync = %+v %+v", msg.Fuses, msg.Lights)
	}

	c.Step(mgl32.Vec3{}, 16)
	msg = f.steps[2]
	if len(msg.Shadows)+len(msg.Fuses)+len(msg.Lights) != 0 {
		t.Errorf("dead proxies sent twice: %+v", msg)
	}
}

func TestEmitRejectsInvalid(t *testing.T) {
	c, f := newFakeClient(t)
	err := c.Emit(components.EmitEvent{Count: 0, Scale: 1})
	if !errors.Is(err, ErrInvalidEmit) {
		t.Errorf("err = %v, want ErrInvalidEmit", err)
	}
	if len(f.emits) != 0 {
		t.Error("invalid event was posted")
	}

	if err := c.EmitJSON([]byte(`{"position":[0,4,0],"kind":"tendrils","tendril":"ice","count":3}`)); err != nil {
		t.Fatal(err)
	}
	if len(f.emits) != 1 || f.emits[0].Tendril != components.TendrilIce || f.emits[0].Count != 3 {
		t.Errorf("emits = %+v", f.emits)
	}
}

func TestParseEmitJSON(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
		check   func(t *testing.T, ev components.EmitEvent)
	}{
		{"defaults", `{"position":[1,2,3],"kind":"chunks"}`, false, func(t *testing.T, ev components.EmitEvent) {
			if ev.Count != 1 || ev.Scale != 1 || ev.Category != components.ChunkRock || ev.Tendril != components.TendrilSmoke {
				t.Errorf("defaults not applied: %+v", ev)
			}
			if ev.Pos != (mgl32.Vec3{1, 2, 3}) {
				t.Errorf("pos = %v", ev.Pos)
			}
		}},
		{"full", `{"position":[0,0,0],"velocity":[0,5,0],"count":20,"scale":0.5,"spread":2,"category":"flag_stand","kind":"flag_stand","tendril":"thin_smoke"}`, false,
			func(t *testing.T, ev components.EmitEvent) {
				if ev.Count != 20 || ev.Scale != 0.5 || ev.Spread != 2 || ev.Vel[1] != 5 {
					t.Errorf("fields: %+v", ev)
				}
				if ev.Category != components.ChunkFlagStand || ev.Kind != components.EmitFlagStand || ev.Tendril != components.TendrilThinSmoke {
					t.Errorf("enums: %+v", ev)
				}
			}},
		{"missing kind", `{"position":[0,0,0]}`, true, nil},
		{"missing position", `{"kind":"chunks"}`, true, nil},
		{"short position", `{"position":[0,0],"kind":"chunks"}`, true, nil},
		{"zero count", `{"position":[0,0,0],"kind":"chunks","count":0}`, true, nil},
		{"huge count", `{"position":[0,0,0],"kind":"chunks","count":501}`, true, nil},
		{"fractional count", `{"position":[0,0,0],"kind":"chunks","count":1.5}`, true, nil},
		{"zero scale", `{"position":[0,0,0],"kind":"chunks","scale":0}`, true, nil},
		{"negative spread", `{"position":[0,0,0],"kind":"chunks","spread":-1}`, true, nil},
		{"unknown category", `{"position":[0,0,0],"kind":"chunks","category":"lava"}`, true, nil},
		{"unknown field", `{"position":[0,0,0],"kind":"chunks","colour":"red"}`, true, nil},
		{"not json", `{"position":`, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEmitJSON([]byte(tt.doc))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEmit) {
					t.Errorf("err = %v, want ErrInvalidEmit", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if err := ev.Validate(); err != nil {
				t.Errorf("parsed event invalid: %v", err)
			}
			tt.check(t, ev)
		})
	}
}

func TestAddTerrainFailureReleases(t *testing.T) {
	c, f := newFakeClient(t)
	f.err = dynamics.ErrServerStopped
	mesh := asset.NewGroundPlane("ground", 10, 0)
	if _, err := c.AddTerrain(mesh); !errors.Is(err, dynamics.ErrServerStopped) {
		t.Fatalf("err = %v", err)
	}
	if mesh.Refs() != 0 {
		t.Errorf("refs = %d, want 0", mesh.Refs())
	}
}

// newLive returns a client wired to a real server driven by RunPending.
func newLive(t *testing.T) (*Client, *dynamics.Server) {
	t.Helper()
	cfg := config.Default()
	srv, err := dynamics.New(dynamics.Options{
		Config:  cfg,
		OnFatal: func(err error) { t.Errorf("fatal: %v", err) },
		Logger:  discard,
		Seed:    1,
	})
	if err != nil {
		t.Fatal(err)
	}
	return New(cfg, srv, srv.ClientQueue(), discard), srv
}

func TestTerrainLifecycle(t *testing.T) {
	c, srv := newLive(t)
	mesh := asset.NewGroundPlane("ground", 40, 0)

	terr, err := c.AddTerrain(mesh)
	if err != nil {
		t.Fatal(err)
	}
	srv.RunPending()
	c.Pump()
	if got := srv.Counts().Terrains; got != 1 || mesh.Refs() != 1 {
		t.Fatalf("terrains = %d, refs = %d", got, mesh.Refs())
	}

	if err := terr.Remove(); err != nil {
		t.Fatal(err)
	}
	if err := terr.Remove(); !errors.Is(err, ErrTerrainRemoved) {
		t.Errorf("second remove = %v, want ErrTerrainRemoved", err)
	}
	srv.RunPending()
	if mesh.Refs() != 1 {
		t.Errorf("reference released before Pump")
	}
	if n := c.Pump(); n == 0 || mesh.Refs() != 0 {
		t.Errorf("pump ran %d, refs = %d", n, mesh.Refs())
	}
}

type fakeMesh struct {
	layer   snapshot.Layer
	uploads int
	indices int
}

func (m *fakeMesh) UploadSprites(b *snapshot.Buffer[snapshot.VertexSprite]) {
	m.uploads++
	m.indices = b.Len()
}

func (m *fakeMesh) UploadSmoke(b *snapshot.Buffer[snapshot.VertexSmoke]) {
	m.uploads++
	m.indices = b.Len()
}

func (m *fakeMesh) UploadSimple(b *snapshot.Buffer[snapshot.VertexSimple]) {
	m.uploads++
	m.indices = b.Len()
}

type fakeFrame struct {
	meshes    []*fakeMesh
	draws     int
	instanced map[Shape]int
}

func (f *fakeFrame) NewMesh(l snapshot.Layer) Mesh {
	m := &fakeMesh{layer: l}
	f.meshes = append(f.meshes, m)
	return m
}

func (f *fakeFrame) DrawMesh(Mesh, Shading) { f.draws++ }

func (f *fakeFrame) DrawInstanced(shape Shape, transforms []mgl32.Mat4, _ Shading) {
	if f.instanced == nil {
		f.instanced = make(map[Shape]int)
	}
	f.instanced[shape] += len(transforms)
}

func (f *fakeFrame) uploads() int {
	n := 0
	for _, m := range f.meshes {
		n += m.uploads
	}
	return n
}

func TestDrawReusesMeshes(t *testing.T) {
	c, srv := newLive(t)
	frame := &fakeFrame{}
	c.Draw(frame)
	if frame.draws != 0 {
		t.Fatal("drew without a snapshot")
	}

	if _, err := c.AddTerrain(asset.NewGroundPlane("ground", 40, 0)); err != nil {
		t.Fatal(err)
	}
	err := c.EmitJSON([]byte(`{"position":[0,3,0],"velocity":[0,2,0],"kind":"chunks","category":"spark","count":8}`))
	if err != nil {
		t.Fatal(err)
	}
	cam := mgl32.Vec3{0, 5, 10}
	c.Step(cam, 16)
	srv.RunPending()
	c.Pump()

	snap := c.Snapshot()
	if snap == nil || snap.LayerLen(snapshot.LayerLights) == 0 || len(snap.Chunks[components.ChunkSpark]) == 0 {
		t.Fatalf("snapshot missing spark chunks: %+v", snap)
	}

	layers := 0
	for l := range snapshot.NumLayers {
		if snap.LayerLen(l) > 0 {
			layers++
		}
	}
	c.Draw(frame)
	if frame.draws != layers || len(frame.meshes) != layers || frame.uploads() != layers {
		t.Fatalf("draws %d meshes %d uploads %d, want %d", frame.draws, len(frame.meshes), frame.uploads(), layers)
	}
	if frame.instanced[c.shapes[components.ChunkSpark]] != len(snap.Chunks[components.ChunkSpark]) {
		t.Errorf("instanced = %v", frame.instanced)
	}

	// Same snapshot: no new meshes or uploads
	c.Draw(frame)
	if len(frame.meshes) != layers || frame.uploads() != layers {
		t.Errorf("redraw re-uploaded: meshes %d uploads %d", len(frame.meshes), frame.uploads())
	}

	c.Step(cam, 16)
	srv.RunPending()
	c.Pump()
	if c.Snapshot() == snap {
		t.Fatal("snapshot not replaced")
	}
	before := frame.uploads()
	c.Draw(frame)
	if frame.uploads() == before {
		t.Error("new snapshot not uploaded")
	}
}

func TestFuseProxyLive(t *testing.T) {
	c, srv := newLive(t)
	fu, err := c.NewFuse()
	if err != nil {
		t.Fatal(err)
	}
	fu.SetBurning(true)
	if _, ok := fu.Points(nil); ok {
		t.Error("fuse visible before the worker registered it")
	}

	c.Step(mgl32.Vec3{0, 0, 5}, 50)
	srv.RunPending()
	c.Pump()

	points, ok := fu.Points(nil)
	if !ok || len(points) != c.cfg.Fuses.Points {
		t.Fatalf("points = %d, ok %v", len(points), ok)
	}

	fu.Close()
	c.Step(mgl32.Vec3{0, 0, 5}, 16)
	srv.RunPending()
	c.Pump()
	if err := srv.VerifyCounts(); err != nil {
		t.Error(err)
	}
	if _, ok := fu.Points(nil); ok {
		t.Error("closed fuse still reports points")
	}
}
