package dynamics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/bgdynamics/asset"
	"github.com/pthm-cable/bgdynamics/components"
	"github.com/pthm-cable/bgdynamics/config"
	"github.com/pthm-cable/bgdynamics/snapshot"
)

type harness struct {
	s     *Server
	errs  []error
	snaps []*snapshot.Snapshot
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	s, err := New(Options{
		Config:  config.Default(),
		OnFatal: func(err error) { h.errs = append(h.errs, err) },
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Seed:    1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.SetSnapshotSink(func(snap *snapshot.Snapshot) { h.snaps = append(h.snaps, snap) })
	h.s = s
	return h
}

// run drains the worker and then the client queue.
func (h *harness) run(t *testing.T) {
	t.Helper()
	h.s.RunPending()
	h.s.ClientQueue().Drain()
	if err := h.s.VerifyCounts(); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) step(t *testing.T, msg *StepMessage) *snapshot.Snapshot {
	t.Helper()
	if msg.DeltaMS == 0 {
		msg.DeltaMS = 16
	}
	if err := h.s.PushStep(msg); err != nil {
		t.Fatalf("PushStep: %v", err)
	}
	before := len(h.snaps)
	h.run(t)
	if len(h.snaps) != before+1 {
		t.Fatalf("expected one snapshot, got %d", len(h.snaps)-before)
	}
	return h.snaps[len(h.snaps)-1]
}

func rockEvent(count int) components.EmitEvent {
	return components.EmitEvent{
		Pos:      mgl32.Vec3{0, 5, 0},
		Vel:      mgl32.Vec3{0, -1, 0},
		Count:    count,
		Scale:    1,
		Spread:   0.5,
		Category: components.ChunkRock,
		Kind:     components.EmitChunks,
	}
}

func checkExact[V any](t *testing.T, name string, b *snapshot.Buffer[V]) {
	t.Helper()
	if b == nil {
		return
	}
	if len(b.Indices) == 0 || len(b.Vertices) == 0 {
		t.Errorf("%s: empty buffer should be nil", name)
	}
	if len(b.Indices) != cap(b.Indices) || len(b.Vertices) != cap(b.Vertices) {
		t.Errorf("%s: buffer not exactly sized", name)
	}
}

func TestMailboxOrder(t *testing.T) {
	m := NewMailbox()
	var got []int
	for i := 0; i < 3; i++ {
		m.Post(func() { got = append(got, i) })
	}
	m.Post(func() {
		// Posted while draining: runs on the next Drain
		m.Post(func() { got = append(got, 99) })
	})

	if n := m.Drain(); n != 4 {
		t.Errorf("first drain ran %d, want 4", n)
	}
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Fatalf("got %v, want [0 1 2]", got)
	}
	if n := m.Drain(); n != 1 || got[3] != 99 {
		t.Errorf("second drain ran %d, got %v", n, got)
	}

	m.Close()
	if m.Post(func() {}) {
		t.Error("post after close succeeded")
	}
}

func TestTerrainAddRemoveClearsWorld(t *testing.T) {
	h := newHarness(t)
	mesh := asset.NewGroundPlane("ground", 40, 0)

	if err := h.s.AddTerrain(1, mesh.Acquire()); err != nil {
		t.Fatal(err)
	}
	h.s.Emit(rockEvent(10))
	h.s.Emit(components.EmitEvent{Pos: mgl32.Vec3{0, 1, 0}, Count: 1, Scale: 1, Kind: components.EmitDistortion})
	h.run(t)

	c := h.s.Counts()
	if c.Terrains != 1 || c.Chunks == 0 || c.Fields != 1 {
		t.Fatalf("after add+emit: %+v", c)
	}
	if h.s.cache.GeomCount() != 1 {
		t.Errorf("cache geoms = %d, want 1", h.s.cache.GeomCount())
	}

	h.s.RemoveTerrain(1)
	h.s.RunPending()
	c = h.s.Counts()
	if c.Terrains != 0 || c.Chunks != 0 || c.Tendrils() != 0 || c.Fields != 0 || c.Bodies != 0 {
		t.Errorf("after remove: %+v", c)
	}
	if h.s.cache.GeomCount() != 0 {
		t.Errorf("cache not rebuilt empty: %d geoms", h.s.cache.GeomCount())
	}
	if _, total := h.s.cache.Stats(); total != 0 {
		t.Errorf("cache grid has %d corners with no geometry", total)
	}

	// The reference is released on the client queue, not by the worker
	if mesh.Refs() != 1 {
		t.Errorf("refs before client drain = %d, want 1", mesh.Refs())
	}
	h.s.ClientQueue().Drain()
	if mesh.Refs() != 0 {
		t.Errorf("refs after client drain = %d, want 0", mesh.Refs())
	}
	if len(h.errs) != 0 {
		t.Errorf("unexpected fatal errors: %v", h.errs)
	}
}

func TestRemoveUnknownTerrainIsFatal(t *testing.T) {
	h := newHarness(t)
	mesh := asset.NewGroundPlane("ground", 10, 0)
	h.s.AddTerrain(7, mesh.Acquire())
	h.s.RemoveTerrain(7)
	h.s.RemoveTerrain(7)
	h.run(t)

	if len(h.errs) != 1 || !errors.Is(h.errs[0], ErrUnknownTerrain) {
		t.Fatalf("errs = %v, want one ErrUnknownTerrain", h.errs)
	}
}

func TestDuplicateTerrainReleasesReference(t *testing.T) {
	h := newHarness(t)
	mesh := asset.NewGroundPlane("ground", 10, 0)
	h.s.AddTerrain(1, mesh.Acquire())
	h.s.AddTerrain(1, mesh.Acquire())
	h.run(t)

	if len(h.errs) != 1 || !errors.Is(h.errs[0], ErrDuplicate) {
		t.Fatalf("errs = %v, want one ErrDuplicate", h.errs)
	}
	if mesh.Refs() != 1 {
		t.Errorf("refs = %d, want 1 (duplicate released)", mesh.Refs())
	}
}

func TestStepsInFlight(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 3; i++ {
		h.s.PushStep(&StepMessage{DeltaMS: 16})
		pushed, completed := h.s.StepTotals()
		if got := h.s.StepsInFlight(); got != i+1 || int(pushed-completed) != got {
			t.Fatalf("in flight = %d, pushed-completed = %d, want %d", got, pushed-completed, i+1)
		}
	}
	h.run(t)

	pushed, completed := h.s.StepTotals()
	if h.s.StepsInFlight() != 0 || pushed != 3 || completed != 3 {
		t.Errorf("after drain: in flight %d, pushed %d, completed %d", h.s.StepsInFlight(), pushed, completed)
	}
	if len(h.snaps) != 3 {
		t.Errorf("snapshots = %d, want 3", len(h.snaps))
	}
	if h.snaps[2].Step != 2 || h.snaps[2].TimeMS != 32 {
		t.Errorf("third snapshot step %d time %v", h.snaps[2].Step, h.snaps[2].TimeMS)
	}
}

func TestRockEmitScenario(t *testing.T) {
	h := newHarness(t)
	h.s.Emit(rockEvent(10))
	h.run(t)

	c := h.s.Counts()
	if c.Chunks == 0 || c.Chunks > 10 {
		t.Fatalf("chunks = %d, want 1..10", c.Chunks)
	}

	rock := h.s.cfg.Chunks.Categories["rock"]
	query := h.s.chunkFilter.Query()
	for query.Next() {
		ch := query.Get()
		if ch.Category != components.ChunkRock || !ch.Dynamic {
			t.Errorf("unexpected chunk %s dynamic=%v", ch.Category, ch.Dynamic)
		}
		if ch.LifespanMS != 10000 {
			t.Errorf("lifespan = %v, want 10000", ch.LifespanMS)
		}
		for i, v := range ch.Size {
			if v < float32(rock.SizeMin) || v > float32(rock.SizeMax) {
				t.Errorf("size[%d] = %v outside [%v, %v]", i, v, rock.SizeMin, rock.SizeMax)
			}
		}
	}
	if rock.SizeMin != 0.1 || rock.SizeMax != 0.25 {
		t.Errorf("rock size range = [%v, %v], want [0.1, 0.25]", rock.SizeMin, rock.SizeMax)
	}
	if c.Bodies != c.Chunks {
		t.Errorf("bodies = %d for %d dynamic chunks", c.Bodies, c.Chunks)
	}

	snap := h.step(t, &StepMessage{CameraPos: mgl32.Vec3{0, 5, 10}})
	if got := len(snap.Chunks[components.ChunkRock]); got != c.Chunks {
		t.Errorf("rock transforms = %d, want %d", got, c.Chunks)
	}
	if snap.ChunkCount() != c.Chunks {
		t.Errorf("chunk transforms = %d, want %d", snap.ChunkCount(), c.Chunks)
	}
	for cat := components.ChunkCategory(0); cat < components.NumChunkCategories; cat++ {
		if cat != components.ChunkRock && snap.Chunks[cat] != nil {
			t.Errorf("unexpected %s transforms", cat)
		}
	}
}

func TestSnapshotBuffersExactlySized(t *testing.T) {
	h := newHarness(t)
	h.s.AddTerrain(1, asset.NewGroundPlane("ground", 40, 0).Acquire())
	h.s.Emit(components.EmitEvent{Pos: mgl32.Vec3{0, 1, 0}, Vel: mgl32.Vec3{1, 2, 0}, Count: 20, Scale: 1, Spread: 0.3, Category: components.ChunkSpark, Kind: components.EmitChunks})
	h.s.Emit(components.EmitEvent{Pos: mgl32.Vec3{0, 1, 0}, Vel: mgl32.Vec3{0, 4, 0}, Count: 3, Scale: 1, Spread: 0.2, Kind: components.EmitTendrils, Tendril: components.TendrilSmoke})
	h.s.Emit(components.EmitEvent{Pos: mgl32.Vec3{0, 2, 0}, Count: 30, Scale: 1, Spread: 0.5, Kind: components.EmitFairyDust})
	h.run(t)

	var snap *snapshot.Snapshot
	for i := 0; i < 10; i++ {
		snap = h.step(t, &StepMessage{CameraPos: mgl32.Vec3{0, 4, 8}, DeltaMS: 30})
	}
	checkExact(t, "shadows", snap.Shadows)
	checkExact(t, "lights", snap.Lights)
	checkExact(t, "sparks", snap.Sparks)
	checkExact(t, "tendrils", snap.Tendrils)
	checkExact(t, "fuses", snap.Fuses)

	if snap.Sparks == nil {
		t.Error("expected fairy dust sprites")
	}
	if snap.Tendrils == nil {
		t.Error("expected tendril ribbons")
	}
	if snap.Fuses != nil {
		t.Error("fuse layer should be nil with no fuses")
	}
	if c := h.s.Counts(); snap.ChunkCount() != c.Chunks {
		t.Errorf("transforms %d, chunks %d", snap.ChunkCount(), c.Chunks)
	}
}

func TestShadowLifecycle(t *testing.T) {
	h := newHarness(t)
	h.s.AddTerrain(1, asset.NewGroundPlane("ground", 40, 0).Acquire())
	h.s.AddShadow(5)
	h.run(t)

	view := &components.ShadowClient{Pos: mgl32.Vec3{0, 2, 0}, Size: 1, Visible: true}
	snap := h.step(t, &StepMessage{Shadows: []ShadowSync{{ID: 5, View: view}}})

	w, ok := h.s.Shadow(5)
	if !ok {
		t.Fatal("shadow 5 not registered")
	}
	if w.Density <= 0 || w.Density >= 1 || abs32(w.GroundPos[1]) > 1e-3 {
		t.Errorf("shadow result %+v", w)
	}
	if snap.Shadows.Len() != 6 {
		t.Errorf("shadow layer indices = %d, want 6", snap.Shadows.Len())
	}

	h.s.RemoveShadow(5)
	h.run(t)
	if _, ok := h.s.Shadow(5); ok {
		t.Error("shadow 5 still registered after remove")
	}

	// A closed shadow rides along as nil and is ignored
	h.step(t, &StepMessage{Shadows: []ShadowSync{{ID: 5}}})
	if len(h.errs) != 0 {
		t.Fatalf("unexpected errors: %v", h.errs)
	}

	// A live view for an unknown shadow is a desync
	h.step(t, &StepMessage{Shadows: []ShadowSync{{ID: 6, View: view}}})
	if len(h.errs) != 1 || !errors.Is(h.errs[0], ErrUnknownShadow) {
		t.Errorf("errs = %v, want ErrUnknownShadow", h.errs)
	}

	h.s.RemoveShadow(5)
	h.run(t)
	if len(h.errs) != 2 || !errors.Is(h.errs[1], ErrUnknownShadow) {
		t.Errorf("double remove: errs = %v", h.errs)
	}
}

func TestFuseStep(t *testing.T) {
	h := newHarness(t)
	h.s.AddFuse(3)
	h.run(t)

	view := &components.FuseClient{Transform: mgl32.Ident4(), Length: 1, Burning: true}
	snap := h.step(t, &StepMessage{CameraPos: mgl32.Vec3{0, 0, 5}, DeltaMS: 100, Fuses: []FuseSync{{ID: 3, View: view}}})

	points, ok := h.s.FusePoints(3, nil)
	n := h.s.cfg.Fuses.Points
	if !ok || len(points) != n {
		t.Fatalf("fuse points = %d, want %d", len(points), n)
	}
	if points[n-1][1] <= points[0][1] {
		t.Errorf("fuse should extend along +Y: base %v tip %v", points[0], points[n-1])
	}
	if snap.Fuses.Len() != 6*(n-1) {
		t.Errorf("fuse indices = %d, want %d", snap.Fuses.Len(), 6*(n-1))
	}
	if snap.Sparks == nil {
		t.Error("burning fuse emitted no sparks")
	}

	h.s.RemoveFuse(3)
	h.run(t)
	if _, ok := h.s.FusePoints(3, nil); ok {
		t.Error("fuse still registered")
	}
}

func TestVolumeLightGlow(t *testing.T) {
	h := newHarness(t)
	h.s.AddVolumeLight(2)
	h.run(t)
	if h.s.VolumeLightCount() != 1 {
		t.Fatalf("lights = %d", h.s.VolumeLightCount())
	}

	view := &components.VolumeLightClient{Pos: mgl32.Vec3{0, 1, 0}, Radius: 4, Color: mgl32.Vec3{1, 0.5, 0}, Intensity: 1}
	snap := h.step(t, &StepMessage{Lights: []LightSync{{ID: 2, View: view}}})
	if snap.Lights.Len() != 6 {
		t.Errorf("light layer indices = %d, want 6", snap.Lights.Len())
	}

	h.s.RemoveVolumeLight(2)
	h.s.RemoveVolumeLight(2)
	h.run(t)
	if len(h.errs) != 1 || !errors.Is(h.errs[0], ErrUnknownVolumeLight) {
		t.Errorf("errs = %v", h.errs)
	}
}

func TestPruneSkipsFlagStands(t *testing.T) {
	h := newHarness(t)
	h.s.Emit(rockEvent(10))
	h.s.Emit(components.EmitEvent{Pos: mgl32.Vec3{2, 5, 0}, Count: 1, Scale: 1, Kind: components.EmitFlagStand})
	h.run(t)
	before := h.s.Counts().Chunks
	if before != 11 {
		t.Fatalf("chunks = %d, want 11", before)
	}

	h.s.Prune()
	h.run(t)
	c := h.s.Counts()
	if c.Chunks != before-1 || c.Pruned != 1 {
		t.Errorf("after prune: chunks %d pruned %d", c.Chunks, c.Pruned)
	}

	// Pruning repeatedly never removes the flag stand
	for i := 0; i < 20; i++ {
		h.s.Prune()
	}
	h.run(t)
	flags := 0
	for _, e := range h.s.chunks.All() {
		if h.s.chunks.Category(e) == components.ChunkFlagStand {
			flags++
		}
	}
	if flags != 1 {
		t.Errorf("flag stands = %d, want 1", flags)
	}
}

func TestClear(t *testing.T) {
	h := newHarness(t)
	h.s.Emit(rockEvent(5))
	h.s.Emit(components.EmitEvent{Pos: mgl32.Vec3{0, 1, 0}, Vel: mgl32.Vec3{0, 1, 0}, Count: 2, Scale: 1, Kind: components.EmitTendrils, Tendril: components.TendrilIce})
	h.run(t)
	if h.s.Counts().Tendrils() == 0 {
		t.Fatal("no tendrils emitted")
	}

	h.s.Clear()
	h.run(t)
	if c := h.s.Counts(); c.Chunks != 0 || c.Tendrils() != 0 || c.Particles != 0 {
		t.Errorf("after clear: %+v", c)
	}
}

func TestStartStop(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.s.Start(ctx)

	h.s.Emit(rockEvent(4))
	h.s.PushStep(&StepMessage{DeltaMS: 16})

	deadline := time.Now().Add(5 * time.Second)
	for (len(h.snaps) == 0 || h.s.StepsInFlight() != 0) && time.Now().Before(deadline) {
		h.s.ClientQueue().Drain()
		time.Sleep(time.Millisecond)
	}
	if len(h.snaps) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(h.snaps))
	}
	if h.s.StepsInFlight() != 0 {
		t.Errorf("in flight = %d after step completed", h.s.StepsInFlight())
	}

	h.s.Stop()
	if err := h.s.Emit(rockEvent(1)); !errors.Is(err, ErrServerStopped) {
		t.Errorf("emit after stop: %v", err)
	}
	if err := h.s.PushStep(&StepMessage{}); !errors.Is(err, ErrServerStopped) {
		t.Errorf("step after stop: %v", err)
	}
	if h.s.StepsInFlight() != 0 {
		t.Errorf("rejected step left %d in flight", h.s.StepsInFlight())
	}
	h.s.Stop()
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func TestStopRunsQueuedCommands(t *testing.T) {
	h := newHarness(t)
	mesh := asset.NewGroundPlane("ground", 10, 0)
	h.s.AddTerrain(1, mesh.Acquire())
	h.s.Start(context.Background())
	h.s.RemoveTerrain(1)
	h.s.Stop()

	h.s.ClientQueue().Drain()
	if mesh.Refs() != 0 {
		t.Errorf("refs after stop = %d, want 0", mesh.Refs())
	}
	if len(h.errs) != 0 {
		t.Errorf("unexpected fatal errors: %v", h.errs)
	}
}

func TestStopWithoutStartCompletesSteps(t *testing.T) {
	h := newHarness(t)
	mesh := asset.NewGroundPlane("ground", 10, 0)
	h.s.AddTerrain(1, mesh.Acquire())
	for range 3 {
		if err := h.s.PushStep(&StepMessage{DeltaMS: 16}); err != nil {
			t.Fatal(err)
		}
	}
	h.s.RemoveTerrain(1)
	if got := h.s.StepsInFlight(); got != 3 {
		t.Fatalf("in flight before stop = %d, want 3", got)
	}

	h.s.Stop()
	h.s.ClientQueue().Drain()
	if got := h.s.StepsInFlight(); got != 0 {
		t.Errorf("in flight after stop = %d, want 0", got)
	}
	if pushed, completed := h.s.StepTotals(); pushed != 3 || completed != 3 {
		t.Errorf("pushed %d completed %d, want 3 and 3", pushed, completed)
	}
	if mesh.Refs() != 0 {
		t.Errorf("refs after stop = %d, want 0", mesh.Refs())
	}
	if err := h.s.PushStep(&StepMessage{}); !errors.Is(err, ErrServerStopped) {
		t.Errorf("push after stop: %v, want ErrServerStopped", err)
	}
	if got := h.s.StepsInFlight(); got != 0 {
		t.Errorf("rejected step left %d in flight", got)
	}
}

func TestStepQualityUnsetKeepsTier(t *testing.T) {
	h := newHarness(t)
	if h.s.tier != components.QualityHigh {
		t.Fatalf("initial tier = %v, want high", h.s.tier)
	}

	// Zero-value quality without SetQuality must not drop to low
	h.step(t, &StepMessage{})
	if h.s.tier != components.QualityHigh {
		t.Errorf("tier after unset quality = %v, want high", h.s.tier)
	}
	smoke := components.EmitEvent{Pos: mgl32.Vec3{0, 1, 0}, Count: 5, Scale: 1, Kind: components.EmitTendrils, Tendril: components.TendrilSmoke}
	h.s.Emit(smoke)
	h.run(t)
	if got := h.s.Counts().ThickTendrils; got != 5 {
		t.Errorf("tendrils at high = %d, want 5", got)
	}

	h.step(t, &StepMessage{Quality: components.QualityLow, SetQuality: true})
	if h.s.tier != components.QualityLow {
		t.Errorf("tier = %v, want low", h.s.tier)
	}
	before := h.s.Counts().ThickTendrils
	h.s.Emit(smoke)
	h.run(t)
	if got := h.s.Counts().ThickTendrils; got != before {
		t.Errorf("low tier emitted %d tendrils", got-before)
	}
}

func TestPanickingFatalReleasesLocks(t *testing.T) {
	h := newHarness(t)
	h.s.onFatal = func(err error) { panic(err) }

	msg := &StepMessage{
		DeltaMS: 16,
		Shadows: []ShadowSync{{ID: 41, View: &components.ShadowClient{}}},
		Fuses:   []FuseSync{{ID: 42, View: &components.FuseClient{}}},
		Lights:  []LightSync{{ID: 43, View: &components.VolumeLightClient{}}},
	}
	h.s.beginStep()
	func() {
		defer func() {
			r := recover()
			err, _ := r.(error)
			if !errors.Is(err, ErrUnknownShadow) {
				t.Errorf("recovered %v, want ErrUnknownShadow", r)
			}
		}()
		h.s.step(msg)
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.s.Shadow(41)
		h.s.FusePoints(42, nil)
		h.s.VolumeLightCount()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shared lists still locked after a panicking fatal handler")
	}
	if got := h.s.StepsInFlight(); got != 0 {
		t.Errorf("in flight = %d, want 0", got)
	}
}
