// Package dynamics runs the background effects simulation on its own worker
// goroutine.
//
// Everything the worker owns (the entity world, the physics world, the height
// cache and the particle set) is touched only by closures drained from the
// server's inbox. The client talks to the worker by posting commands and
// receives snapshots and released assets through its own Mailbox. Shadows,
// fuses and volume lights are the exception: their worker views live in maps
// the client may read under a short lock.
package dynamics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mlange-42/ark/ecs"
	"github.com/sasha-s/go-deadlock"

	"github.com/pthm-cable/bgdynamics/asset"
	"github.com/pthm-cable/bgdynamics/components"
	"github.com/pthm-cable/bgdynamics/config"
	"github.com/pthm-cable/bgdynamics/heightcache"
	"github.com/pthm-cable/bgdynamics/physics"
	"github.com/pthm-cable/bgdynamics/snapshot"
	"github.com/pthm-cable/bgdynamics/systems"
	"github.com/pthm-cable/bgdynamics/telemetry"
)

// Perf stats are published to other goroutines every this many steps.
const perfPublishEvery = 10

// Options configures a Server.
type Options struct {
	Config *config.Config

	// Cache is the height cache. Nil creates one from Config.
	Cache *heightcache.Cache

	// ClientQueue receives snapshots and released assets for the client
	// goroutine. Nil creates one; fetch it with Server.ClientQueue.
	ClientQueue *Mailbox

	// OnFatal is called on the worker for desync errors. The default logs
	// and panics.
	OnFatal func(error)

	Logger *slog.Logger

	// Seed for the effect randomness; zero seeds from the clock.
	Seed int64
}

// SnapshotSink receives each built snapshot on the client goroutine.
type SnapshotSink func(*snapshot.Snapshot)

type terrain struct {
	id   components.TerrainID
	ref  *asset.MeshRef
	mesh *physics.TriMesh
}

// Server owns the worker goroutine and all simulation state.
type Server struct {
	cfg     *config.Config
	log     *slog.Logger
	onFatal func(error)

	inbox  *Mailbox
	client *Mailbox
	sink   atomic.Pointer[SnapshotSink]

	// Worker-owned
	world     *ecs.World
	phys      *physics.World
	cache     *heightcache.Cache
	rng       *rand.Rand
	parts     *systems.ParticleSet
	fields    *systems.FieldSystem
	chunks    *systems.ChunkSystem
	tendrils  *systems.TendrilSystem
	fuseSys   *systems.FuseSystem
	shadowSys *systems.ShadowSystem
	emitter   *systems.Emitter
	perf      *telemetry.PerfCollector

	chunkFilter   *ecs.Filter1[components.Chunk]
	tendrilFilter *ecs.Filter1[components.Tendril]

	terrains []*terrain
	pop      systems.Population
	pruned   int
	clockMS  float64
	camPos   mgl32.Vec3
	tier     components.QualityTier
	steps    uint64

	shadowList []*components.ShadowWorker
	fuseList   []*components.FuseWorker
	lightList  []components.VolumeLightWorker
	dead       []ecs.Entity
	build      builders

	// Shared with the client. Only the worker writes these maps and the
	// views they hold, always under the lock, so the worker reads them
	// without locking.
	shadowMu deadlock.Mutex
	shadows  map[components.ShadowID]*components.ShadowWorker
	fuseMu   deadlock.Mutex
	fuses    map[components.FuseID]*components.FuseWorker
	lightMu  deadlock.Mutex
	lights   map[components.VolumeLightID]*components.VolumeLightWorker

	stepMu    deadlock.Mutex
	inFlight  int
	pushed    uint64
	completed uint64

	stats     atomic.Pointer[telemetry.PopulationStats]
	perfStats atomic.Pointer[telemetry.PerfStats]

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
	started   atomic.Bool
}

// New creates a server. Call Start to run it on its own goroutine, or
// RunPending to drive it from the calling goroutine.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("dynamics: nil config")
	}
	cfg := opts.Config

	s := &Server{
		cfg:     cfg,
		log:     opts.Logger,
		onFatal: opts.OnFatal,
		inbox:   NewMailbox(),
		client:  opts.ClientQueue,
		cache:   opts.Cache,
		tier:    components.QualityHigh,
		shadows: make(map[components.ShadowID]*components.ShadowWorker),
		fuses:   make(map[components.FuseID]*components.FuseWorker),
		lights:  make(map[components.VolumeLightID]*components.VolumeLightWorker),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.onFatal == nil {
		s.onFatal = func(err error) { panic(err) }
	}
	if s.client == nil {
		s.client = NewMailbox()
	}
	if s.cache == nil {
		s.cache = heightcache.New(heightcache.Params{
			CellSize:       float32(cfg.Cache.CellSize),
			MaxCells:       cfg.Cache.MaxCells,
			NoGroundHeight: cfg.Derived.NoGround32,
			PrecalcBudget:  cfg.Worker.PrecalcBudget,
		})
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s.rng = rand.New(rand.NewSource(seed))

	s.world = ecs.NewWorld()
	s.phys = physics.NewWorld(mgl32.Vec3{0, cfg.Derived.Gravity32, 0}, cfg.Physics.SolverIterations, float32(cfg.Physics.ContactSlop))
	s.parts = systems.NewParticleSet(cfg.Particles.MaxParticles, float32(cfg.Particles.Gravity), float32(cfg.Particles.Drag), float32(cfg.Particles.LifeDecay))
	s.fields = systems.NewFieldSystem(s.world)
	s.chunks = systems.NewChunkSystem(s.world, cfg, s.phys, s.cache)
	s.tendrils = systems.NewTendrilSystem(s.world, cfg, s.cache)
	s.fuseSys = systems.NewFuseSystem(cfg, s.rng)
	s.shadowSys = systems.NewShadowSystem(cfg, s.cache)
	s.emitter = systems.NewEmitter(s.world, cfg, s.rng, s.cache, s.phys, s.parts, s.tendrils)
	s.perf = telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow, time.Duration(cfg.Telemetry.StepBudgetMS*float64(time.Millisecond)))
	s.chunkFilter = ecs.NewFilter1[components.Chunk](s.world)
	s.tendrilFilter = ecs.NewFilter1[components.Tendril](s.world)
	s.build = newBuilders()

	s.publish()
	return s, nil
}

// ClientQueue returns the mailbox the client must drain on its own goroutine.
func (s *Server) ClientQueue() *Mailbox {
	return s.client
}

// SetSnapshotSink installs the function that receives snapshots on the
// client goroutine. Nil drops snapshots.
func (s *Server) SetSnapshotSink(fn SnapshotSink) {
	if fn == nil {
		s.sink.Store(nil)
		return
	}
	s.sink.Store(&fn)
}

// Start runs the worker goroutine until ctx is done or Stop is called.
func (s *Server) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.run(ctx)
	})
}

func (s *Server) run(ctx context.Context) {
	defer close(s.done)
	s.log.Info("bgdynamics worker started")

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case <-s.stop:
			s.shutdown()
			return
		case <-s.inbox.Ready():
			s.inbox.Drain()
		}
	}
}

// shutdown rejects new commands and runs the ones already queued, so a
// terrain removed just before Stop still hands its mesh back.
func (s *Server) shutdown() {
	s.inbox.Close()
	for s.inbox.Drain() > 0 {
	}
	s.log.Info("bgdynamics worker stopped", "steps", s.steps, "population", s.Counts())
}

// Stop ends the worker goroutine and waits for it. Commands posted afterwards
// fail with ErrServerStopped. A server that was never started runs its queued
// commands on the caller, so pushed steps still complete.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if !s.started.Load() {
			s.shutdown()
			return
		}
		close(s.stop)
	})
	if s.started.Load() {
		<-s.done
	}
}

// RunPending drains the inbox on the calling goroutine until it is empty and
// returns the number of commands run. It must not be used with Start.
func (s *Server) RunPending() int {
	n := 0
	for {
		ran := s.inbox.Drain()
		if ran == 0 {
			return n
		}
		n += ran
	}
}

func (s *Server) post(fn func()) error {
	if !s.inbox.Post(fn) {
		return ErrServerStopped
	}
	return nil
}

// toClient runs fn on the client goroutine. With the client queue gone it
// runs fn here so assets are not leaked.
func (s *Server) toClient(fn func()) {
	if !s.client.Post(fn) {
		fn()
	}
}

func (s *Server) fatal(err error) {
	s.log.Error("bgdynamics desync", "err", err)
	s.onFatal(err)
}

// AddTerrain hands a strong mesh reference to the worker, which builds a
// collision shape from it. The reference comes back to the client queue for
// release when the terrain is removed.
func (s *Server) AddTerrain(id components.TerrainID, ref *asset.MeshRef) error {
	return s.post(func() { s.addTerrain(id, ref) })
}

// RemoveTerrain removes a terrain and clears every chunk, tendril and field.
func (s *Server) RemoveTerrain(id components.TerrainID) error {
	return s.post(func() { s.removeTerrain(id) })
}

// Emit queues an effect emission.
func (s *Server) Emit(ev components.EmitEvent) error {
	return s.post(func() { s.emit(ev) })
}

// PushStep counts a step in flight and queues it. msg belongs to the worker
// once posted.
func (s *Server) PushStep(msg *StepMessage) error {
	s.beginStep()
	if err := s.post(func() { s.step(msg) }); err != nil {
		s.abandonStep()
		return err
	}
	return nil
}

// Prune queues removal of the oldest killable chunks and oldest tendrils.
func (s *Server) Prune() error {
	return s.post(s.prune)
}

// Clear queues removal of every chunk, tendril and field.
func (s *Server) Clear() error {
	return s.post(func() {
		s.clear()
		s.publish()
	})
}

// AddShadow registers a shadow; its fields arrive with each step.
func (s *Server) AddShadow(id components.ShadowID) error {
	return s.post(func() {
		s.shadowMu.Lock()
		defer s.shadowMu.Unlock()
		if _, ok := s.shadows[id]; ok {
			s.fatal(fmt.Errorf("%w: shadow %d", ErrDuplicate, id))
			return
		}
		s.shadows[id] = &components.ShadowWorker{}
	})
}

// RemoveShadow frees a shadow's worker view.
func (s *Server) RemoveShadow(id components.ShadowID) error {
	return s.post(func() {
		s.shadowMu.Lock()
		defer s.shadowMu.Unlock()
		if _, ok := s.shadows[id]; !ok {
			s.fatal(fmt.Errorf("%w: %d", ErrUnknownShadow, id))
			return
		}
		delete(s.shadows, id)
	})
}

// AddFuse registers a fuse.
func (s *Server) AddFuse(id components.FuseID) error {
	return s.post(func() {
		s.fuseMu.Lock()
		defer s.fuseMu.Unlock()
		if _, ok := s.fuses[id]; ok {
			s.fatal(fmt.Errorf("%w: fuse %d", ErrDuplicate, id))
			return
		}
		s.fuses[id] = &components.FuseWorker{}
	})
}

// RemoveFuse frees a fuse's worker view.
func (s *Server) RemoveFuse(id components.FuseID) error {
	return s.post(func() {
		s.fuseMu.Lock()
		defer s.fuseMu.Unlock()
		if _, ok := s.fuses[id]; !ok {
			s.fatal(fmt.Errorf("%w: %d", ErrUnknownFuse, id))
			return
		}
		delete(s.fuses, id)
	})
}

// AddVolumeLight registers a volume light.
func (s *Server) AddVolumeLight(id components.VolumeLightID) error {
	return s.post(func() {
		s.lightMu.Lock()
		defer s.lightMu.Unlock()
		if _, ok := s.lights[id]; ok {
			s.fatal(fmt.Errorf("%w: volume light %d", ErrDuplicate, id))
			return
		}
		s.lights[id] = &components.VolumeLightWorker{}
	})
}

// RemoveVolumeLight frees a volume light's worker view.
func (s *Server) RemoveVolumeLight(id components.VolumeLightID) error {
	return s.post(func() {
		s.lightMu.Lock()
		defer s.lightMu.Unlock()
		if _, ok := s.lights[id]; !ok {
			s.fatal(fmt.Errorf("%w: %d", ErrUnknownVolumeLight, id))
			return
		}
		delete(s.lights, id)
	})
}

// Shadow returns a copy of a shadow's worker view.
func (s *Server) Shadow(id components.ShadowID) (components.ShadowWorker, bool) {
	s.shadowMu.Lock()
	defer s.shadowMu.Unlock()
	w, ok := s.shadows[id]
	if !ok {
		return components.ShadowWorker{}, false
	}
	return *w, true
}

// FusePoints appends a fuse's relaxed control points to dst.
func (s *Server) FusePoints(id components.FuseID, dst []mgl32.Vec3) ([]mgl32.Vec3, bool) {
	s.fuseMu.Lock()
	defer s.fuseMu.Unlock()
	w, ok := s.fuses[id]
	if !ok {
		return dst, false
	}
	return append(dst, w.Points...), true
}

// VolumeLightCount returns the number of registered volume lights.
func (s *Server) VolumeLightCount() int {
	s.lightMu.Lock()
	defer s.lightMu.Unlock()
	return len(s.lights)
}

func (s *Server) beginStep() {
	s.stepMu.Lock()
	s.inFlight++
	s.pushed++
	s.stepMu.Unlock()
}

func (s *Server) abandonStep() {
	s.stepMu.Lock()
	s.inFlight--
	s.pushed--
	s.stepMu.Unlock()
}

func (s *Server) finishStep() {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	if s.inFlight <= 0 {
		panic(fmt.Sprintf("dynamics: step completed with %d in flight", s.inFlight))
	}
	s.inFlight--
	s.completed++
}

// StepsInFlight returns the number of steps pushed but not yet completed.
func (s *Server) StepsInFlight() int {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	return s.inFlight
}

// StepTotals returns the number of steps pushed and completed so far.
func (s *Server) StepTotals() (pushed, completed uint64) {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	return s.pushed, s.completed
}

// Counts returns the population published after the last worker command.
// Safe to call from any goroutine.
func (s *Server) Counts() telemetry.PopulationStats {
	if st := s.stats.Load(); st != nil {
		return *st
	}
	return telemetry.PopulationStats{}
}

// PerfStats returns the step timing published by the worker.
func (s *Server) PerfStats() telemetry.PerfStats {
	if st := s.perfStats.Load(); st != nil {
		return *st
	}
	return telemetry.PerfStats{}
}

func (s *Server) publish() {
	computed, total := s.cache.Stats()
	st := telemetry.PopulationStats{
		Step:          s.steps,
		TimeSec:       s.clockMS / 1000,
		Chunks:        s.pop.Chunks,
		ThinTendrils:  s.pop.ThinTendrils,
		ThickTendrils: s.pop.ThickTendrils,
		Fields:        s.pop.Fields,
		Particles:     s.parts.Len(),
		Slices:        s.tendrils.SliceCount(),
		Terrains:      len(s.terrains),
		Shadows:       len(s.shadows),
		Fuses:         len(s.fuses),
		Lights:        len(s.lights),
		Bodies:        s.phys.BodyCount(),
		Contacts:      s.chunks.Contacts(),
		CacheComputed: computed,
		CacheTotal:    total,
		Pruned:        s.pruned,
	}
	s.stats.Store(&st)
}

// VerifyCounts checks the live counters against the entity lists. It reads
// worker state and must run on the worker, or between RunPending calls.
func (s *Server) VerifyCounts() error {
	var pop systems.Population
	pop.Chunks = len(s.chunks.All())
	for _, e := range s.tendrils.All() {
		if s.tendrils.Kind(e).Thin() {
			pop.ThinTendrils++
		} else {
			pop.ThickTendrils++
		}
	}
	pop.Fields = len(s.fields.All())
	if pop != s.pop {
		return fmt.Errorf("dynamics: counters %+v, lists %+v", s.pop, pop)
	}

	dynamic := 0
	query := s.chunkFilter.Query()
	for query.Next() {
		if query.Get().Body != nil {
			dynamic++
		}
	}
	if n := s.phys.BodyCount(); n != dynamic {
		return fmt.Errorf("dynamics: %d physics bodies for %d dynamic chunks", n, dynamic)
	}
	if n := s.cache.GeomCount(); n != len(s.terrains) {
		return fmt.Errorf("dynamics: cache holds %d geoms for %d terrains", n, len(s.terrains))
	}
	return nil
}
