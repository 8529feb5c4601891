package systems

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/bgdynamics/components"
	"github.com/pthm-cable/bgdynamics/config"
	"github.com/pthm-cable/bgdynamics/physics"
)

// Sticker raycasts reach this far along the emit direction.
const stickerReach = 10

// Population is the live entity count the emitter budgets against.
type Population struct {
	Chunks        int
	ThinTendrils  int
	ThickTendrils int
	Fields        int
}

// EmitResult reports what one emission created.
type EmitResult struct {
	Chunks        int
	ThinTendrils  int
	ThickTendrils int
	Fields        int
	Particles     int
}

// Fatigue limits a spawn request against a soft and hard population cap.
// Below soft the request passes unchanged; between soft and hard it is scaled
// down linearly, reaching zero at hard.
func Fatigue(requested, live, soft, hard int) int {
	if requested <= 0 || live >= hard {
		return 0
	}
	n := requested
	if live > soft && hard > soft {
		scale := float64(hard-live) / float64(hard-soft)
		n = int(math.Round(float64(requested) * scale))
	}
	return min(n, hard-live)
}

// Emitter turns emit events into chunks, tendrils, fields and particles.
type Emitter struct {
	cfg    *config.Config
	rng    *rand.Rand
	ground Ground
	phys   *physics.World
	parts  *ParticleSet

	chunkMap   *ecs.Map1[components.Chunk]
	tendrilMap *ecs.Map1[components.Tendril]
	fieldMap   *ecs.Map1[components.Field]
	chunks     *ecs.Map[components.Chunk]

	tendrils *TendrilSystem
}

// NewEmitter creates a new emitter.
func NewEmitter(w *ecs.World, cfg *config.Config, rng *rand.Rand, ground Ground, phys *physics.World, parts *ParticleSet, tendrils *TendrilSystem) *Emitter {
	return &Emitter{
		cfg:        cfg,
		rng:        rng,
		ground:     ground,
		phys:       phys,
		parts:      parts,
		chunkMap:   ecs.NewMap1[components.Chunk](w),
		tendrilMap: ecs.NewMap1[components.Tendril](w),
		fieldMap:   ecs.NewMap1[components.Field](w),
		chunks:     ecs.NewMap[components.Chunk](w),
		tendrils:   tendrils,
	}
}

// scaled applies a quality multiplier to a requested count.
func scaled(count int, mult float64) int {
	return int(math.Round(float64(count) * mult))
}

func capped(c int, scale float64) int {
	return max(int(math.Round(float64(c)*scale)), 0)
}

// Emit executes one event at the given quality tier. Must not be called while
// a query is open.
func (e *Emitter) Emit(w *ecs.World, ev components.EmitEvent, tier components.QualityTier, pop Population, nowMS float64) EmitResult {
	q := e.cfg.Tier(tier.String())
	var res EmitResult

	switch ev.Kind {
	case components.EmitChunks, components.EmitStickers:
		n := Fatigue(scaled(ev.Count, q.ChunkMultiplier), pop.Chunks,
			capped(e.cfg.Chunks.SoftCap, q.CapScale), capped(e.cfg.Chunks.HardCap, q.CapScale))
		if ev.Kind == components.EmitChunks {
			e.emitChunks(ev, n, q, pop, nowMS, &res)
		} else {
			e.emitStickers(ev, n, nowMS, &res)
		}

	case components.EmitTendrils:
		n := e.tendrilBudget(ev.Tendril, scaled(ev.Count, q.TendrilMultiplier), q, pop)
		for i := 0; i < n; i++ {
			pos := ev.Pos.Add(randInSphere(e.rng).Mul(ev.Spread))
			vel := ev.Vel.Add(randInSphere(e.rng).Mul(ev.Spread))
			pos, vel = e.avoidGround(pos, vel)
			e.spawnTendril(ev.Tendril, pos, vel, ev.Scale, ecs.Entity{}, nowMS)
			countTendril(ev.Tendril, &res)
		}

	case components.EmitFlagStand:
		if Fatigue(1, pop.Chunks, capped(e.cfg.Chunks.SoftCap, q.CapScale), capped(e.cfg.Chunks.HardCap, q.CapScale)) == 0 {
			return res
		}
		pos, vel := e.avoidGround(ev.Pos, ev.Vel)
		e.spawnChunk(components.ChunkFlagStand, pos, vel, ev.Scale, nowMS)
		res.Chunks++

	case components.EmitDistortion:
		if pop.Fields >= e.cfg.Fields.MaxFields {
			return res
		}
		e.fieldMap.NewEntity(&components.Field{
			Pos:        ev.Pos,
			Radius:     float32(e.cfg.Fields.Radius) * ev.Scale,
			Magnitude:  float32(e.cfg.Fields.Magnitude),
			BirthMS:    nowMS,
			LifespanMS: e.cfg.Fields.LifespanMS,
		})
		res.Fields++

	case components.EmitFairyDust:
		n := scaled(ev.Count, q.ParticleMultiplier)
		life := float32(e.cfg.Particles.FairyDustLife)
		for i := 0; i < n; i++ {
			hue := e.rng.Float32()
			ok := e.parts.Emit(Particle{
				Pos:     ev.Pos.Add(randInSphere(e.rng).Mul(ev.Spread)),
				Vel:     ev.Vel.Add(randUnit(e.rng).Mul(0.3)),
				Color:   pastel(hue),
				Size:    0.04 * ev.Scale * randRange(e.rng, 0.5, 1.5),
				Life:    1,
				Decay:   1 / max(life*randRange(e.rng, 0.5, 1), 0.01),
				Gravity: -0.05,
			})
			if !ok {
				break
			}
			res.Particles++
		}
	}
	return res
}

func (e *Emitter) tendrilBudget(k components.TendrilKind, n int, q config.TierConfig, pop Population) int {
	t := e.cfg.Tendrils
	if k.Thin() {
		return Fatigue(n, pop.ThinTendrils, capped(t.ThinSoftCap, q.CapScale), capped(t.ThinHardCap, q.CapScale))
	}
	return Fatigue(n, pop.ThickTendrils, capped(t.ThickSoftCap, q.CapScale), capped(t.ThickHardCap, q.CapScale))
}

func countTendril(k components.TendrilKind, res *EmitResult) {
	if k.Thin() {
		res.ThinTendrils++
	} else {
		res.ThickTendrils++
	}
}

func (e *Emitter) emitChunks(ev components.EmitEvent, n int, q config.TierConfig, pop Population, nowMS float64, res *EmitResult) {
	var chance float64
	switch ev.Category {
	case components.ChunkSpark:
		chance = e.cfg.Chunks.SparkTendrilChance
	case components.ChunkSplinter:
		chance = e.cfg.Chunks.SplinterTendrilChance
	}
	thinBudget := 0
	if chance > 0 {
		thinBudget = e.tendrilBudget(components.TendrilThinSmoke, scaled(n, q.TendrilMultiplier), q, pop)
	}

	for i := 0; i < n; i++ {
		pos := ev.Pos.Add(randInSphere(e.rng).Mul(ev.Spread))
		vel := ev.Vel.Add(randInSphere(e.rng).Mul(ev.Spread * 2))
		pos, vel = e.avoidGround(pos, vel)
		ent := e.spawnChunk(ev.Category, pos, vel, ev.Scale, nowMS)
		res.Chunks++

		if thinBudget > 0 && e.rng.Float64() < chance {
			t := e.spawnTendril(components.TendrilThinSmoke, pos, vel, ev.Scale, ent, nowMS)
			e.chunks.Get(ent).Tendril = t
			thinBudget--
			res.ThinTendrils++
		}
	}
}

// emitStickers raycasts along the emit direction and lays static chunks flat
// on whatever surface is hit.
func (e *Emitter) emitStickers(ev components.EmitEvent, n int, nowMS float64, res *EmitResult) {
	dir := safeNormalize(ev.Vel, mgl32.Vec3{0, -1, 0})
	hit, ok := e.ground.Raycast(ev.Pos, dir, stickerReach)
	if !ok {
		return
	}
	orient := mgl32.QuatBetweenVectors(mgl32.Vec3{0, 1, 0}, hit.Normal)
	tangent := orient.Rotate(mgl32.Vec3{1, 0, 0})
	bitangent := orient.Rotate(mgl32.Vec3{0, 0, 1})
	cat := e.cfg.Chunks.Categories[ev.Category.String()]

	for i := 0; i < n; i++ {
		r := randInSphere(e.rng).Mul(ev.Spread)
		pos := hit.Point.Add(tangent.Mul(r[0])).Add(bitangent.Mul(r[2])).Add(hit.Normal.Mul(0.005))
		s := randRange(e.rng, float32(cat.SizeMin), float32(cat.SizeMax)) * ev.Scale
		spin := mgl32.QuatRotate(e.rng.Float32()*2*math.Pi, mgl32.Vec3{0, 1, 0})
		rot := orient.Mul(spin)

		c := components.Chunk{
			Category:   ev.Category,
			Size:       mgl32.Vec3{s, s * 0.1, s},
			BirthMS:    nowMS,
			LifespanMS: e.lifespan(cat),
			Transform:  mgl32.Translate3D(pos[0], pos[1], pos[2]).Mul4(rot.Mat4()),
			Pos:        pos,
			Scale:      1,
		}
		e.chunkMap.NewEntity(&c)
		res.Chunks++
	}
}

func (e *Emitter) lifespan(cat config.ChunkCategoryConfig) float64 {
	l := cat.LifespanMS
	if cat.LifespanJitterMS > 0 {
		l += (e.rng.Float64()*2 - 1) * cat.LifespanJitterMS
	}
	return max(l, 1)
}

// spawnChunk creates one chunk with randomized per-axis size and a physics
// body for dynamic categories.
func (e *Emitter) spawnChunk(category components.ChunkCategory, pos, vel mgl32.Vec3, scale float32, nowMS float64) ecs.Entity {
	cat := e.cfg.Chunks.Categories[category.String()]
	lo, hi := float32(cat.SizeMin), float32(cat.SizeMax)

	var size mgl32.Vec3
	var shape physics.Shape
	if cat.Shape == "sphere" {
		s := randRange(e.rng, lo, hi)
		if hi == lo {
			s = lo
		}
		size = mgl32.Vec3{s, s, s}.Mul(scale)
		shape = physics.Sphere{Radius: size[0] / 2}
	} else {
		for i := range size {
			size[i] = lo
			if hi > lo {
				size[i] = randRange(e.rng, lo, hi)
			}
		}
		size = size.Mul(scale)
		shape = physics.Box{Half: size.Mul(0.5)}
	}

	c := components.Chunk{
		Category:   category,
		Dynamic:    cat.Dynamic,
		Size:       size,
		BirthMS:    nowMS,
		LifespanMS: e.lifespan(cat),
		Scale:      1,
		GroundDist: float32(math.Inf(1)),
	}
	if cat.Dynamic {
		b := physics.NewBody(shape, float32(cat.Density))
		b.Pos = pos
		b.Vel = vel
		b.Friction = float32(cat.Friction)
		b.Bounce = float32(cat.Bounce)
		if category == components.ChunkFlagStand {
			b.AngVel = mgl32.Vec3{}
		} else {
			b.Rot = randRotation(e.rng)
			b.AngVel = randInSphere(e.rng).Mul(8)
		}
		e.phys.AddBody(b)
		c.Body = b
	} else {
		c.Pos = pos
		c.Vel = vel
		c.Transform = mgl32.Translate3D(pos[0], pos[1], pos[2])
	}
	return e.chunkMap.NewEntity(&c)
}

// spawnTendril creates a tendril. A non-zero controller makes the tendril
// follow that chunk until either side is destroyed.
func (e *Emitter) spawnTendril(kind components.TendrilKind, pos, vel mgl32.Vec3, scale float32, controller ecs.Entity, nowMS float64) ecs.Entity {
	p := e.tendrils.Params(kind)
	t := components.Tendril{
		Kind:         kind,
		Emitting:     true,
		BirthMS:      nowMS,
		Head:         pos,
		HeadVel:      vel,
		EmitRate:     1,
		ErosionStart: p.ErosionStart,
		SpreadStart:  p.SpreadRate * scale,
		Controller:   controller,
		Color:        p.Color,
		Brightness:   p.Brightness * randRange(e.rng, 0.8, 1.2),
		Side:         perpendicular(vel),
	}
	if controller == (ecs.Entity{}) {
		t.EmitEndMS = nowMS + p.EmitMS
	}
	return e.tendrilMap.NewEntity(&t)
}

// avoidGround probes for terrain near pos. Spawns inside or just above a
// surface are lifted clear of it and velocities into it are reflected.
func (e *Emitter) avoidGround(pos, vel mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	d := float32(e.cfg.Chunks.GroundAvoidDistance)
	if d <= 0 {
		return pos, vel
	}
	hit, ok := e.ground.Raycast(pos.Add(mgl32.Vec3{0, d, 0}), mgl32.Vec3{0, -1, 0}, 2*d)
	if !ok {
		return pos, vel
	}
	clearance := d * 0.5
	if pos.Sub(hit.Point).Dot(hit.Normal) < clearance {
		pos = hit.Point.Add(hit.Normal.Mul(clearance))
	}
	if vn := vel.Dot(hit.Normal); vn < 0 {
		vel = vel.Sub(hit.Normal.Mul(2 * vn))
	}
	return pos, vel
}

// pastel maps a hue in [0, 1) to a soft saturated colour.
func pastel(hue float32) mgl32.Vec3 {
	h := float64(hue) * 2 * math.Pi
	return mgl32.Vec3{
		0.75 + 0.25*float32(math.Cos(h)),
		0.75 + 0.25*float32(math.Cos(h-2*math.Pi/3)),
		0.75 + 0.25*float32(math.Cos(h+2*math.Pi/3)),
	}
}
