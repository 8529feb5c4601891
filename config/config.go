// Package config provides configuration loading for the background dynamics engine.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Tier names in ascending order of visual budget.
var TierNames = []string{"low", "medium", "high", "higher"}

// ChunkCategoryNames lists every chunk category table that must be present.
var ChunkCategoryNames = []string{"rock", "ice", "slime", "metal", "spark", "splinter", "sweat", "flag_stand"}

// TendrilKindNames lists every tendril kind table that must be present.
var TendrilKindNames = []string{"smoke", "thin_smoke", "ice"}

// Config holds all engine configuration parameters.
type Config struct {
	Screen    ScreenConfig          `yaml:"screen"`
	Worker    WorkerConfig          `yaml:"worker"`
	Physics   PhysicsConfig         `yaml:"physics"`
	Quality   map[string]TierConfig `yaml:"quality"`
	Chunks    ChunksConfig          `yaml:"chunks"`
	Tendrils  TendrilsConfig        `yaml:"tendrils"`
	Fields    FieldsConfig          `yaml:"fields"`
	Fuses     FusesConfig           `yaml:"fuses"`
	Particles ParticlesConfig       `yaml:"particles"`
	Shadows   ShadowsConfig         `yaml:"shadows"`
	Cache     CacheConfig           `yaml:"cache"`
	Telemetry TelemetryConfig       `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds sandbox window settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// WorkerConfig holds worker scheduling and backpressure parameters.
type WorkerConfig struct {
	PrecalcBudget        int     `yaml:"precalc_budget"`         // Cache corners computed per step
	SkipStepAbove        int     `yaml:"skip_step_above"`        // In-flight steps above this withhold new steps
	PruneAbove           int     `yaml:"prune_above"`            // In-flight steps above this request pruning
	PruneChunkFraction   float64 `yaml:"prune_chunk_fraction"`   // Oldest killable chunks removed per prune
	PruneTendrilFraction float64 `yaml:"prune_tendril_fraction"` // Oldest tendrils removed per prune
	MaxStepMS            float64 `yaml:"max_step_ms"`
}

// PhysicsConfig holds rigid-body world parameters.
type PhysicsConfig struct {
	Gravity             float64 `yaml:"gravity"`
	SolverIterations    int     `yaml:"solver_iterations"`
	KillHeight          float64 `yaml:"kill_height"` // Dynamic chunks below this are removed
	ContactSlop         float64 `yaml:"contact_slop"`
	MaxContactsPerChunk int     `yaml:"max_contacts_per_chunk"`
}

// TierConfig scales emission and population caps for one graphics quality tier.
type TierConfig struct {
	ChunkMultiplier    float64 `yaml:"chunk_multiplier"`
	TendrilMultiplier  float64 `yaml:"tendril_multiplier"`
	ParticleMultiplier float64 `yaml:"particle_multiplier"`
	CapScale           float64 `yaml:"cap_scale"` // Multiplies every soft/hard population cap
}

// ChunksConfig holds debris parameters.
type ChunksConfig struct {
	SoftCap               int                            `yaml:"soft_cap"`
	HardCap               int                            `yaml:"hard_cap"`
	ShrinkMS              float64                        `yaml:"shrink_ms"` // End-of-life shrink window
	SinkRate              float64                        `yaml:"sink_rate"` // Units per second while resting at end of life
	RestSpeed             float64                        `yaml:"rest_speed"`
	ShadowDistance        float64                        `yaml:"shadow_distance"`
	SparkTendrilChance    float64                        `yaml:"spark_tendril_chance"`
	SplinterTendrilChance float64                        `yaml:"splinter_tendril_chance"`
	GroundAvoidDistance   float64                        `yaml:"ground_avoid_distance"`
	Categories            map[string]ChunkCategoryConfig `yaml:"categories"`
}

// ChunkCategoryConfig holds per-category chunk constants.
type ChunkCategoryConfig struct {
	Dynamic          bool    `yaml:"dynamic"`
	Shape            string  `yaml:"shape"` // box or sphere
	SizeMin          float64 `yaml:"size_min"`
	SizeMax          float64 `yaml:"size_max"`
	LifespanMS       float64 `yaml:"lifespan_ms"`
	LifespanJitterMS float64 `yaml:"lifespan_jitter_ms"`
	LinearDrag       float64 `yaml:"linear_drag"`  // Per second
	AngularDrag      float64 `yaml:"angular_drag"` // Per second
	Friction         float64 `yaml:"friction"`
	Bounce           float64 `yaml:"bounce"`
	Density          float64 `yaml:"density"`
}

// TendrilsConfig holds tendril population caps and per-kind tables.
type TendrilsConfig struct {
	ThinSoftCap  int                          `yaml:"thin_soft_cap"`
	ThinHardCap  int                          `yaml:"thin_hard_cap"`
	ThickSoftCap int                          `yaml:"thick_soft_cap"`
	ThickHardCap int                          `yaml:"thick_hard_cap"`
	MaxSlices    int                          `yaml:"max_slices"`
	Kinds        map[string]TendrilKindConfig `yaml:"kinds"`
}

// TendrilKindConfig holds per-kind tendril constants.
type TendrilKindConfig struct {
	SpanLength   float64    `yaml:"span_length"`
	Width        float64    `yaml:"width"`
	SpreadRate   float64    `yaml:"spread_rate"`
	ErosionStart float64    `yaml:"erosion_start"`
	ErosionRate  float64    `yaml:"erosion_rate"`
	FadeDelayMS  float64    `yaml:"fade_delay_ms"`
	FadeRate     float64    `yaml:"fade_rate"`
	EmitMS       float64    `yaml:"emit_ms"` // Emission duration for free-standing tendrils
	HeadDrag     float64    `yaml:"head_drag"`
	PointDrag    float64    `yaml:"point_drag"`
	Rise         float64    `yaml:"rise"`
	Brightness   float64    `yaml:"brightness"`
	Color        [3]float64 `yaml:"color"`
	TexRate      float64    `yaml:"tex_rate"`
}

// FieldsConfig holds distortion field parameters.
type FieldsConfig struct {
	LifespanMS float64 `yaml:"lifespan_ms"`
	Radius     float64 `yaml:"radius"`
	Magnitude  float64 `yaml:"magnitude"`
	MaxFields  int     `yaml:"max_fields"`
}

// FusesConfig holds fuse relaxation and spark parameters.
type FusesConfig struct {
	Points        int     `yaml:"points"`
	MaxLength     float64 `yaml:"max_length"`
	FollowRate    float64 `yaml:"follow_rate"`
	FollowFalloff float64 `yaml:"follow_falloff"`
	SparkRate     float64 `yaml:"spark_rate"` // Sparks per second at the tip
	SparkLife     float64 `yaml:"spark_life"`
	SparkSize     float64 `yaml:"spark_size"`
	Width         float64 `yaml:"width"`
}

// ParticlesConfig holds spark particle parameters.
type ParticlesConfig struct {
	MaxParticles  int     `yaml:"max_particles"`
	Gravity       float64 `yaml:"gravity"`
	Drag          float64 `yaml:"drag"`
	LifeDecay     float64 `yaml:"life_decay"` // Multiplier on every particle's decay rate
	FairyDustLife float64 `yaml:"fairy_dust_life"`
}

// ShadowsConfig holds dynamic shadow parameters.
type ShadowsConfig struct {
	MaxDistance  float64 `yaml:"max_distance"`
	ScalePerUnit float64 `yaml:"scale_per_unit"`
}

// CacheConfig holds height cache grid parameters.
type CacheConfig struct {
	CellSize       float64 `yaml:"cell_size"`
	MaxCells       int     `yaml:"max_cells"` // Per axis
	NoGroundHeight float64 `yaml:"no_ground_height"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfWindow    int     `yaml:"perf_window"`
	StepBudgetMS  float64 `yaml:"step_budget_ms"` // Steps slower than this count as over budget
	LogEverySteps int     `yaml:"log_every_steps"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Gravity32       float32 // Physics.Gravity as float32
	KillHeight32    float32 // Physics.KillHeight as float32
	NoGround32      float32 // Cache.NoGroundHeight as float32
	MaxFuseVertices int     // Fuses.Points * 2
}

// Default returns the embedded defaults. Panics if they fail to parse.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate checks that every lookup table the engine indexes by name is present.
func (c *Config) Validate() error {
	for _, name := range TierNames {
		if _, ok := c.Quality[name]; !ok {
			return fmt.Errorf("quality tier %q missing", name)
		}
	}
	for _, name := range ChunkCategoryNames {
		cat, ok := c.Chunks.Categories[name]
		if !ok {
			return fmt.Errorf("chunk category %q missing", name)
		}
		if cat.Shape != "box" && cat.Shape != "sphere" {
			return fmt.Errorf("chunk category %q: unknown shape %q", name, cat.Shape)
		}
		if cat.SizeMin <= 0 || cat.SizeMax < cat.SizeMin {
			return fmt.Errorf("chunk category %q: bad size range [%g, %g]", name, cat.SizeMin, cat.SizeMax)
		}
	}
	for _, name := range TendrilKindNames {
		kind, ok := c.Tendrils.Kinds[name]
		if !ok {
			return fmt.Errorf("tendril kind %q missing", name)
		}
		if kind.SpanLength <= 0 {
			return fmt.Errorf("tendril kind %q: span_length must be positive", name)
		}
	}
	if c.Chunks.HardCap <= c.Chunks.SoftCap {
		return fmt.Errorf("chunks: hard_cap %d must exceed soft_cap %d", c.Chunks.HardCap, c.Chunks.SoftCap)
	}
	if c.Fuses.Points < 2 {
		return fmt.Errorf("fuses: need at least 2 points, got %d", c.Fuses.Points)
	}
	if c.Cache.CellSize <= 0 {
		return fmt.Errorf("cache: cell_size must be positive")
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Gravity32 = float32(c.Physics.Gravity)
	c.Derived.KillHeight32 = float32(c.Physics.KillHeight)
	c.Derived.NoGround32 = float32(c.Cache.NoGroundHeight)
	c.Derived.MaxFuseVertices = c.Fuses.Points * 2
}

// Tier returns the table for the named quality tier, falling back to "high".
func (c *Config) Tier(name string) TierConfig {
	if t, ok := c.Quality[name]; ok {
		return t
	}
	return c.Quality["high"]
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
