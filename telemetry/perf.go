package telemetry

import (
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Phase names for the dynamics step.
const (
	PhaseShadows  = "shadows"
	PhaseFields   = "fields"
	PhaseChunks   = "chunks"
	PhaseTendrils = "tendrils"
	PhaseFuses    = "fuses"
	PhasePhysics  = "physics"
	PhaseSnapshot = "snapshot"
	PhasePrecalc  = "precalc"
)

// Phases lists every step phase in execution order.
var Phases = []string{
	PhaseShadows, PhaseFields, PhaseChunks, PhaseTendrils,
	PhaseFuses, PhasePhysics, PhaseSnapshot, PhasePrecalc,
}

type stepSample struct {
	total  time.Duration
	phases map[string]time.Duration
}

// PerfCollector times dynamics steps over a rolling window. It is owned by
// the worker goroutine; readers get copies through Stats.
type PerfCollector struct {
	budget time.Duration
	ring   []stepSample
	next   int
	filled int

	phases     map[string]time.Duration
	stepStart  time.Time
	phaseStart time.Time
	phase      string
}

// NewPerfCollector creates a collector averaging over window steps. Steps
// longer than budget are counted as over budget; zero disables the count.
func NewPerfCollector(window int, budget time.Duration) *PerfCollector {
	if window < 1 {
		window = 60
	}
	return &PerfCollector{
		budget: budget,
		ring:   make([]stepSample, window),
		phases: make(map[string]time.Duration),
	}
}

// StartStep begins timing a new step.
func (p *PerfCollector) StartStep() {
	p.stepStart = time.Now()
	p.phases = make(map[string]time.Duration, len(Phases))
	p.phase = ""
}

// StartPhase ends the running phase, if any, and starts the named one.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	p.closePhase(now)
	p.phaseStart = now
	p.phase = phase
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase != "" {
		p.phases[p.phase] += now.Sub(p.phaseStart)
	}
}

// EndStep finishes the current step and records it in the window.
func (p *PerfCollector) EndStep() {
	now := time.Now()
	p.closePhase(now)
	p.phase = ""

	p.ring[p.next] = stepSample{total: now.Sub(p.stepStart), phases: p.phases}
	p.next = (p.next + 1) % len(p.ring)
	p.filled = min(p.filled+1, len(p.ring))
}

// PerfStats summarises the step times in the window.
type PerfStats struct {
	Samples int

	AvgStep time.Duration
	MinStep time.Duration
	MaxStep time.Duration
	StdStep time.Duration
	P95Step time.Duration

	// Share of the window's steps that took longer than the budget.
	OverBudget float64

	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64 // Of the average step

	StepsPerSecond float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	out := PerfStats{
		Samples:  p.filled,
		PhaseAvg: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
	}
	if p.filled == 0 {
		return out
	}

	steps := make([]float64, p.filled)
	sums := make(map[string]time.Duration)
	over := 0
	for i, s := range p.ring[:p.filled] {
		steps[i] = float64(s.total)
		if p.budget > 0 && s.total > p.budget {
			over++
		}
		for phase, d := range s.phases {
			sums[phase] += d
		}
	}
	sort.Float64s(steps)

	out.AvgStep = time.Duration(stat.Mean(steps, nil))
	if len(steps) > 1 {
		out.StdStep = time.Duration(stat.StdDev(steps, nil))
	}
	out.P95Step = time.Duration(stat.Quantile(0.95, stat.Empirical, steps, nil))
	out.MinStep = time.Duration(steps[0])
	out.MaxStep = time.Duration(steps[len(steps)-1])
	out.OverBudget = float64(over) / float64(p.filled)

	for phase, sum := range sums {
		avg := sum / time.Duration(p.filled)
		out.PhaseAvg[phase] = avg
		if out.AvgStep > 0 {
			out.PhasePct[phase] = float64(avg) / float64(out.AvgStep) * 100
		}
	}
	if out.AvgStep > 0 {
		out.StepsPerSecond = float64(time.Second) / float64(out.AvgStep)
	}
	return out
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_step_us", s.AvgStep.Microseconds()),
		slog.Int64("p95_step_us", s.P95Step.Microseconds()),
		slog.Int64("max_step_us", s.MaxStep.Microseconds()),
		slog.Float64("steps_per_sec", s.StepsPerSecond),
	}
	if s.OverBudget > 0 {
		attrs = append(attrs, slog.Float64("over_budget", s.OverBudget))
	}
	for _, phase := range Phases {
		if pct := s.PhasePct[phase]; pct > 0.1 {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one row of perf.csv.
type PerfStatsCSV struct {
	Step        uint64  `csv:"step"`
	AvgStepUS   int64   `csv:"avg_step_us"`
	MinStepUS   int64   `csv:"min_step_us"`
	MaxStepUS   int64   `csv:"max_step_us"`
	StdStepUS   int64   `csv:"std_step_us"`
	P95StepUS   int64   `csv:"p95_step_us"`
	StepsPerSec float64 `csv:"steps_per_sec"`
	OverBudget  float64 `csv:"over_budget"`
	ShadowsPct  float64 `csv:"shadows_pct"`
	FieldsPct   float64 `csv:"fields_pct"`
	ChunksPct   float64 `csv:"chunks_pct"`
	TendrilsPct float64 `csv:"tendrils_pct"`
	FusesPct    float64 `csv:"fuses_pct"`
	PhysicsPct  float64 `csv:"physics_pct"`
	SnapshotPct float64 `csv:"snapshot_pct"`
	PrecalcPct  float64 `csv:"precalc_pct"`
}

// ToCSV flattens the stats into a perf.csv row.
func (s PerfStats) ToCSV(step uint64) PerfStatsCSV {
	return PerfStatsCSV{
		Step:        step,
		AvgStepUS:   s.AvgStep.Microseconds(),
		MinStepUS:   s.MinStep.Microseconds(),
		MaxStepUS:   s.MaxStep.Microseconds(),
		StdStepUS:   s.StdStep.Microseconds(),
		P95StepUS:   s.P95Step.Microseconds(),
		StepsPerSec: s.StepsPerSecond,
		OverBudget:  s.OverBudget,
		ShadowsPct:  s.PhasePct[PhaseShadows],
		FieldsPct:   s.PhasePct[PhaseFields],
		ChunksPct:   s.PhasePct[PhaseChunks],
		TendrilsPct: s.PhasePct[PhaseTendrils],
		FusesPct:    s.PhasePct[PhaseFuses],
		PhysicsPct:  s.PhasePct[PhasePhysics],
		SnapshotPct: s.PhasePct[PhaseSnapshot],
		PrecalcPct:  s.PhasePct[PhasePrecalc],
	}
}
