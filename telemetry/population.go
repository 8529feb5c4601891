package telemetry

import "log/slog"

// PopulationStats is a point-in-time census of the dynamics world.
type PopulationStats struct {
	Step    uint64  `csv:"step"`
	TimeSec float64 `csv:"time_sec"`

	Chunks        int `csv:"chunks"`
	ThinTendrils  int `csv:"thin_tendrils"`
	ThickTendrils int `csv:"thick_tendrils"`
	Fields        int `csv:"fields"`
	Particles     int `csv:"particles"`
	Slices        int `csv:"slices"`

	Terrains int `csv:"terrains"`
	Shadows  int `csv:"shadows"`
	Fuses    int `csv:"fuses"`
	Lights   int `csv:"lights"`

	Bodies   int `csv:"bodies"`
	Contacts int `csv:"contacts"`

	// Height cache corners computed out of the grid total
	CacheComputed int `csv:"cache_computed"`
	CacheTotal    int `csv:"cache_total"`

	Pruned int `csv:"pruned"` // Cumulative entities removed by pruning
}

// Tendrils returns the total tendril count.
func (s PopulationStats) Tendrils() int {
	return s.ThinTendrils + s.ThickTendrils
}

// LogValue implements slog.LogValuer for structured logging.
func (s PopulationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("step", s.Step),
		slog.Int("chunks", s.Chunks),
		slog.Int("tendrils", s.Tendrils()),
		slog.Int("slices", s.Slices),
		slog.Int("fields", s.Fields),
		slog.Int("particles", s.Particles),
		slog.Int("terrains", s.Terrains),
		slog.Int("contacts", s.Contacts),
		slog.Int("cache_computed", s.CacheComputed),
		slog.Int("pruned", s.Pruned),
	)
}
