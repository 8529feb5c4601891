package systems

import "github.com/pthm-cable/bgdynamics/telemetry"

// SystemInfo describes one phase of the dynamics step for UI display.
type SystemInfo struct {
	ID          string // Perf phase name
	Name        string
	Description string
	Category    string // "motion", "effects" or "output"
}

// SystemRegistry holds metadata about the step phases so the UI and the perf
// collector use the same names.
type SystemRegistry struct {
	systems []SystemInfo
	byID    map[string]SystemInfo
}

// NewSystemRegistry creates a registry with every step phase.
func NewSystemRegistry() *SystemRegistry {
	reg := &SystemRegistry{
		byID: make(map[string]SystemInfo),
	}
	reg.registerDefaults()
	return reg
}

// registerDefaults adds the phases in execution order.
// Update this when adding a phase to telemetry.Phases.
func (r *SystemRegistry) registerDefaults() {
	r.Register(SystemInfo{ID: telemetry.PhaseShadows, Name: "Shadows", Description: "Projects shadow proxies onto the ground", Category: "effects"})
	r.Register(SystemInfo{ID: telemetry.PhaseFields, Name: "Fields", Description: "Expires force fields", Category: "motion"})
	r.Register(SystemInfo{ID: telemetry.PhaseChunks, Name: "Chunks", Description: "Ages, scales and grounds chunks", Category: "motion"})
	r.Register(SystemInfo{ID: telemetry.PhaseTendrils, Name: "Tendrils", Description: "Integrates smoke tendril slices", Category: "motion"})
	r.Register(SystemInfo{ID: telemetry.PhaseFuses, Name: "Fuses", Description: "Burns fuses and updates particles", Category: "effects"})
	r.Register(SystemInfo{ID: telemetry.PhasePhysics, Name: "Physics", Description: "Steps rigid bodies against terrain", Category: "motion"})
	r.Register(SystemInfo{ID: telemetry.PhaseSnapshot, Name: "Snapshot", Description: "Builds draw buffers", Category: "output"})
	r.Register(SystemInfo{ID: telemetry.PhasePrecalc, Name: "Height cache", Description: "Precalculates cached terrain heights", Category: "output"})
}

// Register adds a phase to the registry.
func (r *SystemRegistry) Register(info SystemInfo) {
	r.systems = append(r.systems, info)
	r.byID[info.ID] = info
}

// Get returns phase info by ID.
func (r *SystemRegistry) Get(id string) (SystemInfo, bool) {
	info, ok := r.byID[id]
	return info, ok
}

// GetName returns the display name for a phase ID.
// Falls back to the ID itself if not found.
func (r *SystemRegistry) GetName(id string) string {
	if info, ok := r.byID[id]; ok {
		return info.Name
	}
	return id
}

// All returns all registered phases.
func (r *SystemRegistry) All() []SystemInfo {
	return r.systems
}

// ByCategory returns phases filtered by category.
func (r *SystemRegistry) ByCategory(category string) []SystemInfo {
	var result []SystemInfo
	for _, info := range r.systems {
		if info.Category == category {
			result = append(result, info)
		}
	}
	return result
}

// IDs returns all phase IDs in registration order.
func (r *SystemRegistry) IDs() []string {
	ids := make([]string, len(r.systems))
	for i, info := range r.systems {
		ids[i] = info.ID
	}
	return ids
}
