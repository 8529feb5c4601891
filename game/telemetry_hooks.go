package game

import "log/slog"

// flushTelemetry writes population and perf rows every LogEverySteps steps.
func (g *Game) flushTelemetry() {
	every := uint64(g.cfg.Telemetry.LogEverySteps)
	if g.output == nil || every == 0 || g.steps%every != 0 {
		return
	}

	pop := g.server.Counts()
	if err := g.output.WritePopulation(pop); err != nil {
		slog.Error("failed to write population", "error", err)
	}
	if err := g.output.WritePerf(g.server.PerfStats(), pop.Step); err != nil {
		slog.Error("failed to write perf", "error", err)
	}
}
