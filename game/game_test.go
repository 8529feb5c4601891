package game

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/bgdynamics/config"
)

func TestHeadlessRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	cfg := config.Default()
	cfg.Telemetry.LogEverySteps = 5

	g, err := NewGameWithOptions(Options{
		Config:    cfg,
		Seed:      7,
		OutputDir: dir,
		Headless:  true,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 100 && g.Steps() < 30; i++ {
		g.UpdateHeadless()
	}
	if g.Steps() != 30 {
		t.Fatalf("steps = %d, want 30", g.Steps())
	}
	if g.server.StepsInFlight() != 0 {
		t.Errorf("headless frame returned with %d steps in flight", g.server.StepsInFlight())
	}

	pop := g.server.Counts()
	if pop.Terrains != 1 || pop.Shadows != 1 || pop.Fuses != 1 || pop.Lights != 1 {
		t.Errorf("attached entities = %+v", pop)
	}
	if pop.Step != 30 {
		t.Errorf("worker step = %d, want 30", pop.Step)
	}

	g.Unload()
	if refs := g.terrainMesh.Refs(); refs != 0 {
		t.Errorf("terrain refs after unload = %d", refs)
	}

	data, err := os.ReadFile(filepath.Join(dir, "population.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1+30/5 {
		t.Errorf("population.csv has %d lines, want %d", len(lines), 1+30/5)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config not written: %v", err)
	}
}

func TestTerrainHeightClamps(t *testing.T) {
	g := &Game{}
	var err error
	g.terrainMesh, err = generateTerrain(3)
	if err != nil {
		t.Fatal(err)
	}
	// Far outside the grid reads the edge vertex instead of panicking
	_ = g.terrainHeight(1e6, -1e6)
	corner := g.terrainMesh.Vertices[0][1]
	if got := g.terrainHeight(-TerrainSize, -TerrainSize); got != corner {
		t.Errorf("corner height = %v, want %v", got, corner)
	}
}
