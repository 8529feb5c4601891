package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsLoad(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load defaults: %v", err)
	}

	rock := cfg.Chunks.Categories["rock"]
	if rock.LifespanMS != 10000 {
		t.Errorf("rock lifespan = %v, want 10000", rock.LifespanMS)
	}
	if !rock.Dynamic {
		t.Error("rock chunks should be dynamic")
	}
	if cfg.Chunks.Categories["sweat"].Dynamic {
		t.Error("sweat chunks should be static")
	}
	if cfg.Derived.KillHeight32 != float32(cfg.Physics.KillHeight) {
		t.Errorf("derived kill height %v != %v", cfg.Derived.KillHeight32, cfg.Physics.KillHeight)
	}
	if cfg.Derived.MaxFuseVertices != cfg.Fuses.Points*2 {
		t.Errorf("derived fuse vertices = %d", cfg.Derived.MaxFuseVertices)
	}
}

func TestTierOrdering(t *testing.T) {
	cfg := Default()

	prev := -1.0
	for _, name := range TierNames {
		tier := cfg.Tier(name)
		if tier.CapScale <= prev {
			t.Errorf("tier %s cap scale %v not above previous %v", name, tier.CapScale, prev)
		}
		prev = tier.CapScale
	}
	if cfg.Tier("low").TendrilMultiplier != 0 {
		t.Error("low tier should not spawn tendrils")
	}
	if cfg.Tier("bogus") != cfg.Tier("high") {
		t.Error("unknown tier should fall back to high")
	}
}

func TestUserOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	data := "physics:\n  kill_height: -5\nchunks:\n  soft_cap: 10\n  hard_cap: 20\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Physics.KillHeight != -5 {
		t.Errorf("kill height = %v, want -5", cfg.Physics.KillHeight)
	}
	if cfg.Chunks.SoftCap != 10 || cfg.Chunks.HardCap != 20 {
		t.Errorf("caps = %d/%d, want 10/20", cfg.Chunks.SoftCap, cfg.Chunks.HardCap)
	}
	// Untouched sections keep defaults
	if cfg.Fuses.Points != 10 {
		t.Errorf("fuse points = %d, want default 10", cfg.Fuses.Points)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing tier", func(c *Config) { delete(c.Quality, "higher") }, "quality tier"},
		{"missing category", func(c *Config) { delete(c.Chunks.Categories, "metal") }, "chunk category"},
		{"bad shape", func(c *Config) {
			rock := c.Chunks.Categories["rock"]
			rock.Shape = "cone"
			c.Chunks.Categories["rock"] = rock
		}, "unknown shape"},
		{"inverted caps", func(c *Config) { c.Chunks.HardCap = c.Chunks.SoftCap }, "hard_cap"},
		{"short fuse", func(c *Config) { c.Fuses.Points = 1 }, "fuses"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load written config: %v", err)
	}
	if loaded.Tendrils.MaxSlices != cfg.Tendrils.MaxSlices {
		t.Errorf("max slices = %d, want %d", loaded.Tendrils.MaxSlices, cfg.Tendrils.MaxSlices)
	}
}
