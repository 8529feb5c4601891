package systems

import (
	"math"
	"slices"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/bgdynamics/components"
)

type aged struct {
	entity  ecs.Entity
	birthMS float64
}

// oldest returns ceil(fraction*len) entries with the smallest birth time.
func oldest(items []aged, fraction float64) []ecs.Entity {
	if fraction <= 0 || len(items) == 0 {
		return nil
	}
	n := int(math.Ceil(float64(len(items)) * min(fraction, 1)))
	slices.SortFunc(items, func(a, b aged) int {
		switch {
		case a.birthMS < b.birthMS:
			return -1
		case a.birthMS > b.birthMS:
			return 1
		}
		return 0
	})
	out := make([]ecs.Entity, n)
	for i := range out {
		out[i] = items[i].entity
	}
	return out
}

// OldestChunks selects the oldest fraction of killable chunks for pruning.
func (s *ChunkSystem) OldestChunks(fraction float64) []ecs.Entity {
	var items []aged
	query := s.filter.Query()
	for query.Next() {
		c := query.Get()
		if c.Category.Killable() {
			items = append(items, aged{query.Entity(), c.BirthMS})
		}
	}
	return oldest(items, fraction)
}

// OldestTendrils selects the oldest fraction of tendrils for pruning.
func (s *TendrilSystem) OldestTendrils(fraction float64) []ecs.Entity {
	var items []aged
	query := s.filter.Query()
	for query.Next() {
		items = append(items, aged{query.Entity(), query.Get().BirthMS})
	}
	return oldest(items, fraction)
}

// All returns every live chunk.
func (s *ChunkSystem) All() []ecs.Entity {
	var out []ecs.Entity
	query := s.filter.Query()
	for query.Next() {
		out = append(out, query.Entity())
	}
	return out
}

// All returns every live tendril.
func (s *TendrilSystem) All() []ecs.Entity {
	var out []ecs.Entity
	query := s.filter.Query()
	for query.Next() {
		out = append(out, query.Entity())
	}
	return out
}

// Kind returns the kind of a live tendril.
func (s *TendrilSystem) Kind(e ecs.Entity) components.TendrilKind {
	return s.tendrils.Get(e).Kind
}

// Category returns the category of a live chunk.
func (s *ChunkSystem) Category(e ecs.Entity) components.ChunkCategory {
	return s.chunks.Get(e).Category
}
