// Package components defines the entity data blocks of the background dynamics simulation.
package components

import "fmt"

// ChunkCategory identifies a debris material. It drives physics constants,
// shading and which snapshot buffer a chunk is drawn into.
type ChunkCategory uint8

const (
	ChunkRock ChunkCategory = iota
	ChunkIce
	ChunkSlime
	ChunkMetal
	ChunkSpark
	ChunkSplinter
	ChunkSweat
	ChunkFlagStand

	NumChunkCategories
)

var chunkCategoryNames = [NumChunkCategories]string{
	"rock", "ice", "slime", "metal", "spark", "splinter", "sweat", "flag_stand",
}

func (c ChunkCategory) String() string {
	if c < NumChunkCategories {
		return chunkCategoryNames[c]
	}
	return fmt.Sprintf("chunk_category(%d)", uint8(c))
}

// Killable reports whether backpressure pruning may remove chunks of this category.
func (c ChunkCategory) Killable() bool {
	return c != ChunkFlagStand
}

// ParseChunkCategory maps a category name to its value.
func ParseChunkCategory(s string) (ChunkCategory, error) {
	for i, name := range chunkCategoryNames {
		if name == s {
			return ChunkCategory(i), nil
		}
	}
	return 0, fmt.Errorf("unknown chunk category %q", s)
}

// EmitKind selects the entity-construction logic of an emission.
type EmitKind uint8

const (
	EmitChunks EmitKind = iota
	EmitStickers
	EmitTendrils
	EmitDistortion
	EmitFlagStand
	EmitFairyDust

	NumEmitKinds
)

var emitKindNames = [NumEmitKinds]string{
	"chunks", "stickers", "tendrils", "distortion", "flag_stand", "fairy_dust",
}

func (k EmitKind) String() string {
	if k < NumEmitKinds {
		return emitKindNames[k]
	}
	return fmt.Sprintf("emit_kind(%d)", uint8(k))
}

// ParseEmitKind maps an emit kind name to its value.
func ParseEmitKind(s string) (EmitKind, error) {
	for i, name := range emitKindNames {
		if name == s {
			return EmitKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown emit kind %q", s)
}

// TendrilKind selects a tendril's look and motion table.
type TendrilKind uint8

const (
	TendrilSmoke TendrilKind = iota
	TendrilThinSmoke
	TendrilIce

	NumTendrilKinds
)

var tendrilKindNames = [NumTendrilKinds]string{"smoke", "thin_smoke", "ice"}

func (k TendrilKind) String() string {
	if k < NumTendrilKinds {
		return tendrilKindNames[k]
	}
	return fmt.Sprintf("tendril_kind(%d)", uint8(k))
}

// Thin reports whether the kind counts against the thin tendril budget.
func (k TendrilKind) Thin() bool {
	return k == TendrilThinSmoke
}

// ParseTendrilKind maps a tendril kind name to its value.
func ParseTendrilKind(s string) (TendrilKind, error) {
	for i, name := range tendrilKindNames {
		if name == s {
			return TendrilKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tendril kind %q", s)
}

// QualityTier is the graphics quality level that scales emission budgets.
type QualityTier uint8

const (
	QualityLow QualityTier = iota
	QualityMedium
	QualityHigh
	QualityHigher

	NumQualityTiers
)

var qualityTierNames = [NumQualityTiers]string{"low", "medium", "high", "higher"}

func (q QualityTier) String() string {
	if q < NumQualityTiers {
		return qualityTierNames[q]
	}
	return fmt.Sprintf("quality(%d)", uint8(q))
}

// Valid reports whether q names a known tier.
func (q QualityTier) Valid() bool {
	return q < NumQualityTiers
}

// ParseQualityTier maps a tier name to its value.
func ParseQualityTier(s string) (QualityTier, error) {
	for i, name := range qualityTierNames {
		if name == s {
			return QualityTier(i), nil
		}
	}
	return 0, fmt.Errorf("unknown quality tier %q", s)
}
