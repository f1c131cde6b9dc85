package model

// VectorSpace names one of the fixed embedding channels stored per record.
type VectorSpace string

const (
	SpaceSemantic      VectorSpace = "semantic"
	SpaceCategories    VectorSpace = "entities.categories"
	SpaceFunctionality VectorSpace = "entities.functionality"
	SpaceAliases       VectorSpace = "entities.aliases"
	SpaceToolType      VectorSpace = "composites.toolType"
)

// AllSpaces lists every supported vector space in declaration order.
func AllSpaces() []VectorSpace {
	return []VectorSpace{
		SpaceSemantic,
		SpaceCategories,
		SpaceFunctionality,
		SpaceAliases,
		SpaceToolType,
	}
}

// ValidSpace reports whether name is one of the closed set of spaces.
func ValidSpace(name string) bool {
	switch VectorSpace(name) {
	case SpaceSemantic, SpaceCategories, SpaceFunctionality, SpaceAliases, SpaceToolType:
		return true
	}
	return false
}

// NamedVector maps vector space names to dense vectors of the configured
// dimension. A record has at most one vector per space.
type NamedVector map[VectorSpace][]float32
