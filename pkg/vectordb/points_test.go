package vectordb

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointIDDeterministic(t *testing.T) {
	a := NewPointIDMapper("tooldex")
	b := NewPointIDMapper("tooldex")

	assert.Equal(t, a.PointID("figma"), b.PointID("figma"),
		"same namespace and record must map to the same point")
	assert.NotEqual(t, a.PointID("figma"), a.PointID("penpot"))
}

// Changing the namespace is a reindex: every point ID moves.
func TestPointIDNamespaceIsolation(t *testing.T) {
	a := NewPointIDMapper("prod")
	b := NewPointIDMapper("staging")
	assert.NotEqual(t, a.PointID("figma"), b.PointID("figma"))
}

func TestPointIDIsValidUUID(t *testing.T) {
	m := NewPointIDMapper("tooldex")
	id, err := uuid.Parse(m.PointID("record with spaces / and symbols"))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), id.Version(), "SHA-1 name-based UUID")
}
