package vectordb

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tooldex/tooldex/pkg/model"
)

func fieldCondition(t *testing.T, c *qdrant.Condition) *qdrant.FieldCondition {
	t.Helper()
	field := c.GetField()
	require.NotNil(t, field)
	return field
}

func TestTranslateFiltersEmpty(t *testing.T) {
	f, err := translateFilters(nil)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestTranslateEqualityMatches(t *testing.T) {
	f, err := translateFilters([]model.FieldFilter{
		{Field: "has_free_tier", Operator: model.OpEqual, Value: true},
		{Field: "categories", Operator: model.OpContains, Value: "design"},
		{Field: "tier", Operator: model.OpEqual, Value: 3},
	})
	require.NoError(t, err)
	require.Len(t, f.Must, 3)

	boolCond := fieldCondition(t, f.Must[0])
	assert.Equal(t, "has_free_tier", boolCond.Key)
	assert.True(t, boolCond.Match.GetBoolean())

	keyword := fieldCondition(t, f.Must[1])
	assert.Equal(t, "design", keyword.Match.GetKeyword())

	integer := fieldCondition(t, f.Must[2])
	assert.Equal(t, int64(3), integer.Match.GetInteger())
}

// JSON numbers arrive as float64; integral values equality-match as
// integers, fractional ones are rejected.
func TestTranslateFloatEquality(t *testing.T) {
	f, err := translateFilters([]model.FieldFilter{
		{Field: "tier", Operator: model.OpEqual, Value: float64(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), fieldCondition(t, f.Must[0]).Match.GetInteger())

	_, err = translateFilters([]model.FieldFilter{
		{Field: "price", Operator: model.OpEqual, Value: 9.99},
	})
	assert.Error(t, err)
}

func TestTranslateRangeConditions(t *testing.T) {
	f, err := translateFilters([]model.FieldFilter{
		{Field: "price", Operator: model.OpLessThan, Value: 10.0},
		{Field: "price", Operator: model.OpGreaterEqual, Value: 1},
	})
	require.NoError(t, err)
	require.Len(t, f.Must, 2)

	lt := fieldCondition(t, f.Must[0]).Range
	require.NotNil(t, lt.Lt)
	assert.InDelta(t, 10.0, *lt.Lt, 1e-12)
	assert.Nil(t, lt.Gte)

	gte := fieldCondition(t, f.Must[1]).Range
	require.NotNil(t, gte.Gte)
	assert.InDelta(t, 1.0, *gte.Gte, 1e-12)
}

func TestTranslateKeywordList(t *testing.T) {
	f, err := translateFilters([]model.FieldFilter{
		{Field: "categories", Operator: model.OpContains, Value: []string{"design", "devtools"}},
	})
	require.NoError(t, err)
	keywords := fieldCondition(t, f.Must[0]).Match.GetKeywords()
	require.NotNil(t, keywords)
	assert.Equal(t, []string{"design", "devtools"}, keywords.Strings)
}

func TestTranslateRejectsUnsupported(t *testing.T) {
	_, err := translateFilters([]model.FieldFilter{
		{Field: "name", Operator: "regex", Value: ".*"},
	})
	assert.Error(t, err)

	_, err = translateFilters([]model.FieldFilter{
		{Field: "price", Operator: model.OpLessThan, Value: "cheap"},
	})
	assert.Error(t, err)
}
