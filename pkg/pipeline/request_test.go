package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tooldex/tooldex/pkg/model"
)

func TestSearchRequestValidate(t *testing.T) {
	valid := func() SearchRequest {
		return SearchRequest{Query: "code editor"}
	}

	tests := []struct {
		name    string
		mutate  func(*SearchRequest)
		wantErr bool
	}{
		{"minimal valid", func(r *SearchRequest) {}, false},
		{"empty query", func(r *SearchRequest) { r.Query = "" }, true},
		{"whitespace query", func(r *SearchRequest) { r.Query = "   " }, true},
		{"query at limit", func(r *SearchRequest) { r.Query = strings.Repeat("a", MaxQueryLength) }, false},
		{"query over limit", func(r *SearchRequest) { r.Query = strings.Repeat("a", MaxQueryLength+1) }, true},
		{"vector limit max", func(r *SearchRequest) { r.Options.VectorOptions.Limit = 100 }, false},
		{"vector limit over", func(r *SearchRequest) { r.Options.VectorOptions.Limit = 101 }, true},
		{"known space", func(r *SearchRequest) {
			r.Options.VectorOptions.VectorTypes = []string{"semantic", "entities.categories"}
		}, false},
		{"unknown space", func(r *SearchRequest) {
			r.Options.VectorOptions.VectorTypes = []string{"embeddings"}
		}, true},
		{"known merge strategy", func(r *SearchRequest) {
			r.Options.MergeOptions.Strategy = model.FusionRRF
		}, false},
		{"unknown merge strategy", func(r *SearchRequest) {
			r.Options.MergeOptions.Strategy = "best"
		}, true},
		{"k at limit", func(r *SearchRequest) { r.Options.MergeOptions.RRFKValue = 200 }, false},
		{"k over limit", func(r *SearchRequest) { r.Options.MergeOptions.RRFKValue = 201 }, true},
		{"max results over", func(r *SearchRequest) { r.Options.MergeOptions.MaxResults = 201 }, true},
		{"dedup threshold one", func(r *SearchRequest) { r.Options.DuplicateDetection.Threshold = 1.0 }, false},
		{"dedup threshold over", func(r *SearchRequest) { r.Options.DuplicateDetection.Threshold = 1.01 }, true},
		{"pagination limit over", func(r *SearchRequest) { r.Options.Pagination.Limit = 101 }, true},
		{"negative page", func(r *SearchRequest) { r.Options.Pagination.Page = -1 }, true},
		{"sort by name", func(r *SearchRequest) { r.Options.Sort = Sort{Field: "name", Order: "asc"} }, false},
		{"unknown sort field", func(r *SearchRequest) { r.Options.Sort.Field = "popularity" }, true},
		{"unknown sort order", func(r *SearchRequest) { r.Options.Sort = Sort{Field: "name", Order: "up"} }, true},
		{"timeout floor", func(r *SearchRequest) { r.Options.Performance.TimeoutMs = 100 }, false},
		{"timeout below floor", func(r *SearchRequest) { r.Options.Performance.TimeoutMs = 99 }, true},
		{"timeout ceiling", func(r *SearchRequest) { r.Options.Performance.TimeoutMs = 30000 }, false},
		{"timeout over ceiling", func(r *SearchRequest) { r.Options.Performance.TimeoutMs = 30001 }, true},
		{"bad filter operator", func(r *SearchRequest) {
			r.Options.Filters = []model.FieldFilter{{Field: "name", Operator: "~=", Value: "x"}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, model.CodeInputInvalid, model.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPaginate(t *testing.T) {
	results := make([]model.MergedResult, 25)
	for i := range results {
		results[i].FinalRank = i + 1
	}

	window, info := paginate(results, Pagination{Page: 2, Limit: 10})
	require.NotNil(t, info)
	require.Len(t, window, 10)
	// Ranks stay global across pages.
	assert.Equal(t, 11, window[0].FinalRank)
	assert.Equal(t, 2, info.Page)
	assert.Equal(t, 25, info.TotalItems)
	assert.Equal(t, 3, info.TotalPages)
	assert.True(t, info.HasNext)

	last, info := paginate(results, Pagination{Page: 3, Limit: 10})
	assert.Len(t, last, 5)
	assert.False(t, info.HasNext)

	beyond, info := paginate(results, Pagination{Page: 9, Limit: 10})
	assert.Empty(t, beyond)
	assert.False(t, info.HasNext)

	all, info := paginate(results, Pagination{})
	assert.Len(t, all, 25)
	assert.Nil(t, info)
}

func TestApplySort(t *testing.T) {
	results := []model.MergedResult{
		{Candidate: model.Candidate{RecordID: "b", Score: 0.5, Payload: model.Payload{Name: "Beta", Categories: []string{"db"}}}},
		{Candidate: model.Candidate{RecordID: "a", Score: 0.9, Payload: model.Payload{Name: "Alpha", Categories: []string{"editor"}}}},
	}

	byName := applySort(append([]model.MergedResult{}, results...), Sort{Field: "name", Order: "asc"})
	assert.Equal(t, "a", byName[0].RecordID)
	assert.Equal(t, 1, byName[0].FinalRank)
	assert.Equal(t, 2, byName[1].FinalRank)

	byScore := applySort(append([]model.MergedResult{}, results...), Sort{Field: "score", Order: "desc"})
	assert.Equal(t, "a", byScore[0].RecordID)

	relevance := applySort(append([]model.MergedResult{}, results...), Sort{Field: "relevance"})
	assert.Equal(t, "b", relevance[0].RecordID, "relevance keeps fusion order")
}
