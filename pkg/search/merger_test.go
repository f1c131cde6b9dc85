package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tooldex/tooldex/pkg/model"
)

func candidates(label string, ids ...string) []model.Candidate {
	list := make([]model.Candidate, len(ids))
	for i, id := range ids {
		list[i] = model.Candidate{
			RecordID: id,
			Source:   label,
			Score:    1.0 - float64(i)*0.1,
			Rank:     i + 1,
			Payload:  model.Payload{RecordID: id, Name: "tool " + id},
		}
	}
	return list
}

func TestNewMergerValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    MergeOptions
		wantErr bool
	}{
		{"defaults", MergeOptions{}, false},
		{"unknown strategy", MergeOptions{Strategy: "best_effort"}, true},
		{"k too large", MergeOptions{KValue: 1001}, true},
		{"k negative", MergeOptions{KValue: -1}, true},
		{"max results too large", MergeOptions{MaxResults: 10001}, true},
		{"negative weight", MergeOptions{SourceWeights: map[string]float64{"semantic": -0.5}}, true},
		{"valid custom", MergeOptions{Strategy: model.FusionHybrid, KValue: 60, MaxResults: 100}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMerger(tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, model.CodeFatalConfig, model.CodeOf(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// Two sources A [x,y,z] and B [y,z,w] with K=60 and unit weights must
// fuse to y, z, x, w with the exact reciprocal-rank sums.
func TestMergeRRFProofVector(t *testing.T) {
	merger, err := NewMerger(MergeOptions{KValue: 60})
	require.NoError(t, err)

	results := merger.Merge(map[string][]model.Candidate{
		"A": candidates("A", "x", "y", "z"),
		"B": candidates("B", "y", "z", "w"),
	})

	require.Len(t, results, 4)
	assert.Equal(t, "y", results[0].RecordID)
	assert.Equal(t, "z", results[1].RecordID)
	assert.Equal(t, "x", results[2].RecordID)
	assert.Equal(t, "w", results[3].RecordID)

	assert.InDelta(t, 1.0/62+1.0/61, results[0].RRFScore, 1e-12)
	assert.InDelta(t, 1.0/63+1.0/62, results[1].RRFScore, 1e-12)
	assert.InDelta(t, 1.0/61, results[2].RRFScore, 1e-12)
	assert.InDelta(t, 1.0/63, results[3].RRFScore, 1e-12)

	for i, r := range results {
		assert.Equal(t, i+1, r.FinalRank)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].RRFScore, r.RRFScore)
		}
	}
}

// Disjoint sources: each item's fused score is exactly its single-source
// contribution.
func TestMergeFusionLinearity(t *testing.T) {
	merger, err := NewMerger(MergeOptions{KValue: 60})
	require.NoError(t, err)

	results := merger.Merge(map[string][]model.Candidate{
		"A": candidates("A", "a1", "a2"),
		"B": candidates("B", "b1"),
	})

	require.Len(t, results, 3)
	byID := make(map[string]model.MergedResult)
	for _, r := range results {
		byID[r.RecordID] = r
	}
	assert.InDelta(t, 1.0/61, byID["a1"].RRFScore, 1e-12)
	assert.InDelta(t, 1.0/62, byID["a2"].RRFScore, 1e-12)
	assert.InDelta(t, 1.0/61, byID["b1"].RRFScore, 1e-12)
	assert.Equal(t, 1, byID["a1"].SourceCount)
}

func TestMergeTieBreakByLexicographicID(t *testing.T) {
	merger, err := NewMerger(MergeOptions{KValue: 60})
	require.NoError(t, err)

	// Same rank and same raw score in two different sources: rrfScore,
	// sourceCount and max score all tie.
	a := []model.Candidate{{RecordID: "zeta", Source: "A", Score: 0.9, Rank: 1}}
	b := []model.Candidate{{RecordID: "alpha", Source: "B", Score: 0.9, Rank: 1}}

	results := merger.Merge(map[string][]model.Candidate{"A": a, "B": b})
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].RecordID)
	assert.Equal(t, "zeta", results[1].RecordID)
}

func TestMergeTieBreakBySourceCount(t *testing.T) {
	merger, err := NewMerger(MergeOptions{
		KValue:        1,
		SourceWeights: map[string]float64{"C": 4.0 / 3.0},
	})
	require.NoError(t, err)

	// "both" appears at rank 2 in A and B: 1/3 + 1/3 = 2/3.
	// "solo" appears at rank 1 in C with weight tuned so scores tie:
	// w * 1/2 = 2/3 => w = 4/3.
	results := merger.Merge(map[string][]model.Candidate{
		"A": {{RecordID: "filler-a", Rank: 1, Score: 1.0}, {RecordID: "both", Rank: 2, Score: 0.5}},
		"B": {{RecordID: "filler-b", Rank: 1, Score: 1.0}, {RecordID: "both", Rank: 2, Score: 0.5}},
		"C": {{RecordID: "solo", Rank: 1, Score: 0.5}},
	})

	byID := make(map[string]model.MergedResult)
	var bothIdx, soloIdx int
	for i, r := range results {
		byID[r.RecordID] = r
		switch r.RecordID {
		case "both":
			bothIdx = i
		case "solo":
			soloIdx = i
		}
	}
	require.InDelta(t, 2.0/3, byID["both"].RRFScore, 1e-12)
	if math.Abs(byID["both"].RRFScore-byID["solo"].RRFScore) < 1e-12 {
		assert.Less(t, bothIdx, soloIdx, "equal scores must order by source count")
	}
}

func TestMergeMaxResultsOne(t *testing.T) {
	merger, err := NewMerger(MergeOptions{MaxResults: 1})
	require.NoError(t, err)

	results := merger.Merge(map[string][]model.Candidate{
		"A": candidates("A", "x", "y", "z"),
	})
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].FinalRank)
}

func TestMergeNonePreservesInputOrder(t *testing.T) {
	merger, err := NewMerger(MergeOptions{Strategy: model.FusionNone})
	require.NoError(t, err)

	input := candidates("A", "c", "a", "b")
	results := merger.Merge(map[string][]model.Candidate{"A": input})

	require.Len(t, results, 3)
	for i, want := range []string{"c", "a", "b"} {
		assert.Equal(t, want, results[i].RecordID)
		assert.Equal(t, i+1, results[i].FinalRank)
	}
}

func TestMergeWeightedAverage(t *testing.T) {
	merger, err := NewMerger(MergeOptions{
		Strategy:      model.FusionWeightedAverage,
		SourceWeights: map[string]float64{"A": 1.0, "B": 1.0},
	})
	require.NoError(t, err)

	results := merger.Merge(map[string][]model.Candidate{
		"A": {{RecordID: "x", Rank: 1, Score: 0.8}, {RecordID: "y", Rank: 2, Score: 0.4}},
		"B": {{RecordID: "y", Rank: 1, Score: 0.6}},
	})

	byID := make(map[string]model.MergedResult)
	for _, r := range results {
		byID[r.RecordID] = r
	}
	// x: normalized 0.8/0.8 = 1.0 over weight 1.
	// y: (0.4/0.8 + 0.6/0.6) / 2 = 0.75.
	assert.InDelta(t, 1.0, byID["x"].RRFScore, 1e-12)
	assert.InDelta(t, 0.75, byID["y"].RRFScore, 1e-12)
}

func TestMergeHybridBoostsBySourceWeight(t *testing.T) {
	weights := map[string]float64{"A": 1.0, "B": 0.5}

	plain, err := NewMerger(MergeOptions{KValue: 60, SourceWeights: weights})
	require.NoError(t, err)
	hybrid, err := NewMerger(MergeOptions{Strategy: model.FusionHybrid, KValue: 60, SourceWeights: weights})
	require.NoError(t, err)

	sources := map[string][]model.Candidate{
		"B": {{RecordID: "only-b", Rank: 1, Score: 0.9}},
	}
	plainResults := plain.Merge(sources)
	hybridResults := hybrid.Merge(sources)

	require.Len(t, plainResults, 1)
	require.Len(t, hybridResults, 1)
	// Hybrid applies the source weight twice: once in the contribution,
	// once as the multiplicative boost.
	assert.InDelta(t, plainResults[0].RRFScore*0.5, hybridResults[0].RRFScore, 1e-12)
}

func TestMergePreserveMetadata(t *testing.T) {
	merger, err := NewMerger(MergeOptions{PreserveMetadata: true})
	require.NoError(t, err)

	results := merger.Merge(map[string][]model.Candidate{
		"A": {{RecordID: "x", Rank: 1, Score: 0.9, Payload: model.Payload{Name: "X", Categories: []string{"editor"}}}},
		"B": {{RecordID: "x", Rank: 1, Score: 0.8, Payload: model.Payload{URL: "https://x.dev"}}},
	})

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, 2, r.SourceCount)
	assert.ElementsMatch(t, []string{"A", "B"}, r.Sources)
	assert.Equal(t, "X", r.Payload.Name)
	assert.Equal(t, "https://x.dev", r.Payload.URL)
	assert.Equal(t, []string{"editor"}, r.Payload.Categories)
	assert.Equal(t, 1, r.OriginalRankings["A"].Rank)
	assert.InDelta(t, 0.8, r.OriginalRankings["B"].Score, 1e-12)
}
