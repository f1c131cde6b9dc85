package search

import (
	"fmt"
	"sort"

	"github.com/tooldex/tooldex/pkg/model"
)

// MergeOptions configures the result-merge engine. Validation happens at
// construction time; Merge itself never rejects input.
type MergeOptions struct {
	Strategy         string
	KValue           int
	MaxResults       int
	SourceWeights    map[string]float64
	PreserveMetadata bool
}

// Merger combines per-source ranked lists into one ordering using
// Reciprocal Rank Fusion or one of its variants.
type Merger struct {
	opts MergeOptions
}

func NewMerger(opts MergeOptions) (*Merger, error) {
	if opts.Strategy == "" {
		opts.Strategy = model.FusionRRF
	}
	switch opts.Strategy {
	case model.FusionRRF, model.FusionWeightedAverage, model.FusionHybrid, model.FusionNone:
	default:
		return nil, model.NewError(model.CodeFatalConfig, "Merger", "NewMerger",
			fmt.Sprintf("unknown merge strategy %q", opts.Strategy), nil)
	}
	if opts.KValue == 0 {
		opts.KValue = 60
	}
	if opts.KValue <= 0 || opts.KValue > 1000 {
		return nil, model.NewError(model.CodeFatalConfig, "Merger", "NewMerger",
			fmt.Sprintf("K value %d out of range (0, 1000]", opts.KValue), nil)
	}
	if opts.MaxResults == 0 {
		opts.MaxResults = 50
	}
	if opts.MaxResults <= 0 || opts.MaxResults > 10000 {
		return nil, model.NewError(model.CodeFatalConfig, "Merger", "NewMerger",
			fmt.Sprintf("max results %d out of range (0, 10000]", opts.MaxResults), nil)
	}
	for source, w := range opts.SourceWeights {
		if w < 0 {
			return nil, model.NewError(model.CodeFatalConfig, "Merger", "NewMerger",
				fmt.Sprintf("negative weight %v for source %q", w, source), nil)
		}
	}
	return &Merger{opts: opts}, nil
}

// weightFor resolves the fusion weight for an opaque source label. Exact
// labels win; otherwise the label class before the colon maps onto the
// default weight classes (vector sources count as semantic, structured
// as traditional).
func (m *Merger) weightFor(source string) float64 {
	if w, ok := m.opts.SourceWeights[source]; ok {
		return w
	}
	class := source
	for i := 0; i < len(source); i++ {
		if source[i] == ':' {
			class = source[:i]
			break
		}
	}
	switch class {
	case "vector", "semantic":
		if w, ok := m.opts.SourceWeights["semantic"]; ok {
			return w
		}
	case "structured", "traditional":
		if w, ok := m.opts.SourceWeights["traditional"]; ok {
			return w
		}
	case "hybrid", "fulltext":
		if w, ok := m.opts.SourceWeights[class]; ok {
			return w
		}
	}
	return 1.0
}

// Merge fuses the per-source ranked lists. Input lists must already be
// ordered by descending raw score with 1-based ranks set.
func (m *Merger) Merge(sources map[string][]model.Candidate) []model.MergedResult {
	if m.opts.Strategy == model.FusionNone {
		return m.passthrough(sources)
	}

	byID := make(map[string]*model.MergedResult)
	sourceMax := make(map[string]float64, len(sources))
	for label, list := range sources {
		for _, c := range list {
			if c.Score > sourceMax[label] {
				sourceMax[label] = c.Score
			}
		}
	}

	for label, list := range sources {
		weight := m.weightFor(label)
		for _, c := range list {
			entry, ok := byID[c.RecordID]
			if !ok {
				entry = &model.MergedResult{
					Candidate:        c,
					OriginalRankings: make(map[string]model.SourceRanking),
				}
				byID[c.RecordID] = entry
			}

			entry.OriginalRankings[label] = model.SourceRanking{Rank: c.Rank, Score: c.Score}
			entry.Sources = append(entry.Sources, label)
			entry.SourceCount = len(entry.OriginalRankings)

			switch m.opts.Strategy {
			case model.FusionRRF, model.FusionHybrid:
				entry.RRFScore += weight * 1.0 / float64(m.opts.KValue+c.Rank)
			case model.FusionWeightedAverage:
				normalized := 0.0
				if sourceMax[label] > 0 {
					normalized = c.Score / sourceMax[label]
				}
				// Accumulate the weighted sum; the mean is taken below
				// once contributions are complete.
				entry.RRFScore += weight * normalized
			}

			if m.opts.PreserveMetadata {
				mergePayload(&entry.Payload, c.Payload)
			}
		}
	}

	results := make([]model.MergedResult, 0, len(byID))
	for _, entry := range byID {
		if m.opts.Strategy == model.FusionWeightedAverage {
			totalWeight := 0.0
			for label := range entry.OriginalRankings {
				totalWeight += m.weightFor(label)
			}
			if totalWeight > 0 {
				entry.RRFScore /= totalWeight
			}
		}
		if m.opts.Strategy == model.FusionHybrid {
			// Hybrid keeps rank-based RRF and applies source weights as
			// a multiplicative boost over the best contributing source.
			boost := 0.0
			for label := range entry.OriginalRankings {
				if w := m.weightFor(label); w > boost {
					boost = w
				}
			}
			if boost > 0 {
				entry.RRFScore *= boost
			}
		}
		sort.Strings(entry.Sources)
		entry.Sources = dedupeStrings(entry.Sources)
		results = append(results, *entry)
	}

	sortMerged(results)

	if len(results) > m.opts.MaxResults {
		results = results[:m.opts.MaxResults]
	}
	for i := range results {
		results[i].FinalRank = i + 1
	}
	return results
}

// passthrough handles strategy "none": the single input list is returned
// untouched apart from fusion bookkeeping.
func (m *Merger) passthrough(sources map[string][]model.Candidate) []model.MergedResult {
	var results []model.MergedResult
	for label, list := range sources {
		for _, c := range list {
			results = append(results, model.MergedResult{
				Candidate: c,
				RRFScore:  c.Score,
				OriginalRankings: map[string]model.SourceRanking{
					label: {Rank: c.Rank, Score: c.Score},
				},
				Sources:     []string{label},
				SourceCount: 1,
			})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Rank < results[j].Rank
	})
	if len(results) > m.opts.MaxResults {
		results = results[:m.opts.MaxResults]
	}
	for i := range results {
		results[i].FinalRank = i + 1
	}
	return results
}

// sortMerged orders by descending fused score with deterministic
// tie-breaks: larger source count, higher max raw score, lexicographic
// record ID.
func sortMerged(results []model.MergedResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := &results[i], &results[j]
		if a.RRFScore != b.RRFScore {
			return a.RRFScore > b.RRFScore
		}
		if a.SourceCount != b.SourceCount {
			return a.SourceCount > b.SourceCount
		}
		am, bm := a.MaxOriginalScore(), b.MaxOriginalScore()
		if am != bm {
			return am > bm
		}
		return a.RecordID < b.RecordID
	})
}

// mergePayload unions non-empty fields from src into dst.
func mergePayload(dst *model.Payload, src model.Payload) {
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.URL == "" {
		dst.URL = src.URL
	}
	if len(dst.Categories) == 0 {
		dst.Categories = src.Categories
	}
	if len(dst.Functionality) == 0 {
		dst.Functionality = src.Functionality
	}
	if len(dst.Interfaces) == 0 {
		dst.Interfaces = src.Interfaces
	}
	if len(dst.Pricing) == 0 {
		dst.Pricing = src.Pricing
	}
	dst.HasFreeTier = dst.HasFreeTier || src.HasFreeTier
}

func dedupeStrings(values []string) []string {
	out := values[:0]
	var prev string
	for i, v := range values {
		if i == 0 || v != prev {
			out = append(out, v)
		}
		prev = v
	}
	return out
}
