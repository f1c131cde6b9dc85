package model

import "time"

// Provenance records where a candidate came from inside a single source.
type Provenance struct {
	Space             VectorSpace   `json:"space,omitempty"`
	FiltersApplied    []FieldFilter `json:"filters_applied,omitempty"`
	QueryVectorSource string        `json:"query_vector_source,omitempty"`
}

// Candidate is one pre-fusion ranked entry produced by a single source.
// Source labels are opaque strings ("vector:semantic", "structured:tools")
// so new sources can be added without format changes.
type Candidate struct {
	RecordID   string     `json:"record_id"`
	Source     string     `json:"source"`
	Score      float64    `json:"score"`
	Rank       int        `json:"rank"`
	Payload    Payload    `json:"payload"`
	Provenance Provenance `json:"provenance"`
}

// SourceRanking is the per-source (rank, score) pair kept on merged results.
type SourceRanking struct {
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
}

// MergedResult is a Candidate enriched with cross-source fusion metadata.
type MergedResult struct {
	Candidate
	RRFScore         float64                  `json:"rrf_score"`
	OriginalRankings map[string]SourceRanking `json:"original_rankings,omitempty"`
	Sources          []string                 `json:"sources,omitempty"`
	SourceCount      int                      `json:"source_count"`
	FinalRank        int                      `json:"final_rank"`
}

// MaxOriginalScore returns the highest raw score any source reported for
// this result. Used as the second fusion tie-break.
func (m *MergedResult) MaxOriginalScore() float64 {
	max := m.Score
	for _, r := range m.OriginalRankings {
		if r.Score > max {
			max = r.Score
		}
	}
	return max
}

// DuplicateGroup is a set of record IDs judged equivalent by a strategy.
// The representative is the highest-ranked member before deduplication.
type DuplicateGroup struct {
	Members        []string `json:"members"`
	Strategy       string   `json:"strategy"`
	DuplicateType  string   `json:"duplicate_type,omitempty"`
	Similarity     float64  `json:"similarity"`
	Representative string   `json:"representative"`
}

// EntityValue is one frequency entry inside an entity-statistics dimension.
type EntityValue struct {
	Value         string  `json:"value"`
	Count         int     `json:"count"`
	Percentage    float64 `json:"percentage"`
	AvgSimilarity float64 `json:"avg_similarity"`
}

// EntityStatistics is the per-dimension value distribution computed over
// the sample a query retrieves.
type EntityStatistics struct {
	Dimensions map[string][]EntityValue `json:"dimensions"`
	Confidence float64                  `json:"confidence"`
	SampleSize int                      `json:"sample_size"`
}

// SpaceMetrics describes one space's share of a fan-out search.
type SpaceMetrics struct {
	SearchTime  time.Duration `json:"search_time"`
	ResultCount int           `json:"result_count"`
	AvgScore    float64       `json:"avg_score"`
	Error       string        `json:"error,omitempty"`
}
