package pipeline

import (
	"fmt"
	"strings"

	"github.com/tooldex/tooldex/pkg/model"
	"github.com/tooldex/tooldex/pkg/search"
)

// MaxQueryLength is the hard cap on query size; longer input is rejected
// before any external call.
const MaxQueryLength = 500

// SourceFlags enables result source families.
type SourceFlags struct {
	Vector      bool `json:"vector"`
	Traditional bool `json:"traditional"`
	Hybrid      bool `json:"hybrid"`
}

// VectorOptions scopes the vector fan-out.
type VectorOptions struct {
	VectorTypes []string            `json:"vectorTypes,omitempty"`
	Limit       int                 `json:"limit,omitempty"`
	Filter      []model.FieldFilter `json:"filter,omitempty"`
}

// MergeOptions overrides the fusion knobs per request.
type MergeOptions struct {
	Strategy      string             `json:"strategy,omitempty"`
	RRFKValue     int                `json:"rrfKValue,omitempty"`
	MaxResults    int                `json:"maxResults,omitempty"`
	SourceWeights map[string]float64 `json:"sourceWeights,omitempty"`
}

// DuplicateDetectionOptions tunes the dedup pass per request.
type DuplicateDetectionOptions struct {
	Enabled              bool     `json:"enabled"`
	UseEnhancedDetection bool     `json:"useEnhancedDetection"`
	Threshold            float64  `json:"threshold,omitempty"`
	Strategies           []string `json:"strategies,omitempty"`
}

// Pagination selects the response window.
type Pagination struct {
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// Sort orders the final result window.
type Sort struct {
	Field string `json:"field,omitempty"` // relevance, name, category, score
	Order string `json:"order,omitempty"` // asc, desc
}

// Performance carries request-level budget knobs.
type Performance struct {
	TimeoutMs      int  `json:"timeout,omitempty"`
	EnableCache    bool `json:"enableCache"`
	EnableParallel bool `json:"enableParallel"`
}

// FeatureBlock is a generic enable/threshold feature toggle.
type FeatureBlock struct {
	Enabled   bool    `json:"enabled"`
	Threshold float64 `json:"threshold,omitempty"`
}

// SearchOptions is the full option surface of one search request.
type SearchOptions struct {
	Sources            SourceFlags               `json:"sources"`
	VectorOptions      VectorOptions             `json:"vectorOptions"`
	MergeOptions       MergeOptions              `json:"mergeOptions"`
	DuplicateDetection DuplicateDetectionOptions `json:"duplicateDetectionOptions"`
	Pagination         Pagination                `json:"pagination"`
	Sort               Sort                      `json:"sort"`
	Filters            []model.FieldFilter       `json:"filters,omitempty"`
	Performance        Performance               `json:"performance"`
	ContextEnrichment  FeatureBlock              `json:"contextEnrichment"`
	LocalNLP           FeatureBlock              `json:"localNLP"`
	MultiVectorSearch  FeatureBlock              `json:"multiVectorSearch"`

	Debug                      bool `json:"debug"`
	IncludeMetadata            bool `json:"includeMetadata"`
	IncludeSourceAttribution   bool `json:"includeSourceAttribution"`
	IncludeExecutionMetrics    bool `json:"includeExecutionMetrics"`
	IncludeConfidenceBreakdown bool `json:"includeConfidenceBreakdown"`
}

// SearchRequest is the inbound search operation.
type SearchRequest struct {
	Query   string        `json:"query"`
	Options SearchOptions `json:"options"`
}

// Validate rejects malformed requests before any external call is made.
func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return model.NewError(model.CodeInputInvalid, "Pipeline", "Validate",
			"query cannot be empty", nil)
	}
	if len(r.Query) > MaxQueryLength {
		return model.NewError(model.CodeInputInvalid, "Pipeline", "Validate",
			fmt.Sprintf("query exceeds %d characters", MaxQueryLength), nil)
	}

	o := &r.Options
	if o.VectorOptions.Limit < 0 || o.VectorOptions.Limit > 100 {
		return model.NewError(model.CodeInputInvalid, "Pipeline", "Validate",
			"vector limit out of 1..100", nil)
	}
	for _, space := range o.VectorOptions.VectorTypes {
		if !model.ValidSpace(space) {
			return model.NewError(model.CodeInputInvalid, "Pipeline", "Validate",
				fmt.Sprintf("unknown vector space %q", space), nil)
		}
	}
	if err := model.ValidateFilters(o.VectorOptions.Filter); err != nil {
		return model.NewError(model.CodeInputInvalid, "Pipeline", "Validate",
			"malformed vector filter", err)
	}
	if err := model.ValidateFilters(o.Filters); err != nil {
		return model.NewError(model.CodeInputInvalid, "Pipeline", "Validate",
			"malformed filter", err)
	}

	if s := o.MergeOptions.Strategy; s != "" {
		switch s {
		case model.FusionRRF, model.FusionWeightedAverage, model.FusionHybrid:
		default:
			return model.NewError(model.CodeInputInvalid, "Pipeline", "Validate",
				fmt.Sprintf("unknown merge strategy %q", s), nil)
		}
	}
	if k := o.MergeOptions.RRFKValue; k < 0 || k > 200 {
		return model.NewError(model.CodeInputInvalid, "Pipeline", "Validate",
			"rrfKValue out of 1..200", nil)
	}
	if m := o.MergeOptions.MaxResults; m < 0 || m > 200 {
		return model.NewError(model.CodeInputInvalid, "Pipeline", "Validate",
			"maxResults out of 1..200", nil)
	}

	if t := o.DuplicateDetection.Threshold; t < 0 || t > 1 {
		return model.NewError(model.CodeInputInvalid, "Pipeline", "Validate",
			"duplicate threshold out of [0,1]", nil)
	}

	if p := o.Pagination; p.Page < 0 || p.Limit < 0 || p.Limit > 100 {
		return model.NewError(model.CodeInputInvalid, "Pipeline", "Validate",
			"pagination out of range", nil)
	}
	if s := o.Sort.Field; s != "" {
		switch s {
		case "relevance", "name", "category", "score":
		default:
			return model.NewError(model.CodeInputInvalid, "Pipeline", "Validate",
				fmt.Sprintf("unknown sort field %q", s), nil)
		}
	}
	if ord := o.Sort.Order; ord != "" && ord != "asc" && ord != "desc" {
		return model.NewError(model.CodeInputInvalid, "Pipeline", "Validate",
			fmt.Sprintf("unknown sort order %q", ord), nil)
	}

	if t := o.Performance.TimeoutMs; t != 0 && (t < 100 || t > 30000) {
		return model.NewError(model.CodeInputInvalid, "Pipeline", "Validate",
			"timeout out of 100..30000 ms", nil)
	}
	return nil
}

// SourceAttribution is the per-source contribution breakdown.
type SourceAttribution struct {
	Source      string  `json:"source"`
	ResultCount int     `json:"result_count"`
	AvgScore    float64 `json:"avg_score"`
	SearchTime  string  `json:"search_time"`
	Error       string  `json:"error,omitempty"`
}

// Summary aggregates one request's outcome.
type Summary struct {
	TotalResults      int     `json:"total_results"`
	ProcessingTimeMs  int64   `json:"processing_time_ms"`
	SourcesSearched   int     `json:"sources_searched"`
	DuplicatesRemoved int     `json:"duplicates_removed"`
	SearchStrategy    string  `json:"search_strategy"`
	Confidence        float64 `json:"confidence"`
}

// StageError is one entry in the append-only error log of a request.
type StageError struct {
	Stage   string          `json:"stage"`
	Code    model.ErrorCode `json:"code"`
	Message string          `json:"message"`
	Source  string          `json:"source,omitempty"`
}

// PaginationInfo reports the window the response covers.
type PaginationInfo struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalItems int  `json:"total_items"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// DebugInfo is attached only when the request asked for it.
type DebugInfo struct {
	Intent         *model.Intent        `json:"intent,omitempty"`
	Plan           *model.RetrievalPlan `json:"plan,omitempty"`
	ExecutionPath  []string             `json:"execution_path,omitempty"`
	NodeTimesMs    map[string]int64     `json:"node_times_ms,omitempty"`
	EnrichStrategy string               `json:"enrichment_strategy,omitempty"`
}

// SearchResponse is the outbound result of one search operation.
type SearchResponse struct {
	RequestID         string                  `json:"request_id"`
	Results           []model.MergedResult    `json:"results"`
	Summary           Summary                 `json:"summary"`
	SourceAttribution []SourceAttribution     `json:"source_attribution,omitempty"`
	DuplicateGroups   []model.DuplicateGroup  `json:"duplicate_groups,omitempty"`
	DedupStats        *search.DedupStats      `json:"duplicate_detection,omitempty"`
	EntityStatistics  *model.EntityStatistics `json:"entity_statistics,omitempty"`
	Errors            []StageError            `json:"errors,omitempty"`
	Pagination        *PaginationInfo         `json:"pagination,omitempty"`
	Debug             *DebugInfo              `json:"debug,omitempty"`
}
