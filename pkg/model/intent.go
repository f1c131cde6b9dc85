package model

import "fmt"

// Primary goals the intent extractor may emit.
const (
	GoalFind      = "find"
	GoalCompare   = "compare"
	GoalRecommend = "recommend"
	GoalExplore   = "explore"
	GoalAnalyze   = "analyze"
	GoalExplain   = "explain"
)

// Comparison modes.
const (
	CompareSimilarTo     = "similar_to"
	CompareVersus        = "vs"
	CompareAlternativeTo = "alternative_to"
)

// Pricing preferences.
const (
	PricingFree       = "free"
	PricingFreemium   = "freemium"
	PricingPaid       = "paid"
	PricingEnterprise = "enterprise"
)

// Intent is the schema-validated structured interpretation of a query.
type Intent struct {
	PrimaryGoal      string   `json:"primaryGoal" jsonschema:"enum=find,enum=compare,enum=recommend,enum=explore,enum=analyze,enum=explain"`
	ReferenceTool    string   `json:"referenceTool,omitempty"`
	ComparisonMode   string   `json:"comparisonMode,omitempty" jsonschema:"enum=similar_to,enum=vs,enum=alternative_to"`
	Pricing          string   `json:"pricing,omitempty" jsonschema:"enum=free,enum=freemium,enum=paid,enum=enterprise"`
	Category         string   `json:"category,omitempty"`
	Platform         string   `json:"platform,omitempty"`
	Features         []string `json:"features,omitempty"`
	Constraints      []string `json:"constraints,omitempty"`
	SemanticVariants []string `json:"semanticVariants,omitempty"`
	Confidence       float64  `json:"confidence"`
}

// Validate enforces the closed vocabularies of the intent schema.
func (in *Intent) Validate() error {
	switch in.PrimaryGoal {
	case GoalFind, GoalCompare, GoalRecommend, GoalExplore, GoalAnalyze, GoalExplain:
	default:
		return fmt.Errorf("invalid primaryGoal %q", in.PrimaryGoal)
	}
	if in.ComparisonMode != "" {
		switch in.ComparisonMode {
		case CompareSimilarTo, CompareVersus, CompareAlternativeTo:
		default:
			return fmt.Errorf("invalid comparisonMode %q", in.ComparisonMode)
		}
	}
	if in.Pricing != "" {
		switch in.Pricing {
		case PricingFree, PricingFreemium, PricingPaid, PricingEnterprise:
		default:
			return fmt.Errorf("invalid pricing %q", in.Pricing)
		}
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return fmt.Errorf("confidence %v out of [0,1]", in.Confidence)
	}
	return nil
}

// Query vector sources a plan may select per vector source.
const (
	QueryVectorFromText      = "query_text"
	QueryVectorFromReference = "reference_tool_embedding"
	QueryVectorFromVariant   = "semantic_variant"
)

// Fusion strategies.
const (
	FusionRRF             = "reciprocal_rank_fusion"
	FusionWeightedAverage = "weighted_average"
	FusionHybrid          = "hybrid"
	FusionNone            = "none"
)

// VectorSource is one planned vector-space search.
type VectorSource struct {
	Space             string        `json:"space"`
	QueryVectorSource string        `json:"queryVectorSource" jsonschema:"enum=query_text,enum=reference_tool_embedding,enum=semantic_variant"`
	TopK              int           `json:"topK"`
	Filter            []FieldFilter `json:"filter,omitempty"`
	EmbeddingHint     string        `json:"embeddingHint,omitempty"`
}

// StructuredSource is one planned document-store query.
type StructuredSource struct {
	Collection string        `json:"collection"`
	Predicates []FieldFilter `json:"predicates"`
	Limit      int           `json:"limit,omitempty"`
}

// RetrievalPlan is the schema-validated description of which sources to
// hit and how to fuse them.
type RetrievalPlan struct {
	Strategy          string             `json:"strategy"`
	VectorSources     []VectorSource     `json:"vectorSources,omitempty"`
	StructuredSources []StructuredSource `json:"structuredSources,omitempty"`
	Fusion            string             `json:"fusion" jsonschema:"enum=rrf,enum=weighted,enum=hybrid,enum=none"`
	Confidence        float64            `json:"confidence"`
}

// Validate rejects plans referencing unknown spaces, sources or fusion
// labels. An empty plan is legal here; the executor decides what it means.
func (p *RetrievalPlan) Validate() error {
	for i, vs := range p.VectorSources {
		if !ValidSpace(vs.Space) {
			return fmt.Errorf("vector source %d references unknown space %q", i, vs.Space)
		}
		switch vs.QueryVectorSource {
		case QueryVectorFromText, QueryVectorFromReference, QueryVectorFromVariant:
		default:
			return fmt.Errorf("vector source %d has invalid queryVectorSource %q", i, vs.QueryVectorSource)
		}
		if vs.TopK <= 0 {
			return fmt.Errorf("vector source %d has non-positive topK", i)
		}
		if err := ValidateFilters(vs.Filter); err != nil {
			return fmt.Errorf("vector source %d: %w", i, err)
		}
	}
	for i, ss := range p.StructuredSources {
		if ss.Collection == "" {
			return fmt.Errorf("structured source %d has empty collection", i)
		}
		if err := ValidateFilters(ss.Predicates); err != nil {
			return fmt.Errorf("structured source %d: %w", i, err)
		}
	}
	switch p.Fusion {
	case "rrf", "weighted", FusionHybrid, FusionNone:
	default:
		return fmt.Errorf("invalid fusion label %q", p.Fusion)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("plan confidence %v out of [0,1]", p.Confidence)
	}
	return nil
}

// Empty reports whether the plan names no sources at all.
func (p *RetrievalPlan) Empty() bool {
	return len(p.VectorSources) == 0 && len(p.StructuredSources) == 0
}
