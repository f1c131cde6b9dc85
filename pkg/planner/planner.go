package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tooldex/tooldex/pkg/llms"
	"github.com/tooldex/tooldex/pkg/model"
)

// Options tunes the query planner.
type Options struct {
	// MinIntentConfidence is the floor below which the planner returns an
	// empty plan instead of guessing sources.
	MinIntentConfidence float64

	// DefaultTopK is the per-space result budget when the plan does not
	// set one.
	DefaultTopK int
}

func (o *Options) setDefaults() {
	if o.MinIntentConfidence == 0 {
		o.MinIntentConfidence = 0.2
	}
	if o.DefaultTopK == 0 {
		o.DefaultTopK = 20
	}
}

// Planner builds the retrieval plan for an intent. With an LLM attached
// it asks the model to plan and validates the result; without one it
// falls back to deterministic rules. Either way the returned plan passed
// schema validation.
type Planner struct {
	llm    llms.Provider
	opts   Options
	prompt string
	logger *slog.Logger
}

// NewPlanner builds a planner. llm may be nil, in which case every plan
// comes from the rule-based path.
func NewPlanner(llm llms.Provider, opts Options, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	opts.setDefaults()
	return &Planner{
		llm:    llm,
		opts:   opts,
		prompt: planSystemPrompt(),
		logger: logger,
	}
}

// Plan decides which sources to hit for the given intent. A plan empty in
// both source lists is produced only when intent confidence is below the
// configured floor; the executor records that decision and returns no
// candidates.
func (p *Planner) Plan(ctx context.Context, intent *model.Intent, query string) (*model.RetrievalPlan, error) {
	if intent.Confidence < p.opts.MinIntentConfidence {
		p.logger.Info("intent confidence below floor, planning no sources",
			"confidence", intent.Confidence,
			"floor", p.opts.MinIntentConfidence)
		return &model.RetrievalPlan{
			Strategy:   "low_confidence_skip",
			Fusion:     model.FusionNone,
			Confidence: intent.Confidence,
		}, nil
	}

	if p.llm == nil {
		return p.ruleBasedPlan(intent), nil
	}

	plan, err := p.llmPlan(ctx, intent, query)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (p *Planner) llmPlan(ctx context.Context, intent *model.Intent, query string) (*model.RetrievalPlan, error) {
	intentJSON, err := json.Marshal(intent)
	if err != nil {
		return nil, model.NewError(model.CodePlanInvalid, "Planner", "Plan",
			"failed to serialize intent", err)
	}

	raw, err := p.llm.Complete(ctx, llms.CompletionRequest{
		System:   p.prompt,
		User:     fmt.Sprintf("Query: %s\nIntent: %s", query, string(intentJSON)),
		JSONMode: true,
	})
	if err != nil {
		return nil, model.NewError(model.CodePlanInvalid, "Planner", "Plan",
			"plan completion failed", err)
	}

	var plan model.RetrievalPlan
	switch decodeStrict(raw, &plan) {
	case parsedClean:
	case parsedAfterRepair:
		p.logger.Debug("plan JSON required trailing-comma repair")
	case parseInvalid:
		return nil, model.NewError(model.CodePlanInvalid, "Planner", "Plan",
			"plan response is not valid JSON after one repair attempt", nil)
	}

	p.normalize(&plan, intent)
	if err := plan.Validate(); err != nil {
		return nil, model.NewError(model.CodePlanInvalid, "Planner", "Plan",
			fmt.Sprintf("plan failed schema validation: %v", err), nil)
	}
	if plan.Empty() && intent.Confidence >= p.opts.MinIntentConfidence {
		// The model refused to plan a confident intent; rules cover it.
		p.logger.Warn("LLM produced an empty plan for a confident intent, using rules")
		return p.ruleBasedPlan(intent), nil
	}
	return &plan, nil
}

// normalize fills gaps the model commonly leaves: missing topK, missing
// fusion label, zero confidence.
func (p *Planner) normalize(plan *model.RetrievalPlan, intent *model.Intent) {
	for i := range plan.VectorSources {
		if plan.VectorSources[i].TopK <= 0 {
			plan.VectorSources[i].TopK = p.opts.DefaultTopK
		}
		if plan.VectorSources[i].QueryVectorSource == "" {
			plan.VectorSources[i].QueryVectorSource = model.QueryVectorFromText
		}
	}
	if plan.Fusion == "" {
		if len(plan.VectorSources)+len(plan.StructuredSources) > 1 {
			plan.Fusion = "rrf"
		} else {
			plan.Fusion = model.FusionNone
		}
	}
	if plan.Confidence == 0 {
		plan.Confidence = intent.Confidence
	}
	if plan.Strategy == "" {
		plan.Strategy = "llm_planned"
	}
}

// ruleBasedPlan is the deterministic fallback: semantic search always,
// alias search for reference tools, entity spaces for explicit category
// intents, structured pushdown for pricing and platform.
func (p *Planner) ruleBasedPlan(intent *model.Intent) *model.RetrievalPlan {
	plan := &model.RetrievalPlan{
		Strategy:   "rule_based",
		Confidence: intent.Confidence,
	}

	plan.VectorSources = append(plan.VectorSources, model.VectorSource{
		Space:             string(model.SpaceSemantic),
		QueryVectorSource: model.QueryVectorFromText,
		TopK:              p.opts.DefaultTopK,
	})

	if intent.ReferenceTool != "" {
		plan.VectorSources = append(plan.VectorSources, model.VectorSource{
			Space:             string(model.SpaceAliases),
			QueryVectorSource: model.QueryVectorFromReference,
			TopK:              p.opts.DefaultTopK,
		})
	}
	if intent.Category != "" {
		plan.VectorSources = append(plan.VectorSources, model.VectorSource{
			Space:             string(model.SpaceCategories),
			QueryVectorSource: model.QueryVectorFromText,
			TopK:              p.opts.DefaultTopK,
		})
	}
	if len(intent.SemanticVariants) > 0 {
		plan.VectorSources = append(plan.VectorSources, model.VectorSource{
			Space:             string(model.SpaceSemantic),
			QueryVectorSource: model.QueryVectorFromVariant,
			TopK:              p.opts.DefaultTopK,
		})
	}

	var predicates []model.FieldFilter
	if intent.Pricing == model.PricingFree || intent.Pricing == model.PricingFreemium {
		predicates = append(predicates, model.FieldFilter{
			Field: "pricing.hasFreeTier", Operator: model.OpEqual, Value: true,
		})
	}
	if intent.Category != "" {
		predicates = append(predicates, model.FieldFilter{
			Field: "categories", Operator: model.OpContains, Value: intent.Category,
		})
	}
	if intent.Platform != "" {
		predicates = append(predicates, model.FieldFilter{
			Field: "interfaces", Operator: model.OpContains, Value: intent.Platform,
		})
	}
	if len(predicates) > 0 {
		plan.StructuredSources = append(plan.StructuredSources, model.StructuredSource{
			Collection: "tools",
			Predicates: predicates,
			Limit:      p.opts.DefaultTopK,
		})
	}

	if len(plan.VectorSources)+len(plan.StructuredSources) > 1 {
		plan.Fusion = "rrf"
	} else {
		plan.Fusion = model.FusionNone
	}
	return plan
}
