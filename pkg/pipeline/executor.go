package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tooldex/tooldex/pkg/catalog"
	"github.com/tooldex/tooldex/pkg/config"
	"github.com/tooldex/tooldex/pkg/embedders"
	"github.com/tooldex/tooldex/pkg/enrichment"
	"github.com/tooldex/tooldex/pkg/model"
	"github.com/tooldex/tooldex/pkg/search"
)

// SourceOutcome is one source's share of an execution: its opaque label,
// ranked candidates, and metrics (including the error that emptied it).
type SourceOutcome struct {
	Label      string
	Candidates []model.Candidate
	Metrics    model.SpaceMetrics
}

// ExecutionResult carries everything one plan execution produced.
type ExecutionResult struct {
	Results    []model.MergedResult
	Groups     []model.DuplicateGroup
	DedupStats *search.DedupStats
	Sources    []SourceOutcome
	Errors     []StageError
	Confidence float64
	Strategy   string
	Enrichment *enrichment.Context
}

// Executor runs retrieval plans: vector sources through the fan-out
// retriever and structured sources through the catalog, all in parallel,
// then fusion and deduplication. Per-source failures degrade the result;
// only a total failure empties it.
type Executor struct {
	embedder  embedders.Provider
	retriever *search.Retriever
	catalog   catalog.Store
	enricher  *enrichment.Service

	fusion        config.FusionConfig
	dedup         config.DedupConfig
	sourceTimeout time.Duration
	logger        *slog.Logger
}

func NewExecutor(
	embedder embedders.Provider,
	retriever *search.Retriever,
	store catalog.Store,
	enricher *enrichment.Service,
	fusion config.FusionConfig,
	dedup config.DedupConfig,
	sourceTimeout time.Duration,
	logger *slog.Logger,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if sourceTimeout <= 0 {
		sourceTimeout = 5 * time.Second
	}
	fusion.SetDefaults()
	dedup.SetDefaults()
	return &Executor{
		embedder:      embedder,
		retriever:     retriever,
		catalog:       store,
		enricher:      enricher,
		fusion:        fusion,
		dedup:         dedup,
		sourceTimeout: sourceTimeout,
		logger:        logger,
	}
}

// Execute runs the plan. The returned error is non-nil only for
// configuration-level failures; source failures are folded into the
// result's error log.
func (e *Executor) Execute(ctx context.Context, plan *model.RetrievalPlan, intent *model.Intent, query string, opts *SearchOptions) (*ExecutionResult, error) {
	result := &ExecutionResult{Strategy: plan.Strategy}

	if plan.Empty() {
		result.Errors = append(result.Errors, StageError{
			Stage:   "execute",
			Code:    model.CodeInputInvalid,
			Message: "plan names no sources (intent confidence below floor)",
		})
		return result, nil
	}

	var enrichWG sync.WaitGroup
	if e.enricher != nil && opts.ContextEnrichment.Enabled {
		enrichWG.Add(1)
		go func() {
			defer enrichWG.Done()
			result.Enrichment = e.enricher.Enrich(ctx, query)
		}()
	}

	vectors, err := e.resolveQueryVectors(ctx, plan, intent, query)
	if err != nil {
		enrichWG.Wait()
		// No vector can be produced; structured sources may still run.
		result.Errors = append(result.Errors, StageError{
			Stage:   "execute",
			Code:    model.CodeOf(err),
			Message: err.Error(),
		})
		if len(plan.StructuredSources) == 0 {
			result.Confidence = 0
			return result, nil
		}
	}

	outcomes := e.runSources(ctx, plan, opts, vectors)
	enrichWG.Wait()

	if mode := intent.ComparisonMode; mode == model.CompareAlternativeTo && intent.ReferenceTool != "" {
		excludeRecord(outcomes, intent.ReferenceTool)
	}

	result.Sources = outcomes
	sources := make(map[string][]model.Candidate, len(outcomes))
	failed := 0
	for _, o := range outcomes {
		if o.Metrics.Error != "" {
			failed++
			result.Errors = append(result.Errors, StageError{
				Stage:   "execute",
				Code:    errorCodeFor(o.Metrics.Error, o.Label),
				Message: o.Metrics.Error,
				Source:  o.Label,
			})
			continue
		}
		sources[o.Label] = o.Candidates
	}

	if len(sources) == 0 {
		result.Confidence = 0
		return result, nil
	}
	if failed > 0 {
		result.Errors = append(result.Errors, StageError{
			Stage:   "execute",
			Code:    model.CodePartialFailure,
			Message: fmt.Sprintf("%d of %d sources failed", failed, len(outcomes)),
		})
	}

	merged, strategy, err := e.fuse(plan, opts, sources)
	if err != nil {
		return nil, err
	}
	result.Strategy = strategy

	if opts.DuplicateDetection.Enabled {
		merged = e.deduplicate(merged, opts, result)
	}

	finalize(merged, len(sources) == 1)
	result.Results = merged
	result.Confidence = plan.Confidence * float64(len(sources)) / float64(len(outcomes))
	return result, nil
}

// resolveQueryVectors embeds every distinct text the plan's vector
// sources need: the query itself, the reference tool name, the first
// semantic variant.
func (e *Executor) resolveQueryVectors(ctx context.Context, plan *model.RetrievalPlan, intent *model.Intent, query string) (map[string][]float32, error) {
	texts := make(map[string]string)
	for _, vs := range plan.VectorSources {
		switch vs.QueryVectorSource {
		case model.QueryVectorFromText:
			texts[model.QueryVectorFromText] = query
		case model.QueryVectorFromReference:
			if intent.ReferenceTool != "" {
				texts[model.QueryVectorFromReference] = intent.ReferenceTool
			} else {
				texts[model.QueryVectorFromReference] = query
			}
		case model.QueryVectorFromVariant:
			if len(intent.SemanticVariants) > 0 {
				texts[model.QueryVectorFromVariant] = intent.SemanticVariants[0]
			} else {
				texts[model.QueryVectorFromVariant] = query
			}
		}
	}
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(texts))
	inputs := make([]string, 0, len(texts))
	for k, t := range texts {
		keys = append(keys, k)
		inputs = append(inputs, t)
	}
	embedded, err := e.embedder.EmbedBatch(ctx, inputs)
	if err != nil {
		return nil, err
	}

	vectors := make(map[string][]float32, len(keys))
	for i, k := range keys {
		vectors[k] = embedded[i]
	}
	return vectors, nil
}

// runSources fans out every planned source in parallel: vector sources
// through the retriever, structured sources through the catalog, each
// under the per-source timeout.
func (e *Executor) runSources(ctx context.Context, plan *model.RetrievalPlan, opts *SearchOptions, vectors map[string][]float32) []SourceOutcome {
	spaceQueries, labels := e.vectorQueries(plan, opts, vectors)

	outcomes := make([]SourceOutcome, len(spaceQueries)+len(plan.StructuredSources))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		spaceResults := e.retriever.SearchSpaces(ctx, spaceQueries)
		for i, sr := range spaceResults {
			relabel(sr.Candidates, labels[i])
			outcomes[i] = SourceOutcome{
				Label:      labels[i],
				Candidates: sr.Candidates,
				Metrics:    sr.Metrics,
			}
		}
	}()

	for j, ss := range plan.StructuredSources {
		wg.Add(1)
		go func(j int, ss model.StructuredSource) {
			defer wg.Done()
			outcomes[len(spaceQueries)+j] = e.runStructured(ctx, ss, opts)
		}(j, ss)
	}
	wg.Wait()

	return outcomes
}

// vectorQueries converts the plan's vector sources into fan-out legs.
// Request-level vector options narrow the spaces and cap topK; request
// filters are conjoined with each source's own.
func (e *Executor) vectorQueries(plan *model.RetrievalPlan, opts *SearchOptions, vectors map[string][]float32) ([]search.SpaceQuery, []string) {
	allowed := make(map[string]bool)
	for _, s := range opts.VectorOptions.VectorTypes {
		allowed[s] = true
	}

	var queries []search.SpaceQuery
	var labels []string
	for _, vs := range plan.VectorSources {
		if len(allowed) > 0 && !allowed[vs.Space] {
			continue
		}
		vec, ok := vectors[vs.QueryVectorSource]
		if !ok {
			continue
		}

		topK := vs.TopK
		if lim := opts.VectorOptions.Limit; lim > 0 && lim < topK {
			topK = lim
		}

		filters := append([]model.FieldFilter{}, vs.Filter...)
		filters = append(filters, opts.VectorOptions.Filter...)
		filters = append(filters, opts.Filters...)

		queries = append(queries, search.SpaceQuery{
			Space:             model.VectorSpace(vs.Space),
			Vector:            vec,
			TopK:              topK,
			Filters:           filters,
			QueryVectorSource: vs.QueryVectorSource,
		})
		labels = append(labels, vectorLabel(vs))
	}
	return queries, labels
}

// vectorLabel keeps fusion labels unique when the same space is queried
// with different vector sources.
func vectorLabel(vs model.VectorSource) string {
	label := "vector:" + vs.Space
	switch vs.QueryVectorSource {
	case model.QueryVectorFromReference:
		return label + ":ref"
	case model.QueryVectorFromVariant:
		return label + ":variant"
	}
	return label
}

func relabel(candidates []model.Candidate, label string) {
	for i := range candidates {
		candidates[i].Source = label
	}
}

// runStructured executes one catalog query and ranks its unordered
// records deterministically (name, then ID) with scores descending from
// one.
func (e *Executor) runStructured(ctx context.Context, ss model.StructuredSource, opts *SearchOptions) SourceOutcome {
	label := "structured:" + ss.Collection
	outcome := SourceOutcome{Label: label}
	started := time.Now()

	srcCtx, cancel := context.WithTimeout(ctx, e.sourceTimeout)
	defer cancel()

	limit := ss.Limit
	if limit <= 0 {
		limit = 20
	}
	filters := append([]model.FieldFilter{}, ss.Predicates...)
	filters = append(filters, opts.Filters...)

	records, err := e.catalog.Search(srcCtx, filters, limit)
	outcome.Metrics.SearchTime = time.Since(started)
	if err != nil {
		if srcCtx.Err() == context.DeadlineExceeded {
			err = model.NewError(model.CodeTimeout, "Executor", "runStructured",
				fmt.Sprintf("structured source %s timed out after %s", ss.Collection, e.sourceTimeout), err)
		}
		outcome.Metrics.Error = err.Error()
		e.logger.Warn("structured source failed", "collection", ss.Collection, "error", err)
		return outcome
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Name != records[j].Name {
			return records[i].Name < records[j].Name
		}
		return records[i].ID < records[j].ID
	})

	now := time.Now()
	outcome.Candidates = make([]model.Candidate, len(records))
	total := float64(len(records))
	var scoreSum float64
	for i := range records {
		score := 1.0 - float64(i)/total
		scoreSum += score
		outcome.Candidates[i] = model.Candidate{
			RecordID: records[i].ID,
			Source:   label,
			Score:    score,
			Rank:     i + 1,
			Payload:  model.ProjectPayload(&records[i], now),
			Provenance: model.Provenance{
				FiltersApplied:    filters,
				QueryVectorSource: "",
			},
		}
	}
	outcome.Metrics.ResultCount = len(records)
	if len(records) > 0 {
		outcome.Metrics.AvgScore = scoreSum / total
	}
	return outcome
}

// fuse resolves the effective fusion strategy (request override first,
// then the plan) and merges the per-source lists.
func (e *Executor) fuse(plan *model.RetrievalPlan, opts *SearchOptions, sources map[string][]model.Candidate) ([]model.MergedResult, string, error) {
	strategy := opts.MergeOptions.Strategy
	if strategy == "" {
		strategy = fusionStrategy(plan.Fusion)
	}

	kValue := opts.MergeOptions.RRFKValue
	if kValue == 0 {
		kValue = e.fusion.KValue
	}
	maxResults := opts.MergeOptions.MaxResults
	if maxResults == 0 {
		maxResults = e.fusion.MaxResults
	}

	weights := make(map[string]float64, len(e.fusion.SourceWeights))
	for k, v := range e.fusion.SourceWeights {
		weights[k] = v
	}
	for k, v := range opts.MergeOptions.SourceWeights {
		weights[k] = v
	}

	merger, err := search.NewMerger(search.MergeOptions{
		Strategy:         strategy,
		KValue:           kValue,
		MaxResults:       maxResults,
		SourceWeights:    weights,
		PreserveMetadata: opts.IncludeMetadata || opts.IncludeSourceAttribution,
	})
	if err != nil {
		return nil, "", err
	}
	return merger.Merge(sources), strategy, nil
}

// fusionStrategy maps the plan's fusion label onto a merger strategy.
func fusionStrategy(label string) string {
	switch label {
	case "rrf", "":
		return model.FusionRRF
	case "weighted":
		return model.FusionWeightedAverage
	default:
		return label
	}
}

func (e *Executor) deduplicate(merged []model.MergedResult, opts *SearchOptions, result *ExecutionResult) []model.MergedResult {
	detector, err := search.NewDetector(search.DedupOptions{
		Strategies:         search.NormalizeStrategyNames(opts.DuplicateDetection.Strategies),
		Threshold:          opts.DuplicateDetection.Threshold,
		ContentThreshold:   e.dedup.ContentThreshold,
		VersionThreshold:   e.dedup.VersionThreshold,
		FuzzyThreshold:     e.dedup.FuzzyThreshold,
		CombinedThreshold:  e.dedup.CombinedThreshold,
		CombinedWeightSum:  e.dedup.CombinedWeightSum,
		MaxComparisonItems: e.dedup.MaxComparisonItems,
		CacheSize:          e.dedup.CacheSize,
		Workers:            e.dedup.Workers,
	}, e.logger)
	if err != nil {
		// Request-level thresholds are validated upstream; reaching this
		// means a config regression. Skip dedup rather than fail.
		e.logger.Error("dedup detector construction failed", "error", err)
		result.Errors = append(result.Errors, StageError{
			Stage:   "dedup",
			Code:    model.CodeFatalConfig,
			Message: err.Error(),
		})
		return merged
	}

	detected := detector.Detect(merged)
	result.Groups = detected.Groups
	result.DedupStats = &detected.Stats
	return detected.Items
}

// finalize reassigns final ranks after dedup and sets the normalized
// score: position-based for a single source, the fused score otherwise.
func finalize(results []model.MergedResult, singleSource bool) {
	total := float64(len(results))
	for i := range results {
		results[i].FinalRank = i + 1
		if singleSource {
			results[i].Score = 1.0 - float64(i)/total
		} else {
			results[i].Score = results[i].RRFScore
		}
	}
}

// excludeRecord drops candidates whose name matches the reference tool,
// for alternative_to comparisons.
func excludeRecord(outcomes []SourceOutcome, name string) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for i := range outcomes {
		kept := outcomes[i].Candidates[:0]
		for _, c := range outcomes[i].Candidates {
			if strings.ToLower(strings.TrimSpace(c.Payload.Name)) == needle {
				continue
			}
			kept = append(kept, c)
		}
		// Re-rank after the exclusion so downstream fusion sees dense
		// 1-based ranks.
		for r := range kept {
			kept[r].Rank = r + 1
		}
		outcomes[i].Candidates = kept
	}
}

// errorCodeFor recovers the classification from a metrics error string.
// Metrics carry strings, not errors, so timeouts are matched textually.
func errorCodeFor(message, label string) model.ErrorCode {
	if strings.Contains(message, "timed out") || strings.Contains(message, "deadline exceeded") {
		return model.CodeTimeout
	}
	if strings.HasPrefix(label, "structured:") {
		return model.CodeDocumentStoreError
	}
	return model.CodeVectorStoreError
}
