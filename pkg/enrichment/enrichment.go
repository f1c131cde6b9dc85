// Package enrichment builds entity-distribution statistics over the
// corpus sample a query retrieves. The statistics feed planning and the
// response metadata; failures here never fail a search.
package enrichment

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/tooldex/tooldex/pkg/config"
	"github.com/tooldex/tooldex/pkg/embedders"
	"github.com/tooldex/tooldex/pkg/model"
	"github.com/tooldex/tooldex/pkg/vectordb"
)

// Strategy labels carried on the result so callers can tell a real
// enrichment from the degraded fallback.
const (
	StrategyMultiVector = "qdrant_multi_vector"
	StrategyFallback    = "fallback"
)

// Context is the enrichment result for one query.
type Context struct {
	Statistics         model.EntityStatistics `json:"statistics"`
	Assumptions        []string               `json:"assumptions,omitempty"`
	Strategy           string                 `json:"strategy"`
	MetadataConfidence float64                `json:"metadata_confidence"`
}

// Service computes entity statistics per query, with a TTL cache keyed by
// the exact query string.
type Service struct {
	embedder embedders.Provider
	store    vectordb.Store
	cfg      config.EnrichmentConfig
	cache    *expirable.LRU[string, *Context]
	logger   *slog.Logger
}

func NewService(embedder embedders.Provider, store vectordb.Store, cfg config.EnrichmentConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.SetDefaults()
	return &Service{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		cache:    expirable.NewLRU[string, *Context](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:   logger,
	}
}

// dimensionSpaces maps each statistics dimension to the space sampled for
// it and the payload field counted. Interfaces and pricing have no
// dedicated space; the semantic sample covers them.
var dimensionSpaces = []struct {
	dimension string
	space     model.VectorSpace
	field     func(model.Payload) []string
}{
	{"categories", model.SpaceCategories, func(p model.Payload) []string { return p.Categories }},
	{"functionality", model.SpaceFunctionality, func(p model.Payload) []string { return p.Functionality }},
	{"interfaces", model.SpaceSemantic, func(p model.Payload) []string { return p.Interfaces }},
	{"pricing", model.SpaceSemantic, func(p model.Payload) []string { return p.Pricing }},
}

// Enrich computes the entity distribution for a query. Adapter errors
// degrade to an empty-statistics fallback with confidence zero; the
// search proceeds without context either way.
func (s *Service) Enrich(ctx context.Context, query string) *Context {
	if cached, ok := s.cache.Get(query); ok {
		return cached
	}

	result := s.enrich(ctx, query)
	s.cache.Add(query, result)
	return result
}

func (s *Service) enrich(ctx context.Context, query string) *Context {
	started := time.Now()

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return s.fallback(query, "embedding failed: "+err.Error())
	}

	sampleSize := 2 * s.cfg.MaxEntitiesPerQuery
	dimensions := make(map[string][]model.EntityValue)
	var simSum float64
	var dimsWithData int
	var failures int

	// One search per distinct space; dimensions sharing a space reuse the
	// sample.
	samples := make(map[model.VectorSpace][]vectordb.Hit)
	for _, dim := range dimensionSpaces {
		hits, ok := samples[dim.space]
		if !ok {
			hits, err = s.store.Search(ctx, dim.space, queryVec, sampleSize, nil)
			if err != nil {
				failures++
				s.logger.Warn("enrichment space search failed",
					"space", string(dim.space), "error", err)
				samples[dim.space] = nil
				continue
			}
			samples[dim.space] = hits
		}
		if len(hits) == 0 {
			continue
		}

		values, avgSim := countValues(hits, dim.field, s.cfg.MinOccurrence, s.cfg.MaxEntitiesPerQuery)
		if len(values) == 0 {
			continue
		}
		dimensions[dim.dimension] = values
		simSum += avgSim
		dimsWithData++
	}

	if dimsWithData == 0 {
		if failures > 0 {
			return s.fallback(query, "every enrichment search failed")
		}
		return s.fallback(query, "no entity data in corpus sample")
	}

	confidence := (simSum / float64(dimsWithData)) * (float64(dimsWithData) / 3.0)
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	result := &Context{
		Statistics: model.EntityStatistics{
			Dimensions: dimensions,
			Confidence: confidence,
			SampleSize: sampleSize,
		},
		Assumptions:        heuristicAssumptions(query),
		Strategy:           StrategyMultiVector,
		MetadataConfidence: confidence,
	}

	s.logger.Debug("query enriched",
		"dimensions", dimsWithData,
		"confidence", confidence,
		"elapsed", time.Since(started))
	return result
}

func (s *Service) fallback(query, reason string) *Context {
	return &Context{
		Statistics: model.EntityStatistics{
			Dimensions: map[string][]model.EntityValue{},
		},
		Assumptions:        append(heuristicAssumptions(query), "enrichment unavailable: "+reason),
		Strategy:           StrategyFallback,
		MetadataConfidence: 0,
	}
}

// countValues computes the frequency distribution of one payload field
// over the sample. Values below minOccurrence share are dropped; the top
// maxValues survive. Returns the values and the sample's mean similarity.
func countValues(hits []vectordb.Hit, field func(model.Payload) []string, minOccurrence float64, maxValues int) ([]model.EntityValue, float64) {
	counts := make(map[string]int)
	simSums := make(map[string]float64)
	var totalSim float64

	for _, hit := range hits {
		totalSim += hit.Score
		for _, v := range field(hit.Payload) {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "" {
				continue
			}
			counts[v]++
			simSums[v] += hit.Score
		}
	}
	if len(counts) == 0 {
		return nil, 0
	}

	sample := float64(len(hits))
	values := make([]model.EntityValue, 0, len(counts))
	for v, n := range counts {
		pct := float64(n) / sample
		if pct < minOccurrence {
			continue
		}
		values = append(values, model.EntityValue{
			Value:         v,
			Count:         n,
			Percentage:    pct,
			AvgSimilarity: simSums[v] / float64(n),
		})
	}

	sort.Slice(values, func(i, j int) bool {
		if values[i].Count != values[j].Count {
			return values[i].Count > values[j].Count
		}
		return values[i].Value < values[j].Value
	})
	if len(values) > maxValues {
		values = values[:maxValues]
	}
	return values, totalSim / sample
}

// heuristicAssumptions derives cheap query-text signals the planner and
// the response metadata can surface.
func heuristicAssumptions(query string) []string {
	q := strings.ToLower(query)
	var assumptions []string
	if strings.Contains(q, "free") {
		assumptions = append(assumptions, "query mentions 'free': user prefers a free tier")
	}
	if strings.Contains(q, "open source") || strings.Contains(q, "open-source") {
		assumptions = append(assumptions, "query mentions open source: user prefers self-hostable tools")
	}
	if strings.Contains(q, "cheap") || strings.Contains(q, "cheaper") {
		assumptions = append(assumptions, "query mentions price pressure: rank lower-priced tiers higher")
	}
	if strings.Contains(q, "alternative") {
		assumptions = append(assumptions, "query asks for alternatives: exclude the reference tool itself")
	}
	return assumptions
}
