package search

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tooldex/tooldex/pkg/model"
)

// DedupOptions configures the duplicate detector. Zero values fall back
// to the documented defaults; out-of-range thresholds are rejected at
// construction.
type DedupOptions struct {
	// Strategies restricts the pipeline to the named built-in strategies,
	// in pipeline priority order. Empty means all of them.
	Strategies []string

	// Threshold overrides the content-similarity threshold when non-zero.
	Threshold float64

	FieldWeights      *FieldWeights
	ContentThreshold  float64
	VersionThreshold  float64
	FuzzyThreshold    float64
	CombinedThreshold float64

	// CombinedWeightSum selects the weight-sum reading of COMBINED;
	// false makes it OR-aggregate the component strategies.
	CombinedWeightSum bool

	// MaxComparisonItems bounds the quadratic pairwise pass. Above it,
	// items are bucketed by the first name token and compared per bucket.
	MaxComparisonItems int

	CacheSize int
	Workers   int

	CustomRules []CustomRule
}

// DedupStats summarises one detection run.
type DedupStats struct {
	ProcessingTime    time.Duration `json:"processing_time"`
	TotalItems        int           `json:"total_items"`
	DuplicatesRemoved int           `json:"duplicates_removed"`
	Comparisons       int           `json:"comparisons"`
	CacheHits         int           `json:"cache_hits"`
	CacheMisses       int           `json:"cache_misses"`
	StrategyErrors    int           `json:"strategy_errors"`
}

// DedupResult is the outcome of one detection run: surviving
// representatives in their original order, the groups that were folded,
// and run statistics.
type DedupResult struct {
	Items  []model.MergedResult   `json:"items"`
	Groups []model.DuplicateGroup `json:"groups"`
	Stats  DedupStats             `json:"stats"`
}

type pairKey struct {
	left     string
	right    string
	strategy string
}

// Detector folds equivalent results into duplicate groups using a
// priority-ordered strategy pipeline. Detection is idempotent: running
// it over its own output changes nothing.
type Detector struct {
	opts     DedupOptions
	pipeline []PairStrategy
	cache    *lru.Cache[pairKey, Verdict]
	logger   *slog.Logger
}

func NewDetector(opts DedupOptions, logger *slog.Logger) (*Detector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	applyDedupDefaults(&opts)

	for _, v := range []float64{opts.Threshold, opts.ContentThreshold, opts.VersionThreshold, opts.FuzzyThreshold, opts.CombinedThreshold} {
		if v < 0 || v > 1 {
			return nil, model.NewError(model.CodeFatalConfig, "Detector", "NewDetector",
				"dedup threshold out of [0,1]", nil)
		}
	}

	d := &Detector{opts: opts, logger: logger}
	d.pipeline = d.buildPipeline()

	if opts.CacheSize > 0 {
		cache, err := lru.New[pairKey, Verdict](opts.CacheSize)
		if err != nil {
			return nil, model.NewError(model.CodeFatalConfig, "Detector", "NewDetector",
				"failed to build pair cache", err)
		}
		d.cache = cache
	}
	return d, nil
}

func applyDedupDefaults(opts *DedupOptions) {
	if opts.ContentThreshold == 0 {
		opts.ContentThreshold = 0.8
	}
	if opts.Threshold != 0 {
		opts.ContentThreshold = opts.Threshold
	}
	if opts.VersionThreshold == 0 {
		opts.VersionThreshold = 0.85
	}
	if opts.FuzzyThreshold == 0 {
		opts.FuzzyThreshold = 0.7
	}
	if opts.CombinedThreshold == 0 {
		opts.CombinedThreshold = 0.75
	}
	if opts.MaxComparisonItems == 0 {
		opts.MaxComparisonItems = 1000
	}
	if opts.Workers == 0 {
		opts.Workers = 4
	}
	if opts.FieldWeights == nil {
		w := DefaultFieldWeights()
		opts.FieldWeights = &w
	}
}

// buildPipeline assembles strategies in priority order, filtered to the
// requested set, with custom rules spliced in at their priority index.
func (d *Detector) buildPipeline() []PairStrategy {
	weights := *d.opts.FieldWeights
	content := contentStrategy{weights: weights, threshold: d.opts.ContentThreshold}
	version := versionStrategy{weights: weights, threshold: d.opts.VersionThreshold}
	fuzzy := fuzzyStrategy{threshold: d.opts.FuzzyThreshold}

	builtins := []PairStrategy{
		exactIDStrategy{},
		exactURLStrategy{},
		content,
		version,
		fuzzy,
		combinedStrategy{
			content:   content,
			version:   version,
			fuzzy:     fuzzy,
			threshold: d.opts.CombinedThreshold,
			weightSum: d.opts.CombinedWeightSum,
		},
	}

	if len(d.opts.Strategies) > 0 {
		enabled := make(map[string]bool, len(d.opts.Strategies))
		for _, name := range d.opts.Strategies {
			enabled[name] = true
		}
		filtered := builtins[:0]
		for _, s := range builtins {
			if enabled[s.Name()] {
				filtered = append(filtered, s)
			}
		}
		builtins = filtered
	}

	rules := make([]CustomRule, len(d.opts.CustomRules))
	copy(rules, d.opts.CustomRules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })

	pipeline := make([]PairStrategy, 0, len(builtins)+len(rules))
	pipeline = append(pipeline, builtins...)
	for _, rule := range rules {
		at := rule.Priority
		if at < 0 {
			at = 0
		}
		if at > len(pipeline) {
			at = len(pipeline)
		}
		pipeline = append(pipeline[:at], append([]PairStrategy{customStrategy{rule: rule}}, pipeline[at:]...)...)
	}
	return pipeline
}

type dedupMatch struct {
	a, b    int
	verdict Verdict
	name    string
}

// Detect folds duplicate results into groups. Representatives keep their
// original order; group members record which strategy folded them.
func (d *Detector) Detect(items []model.MergedResult) DedupResult {
	started := time.Now()
	result := DedupResult{Stats: DedupStats{TotalItems: len(items)}}

	if len(items) < 2 || len(d.pipeline) == 0 {
		result.Items = items
		result.Stats.ProcessingTime = time.Since(started)
		return result
	}

	views := make([]*dedupView, len(items))
	for i := range items {
		views[i] = newDedupView(i, &items[i])
	}

	buckets := d.bucketize(views)
	matches := d.compareBuckets(buckets, &result.Stats)

	// Union-find over the matched pairs. Representative selection runs on
	// root positions afterwards, so union order does not matter.
	parent := make([]int, len(items))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	groupMeta := make(map[int]*model.DuplicateGroup)
	for _, m := range matches {
		ra, rb := find(m.a), find(m.b)
		if ra == rb {
			continue
		}
		root, other := ra, rb
		if other < root {
			root, other = other, root
		}
		parent[other] = root

		meta := groupMeta[ra]
		if meta == nil {
			meta = groupMeta[rb]
		}
		if meta == nil {
			meta = &model.DuplicateGroup{
				Strategy:      m.name,
				DuplicateType: m.verdict.DuplicateType,
				Similarity:    m.verdict.Similarity,
			}
		}
		delete(groupMeta, ra)
		delete(groupMeta, rb)
		groupMeta[root] = meta
	}

	members := make(map[int][]int)
	for i := range items {
		root := find(i)
		members[root] = append(members[root], i)
	}

	survivors := make([]model.MergedResult, 0, len(members))
	roots := make([]int, 0, len(members))
	for root := range members {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	for _, root := range roots {
		idx := members[root]
		sort.Ints(idx)
		// The representative is the highest-ranked member, which is the
		// earliest position in the fused input.
		survivors = append(survivors, items[idx[0]])

		if len(idx) < 2 {
			continue
		}
		meta := groupMeta[root]
		group := model.DuplicateGroup{
			Members:        make([]string, len(idx)),
			Representative: items[idx[0]].RecordID,
		}
		for j, i := range idx {
			group.Members[j] = items[i].RecordID
		}
		if meta != nil {
			group.Strategy = meta.Strategy
			group.DuplicateType = meta.DuplicateType
			group.Similarity = meta.Similarity
		}
		result.Groups = append(result.Groups, group)
		result.Stats.DuplicatesRemoved += len(idx) - 1
	}

	result.Items = survivors
	result.Stats.ProcessingTime = time.Since(started)
	return result
}

// bucketize returns the comparison buckets. Small inputs compare all
// pairs; above MaxComparisonItems, items are grouped by the lowercased
// first token of their name so the quadratic pass stays bounded.
func (d *Detector) bucketize(views []*dedupView) [][]*dedupView {
	if len(views) <= d.opts.MaxComparisonItems {
		return [][]*dedupView{views}
	}

	byKey := make(map[string][]*dedupView)
	var keys []string
	for _, v := range views {
		key := ""
		if tokens := normalizeTokens(v.name); len(tokens) > 0 {
			key = tokens[0]
		}
		if _, seen := byKey[key]; !seen {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], v)
	}
	sort.Strings(keys)

	buckets := make([][]*dedupView, 0, len(keys))
	for _, key := range keys {
		buckets = append(buckets, byKey[key])
	}
	return buckets
}

// compareBuckets runs pairwise comparison inside every bucket, spreading
// buckets over the worker pool. Comparison inside one bucket is
// sequential.
func (d *Detector) compareBuckets(buckets [][]*dedupView, stats *DedupStats) []dedupMatch {
	workers := d.opts.Workers
	if workers > len(buckets) {
		workers = len(buckets)
	}
	if workers < 1 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		matches []dedupMatch
	)
	work := make(chan []*dedupView)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var local []dedupMatch
			var localStats DedupStats
			for bucket := range work {
				for i := 0; i < len(bucket); i++ {
					for j := i + 1; j < len(bucket); j++ {
						localStats.Comparisons++
						if match, verdict, name := d.comparePair(bucket[i], bucket[j], &localStats); match {
							local = append(local, dedupMatch{
								a:       bucket[i].position,
								b:       bucket[j].position,
								verdict: verdict,
								name:    name,
							})
						}
					}
				}
			}
			mu.Lock()
			matches = append(matches, local...)
			stats.Comparisons += localStats.Comparisons
			stats.CacheHits += localStats.CacheHits
			stats.CacheMisses += localStats.CacheMisses
			stats.StrategyErrors += localStats.StrategyErrors
			mu.Unlock()
		}()
	}
	for _, bucket := range buckets {
		work <- bucket
	}
	close(work)
	wg.Wait()

	// Deterministic union order regardless of worker interleaving.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].a != matches[j].a {
			return matches[i].a < matches[j].a
		}
		return matches[i].b < matches[j].b
	})
	return matches
}

// comparePair walks the strategy pipeline; the first strategy to match
// wins. A strategy error is counted and skipped, never fatal.
func (d *Detector) comparePair(a, b *dedupView, stats *DedupStats) (bool, Verdict, string) {
	for _, strategy := range d.pipeline {
		verdict, hit := d.cachedCompare(a, b, strategy, stats)
		if hit {
			if verdict.Matched {
				return true, verdict, strategy.Name()
			}
			continue
		}

		verdict, err := strategy.Compare(a, b)
		if err != nil {
			stats.StrategyErrors++
			d.logger.Warn("dedup strategy failed",
				"strategy", strategy.Name(),
				"left", a.id, "right", b.id,
				"error", err)
			continue
		}
		d.storeVerdict(a, b, strategy, verdict)
		if verdict.Matched {
			return true, verdict, strategy.Name()
		}
	}
	return false, Verdict{}, ""
}

func (d *Detector) cacheKey(a, b *dedupView, strategy PairStrategy) pairKey {
	left, right := a.id, b.id
	if right < left {
		left, right = right, left
	}
	return pairKey{left: left, right: right, strategy: strategy.Name()}
}

func (d *Detector) cachedCompare(a, b *dedupView, strategy PairStrategy, stats *DedupStats) (Verdict, bool) {
	if d.cache == nil {
		return Verdict{}, false
	}
	if verdict, ok := d.cache.Get(d.cacheKey(a, b, strategy)); ok {
		stats.CacheHits++
		return verdict, true
	}
	stats.CacheMisses++
	return Verdict{}, false
}

func (d *Detector) storeVerdict(a, b *dedupView, strategy PairStrategy, verdict Verdict) {
	if d.cache == nil {
		return
	}
	d.cache.Add(d.cacheKey(a, b, strategy), verdict)
}

// DefaultStrategyNames lists the built-in pipeline in priority order.
func DefaultStrategyNames() []string {
	return []string{
		StrategyExactID,
		StrategyExactURL,
		StrategyContentSimilarity,
		StrategyVersionAware,
		StrategyFuzzyMatch,
		StrategyCombined,
	}
}

// NormalizeStrategyNames uppercases and validates requested strategy
// names, dropping unknown ones.
func NormalizeStrategyNames(names []string) []string {
	known := make(map[string]bool)
	for _, n := range DefaultStrategyNames() {
		known[n] = true
	}
	var out []string
	for _, n := range names {
		n = strings.ToUpper(strings.TrimSpace(n))
		if known[n] {
			out = append(out, n)
		}
	}
	return out
}
