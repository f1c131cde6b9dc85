package search

import (
	"fmt"

	"github.com/tooldex/tooldex/pkg/model"
)

// Strategy names form a closed set; custom rules extend it with their own
// labels.
const (
	StrategyExactID           = "EXACT_ID"
	StrategyExactURL          = "EXACT_URL"
	StrategyContentSimilarity = "CONTENT_SIMILARITY"
	StrategyVersionAware      = "VERSION_AWARE"
	StrategyFuzzyMatch        = "FUZZY_MATCH"
	StrategyCombined          = "COMBINED"
	StrategyCustomRule        = "CUSTOM_RULE"
)

// DuplicateTypeVersionVariant tags groups formed by the version-aware
// strategy.
const DuplicateTypeVersionVariant = "version-variant"

// dedupView is the normalized projection strategies compare on. Built
// once per item so pairwise comparison stays cheap.
type dedupView struct {
	id          string
	name        string
	stem        string // name with version tokens stripped
	description string
	url         string // canonicalised
	categories  []string
	position    int // pre-dedup rank order, 0-based
}

func newDedupView(position int, r *model.MergedResult) *dedupView {
	return &dedupView{
		id:          r.RecordID,
		name:        r.Payload.Name,
		stem:        stripVersionTokens(r.Payload.Name),
		description: r.Payload.Description,
		url:         canonicalURL(r.Payload.URL),
		categories:  r.Payload.Categories,
		position:    position,
	}
}

// Verdict is one strategy's judgement of a pair.
type Verdict struct {
	Matched       bool
	Similarity    float64
	DuplicateType string
}

// PairStrategy classifies a pair of items as duplicates or not. The
// first strategy in pipeline order to match wins and annotates the group.
type PairStrategy interface {
	Name() string
	Compare(a, b *dedupView) (Verdict, error)
}

type exactIDStrategy struct{}

func (exactIDStrategy) Name() string { return StrategyExactID }

func (exactIDStrategy) Compare(a, b *dedupView) (Verdict, error) {
	if a.id != "" && a.id == b.id {
		return Verdict{Matched: true, Similarity: 1.0}, nil
	}
	return Verdict{}, nil
}

type exactURLStrategy struct{}

func (exactURLStrategy) Name() string { return StrategyExactURL }

func (exactURLStrategy) Compare(a, b *dedupView) (Verdict, error) {
	if a.url != "" && a.url == b.url {
		return Verdict{Matched: true, Similarity: 1.0}, nil
	}
	return Verdict{}, nil
}

type contentStrategy struct {
	weights   FieldWeights
	threshold float64
}

func (contentStrategy) Name() string { return StrategyContentSimilarity }

func (s contentStrategy) Compare(a, b *dedupView) (Verdict, error) {
	sim := contentSimilarity(a, b, s.weights)
	return Verdict{Matched: sim >= s.threshold, Similarity: sim}, nil
}

// versionStrategy matches the same tool at different versions: the
// version-stripped name stems agree and the rest of the payload stays
// close.
type versionStrategy struct {
	weights   FieldWeights
	threshold float64
}

func (versionStrategy) Name() string { return StrategyVersionAware }

func (s versionStrategy) Compare(a, b *dedupView) (Verdict, error) {
	if a.stem == "" || a.stem != b.stem {
		return Verdict{}, nil
	}

	// Compare on the stems so differing version tokens do not drag the
	// name similarity down.
	stemA, stemB := *a, *b
	stemA.name, stemB.name = a.stem, b.stem
	sim := contentSimilarity(&stemA, &stemB, s.weights)
	if sim < s.threshold {
		return Verdict{Similarity: sim}, nil
	}
	return Verdict{Matched: true, Similarity: sim, DuplicateType: DuplicateTypeVersionVariant}, nil
}

type fuzzyStrategy struct {
	threshold float64
}

func (fuzzyStrategy) Name() string { return StrategyFuzzyMatch }

func (s fuzzyStrategy) Compare(a, b *dedupView) (Verdict, error) {
	sim := charNGramSimilarity(a.name+" "+a.description, b.name+" "+b.description, 3)
	return Verdict{Matched: sim >= s.threshold, Similarity: sim}, nil
}

// combinedStrategy aggregates the partial signals of the similarity
// strategies. With weightSum set, the weighted sum of the signals is
// compared against the threshold; otherwise any single signal clearing
// its own component threshold matches.
type combinedStrategy struct {
	content   contentStrategy
	version   versionStrategy
	fuzzy     fuzzyStrategy
	threshold float64
	weightSum bool
}

func (combinedStrategy) Name() string { return StrategyCombined }

func (s combinedStrategy) Compare(a, b *dedupView) (Verdict, error) {
	contentV, _ := s.content.Compare(a, b)
	versionV, _ := s.version.Compare(a, b)
	fuzzyV, _ := s.fuzzy.Compare(a, b)

	if s.weightSum {
		sum := 0.4*contentV.Similarity + 0.3*versionV.Similarity + 0.3*fuzzyV.Similarity
		return Verdict{Matched: sum >= s.threshold, Similarity: sum}, nil
	}

	for _, v := range []Verdict{contentV, versionV, fuzzyV} {
		if v.Matched {
			return Verdict{Matched: true, Similarity: v.Similarity, DuplicateType: v.DuplicateType}, nil
		}
	}
	best := contentV.Similarity
	if versionV.Similarity > best {
		best = versionV.Similarity
	}
	if fuzzyV.Similarity > best {
		best = fuzzyV.Similarity
	}
	return Verdict{Similarity: best}, nil
}

// CustomRule is a host-supplied duplicate predicate. Priority decides
// where it slots into the strategy pipeline: rules run before the
// built-in strategy at the same index.
type CustomRule struct {
	Label     string
	Priority  int
	Predicate func(a, b model.Payload) bool
}

type customStrategy struct {
	rule CustomRule
}

func (s customStrategy) Name() string {
	if s.rule.Label != "" {
		return StrategyCustomRule + ":" + s.rule.Label
	}
	return StrategyCustomRule
}

func (s customStrategy) Compare(a, b *dedupView) (verdict Verdict, err error) {
	// Host predicates are untrusted; a panic is reported as a strategy
	// error and the pipeline moves on.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("custom rule %q panicked: %v", s.rule.Label, r)
		}
	}()

	pa := model.Payload{Name: a.name, Description: a.description, URL: a.url, Categories: a.categories, RecordID: a.id}
	pb := model.Payload{Name: b.name, Description: b.description, URL: b.url, Categories: b.categories, RecordID: b.id}
	if s.rule.Predicate != nil && s.rule.Predicate(pa, pb) {
		return Verdict{Matched: true, Similarity: 1.0}, nil
	}
	return Verdict{}, nil
}
