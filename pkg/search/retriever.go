package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tooldex/tooldex/pkg/model"
	"github.com/tooldex/tooldex/pkg/vectordb"
)

// SpaceQuery is one leg of a fan-out search: a query vector aimed at a
// single vector space.
type SpaceQuery struct {
	Space   model.VectorSpace
	Vector  []float32
	TopK    int
	Filters []model.FieldFilter

	// QueryVectorSource records how the vector was produced (query text,
	// reference lookup, semantic variant) for provenance.
	QueryVectorSource string
}

// SpaceResult pairs one space's ranked candidates with its metrics.
type SpaceResult struct {
	Space      model.VectorSpace
	Candidates []model.Candidate
	Metrics    model.SpaceMetrics
}

// Retriever fans a query out across vector spaces in parallel. Each space
// runs under its own timeout; one space failing never cancels the others.
type Retriever struct {
	store   vectordb.Store
	timeout time.Duration
	logger  *slog.Logger
}

func NewRetriever(store vectordb.Store, timeout time.Duration, logger *slog.Logger) *Retriever {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, timeout: timeout, logger: logger}
}

// SearchSpaces runs every query concurrently and returns a result per
// query, in query order. Failed spaces come back with empty candidates
// and the error recorded in their metrics.
func (r *Retriever) SearchSpaces(ctx context.Context, queries []SpaceQuery) []SpaceResult {
	results := make([]SpaceResult, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q SpaceQuery) {
			defer wg.Done()
			results[i] = r.searchOne(ctx, q)
		}(i, q)
	}
	wg.Wait()

	return results
}

func (r *Retriever) searchOne(ctx context.Context, q SpaceQuery) SpaceResult {
	result := SpaceResult{Space: q.Space}
	started := time.Now()

	spaceCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	hits, err := r.store.Search(spaceCtx, q.Space, q.Vector, q.TopK, q.Filters)
	result.Metrics.SearchTime = time.Since(started)

	if err != nil {
		if spaceCtx.Err() == context.DeadlineExceeded {
			err = model.NewError(model.CodeTimeout, "Retriever", "SearchSpaces",
				fmt.Sprintf("space %s timed out after %s", q.Space, r.timeout), err)
		}
		result.Metrics.Error = err.Error()
		r.logger.Warn("space search failed",
			"space", string(q.Space),
			"elapsed", result.Metrics.SearchTime,
			"error", err)
		return result
	}

	result.Candidates = make([]model.Candidate, len(hits))
	var total float64
	for rank, hit := range hits {
		total += hit.Score
		result.Candidates[rank] = model.Candidate{
			RecordID: hit.RecordID,
			Source:   SourceLabel(q.Space),
			Score:    hit.Score,
			Rank:     rank + 1,
			Payload:  hit.Payload,
			Provenance: model.Provenance{
				Space:             q.Space,
				FiltersApplied:    q.Filters,
				QueryVectorSource: q.QueryVectorSource,
			},
		}
	}

	result.Metrics.ResultCount = len(hits)
	if len(hits) > 0 {
		result.Metrics.AvgScore = total / float64(len(hits))
	}

	r.logger.Debug("space search completed",
		"space", string(q.Space),
		"results", result.Metrics.ResultCount,
		"elapsed", result.Metrics.SearchTime)
	return result
}

// SourceLabel is the opaque fusion label for a vector space.
func SourceLabel(space model.VectorSpace) string {
	return "vector:" + string(space)
}
