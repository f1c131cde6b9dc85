package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tooldex/tooldex/pkg/model"
	"github.com/tooldex/tooldex/pkg/vectordb"
)

// fakeVectorStore implements vectordb.Store with a pluggable search
// function.
type fakeVectorStore struct {
	searchFn func(ctx context.Context, space model.VectorSpace, queryVec []float32, topK int, filters []model.FieldFilter) ([]vectordb.Hit, error)
}

func (f *fakeVectorStore) EnsureCollections(ctx context.Context) error { return nil }

func (f *fakeVectorStore) UpsertNamed(ctx context.Context, recordID string, vectors model.NamedVector, payload model.Payload) error {
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, space model.VectorSpace, queryVec []float32, topK int, filters []model.FieldFilter) ([]vectordb.Hit, error) {
	return f.searchFn(ctx, space, queryVec, topK, filters)
}

func (f *fakeVectorStore) RetrieveVector(ctx context.Context, recordID string, space model.VectorSpace) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeVectorStore) Delete(ctx context.Context, recordID string, spaces ...model.VectorSpace) error {
	return nil
}

func (f *fakeVectorStore) CollectionInfo(ctx context.Context, space model.VectorSpace) (vectordb.CollectionInfo, error) {
	return vectordb.CollectionInfo{}, nil
}

func (f *fakeVectorStore) ClearAll(ctx context.Context) error { return nil }

func (f *fakeVectorStore) Close() error { return nil }

func TestSearchSpacesResultsInQueryOrder(t *testing.T) {
	store := &fakeVectorStore{
		searchFn: func(ctx context.Context, space model.VectorSpace, _ []float32, topK int, _ []model.FieldFilter) ([]vectordb.Hit, error) {
			return []vectordb.Hit{
				{RecordID: "hit-" + string(space), Score: 0.9},
				{RecordID: "hit2-" + string(space), Score: 0.7},
			}, nil
		},
	}
	retriever := NewRetriever(store, time.Second, nil)

	results := retriever.SearchSpaces(context.Background(), []SpaceQuery{
		{Space: model.SpaceSemantic, TopK: 5, QueryVectorSource: "query_text"},
		{Space: model.SpaceCategories, TopK: 5},
	})

	require.Len(t, results, 2)
	assert.Equal(t, model.SpaceSemantic, results[0].Space)
	assert.Equal(t, model.SpaceCategories, results[1].Space)

	first := results[0]
	require.Len(t, first.Candidates, 2)
	assert.Equal(t, "hit-semantic", first.Candidates[0].RecordID)
	assert.Equal(t, "vector:semantic", first.Candidates[0].Source)
	assert.Equal(t, 1, first.Candidates[0].Rank)
	assert.Equal(t, 2, first.Candidates[1].Rank)
	assert.Equal(t, "query_text", first.Candidates[0].Provenance.QueryVectorSource)
	assert.Equal(t, 2, first.Metrics.ResultCount)
	assert.InDelta(t, 0.8, first.Metrics.AvgScore, 1e-12)
}

func TestSearchSpacesRunsInParallel(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	gate := make(chan struct{})
	store := &fakeVectorStore{
		searchFn: func(ctx context.Context, _ model.VectorSpace, _ []float32, _ int, _ []model.FieldFilter) ([]vectordb.Hit, error) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			if inFlight == 3 {
				close(gate)
			}
			mu.Unlock()

			// Every call blocks until all three have started.
			select {
			case <-gate:
			case <-time.After(2 * time.Second):
			}

			mu.Lock()
			inFlight--
			mu.Unlock()
			return nil, nil
		},
	}
	retriever := NewRetriever(store, 5*time.Second, nil)

	retriever.SearchSpaces(context.Background(), []SpaceQuery{
		{Space: model.SpaceSemantic},
		{Space: model.SpaceCategories},
		{Space: model.SpaceFunctionality},
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, peak, "all space searches must run concurrently")
}

// One failing space reports its error in metrics; the others still return
// candidates.
func TestSearchSpacesIsolatesFailures(t *testing.T) {
	store := &fakeVectorStore{
		searchFn: func(ctx context.Context, space model.VectorSpace, _ []float32, _ int, _ []model.FieldFilter) ([]vectordb.Hit, error) {
			if space == model.SpaceCategories {
				return nil, errors.New("collection unavailable")
			}
			return []vectordb.Hit{{RecordID: "ok", Score: 1.0}}, nil
		},
	}
	retriever := NewRetriever(store, time.Second, nil)

	results := retriever.SearchSpaces(context.Background(), []SpaceQuery{
		{Space: model.SpaceSemantic},
		{Space: model.SpaceCategories},
	})

	require.Len(t, results, 2)
	assert.Len(t, results[0].Candidates, 1)
	assert.Empty(t, results[0].Metrics.Error)

	assert.Empty(t, results[1].Candidates)
	assert.Contains(t, results[1].Metrics.Error, "collection unavailable")
}

func TestSearchSpacesTimeout(t *testing.T) {
	store := &fakeVectorStore{
		searchFn: func(ctx context.Context, _ model.VectorSpace, _ []float32, _ int, _ []model.FieldFilter) ([]vectordb.Hit, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	retriever := NewRetriever(store, 20*time.Millisecond, nil)

	results := retriever.SearchSpaces(context.Background(), []SpaceQuery{
		{Space: model.SpaceSemantic},
	})

	require.Len(t, results, 1)
	assert.Empty(t, results[0].Candidates)
	assert.Contains(t, results[0].Metrics.Error, "timed out")
	assert.Contains(t, results[0].Metrics.Error, string(model.SpaceSemantic))
}

func TestSearchSpacesEmptyQueries(t *testing.T) {
	retriever := NewRetriever(&fakeVectorStore{}, time.Second, nil)
	assert.Empty(t, retriever.SearchSpaces(context.Background(), nil))
}
