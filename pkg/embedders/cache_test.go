package embedders

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	embedCalls int
	batchCalls int
	fail       bool
}

func (s *stubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	s.embedCalls++
	if s.fail {
		return nil, errors.New("backend down")
	}
	return []float32{float32(len(text))}, nil
}

func (s *stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.batchCalls++
	if s.fail {
		return nil, errors.New("backend down")
	}
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = []float32{float32(len(t))}
	}
	return vecs, nil
}

func (s *stubProvider) Dimension() int    { return 1 }
func (s *stubProvider) ModelName() string { return "stub" }
func (s *stubProvider) Close() error      { return nil }

func TestCachingProviderEmbed(t *testing.T) {
	inner := &stubProvider{}
	cached, err := NewCachingProvider(inner, 8)
	require.NoError(t, err)

	first, err := cached.Embed(context.Background(), "hello")
	require.NoError(t, err)

	second, err := cached.Embed(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.embedCalls, "second call must hit the cache")
	assert.Equal(t, 1, cached.Len())
}

func TestCachingProviderBatchPartialHit(t *testing.T) {
	inner := &stubProvider{}
	cached, err := NewCachingProvider(inner, 8)
	require.NoError(t, err)

	_, err = cached.Embed(context.Background(), "cached")
	require.NoError(t, err)

	vecs, err := cached.EmbedBatch(context.Background(), []string{"cached", "fresh"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{6}, vecs[0])
	assert.Equal(t, []float32{5}, vecs[1])
	assert.Equal(t, 1, inner.batchCalls)
}

func TestCachingProviderBatchAllHits(t *testing.T) {
	inner := &stubProvider{}
	cached, err := NewCachingProvider(inner, 8)
	require.NoError(t, err)

	_, err = cached.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	_, err = cached.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.batchCalls, "fully cached batch skips the backend")
}

func TestCachingProviderEviction(t *testing.T) {
	inner := &stubProvider{}
	cached, err := NewCachingProvider(inner, 2)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := cached.Embed(context.Background(), fmt.Sprintf("text-%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cached.Len())

	// The evicted entry misses and re-embeds.
	_, err = cached.Embed(context.Background(), "text-0")
	require.NoError(t, err)
	assert.Equal(t, 5, inner.embedCalls)
}

func TestCachingProviderErrorNotCached(t *testing.T) {
	inner := &stubProvider{fail: true}
	cached, err := NewCachingProvider(inner, 8)
	require.NoError(t, err)

	_, err = cached.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Zero(t, cached.Len())

	inner.fail = false
	vec, err := cached.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.NotNil(t, vec)
}
