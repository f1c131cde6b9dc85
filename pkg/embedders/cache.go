package embedders

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingProvider wraps a Provider with a bounded LRU keyed by exact text.
// Entries are immutable once written; a cache hit is byte-identical to a
// cache miss. Cache failures degrade to a miss and never surface.
type CachingProvider struct {
	inner Provider
	cache *lru.Cache[string, []float32]
}

func NewCachingProvider(inner Provider, size int) (*CachingProvider, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachingProvider{inner: inner, cache: cache}, nil
}

func (c *CachingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, vec)
	return vec, nil
}

func (c *CachingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if vec, ok := c.cache.Get(text); ok {
			results[i] = vec
		} else {
			missing = append(missing, text)
			missingIdx = append(missingIdx, i)
		}
	}

	if len(missing) > 0 {
		vectors, err := c.inner.EmbedBatch(ctx, missing)
		if err != nil {
			return nil, err
		}
		for j, vec := range vectors {
			results[missingIdx[j]] = vec
			c.cache.Add(missing[j], vec)
		}
	}

	return results, nil
}

func (c *CachingProvider) Dimension() int    { return c.inner.Dimension() }
func (c *CachingProvider) ModelName() string { return c.inner.ModelName() }
func (c *CachingProvider) Close() error      { return c.inner.Close() }

// Len reports the current number of cached entries.
func (c *CachingProvider) Len() int { return c.cache.Len() }
