package embedders

import (
	"context"
	"fmt"

	"github.com/tooldex/tooldex/pkg/config"
	"github.com/tooldex/tooldex/pkg/registry"
)

// Provider turns text into dense vectors. Implementations must be
// deterministic per (text, model) so cached and fresh results agree.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelName() string
	Close() error
}

// Registry holds named embedding providers.
type Registry struct {
	*registry.BaseRegistry[Provider]
}

func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Provider](),
	}
}

// NewFromConfig builds the configured provider, wrapped with the bounded
// LRU cache and the dimension guard.
func NewFromConfig(cfg *config.EmbedderConfig) (Provider, error) {
	var (
		inner Provider
		err   error
	)
	switch cfg.Provider {
	case "openai":
		inner, err = NewOpenAIEmbedder(cfg)
	case "ollama":
		inner, err = NewOllamaEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewCachingProvider(inner, cfg.CacheSize)
}
