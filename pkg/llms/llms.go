// Package llms provides the chat provider used by the intent extractor
// and the query planner. Both call paths expect strict JSON responses;
// providers request JSON output mode where the API supports it.
package llms

import (
	"context"
	"fmt"

	"github.com/tooldex/tooldex/pkg/config"
	"github.com/tooldex/tooldex/pkg/registry"
)

// CompletionRequest is one chat exchange: a pinned system prompt and the
// user turn. JSONMode asks the provider for a syntactically valid JSON
// object response.
type CompletionRequest struct {
	System      string
	User        string
	JSONMode    bool
	Temperature float64
	MaxTokens   int
}

// Provider is a chat LLM. Implementations must pass the context through
// to the transport so request deadlines cancel in-flight calls.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	ModelName() string
	Close() error
}

// Registry holds named chat providers.
type Registry struct {
	*registry.BaseRegistry[Provider]
}

func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Provider](),
	}
}

// NewFromConfig builds the configured chat provider.
func NewFromConfig(cfg *config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg)
	case "ollama":
		return NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
