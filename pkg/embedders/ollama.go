package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/tooldex/tooldex/pkg/config"
	"github.com/tooldex/tooldex/pkg/model"
)

// OllamaEmbedder implements Provider against a local Ollama server.
//
// Requests are serialized: Ollama's llama runner crashes when it receives
// concurrent embedding requests.
type OllamaEmbedder struct {
	mu        sync.Mutex
	client    *http.Client
	baseURL   string
	modelName string
	dimension int
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func NewOllamaEmbedder(cfg *config.EmbedderConfig) (*OllamaEmbedder, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &OllamaEmbedder{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		modelName: cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	reqBody, err := json.Marshal(ollamaEmbedRequest{
		Model:  e.modelName,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, model.NewError(model.CodeEmbeddingUnavailable,
			"OllamaEmbedder", "embed", "embedding request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, model.NewError(model.CodeEmbeddingUnavailable,
			"OllamaEmbedder", "embed",
			fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var response ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Embedding) == 0 {
		return nil, model.NewError(model.CodeEmbeddingUnavailable,
			"OllamaEmbedder", "embed", "received empty embedding", nil)
	}
	if err := checkDimension(response.Embedding, e.dimension); err != nil {
		return nil, err
	}

	return response.Embedding, nil
}

// EmbedBatch embeds sequentially; the Ollama API has no batch endpoint.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *OllamaEmbedder) Dimension() int    { return e.dimension }
func (e *OllamaEmbedder) ModelName() string { return e.modelName }
func (e *OllamaEmbedder) Close() error      { return nil }
