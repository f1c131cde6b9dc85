package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tooldex/tooldex/pkg/config"
	"github.com/tooldex/tooldex/pkg/httpclient"
	"github.com/tooldex/tooldex/pkg/model"
	"golang.org/x/sync/errgroup"
)

// OpenAIEmbedder implements Provider against an OpenAI-compatible
// embeddings API.
type OpenAIEmbedder struct {
	client      *httpclient.Client
	apiKey      string
	baseURL     string
	modelName   string
	dimension   int
	chunkSize   int
	maxInFlight int
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func NewOpenAIEmbedder(cfg *config.EmbedderConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for OpenAI embedder")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &OpenAIEmbedder{
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		),
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		modelName:   cfg.Model,
		dimension:   cfg.Dimension,
		chunkSize:   cfg.ChunkSize,
		maxInFlight: cfg.MaxInFlight,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedChunk(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch splits texts into fixed-size chunks and pipelines them with
// bounded parallelism. Output order matches input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxInFlight)

	for start := 0; start < len(texts); start += e.chunkSize {
		end := start + e.chunkSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		g.Go(func() error {
			vectors, err := e.embedChunk(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(results[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *OpenAIEmbedder) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(openAIEmbedRequest{
		Model: e.modelName,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	httpReq.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(reqBody)), nil
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, model.NewError(model.CodeEmbeddingUnavailable,
			"OpenAIEmbedder", "embed", "embedding request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewError(model.CodeEmbeddingUnavailable,
			"OpenAIEmbedder", "embed", "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp openAIErrorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			return nil, model.NewError(model.CodeEmbeddingUnavailable,
				"OpenAIEmbedder", "embed",
				fmt.Sprintf("API error: %s (type: %s)", errorResp.Error.Message, errorResp.Error.Type), nil)
		}
		return nil, model.NewError(model.CodeEmbeddingUnavailable,
			"OpenAIEmbedder", "embed",
			fmt.Sprintf("API returned status %d", resp.StatusCode), nil)
	}

	var response openAIEmbedResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Data) != len(texts) {
		return nil, model.NewError(model.CodeEmbeddingUnavailable,
			"OpenAIEmbedder", "embed",
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(response.Data)), nil)
	}

	// The API may return out of input order; the index field restores it.
	vectors := make([][]float32, len(texts))
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		if err := checkDimension(item.Embedding, e.dimension); err != nil {
			return nil, err
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func checkDimension(vec []float32, want int) error {
	if len(vec) != want {
		return model.NewError(model.CodeEmbeddingDimensionMismatch,
			"embedders", "checkDimension",
			fmt.Sprintf("got vector of length %d, configured dimension is %d", len(vec), want), nil)
	}
	return nil
}

func (e *OpenAIEmbedder) Dimension() int    { return e.dimension }
func (e *OpenAIEmbedder) ModelName() string { return e.modelName }
func (e *OpenAIEmbedder) Close() error      { return nil }
