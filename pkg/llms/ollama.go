package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tooldex/tooldex/pkg/config"
)

// OllamaProvider implements Provider against a local Ollama server using
// its native chat API.
type OllamaProvider struct {
	client    *http.Client
	baseURL   string
	modelName string
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   string              `json:"format,omitempty"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
}

func NewOllamaProvider(cfg *config.LLMConfig) (*OllamaProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &OllamaProvider{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		modelName: cfg.Model,
	}, nil
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	chatReq := ollamaChatRequest{
		Model:  p.modelName,
		Stream: false,
	}
	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, ollamaChatMessage{Role: "system", Content: req.System})
	}
	chatReq.Messages = append(chatReq.Messages, ollamaChatMessage{Role: "user", Content: req.User})
	if req.JSONMode {
		chatReq.Format = "json"
	}
	if req.Temperature != 0 {
		chatReq.Options = map[string]any{"temperature": req.Temperature}
	}

	reqBody, err := json.Marshal(chatReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var response ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return response.Message.Content, nil
}

func (p *OllamaProvider) ModelName() string { return p.modelName }
func (p *OllamaProvider) Close() error      { return nil }
