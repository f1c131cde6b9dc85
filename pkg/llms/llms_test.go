package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tooldex/tooldex/pkg/config"
)

func TestOpenAIComplete(t *testing.T) {
	var captured openAIChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": `{"ok":true}`}},
			},
		})
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(&config.LLMConfig{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
		Model:   "gpt-4o-mini",
	})
	require.NoError(t, err)

	got, err := provider.Complete(context.Background(), CompletionRequest{
		System:   "you are a planner",
		User:     "plan this",
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, got)

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Role)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
}

func TestOpenAICompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "invalid key", "type": "auth_error"},
		})
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(&config.LLMConfig{
		APIKey:  "bad-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
	})
	require.NoError(t, err)

	_, err = provider.Complete(context.Background(), CompletionRequest{User: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key")
}

func TestOpenAIRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIProvider(&config.LLMConfig{Model: "gpt-4o-mini"})
	assert.Error(t, err)
}

func TestOllamaComplete(t *testing.T) {
	var captured ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaChatMessage{Role: "assistant", Content: `{"ok":true}`},
			Done:    true,
		})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(&config.LLMConfig{
		BaseURL: server.URL,
		Model:   "llama3.1",
	})
	require.NoError(t, err)

	got, err := provider.Complete(context.Background(), CompletionRequest{
		User:     "plan this",
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, got)

	assert.Equal(t, "llama3.1", captured.Model)
	assert.False(t, captured.Stream)
	assert.Equal(t, "json", captured.Format)
}

func TestNewFromConfig(t *testing.T) {
	provider, err := NewFromConfig(&config.LLMConfig{
		Provider: "ollama",
		Model:    "llama3.1",
	})
	require.NoError(t, err)
	assert.Equal(t, "llama3.1", provider.ModelName())

	_, err = NewFromConfig(&config.LLMConfig{Provider: "anthropic"})
	assert.Error(t, err)
}
