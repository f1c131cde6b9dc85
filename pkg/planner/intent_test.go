package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tooldex/tooldex/pkg/llms"
	"github.com/tooldex/tooldex/pkg/model"
)

// fakeLLM implements llms.Provider with a pluggable completion function.
type fakeLLM struct {
	completeFn func(ctx context.Context, req llms.CompletionRequest) (string, error)
	calls      int
}

func (f *fakeLLM) Complete(ctx context.Context, req llms.CompletionRequest) (string, error) {
	f.calls++
	return f.completeFn(ctx, req)
}

func (f *fakeLLM) ModelName() string { return "fake" }
func (f *fakeLLM) Close() error      { return nil }

func respondWith(raw string) *fakeLLM {
	return &fakeLLM{completeFn: func(context.Context, llms.CompletionRequest) (string, error) {
		return raw, nil
	}}
}

func TestExtractValidIntent(t *testing.T) {
	llm := respondWith(`{
		"primaryGoal": "compare",
		"referenceTool": "Figma",
		"comparisonMode": "alternative_to",
		"pricing": "free",
		"features": ["real-time collaboration"],
		"confidence": 0.9
	}`)
	extractor := NewExtractor(llm, nil)

	intent, err := extractor.Extract(context.Background(), "free alternatives to Figma")
	require.NoError(t, err)
	assert.Equal(t, model.GoalCompare, intent.PrimaryGoal)
	assert.Equal(t, "Figma", intent.ReferenceTool)
	assert.Equal(t, model.CompareAlternativeTo, intent.ComparisonMode)
	assert.Equal(t, model.PricingFree, intent.Pricing)
	assert.InDelta(t, 0.9, intent.Confidence, 1e-12)
	assert.Equal(t, 1, llm.calls)
}

func TestExtractRepairsTrailingComma(t *testing.T) {
	llm := respondWith(`{"primaryGoal": "find", "confidence": 0.8,}`)
	extractor := NewExtractor(llm, nil)

	intent, err := extractor.Extract(context.Background(), "code editor")
	require.NoError(t, err)
	assert.Equal(t, model.GoalFind, intent.PrimaryGoal)
}

func TestExtractStripsCodeFence(t *testing.T) {
	llm := respondWith("```json\n{\"primaryGoal\": \"explore\", \"confidence\": 0.5}\n```")
	extractor := NewExtractor(llm, nil)

	intent, err := extractor.Extract(context.Background(), "what design tools exist")
	require.NoError(t, err)
	assert.Equal(t, model.GoalExplore, intent.PrimaryGoal)
}

func TestExtractUnparseableJSON(t *testing.T) {
	llm := respondWith("I think the user wants a design tool.")
	extractor := NewExtractor(llm, nil)

	_, err := extractor.Extract(context.Background(), "design tool")
	require.Error(t, err)
	assert.Equal(t, model.CodeIntentUnparseable, model.CodeOf(err))
}

func TestExtractSchemaViolation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unknown goal", `{"primaryGoal": "purchase", "confidence": 0.9}`},
		{"unknown comparison mode", `{"primaryGoal": "compare", "comparisonMode": "better_than", "confidence": 0.9}`},
		{"unknown pricing", `{"primaryGoal": "find", "pricing": "cheap", "confidence": 0.9}`},
		{"confidence above one", `{"primaryGoal": "find", "confidence": 1.5}`},
		{"confidence negative", `{"primaryGoal": "find", "confidence": -0.1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := NewExtractor(respondWith(tt.raw), nil)
			_, err := extractor.Extract(context.Background(), "q")
			require.Error(t, err)
			assert.Equal(t, model.CodeIntentUnparseable, model.CodeOf(err))
		})
	}
}

func TestExtractLLMFailure(t *testing.T) {
	llm := &fakeLLM{completeFn: func(context.Context, llms.CompletionRequest) (string, error) {
		return "", errors.New("connection refused")
	}}
	extractor := NewExtractor(llm, nil)

	_, err := extractor.Extract(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, model.CodeIntentUnparseable, model.CodeOf(err))
}

func TestExtractRequestsJSONMode(t *testing.T) {
	var captured llms.CompletionRequest
	llm := &fakeLLM{completeFn: func(_ context.Context, req llms.CompletionRequest) (string, error) {
		captured = req
		return `{"primaryGoal": "find", "confidence": 0.7}`, nil
	}}
	extractor := NewExtractor(llm, nil)

	_, err := extractor.Extract(context.Background(), "terminal multiplexer")
	require.NoError(t, err)
	assert.True(t, captured.JSONMode)
	assert.Equal(t, "terminal multiplexer", captured.User)
	assert.NotEmpty(t, captured.System)
}
