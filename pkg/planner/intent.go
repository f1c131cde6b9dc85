package planner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tooldex/tooldex/pkg/llms"
	"github.com/tooldex/tooldex/pkg/model"
)

// Extractor turns a natural-language query into a schema-validated
// Intent. The LLM response must be strict JSON; one trailing-comma repair
// is attempted, after which the failure is terminal for the request.
type Extractor struct {
	llm    llms.Provider
	prompt string
	logger *slog.Logger
}

func NewExtractor(llm llms.Provider, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		llm:    llm,
		prompt: intentSystemPrompt(),
		logger: logger,
	}
}

func (e *Extractor) Extract(ctx context.Context, query string) (*model.Intent, error) {
	raw, err := e.llm.Complete(ctx, llms.CompletionRequest{
		System:   e.prompt,
		User:     query,
		JSONMode: true,
	})
	if err != nil {
		return nil, model.NewError(model.CodeIntentUnparseable, "Extractor", "Extract",
			"intent completion failed", err)
	}

	var intent model.Intent
	switch decodeStrict(raw, &intent) {
	case parsedClean:
	case parsedAfterRepair:
		e.logger.Debug("intent JSON required trailing-comma repair", "query", query)
	case parseInvalid:
		return nil, model.NewError(model.CodeIntentUnparseable, "Extractor", "Extract",
			"intent response is not valid JSON after one repair attempt", nil)
	}

	if err := intent.Validate(); err != nil {
		return nil, model.NewError(model.CodeIntentUnparseable, "Extractor", "Extract",
			fmt.Sprintf("intent failed schema validation: %v", err), nil)
	}

	e.logger.Debug("intent extracted",
		"goal", intent.PrimaryGoal,
		"reference", intent.ReferenceTool,
		"confidence", intent.Confidence)
	return &intent, nil
}
