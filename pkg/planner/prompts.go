package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/tooldex/tooldex/pkg/model"
)

// featureVocabulary is the closed feature-tag set the intent extractor
// may emit.
var featureVocabulary = []string{
	"api_access", "cli", "collaboration", "offline", "open_source",
	"plugins", "self_hosted", "realtime", "templates", "version_control",
	"ai_assist", "code_completion", "debugging", "deployment", "analytics",
}

// categoryVocabulary is the closed category set shared with the catalog.
var categoryVocabulary = []string{
	"editor", "ide", "framework", "library", "database", "devops",
	"design", "productivity", "ai", "testing", "monitoring", "security",
}

// platformVocabulary is the closed platform/interface set.
var platformVocabulary = []string{"cli", "web", "api", "desktop", "mobile"}

// schemaFor renders the JSON schema of a response type for prompt
// pinning. Reflection failures cannot happen for our own types, so the
// output is embedded verbatim.
func schemaFor(v any) string {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	schema := reflector.Reflect(v)
	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}

// intentSystemPrompt pins the extractor to the closed vocabularies and
// the Intent schema.
func intentSystemPrompt() string {
	return fmt.Sprintf(`You are the intent extractor of a developer-tool search engine.
Interpret the user's query and respond with a single JSON object, no prose.

The object must conform to this JSON schema:
%s

Closed vocabularies (never invent values outside them):
- primaryGoal: find, compare, recommend, explore, analyze, explain
- comparisonMode: similar_to, vs, alternative_to
- pricing: free, freemium, paid, enterprise
- category: %s
- platform: %s
- features: %s

Rules:
- Set referenceTool when the query names a specific product ("Cursor alternative" => referenceTool "Cursor", comparisonMode "alternative_to").
- constraints carries free-text qualifiers like "cheaper" or "no signup".
- semanticVariants holds 2-3 rephrasings of the query for embedding.
- confidence is your calibrated certainty in [0,1].`,
		schemaFor(&model.Intent{}),
		strings.Join(categoryVocabulary, ", "),
		strings.Join(platformVocabulary, ", "),
		strings.Join(featureVocabulary, ", "))
}

// planSystemPrompt pins the planner to the available spaces, collections
// and the RetrievalPlan schema.
func planSystemPrompt() string {
	spaces := make([]string, 0, len(model.AllSpaces()))
	for _, s := range model.AllSpaces() {
		spaces = append(spaces, string(s))
	}

	return fmt.Sprintf(`You are the retrieval planner of a developer-tool search engine.
Given an extracted intent and the raw query, respond with a single JSON
object describing which sources to search, no prose.

The object must conform to this JSON schema:
%s

Available vector spaces: %s
Available structured collection: tools
Filter operators: =, contains, <, <=, >, >=
queryVectorSource values: query_text, reference_tool_embedding, semantic_variant
fusion values: rrf, weighted, hybrid, none

Rules:
- Always include a semantic vector source unless the query is a pure
  structured lookup.
- A referenceTool intent adds a vector source on entities.aliases with
  queryVectorSource reference_tool_embedding.
- pricing "free" pushes down a structured predicate pricing.hasFreeTier = true.
- Use fusion "none" only with a single source.
- topK must be between 1 and 100.`,
		schemaFor(&model.RetrievalPlan{}),
		strings.Join(spaces, ", "))
}
