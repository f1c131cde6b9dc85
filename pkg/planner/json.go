package planner

import (
	"encoding/json"
	"regexp"
	"strings"
)

// parseState tags the outcome of decoding an LLM response. Parse problems
// stay data here instead of becoming control flow further up the stack.
type parseState int

const (
	parsedClean parseState = iota
	parsedAfterRepair
	parseInvalid
)

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// decodeStrict decodes an LLM response into v. Markdown fences are
// stripped first. On a syntax error, exactly one repair is attempted:
// trailing commas before closing braces or brackets are removed. A second
// failure is final.
func decodeStrict(raw string, v any) parseState {
	text := stripFences(raw)

	if err := json.Unmarshal([]byte(text), v); err == nil {
		return parsedClean
	}

	repaired := trailingComma.ReplaceAllString(text, "$1")
	if err := json.Unmarshal([]byte(repaired), v); err == nil {
		return parsedAfterRepair
	}
	return parseInvalid
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
