package service

import (
	"encoding/json"
	"regexp"
	"strings"

	"kiwi_quiz_service/internal/util"
)

// Extraction patterns, most syntactically signaled first. A tagged fenced
// block beats a bare fenced block, which beats brute-force brace matching,
// so a JSON-looking fragment in surrounding prose is not picked up by
// mistake.
var jsonPatterns = []*regexp.Regexp{
	regexp.MustCompile("```json\\s*([\\s\\S]*?)\\s*```"),
	regexp.MustCompile("```\\s*([\\s\\S]*?)\\s*```"),
	regexp.MustCompile(`\{[\s\S]*\}`),
}

// ExtractJSONObject recovers a JSON object from free-form model output.
// Each pattern's matches are tried in order until one parses; failing that,
// the whole trimmed input is parsed as-is and then once more with single
// quotes converted to double quotes. If nothing parses the raw text is
// reported through MalformedGenerationError.
func ExtractJSONObject(raw string) (json.RawMessage, error) {
	for _, pattern := range jsonPatterns {
		matches := pattern.FindAllStringSubmatch(raw, -1)
		for _, m := range matches {
			candidate := m[len(m)-1]
			if obj, ok := parseObject(candidate); ok {
				return obj, nil
			}
		}
	}

	trimmed := strings.TrimSpace(raw)
	if obj, ok := parseObject(trimmed); ok {
		return obj, nil
	}

	repaired := strings.ReplaceAll(trimmed, "'", `"`)
	if obj, ok := parseObject(repaired); ok {
		return obj, nil
	}

	return nil, util.NewMalformedGenerationError(raw)
}

func parseObject(candidate string) (json.RawMessage, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, false
	}
	var probe interface{}
	if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
		return nil, false
	}
	return json.RawMessage(candidate), true
}
