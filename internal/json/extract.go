// Package json salvages JSON objects from model-produced text.
//
// A tool-call body or structured reply that should be bare JSON often
// arrives decorated: wrapped in a markdown fence, preceded by a sentence
// of narration, or followed by a closing remark. ExtractJSON digs the
// object out of such text so callers can decode it normally.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ExtractJSON returns the JSON object embedded in s.
//
// Candidates are tried in order: the whole string after stripping any
// markdown code fence, then the span from the first '{' to the last '}'.
// A candidate counts only if it parses as valid JSON. Arrays and bare
// scalars are not searched for; the payloads this salvages, tool-call
// bodies above all, are always objects.
func ExtractJSON(s string) (string, error) {
	candidate := stripCodeFence(s)
	if json.Valid([]byte(candidate)) {
		return candidate, nil
	}

	start := strings.IndexByte(candidate, '{')
	end := strings.LastIndexByte(candidate, '}')
	if start >= 0 && end > start {
		span := candidate[start : end+1]
		if json.Valid([]byte(span)) {
			return span, nil
		}
	}

	return "", fmt.Errorf("no JSON object found in %q", preview(s))
}

// stripCodeFence removes a surrounding markdown code fence, with or
// without a json language tag. Text without a fence passes through
// trimmed.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// preview shortens the offending input for the error message, cutting on
// a rune boundary.
func preview(s string) string {
	const max = 80
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
