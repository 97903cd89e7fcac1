// Package chat implements the agentic turn loop: token-budgeted history
// assembly, wire-format translation, streaming step execution with citation
// rewriting, and the cycle-bounded loop controller that ties them together.
package chat

import "unicode/utf8"

// CountTokens estimates the number of model tokens in a text. Injected so
// callers can swap in a real tokenizer for the target model.
type CountTokens func(text string) int

// EstimateTokens is the default estimator: roughly one token per two
// runes. Coarse but conservative enough for budget accounting when no
// model tokenizer is available.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := utf8.RuneCountInString(text)
	tokens := n / 2
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}
