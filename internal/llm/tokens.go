package llm

import "strings"

// ApproxTokens estimates the tokenized length of a prompt. Used for cost
// accounting when an extraction fails before the provider reports usage, so
// spend is recorded even for failed calls. The estimate blends the word and
// character counts the way BPE tokenizers tend to land for English text.
func ApproxTokens(text string) int64 {
	if text == "" {
		return 0
	}
	words := int64(len(strings.Fields(text)))
	chars := int64(len(text))
	// roughly one token per 4 chars, floored by the word count
	approx := chars / 4
	if words > approx {
		approx = words
	}
	return approx
}
