package stream

import "unicode/utf8"

// Estimator converts a text fragment into an approximate token count.
// Estimates feed Usage values flagged Exact == false.
type Estimator func(string) int

// EstimateTokens approximates the token count of text using the generic
// four-bytes-per-token heuristic, rounding up. It is the default estimator
// for engines whose output is mostly ASCII.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// EstimateTokensDense approximates the token count of text at two runes per
// token, rounding up. Dense non-Latin scripts (CJK in particular) tokenize
// far heavier per byte than ASCII, so byte-length estimation undercounts
// them badly. Kept separate from EstimateTokens rather than unified; engines
// opt in per configuration.
func EstimateTokensDense(text string) int {
	if text == "" {
		return 0
	}
	return (utf8.RuneCountInString(text) + 1) / 2
}
