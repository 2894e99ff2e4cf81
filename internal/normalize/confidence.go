package normalize

import (
	"regexp"

	"github.com/untoldecay/semanticmemory/internal/types"
)

// genericPhrasePatterns is the closed set whose first match halves the score (§4.3);
// only the first pattern that matches applies, not every pattern that does.
var genericPhrasePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bis a (type|kind|form) of\b`),
	regexp.MustCompile(`(?i)\b(can|may) be\b`),
	regexp.MustCompile(`(?i)\b(has|have)\b`),
}

// scoreConfidence implements the deterministic post-classification scoring formula:
// start at 1.0, multiply by a length factor, a generic-phrase factor (first match
// only), an information-density factor, and the frame's weight, then clamp to [0,1].
func scoreConfidence(normalized string, frame types.Frame, entities, problems, resolutions []string) float64 {
	score := 1.0

	switch n := len(normalized); {
	case n < 20:
		score *= 0.3
	case n < 40:
		score *= 0.7
	}

	for _, pattern := range genericPhrasePatterns {
		if pattern.MatchString(normalized) {
			score *= 0.5
			break
		}
	}

	switch density := len(entities) + len(problems) + len(resolutions); density {
	case 0:
		score *= 0.4
	case 1:
		score *= 0.7
	}

	score *= frame.Weight()

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
