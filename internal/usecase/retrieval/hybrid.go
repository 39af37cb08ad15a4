package retrieval

import (
	"strings"

	"github.com/tnedr/cognitive-memory-core/internal/domain/search/candidate"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/result"
)

// Keyword boost bonuses. A boost keyword found in the title and the body
// contributes both, and multiple keywords accumulate with no cap.
const (
	titleBoost   = 0.2
	contentBoost = 0.1
)

// hybridScore applies additive keyword boosts and exclusion checks on top of
// a semantic base score. boost and exclude must already be lower-cased;
// matching is substring containment against the lower-cased title and body.
// The returned flag reports whether an exclude keyword fired; the caller
// decides (per filter mode) whether that drops the result or just flags it.
// With annotate set, an excluded result is marked Filtered instead of being
// dropped downstream.
func hybridScore(cand *candidate.Candidate, view BlockView, boost, exclude []string, annotate bool) (result.Result, bool) {
	title := strings.ToLower(view.Title())
	content := strings.ToLower(view.Content())

	final := cand.SemanticScore()
	keywordScore := 0.0
	var titleMatches, contentMatches []string

	for _, kw := range boost {
		if strings.Contains(title, kw) {
			final += titleBoost
			keywordScore += titleBoost
			titleMatches = append(titleMatches, kw)
		}
		if strings.Contains(content, kw) {
			final += contentBoost
			keywordScore += contentBoost
			contentMatches = append(contentMatches, kw)
		}
	}

	var excludedBy []string
	for _, kw := range exclude {
		if strings.Contains(title, kw) || strings.Contains(content, kw) {
			excludedBy = append(excludedBy, kw)
		}
	}

	res := result.New(
		cand.BlockID(),
		final,
		cand.SemanticScore(),
		keywordScore,
		cand.Snippet(),
		result.Explanation{
			Semantic:       cand.SemanticScore(),
			KeywordScore:   keywordScore,
			TitleMatches:   titleMatches,
			ContentMatches: contentMatches,
			Excluded:       excludedBy,
			Filtered:       annotate && len(excludedBy) > 0,
		},
	)
	return res, len(excludedBy) > 0
}
