package retrieval

import (
	"sort"

	"github.com/tnedr/cognitive-memory-core/internal/domain/search/candidate"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/result"
)

// fuseRRF merges the semantic ranking with keyword ranks via Reciprocal
// Rank Fusion: score(b) = sum of 1/(k + rank_i(b)) over the rankings where
// b appears. An absent signal contributes 0, not a penalty.
//
// Semantic rank is derived from input order (1-based; semantic must already
// be sorted by descending score). Output is anchored on semantic: a block
// with a keyword rank but no materialized candidate is dropped, since the
// snippet and score metadata come from the candidate. Sorted by fused score
// descending; ties keep the semantic order.
func fuseRRF(semantic []candidate.Candidate, keywordRanks map[string]int, k int) []result.Result {
	fused := make([]result.Result, 0, len(semantic))

	for i := range semantic {
		cand := &semantic[i]
		semRank := i + 1

		score := 1.0 / float64(k+semRank)
		var kwRank *int
		if kr, ok := keywordRanks[cand.BlockID()]; ok {
			score += 1.0 / float64(k+kr)
			kwRank = &kr
		}

		sr := semRank
		fused = append(fused, result.New(
			cand.BlockID(),
			score,
			cand.SemanticScore(),
			0,
			cand.Snippet(),
			result.Explanation{
				Semantic:     cand.SemanticScore(),
				RRFScore:     score,
				SemanticRank: &sr,
				KeywordRank:  kwRank,
			},
		))
	}

	// Stable sort over the semantically-ordered slice: equal fused scores
	// keep the original semantic order.
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].FinalScore() > fused[j].FinalScore()
	})

	return fused
}
