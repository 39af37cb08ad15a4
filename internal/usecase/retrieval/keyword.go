package retrieval

import (
	"sort"
	"strings"
)

// Keyword match weights: a query token found in the title counts double a
// token found in the body.
const (
	titleWeight   = 2
	contentWeight = 1
)

// keywordRank ranks candidates by lexical overlap with the query.
// The query is lower-cased and whitespace-tokenized into a set; each token
// matches by substring containment ("tag" matches inside "tagged").
// Candidates with zero score are left out entirely, so the returned map is
// sparse: absence means no keyword evidence. Ranks are 1-based, best first,
// ties keep input order.
func keywordRank(query string, views []BlockView) map[string]int {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return map[string]int{}
	}

	type scored struct {
		id    string
		score int
	}
	hits := make([]scored, 0, len(views))

	for _, v := range views {
		title := strings.ToLower(v.Title())
		content := strings.ToLower(v.Content())

		score := 0
		for token := range tokens {
			if strings.Contains(title, token) {
				score += titleWeight
			}
			if strings.Contains(content, token) {
				score += contentWeight
			}
		}
		if score > 0 {
			hits = append(hits, scored{id: v.ID(), score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	ranks := make(map[string]int, len(hits))
	for i, h := range hits {
		ranks[h.id] = i + 1
	}
	return ranks
}

// tokenize splits the lower-cased query on whitespace, collapsing duplicates.
func tokenize(query string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tokens[f] = struct{}{}
	}
	return tokens
}
