// Package result defines the fully-scored retrieval result. Results are
// built fresh per query and never persisted; the engine is the single
// source of truth for scores, nothing downstream recomputes them.
package result

// Explanation documents every contribution to a final score.
type Explanation struct {
	Semantic       float64  `json:"semantic"`
	KeywordScore   float64  `json:"keyword_score"`
	TitleMatches   []string `json:"title_match,omitempty"`
	ContentMatches []string `json:"content_match,omitempty"`
	Excluded       []string `json:"excluded,omitempty"`
	// Filtered marks a result that an exclude keyword would drop in strict
	// mode but that annotate mode keeps visible.
	Filtered bool `json:"filtered,omitempty"`

	// RRF fields, set only on the fusion path. Nil rank means the signal
	// was absent for this block.
	RRFScore     float64 `json:"rrf_score,omitempty"`
	SemanticRank *int    `json:"semantic_rank,omitempty"`
	KeywordRank  *int    `json:"keyword_rank,omitempty"`
}

// Result is a single scored retrieval hit.
type Result struct {
	blockID       string
	finalScore    float64
	semanticScore float64
	keywordScore  float64
	snippet       string
	explanation   Explanation
}

// New creates a scored result.
func New(blockID string, finalScore, semanticScore, keywordScore float64, snippet string, expl Explanation) Result {
	return Result{
		blockID:       blockID,
		finalScore:    finalScore,
		semanticScore: semanticScore,
		keywordScore:  keywordScore,
		snippet:       snippet,
		explanation:   expl,
	}
}

// BlockID returns the block identifier.
func (r *Result) BlockID() string { return r.blockID }

// FinalScore returns the fusion-method-dependent final score.
func (r *Result) FinalScore() float64 { return r.finalScore }

// SemanticScore returns the cosine similarity component.
func (r *Result) SemanticScore() float64 { return r.semanticScore }

// KeywordScore returns the accumulated keyword boost component.
func (r *Result) KeywordScore() float64 { return r.keywordScore }

// Snippet returns the content snippet sourced from the semantic candidate.
func (r *Result) Snippet() string { return r.snippet }

// Explanation returns the score breakdown.
func (r *Result) Explanation() Explanation { return r.explanation }

// Filtered reports whether the result carries an exclusion flag.
func (r *Result) Filtered() bool { return r.explanation.Filtered }
