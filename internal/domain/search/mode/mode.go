// Package mode defines the retrieval strategy and exclusion filter mode.
package mode

// Strategy selects how signals are combined into a final ranking.
type Strategy string

// Strategy constants.
const (
	// Hybrid applies additive keyword boosts on top of the semantic score.
	Hybrid Strategy = "hybrid"
	// RRF fuses semantic and keyword rankings via Reciprocal Rank Fusion.
	// Boost keywords are ignored on this path; fusion fully determines order.
	RRF Strategy = "rrf"
)

// IsValid checks if the strategy is one of the supported values.
func (s Strategy) IsValid() bool {
	return s == Hybrid || s == RRF
}

// FilterMode controls what happens to results hit by an exclude keyword.
type FilterMode string

// Filter mode constants.
const (
	// Strict drops excluded results from the final set.
	Strict FilterMode = "strict"
	// Annotate keeps excluded results but flags them, for explain/audit use.
	Annotate FilterMode = "annotate"
)

// IsValid checks if the filter mode is one of the supported values.
func (m FilterMode) IsValid() bool {
	return m == Strict || m == Annotate
}
