// Package candidate defines the raw semantic search hit produced by the
// vector collaborator.
package candidate

// Candidate is a single semantic search hit: block identity, cosine
// similarity in [-1, 1] and a content snippet. Immutable for the duration
// of one retrieval call.
type Candidate struct {
	blockID       string
	semanticScore float64
	snippet       string
}

// New creates a search candidate.
func New(blockID string, semanticScore float64, snippet string) Candidate {
	return Candidate{blockID: blockID, semanticScore: semanticScore, snippet: snippet}
}

// BlockID returns the block identifier.
func (c *Candidate) BlockID() string { return c.blockID }

// SemanticScore returns the cosine similarity produced by the vector search.
func (c *Candidate) SemanticScore() float64 { return c.semanticScore }

// Snippet returns the content snippet carried with the hit.
func (c *Candidate) Snippet() string { return c.snippet }
