package cmemory

import (
	"context"

	"github.com/tnedr/cognitive-memory-core/internal/domain/search/mode"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/request"
)

// Strategy selects how semantic and keyword signals are combined.
type Strategy string

// Available strategies.
const (
	StrategyHybrid Strategy = "hybrid"
	StrategyRRF    Strategy = "rrf"
)

// SearchResult is a scored retrieval hit.
type SearchResult struct {
	BlockID       string
	Score         float64
	SemanticScore float64
	KeywordScore  float64
	Snippet       string
	Filtered      bool
	ExcludedBy    []string
}

// SearchBuilder is a fluent builder for retrieval queries.
type SearchBuilder struct {
	client *Client

	query    string
	topK     int
	boost    []string
	exclude  []string
	strategy Strategy
	annotate bool
	rrfK     int
}

// Search starts a retrieval query.
func (c *Client) Search(query string) *SearchBuilder {
	return &SearchBuilder{client: c, query: query, strategy: StrategyHybrid}
}

// TopK sets the maximum number of results.
func (b *SearchBuilder) TopK(n int) *SearchBuilder {
	b.topK = n
	return b
}

// Boost adds keywords whose presence raises a block's score.
func (b *SearchBuilder) Boost(keywords ...string) *SearchBuilder {
	b.boost = append(b.boost, keywords...)
	return b
}

// Exclude adds keywords whose presence drops (or flags) a block.
func (b *SearchBuilder) Exclude(keywords ...string) *SearchBuilder {
	b.exclude = append(b.exclude, keywords...)
	return b
}

// Mode sets the ranking strategy.
func (b *SearchBuilder) Mode(s Strategy) *SearchBuilder {
	b.strategy = s
	return b
}

// Annotate keeps excluded results in the output, flagged instead of dropped.
func (b *SearchBuilder) Annotate() *SearchBuilder {
	b.annotate = true
	return b
}

// RRFK overrides the reciprocal rank fusion constant (default 60).
func (b *SearchBuilder) RRFK(k int) *SearchBuilder {
	b.rrfK = k
	return b
}

// Do executes the query.
func (b *SearchBuilder) Do(ctx context.Context) ([]SearchResult, error) {
	filterMode := mode.Strict
	if b.annotate {
		filterMode = mode.Annotate
	}

	req, err := request.New(
		b.query, b.topK, b.boost, b.exclude,
		mode.Strategy(b.strategy), filterMode, b.rrfK,
	)
	if err != nil {
		return nil, err
	}

	results, err := b.client.retrievalSvc.Retrieve(ctx, &req)
	if err != nil {
		return nil, err
	}

	out := make([]SearchResult, len(results))
	for i := range results {
		r := &results[i]
		expl := r.Explanation()
		out[i] = SearchResult{
			BlockID:       r.BlockID(),
			Score:         r.FinalScore(),
			SemanticScore: r.SemanticScore(),
			KeywordScore:  r.KeywordScore(),
			Snippet:       r.Snippet(),
			Filtered:      r.Filtered(),
			ExcludedBy:    expl.Excluded,
		}
	}
	return out, nil
}
