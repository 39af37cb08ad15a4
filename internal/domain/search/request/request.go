// Package request defines the validated retrieval request.
package request

import (
	"fmt"
	"strings"

	"github.com/tnedr/cognitive-memory-core/internal/domain"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/mode"
)

// Retrieval parameter limits and defaults.
const (
	MaxQueryLength = 4096
	DefaultTopK    = 5
	MaxTopK        = 500
	// DefaultRRFK is the Reciprocal Rank Fusion constant (Cormack et al.
	// 2009); larger values flatten rank differences.
	DefaultRRFK = 60
)

// Request is a validated retrieval query.
type Request struct {
	query      string
	topK       int
	boost      []string
	exclude    []string
	strategy   mode.Strategy
	filterMode mode.FilterMode
	rrfK       int
}

// New validates and normalizes retrieval parameters.
// Defaults: topK=5, strategy=hybrid, filterMode=strict, rrfK=60.
// Negative topK or rrfK are rejected rather than clamped.
func New(
	query string,
	topK int,
	boost, exclude []string,
	strategy mode.Strategy,
	filterMode mode.FilterMode,
	rrfK int,
) (Request, error) {
	if strings.TrimSpace(query) == "" {
		return Request{}, fmt.Errorf("%w: query is required", domain.ErrInvalidParameter)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidParameter, MaxQueryLength)
	}
	if topK < 0 {
		return Request{}, fmt.Errorf("%w: top_k must not be negative", domain.ErrInvalidParameter)
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if strategy == "" {
		strategy = mode.Hybrid
	}
	if !strategy.IsValid() {
		return Request{}, fmt.Errorf("%w: invalid strategy %q", domain.ErrInvalidParameter, strategy)
	}
	if filterMode == "" {
		filterMode = mode.Strict
	}
	if !filterMode.IsValid() {
		return Request{}, fmt.Errorf("%w: invalid filter mode %q", domain.ErrInvalidParameter, filterMode)
	}
	if rrfK < 0 {
		return Request{}, fmt.Errorf("%w: rrf_k must not be negative", domain.ErrInvalidParameter)
	}
	if rrfK == 0 {
		rrfK = DefaultRRFK
	}
	return Request{
		query:      query,
		topK:       topK,
		boost:      lowercaseAll(boost),
		exclude:    lowercaseAll(exclude),
		strategy:   strategy,
		filterMode: filterMode,
		rrfK:       rrfK,
	}, nil
}

// Query returns the free-text query.
func (r *Request) Query() string { return r.query }

// TopK returns the number of results to return.
func (r *Request) TopK() int { return r.topK }

// Boost returns the lower-cased boost keywords.
func (r *Request) Boost() []string { return r.boost }

// Exclude returns the lower-cased exclude keywords.
func (r *Request) Exclude() []string { return r.exclude }

// Strategy returns the ranking strategy.
func (r *Request) Strategy() mode.Strategy { return r.strategy }

// FilterMode returns the exclusion filter mode.
func (r *Request) FilterMode() mode.FilterMode { return r.filterMode }

// RRFK returns the fusion constant.
func (r *Request) RRFK() int { return r.rrfK }

// PoolSize returns how many semantic candidates to request. Fusion and
// boosting need a pool larger than topK to re-rank correctly.
func (r *Request) PoolSize() int {
	switch {
	case r.strategy == mode.RRF:
		return 3 * r.topK
	case len(r.boost) > 0 || len(r.exclude) > 0:
		return 2 * r.topK
	default:
		return r.topK
	}
}

func lowercaseAll(kws []string) []string {
	if len(kws) == 0 {
		return nil
	}
	out := make([]string, 0, len(kws))
	for _, kw := range kws {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
