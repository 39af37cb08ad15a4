// Package retrieval implements the hybrid retrieval and ranking engine:
// semantic candidates from the vector collaborator, keyword ranking, rank
// fusion or additive boosting, exclusion filtering, top-K truncation and
// access recording.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/tnedr/cognitive-memory-core/internal/domain"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/candidate"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/mode"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/request"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/result"
)

// Service orchestrates one retrieval call. Scoring and fusion are pure over
// their inputs; the only side effect is access recording after selection.
type Service struct {
	vectors VectorSearcher
	blocks  BlockReader
	access  AccessRecorder
	logger  *zap.Logger
}

// New creates a retrieval engine.
func New(vectors VectorSearcher, blocks BlockReader, access AccessRecorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{vectors: vectors, blocks: blocks, access: access, logger: logger}
}

// pooled pairs a semantic candidate with its loaded block text.
type pooled struct {
	cand candidate.Candidate
	view BlockView
}

// Retrieve returns up to topK scored results for the query. Candidates whose
// block has vanished from storage are skipped rather than failing the query;
// collaborator failures propagate. Access recording failures are logged and
// skipped per block.
func (s *Service) Retrieve(ctx context.Context, req *request.Request) ([]result.Result, error) {
	cands, err := s.vectors.SimilaritySearch(ctx, req.Query(), req.PoolSize())
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	pool, err := s.loadPool(ctx, cands)
	if err != nil {
		return nil, err
	}

	var results []result.Result
	switch req.Strategy() {
	case mode.RRF:
		results = s.fuse(req, pool)
	default:
		results = s.boost(req, pool)
	}

	if len(results) > req.TopK() {
		results = results[:req.TopK()]
	}

	s.recordAccess(ctx, results)
	return results, nil
}

// loadPool resolves candidate block text, dropping candidates that are stale
// relative to storage. A candidate without a real semantic score is a hard
// error rather than a silent rank of zero.
func (s *Service) loadPool(ctx context.Context, cands []candidate.Candidate) ([]pooled, error) {
	pool := make([]pooled, 0, len(cands))
	for i := range cands {
		c := cands[i]
		if math.IsNaN(c.SemanticScore()) {
			return nil, fmt.Errorf("%w: block %s", domain.ErrUnranked, c.BlockID())
		}

		view, err := s.blocks.Read(ctx, c.BlockID())
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.Debug("skipping stale candidate", zap.String("block_id", c.BlockID()))
				continue
			}
			return nil, fmt.Errorf("read block %s: %w", c.BlockID(), err)
		}
		pool = append(pool, pooled{cand: c, view: view})
	}
	return pool, nil
}

// fuse runs the RRF path: keyword ranks over the live pool, then reciprocal
// rank fusion. Boost keywords are not applied on top of fusion.
func (s *Service) fuse(req *request.Request, pool []pooled) []result.Result {
	views := make([]BlockView, len(pool))
	live := make([]candidate.Candidate, len(pool))
	for i, p := range pool {
		views[i] = p.view
		live[i] = p.cand
	}
	ranks := keywordRank(req.Query(), views)
	return fuseRRF(live, ranks, req.RRFK())
}

// boost runs the additive path: per-candidate hybrid scoring, exclusion per
// filter mode, then a stable sort by final score (ties keep semantic order).
func (s *Service) boost(req *request.Request, pool []pooled) []result.Result {
	annotate := req.FilterMode() == mode.Annotate
	results := make([]result.Result, 0, len(pool))
	for i := range pool {
		res, excluded := hybridScore(&pool[i].cand, pool[i].view, req.Boost(), req.Exclude(), annotate)
		if excluded && !annotate {
			continue
		}
		results = append(results, res)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore() > results[j].FinalScore()
	})
	return results
}

// recordAccess invokes the access side effect for every surfaced block.
// Best-effort: concurrent retrievals may race on the counter, and a
// per-block failure (e.g. a concurrent delete) never fails the query.
func (s *Service) recordAccess(ctx context.Context, results []result.Result) {
	if s.access == nil {
		return
	}
	for i := range results {
		id := results[i].BlockID()
		if err := s.access.RecordAccess(ctx, id); err != nil {
			s.logger.Warn("record access failed",
				zap.String("block_id", id),
				zap.Error(err),
			)
		}
	}
}
