// Package reflection discovers blocks related to a given block by combining
// vector-space neighbours with graph relationships. It layers on top of the
// retrieval core and is not part of the retrieval path itself.
package reflection

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tnedr/cognitive-memory-core/internal/domain/block"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/candidate"
	domgraph "github.com/tnedr/cognitive-memory-core/internal/domain/graph"
)

// Default bounds for related-block discovery.
const (
	DefaultLimit    = 5
	defaultMaxDepth = 2
)

// BlockReader fetches the anchor block.
type BlockReader interface {
	Read(ctx context.Context, blockID string) (*block.Block, error)
}

// VectorSearcher finds semantic neighbours.
type VectorSearcher interface {
	SimilaritySearch(ctx context.Context, query string, topK int) ([]candidate.Candidate, error)
}

// GraphFinder walks existing relationships around a block.
type GraphFinder interface {
	FindRelated(ctx context.Context, blockID string, maxDepth int) ([]domgraph.Relation, error)
}

// Service discovers related blocks.
type Service struct {
	blocks BlockReader
	vector VectorSearcher
	graph  GraphFinder
	logger *zap.Logger
}

// New creates a reflection service.
func New(blocks BlockReader, vector VectorSearcher, graph GraphFinder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{blocks: blocks, vector: vector, graph: graph, logger: logger}
}

// Related returns up to limit block IDs related to blockID: vector-space
// neighbours first (self removed), then graph-connected blocks, deduplicated
// in that priority order.
func (s *Service) Related(ctx context.Context, blockID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	b, err := s.blocks.Read(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("read block: %w", err)
	}

	// One extra neighbour covers the block matching itself.
	cands, err := s.vector.SimilaritySearch(ctx, b.Content(), limit+1)
	if err != nil {
		return nil, fmt.Errorf("vector neighbours: %w", err)
	}

	seen := map[string]struct{}{blockID: {}}
	related := make([]string, 0, limit)
	for i := range cands {
		id := cands[i].BlockID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		related = append(related, id)
	}
	vectorCount := len(related)

	relations, err := s.graph.FindRelated(ctx, blockID, defaultMaxDepth)
	if err != nil {
		return nil, fmt.Errorf("graph neighbours: %w", err)
	}
	for _, rel := range relations {
		if _, ok := seen[rel.TargetID]; ok {
			continue
		}
		seen[rel.TargetID] = struct{}{}
		related = append(related, rel.TargetID)
	}

	if len(related) > limit {
		related = related[:limit]
	}

	s.logger.Info("reflected on block",
		zap.String("block_id", blockID),
		zap.Int("related", len(related)),
		zap.Int("vector", vectorCount),
		zap.Int("graph", len(relations)),
	)
	return related, nil
}
