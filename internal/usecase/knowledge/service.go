// Package knowledge implements the block lifecycle: recording raw text as
// blocks, encoding them into the vector index and linking them in the graph.
package knowledge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tnedr/cognitive-memory-core/internal/domain/block"
)

// nodeLabel is the graph label for knowledge blocks.
const nodeLabel = "KnowledgeBlock"

// Meta carries the caller-supplied fields for a new block. An empty ID gets
// a generated timestamp-addressed one.
type Meta struct {
	ID              string
	Title           string
	Tags            []string
	InformationType string
	Extra           map[string]string
}

// Service handles block creation, encoding and linking.
type Service struct {
	store  BlockStore
	index  VectorIndexer
	graph  GraphStore
	logger *zap.Logger
}

// New creates a knowledge service.
func New(store BlockStore, index VectorIndexer, graph GraphStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, index: index, graph: graph, logger: logger}
}

// Record creates a block from raw text and encodes it. Returns the block ID.
func (s *Service) Record(ctx context.Context, rawText string, meta Meta) (string, error) {
	b, err := block.New(meta.ID, meta.Title, rawText, meta.Tags, meta.InformationType, meta.Extra)
	if err != nil {
		return "", err
	}

	if err := s.store.Create(ctx, b); err != nil {
		return "", fmt.Errorf("create block: %w", err)
	}
	s.logger.Info("recorded knowledge block", zap.String("block_id", b.ID()))

	if err := s.Encode(ctx, b.ID()); err != nil {
		return "", err
	}
	return b.ID(), nil
}

// Encode (re)indexes a block's content into the vector index.
func (s *Service) Encode(ctx context.Context, blockID string) error {
	b, err := s.store.Read(ctx, blockID)
	if err != nil {
		return fmt.Errorf("read block: %w", err)
	}
	if err := s.index.Add(ctx, b.ID(), b.Content()); err != nil {
		return fmt.Errorf("index block %s: %w", b.ID(), err)
	}
	s.logger.Info("encoded knowledge block", zap.String("block_id", blockID))
	return nil
}

// Link creates a typed relationship between two existing blocks, upserting
// their graph nodes first.
func (s *Service) Link(ctx context.Context, srcID, dstID, relType string) error {
	src, err := s.store.Read(ctx, srcID)
	if err != nil {
		return fmt.Errorf("read source block: %w", err)
	}
	dst, err := s.store.Read(ctx, dstID)
	if err != nil {
		return fmt.Errorf("read target block: %w", err)
	}

	if err := s.graph.AddNode(ctx, src.ID(), nodeLabel, map[string]string{"title": src.Title()}); err != nil {
		return fmt.Errorf("add source node: %w", err)
	}
	if err := s.graph.AddNode(ctx, dst.ID(), nodeLabel, map[string]string{"title": dst.Title()}); err != nil {
		return fmt.Errorf("add target node: %w", err)
	}
	if err := s.graph.AddRelationship(ctx, srcID, dstID, relType); err != nil {
		return fmt.Errorf("add relationship: %w", err)
	}

	s.logger.Info("linked blocks",
		zap.String("source", srcID),
		zap.String("target", dstID),
		zap.String("rel", relType),
	)
	return nil
}

// Get returns a stored block by ID.
func (s *Service) Get(ctx context.Context, blockID string) (*block.Block, error) {
	return s.store.Read(ctx, blockID)
}

// Restore moves an archived block back into active storage and encodes it
// into the vector index again.
func (s *Service) Restore(ctx context.Context, blockID string) error {
	if err := s.store.Restore(ctx, blockID); err != nil {
		return fmt.Errorf("restore block: %w", err)
	}
	s.logger.Info("restored knowledge block", zap.String("block_id", blockID))
	return s.Encode(ctx, blockID)
}

// Reindex clears the vector index and rebuilds it from the full corpus.
// Returns the number of blocks reindexed. Blocks that vanish mid-rebuild
// are skipped.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	ids, err := s.store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list blocks: %w", err)
	}
	if len(ids) == 0 {
		s.logger.Info("no blocks to reindex")
		return 0, nil
	}

	s.index.Clear()

	count := 0
	for _, id := range ids {
		b, err := s.store.Read(ctx, id)
		if err != nil {
			s.logger.Warn("reindex: skipping block", zap.String("block_id", id), zap.Error(err))
			continue
		}
		if err := s.index.Add(ctx, b.ID(), b.Content()); err != nil {
			return count, fmt.Errorf("index block %s: %w", id, err)
		}
		count++
	}

	s.logger.Info("reindexed corpus", zap.Int("blocks", count))
	return count, nil
}
