// Package compress builds token-budgeted text out of knowledge blocks:
// materialized context for a goal, and concatenative multi-block summaries.
package compress

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tnedr/cognitive-memory-core/internal/domain/block"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/mode"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/request"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/result"
)

// Budget defaults.
const (
	DefaultMaxTokens = 4096
	contextTopK      = 10
	summaryClip      = 200
)

// Retriever runs a retrieval query. Satisfied by the retrieval engine.
type Retriever interface {
	Retrieve(ctx context.Context, req *request.Request) ([]result.Result, error)
}

// BlockReader fetches full block text.
type BlockReader interface {
	Read(ctx context.Context, blockID string) (*block.Block, error)
}

// Service materializes context strings and compresses block sets.
type Service struct {
	retriever Retriever
	blocks    BlockReader
	counter   TokenCounter
	logger    *zap.Logger
}

// New creates a compress service. counter may be nil to use the default
// tiktoken-backed counter.
func New(retriever Retriever, blocks BlockReader, counter TokenCounter, logger *zap.Logger) *Service {
	if counter == nil {
		counter = NewTokenCounter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{retriever: retriever, blocks: blocks, counter: counter, logger: logger}
}

// MaterializeContext retrieves the blocks most relevant to goal and packs
// them into a single context string, stopping before the token budget is
// exceeded.
func (s *Service) MaterializeContext(ctx context.Context, goal string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	req, err := request.New(goal, contextTopK, nil, nil, mode.Hybrid, mode.Strict, 0)
	if err != nil {
		return "", err
	}
	results, err := s.retriever.Retrieve(ctx, &req)
	if err != nil {
		return "", fmt.Errorf("retrieve context blocks: %w", err)
	}

	var parts []string
	used := 0
	for i := range results {
		b, err := s.blocks.Read(ctx, results[i].BlockID())
		if err != nil {
			s.logger.Warn("materialize: skipping block",
				zap.String("block_id", results[i].BlockID()), zap.Error(err))
			continue
		}

		section := fmt.Sprintf("## %s\n\n%s\n", b.Title(), b.Content())
		cost := s.counter.Count(section)
		if used+cost > maxTokens {
			break
		}
		parts = append(parts, section)
		used += cost
	}

	s.logger.Info("materialized context",
		zap.Int("blocks", len(parts)),
		zap.Int("tokens", used),
	)
	return strings.Join(parts, "\n"), nil
}

// Compress builds a concatenative summary of the given blocks (title plus a
// clipped content preview) under the token budget. Missing blocks are
// skipped.
func (s *Service) Compress(ctx context.Context, blockIDs []string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var parts []string
	used := 0
	for _, id := range blockIDs {
		b, err := s.blocks.Read(ctx, id)
		if err != nil {
			s.logger.Warn("compress: skipping block", zap.String("block_id", id), zap.Error(err))
			continue
		}

		content := b.Content()
		if len(content) > summaryClip {
			content = content[:summaryClip] + "..."
		}
		section := fmt.Sprintf("**%s**: %s", b.Title(), content)
		cost := s.counter.Count(section)
		if used+cost > maxTokens {
			break
		}
		parts = append(parts, section)
		used += cost
	}

	summary := strings.Join(parts, "\n\n")
	s.logger.Info("compressed blocks",
		zap.Int("blocks", len(parts)),
		zap.Int("chars", len(summary)),
	)
	return summary, nil
}
