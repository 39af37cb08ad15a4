package knowledge

import (
	"context"

	"github.com/tnedr/cognitive-memory-core/internal/domain/block"
)

// BlockStore is the persistence contract for block lifecycle operations.
type BlockStore interface {
	Create(ctx context.Context, b *block.Block) error
	Read(ctx context.Context, blockID string) (*block.Block, error)
	Update(ctx context.Context, b *block.Block) error
	ListAll(ctx context.Context) ([]string, error)
	Restore(ctx context.Context, blockID string) error
}

// VectorIndexer maintains block embeddings.
type VectorIndexer interface {
	Add(ctx context.Context, blockID, content string) error
	Clear()
}

// GraphStore maintains typed relationships between blocks.
type GraphStore interface {
	AddNode(ctx context.Context, blockID, label string, properties map[string]string) error
	AddRelationship(ctx context.Context, sourceID, targetID, relType string) error
}
