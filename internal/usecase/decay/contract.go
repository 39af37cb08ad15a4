package decay

import (
	"context"

	"github.com/tnedr/cognitive-memory-core/internal/domain/block"
)

// BlockStore is the storage contract for access tracking and decay passes.
// Update must be idempotent under retry.
type BlockStore interface {
	ListAll(ctx context.Context) ([]string, error)
	Read(ctx context.Context, blockID string) (*block.Block, error)
	Update(ctx context.Context, b *block.Block) error
}

// Archiver moves a block out of the active corpus. Archival is reversible
// only through an explicit restore outside a decay pass.
type Archiver interface {
	Archive(ctx context.Context, blockID string) error
}

// IndexRemover drops an archived block from the vector index so it stops
// appearing as a semantic candidate.
type IndexRemover interface {
	Remove(blockID string)
}
