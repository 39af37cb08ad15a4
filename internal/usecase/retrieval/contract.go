package retrieval

import (
	"context"

	"github.com/tnedr/cognitive-memory-core/internal/domain/search/candidate"
)

// BlockView exposes the read-only text the keyword ranker and hybrid scorer
// need from a block.
type BlockView interface {
	ID() string
	Title() string
	Content() string
}

// VectorSearcher runs semantic similarity search over the corpus.
// Candidates must come back sorted by descending semantic score; fewer than
// topK may be returned when the corpus is smaller.
type VectorSearcher interface {
	SimilaritySearch(ctx context.Context, query string, topK int) ([]candidate.Candidate, error)
}

// BlockReader fetches block text for keyword scoring.
type BlockReader interface {
	Read(ctx context.Context, blockID string) (BlockView, error)
}

// AccessRecorder persists the access side effect for a surfaced block.
type AccessRecorder interface {
	RecordAccess(ctx context.Context, blockID string) error
}
