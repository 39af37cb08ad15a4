package domain

import "context"

// EmbeddingResult is a vectorized text plus provider token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker is implemented by embedders that can verify provider
// availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
