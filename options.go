package cmemory

import (
	"go.uber.org/zap"

	compressuc "github.com/tnedr/cognitive-memory-core/internal/usecase/compress"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	knowledgePath string
	embedder      Embedder
	counter       compressuc.TokenCounter
	logger        *zap.Logger
	skipReindex   bool
}

// WithKnowledgePath sets the directory holding the markdown block corpus.
// Defaults to "knowledge".
func WithKnowledgePath(path string) Option {
	return func(c *clientConfig) {
		c.knowledgePath = path
	}
}

// WithEmbedder sets the embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTokenCounter overrides the tiktoken-backed token counter used for
// context budgets.
func WithTokenCounter(tc compressuc.TokenCounter) Option {
	return func(c *clientConfig) {
		c.counter = tc
	}
}

// WithoutInitialReindex skips the corpus indexing pass in New. Call
// Client.Reindex before searching.
func WithoutInitialReindex() Option {
	return func(c *clientConfig) {
		c.skipReindex = true
	}
}
