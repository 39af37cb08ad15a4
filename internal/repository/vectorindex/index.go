// Package vectorindex is an in-process cosine-similarity index over an
// embedding collaborator. It is the reference VectorSearcher implementation;
// durable vector backends stay behind the same interface.
package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/tnedr/cognitive-memory-core/internal/domain"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/candidate"
)

// snippetLen bounds the content preview carried on each candidate.
const snippetLen = 200

// entry is one indexed block.
type entry struct {
	id      string
	vector  []float32
	snippet string
}

// Index holds block embeddings in memory.
type Index struct {
	embedder domain.Embedder

	mu      sync.RWMutex
	entries map[string]entry
	order   []string // insertion order, keeps equal-score output deterministic
}

// New creates an empty index over the given embedder.
func New(embedder domain.Embedder) *Index {
	return &Index{embedder: embedder, entries: map[string]entry{}}
}

// Add embeds content and stores it under blockID, replacing any previous
// entry.
func (x *Index) Add(ctx context.Context, blockID, content string) error {
	res, err := x.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed content: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.entries[blockID]; !ok {
		x.order = append(x.order, blockID)
	}
	x.entries[blockID] = entry{id: blockID, vector: res.Embedding, snippet: snippet(content)}
	return nil
}

// Remove drops a block from the index. Unknown IDs are a no-op.
func (x *Index) Remove(blockID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.entries[blockID]; !ok {
		return
	}
	delete(x.entries, blockID)
	for i, id := range x.order {
		if id == blockID {
			x.order = append(x.order[:i], x.order[i+1:]...)
			break
		}
	}
}

// Clear empties the index.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = map[string]entry{}
	x.order = nil
}

// Len returns the number of indexed blocks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// SimilaritySearch embeds the query and returns up to topK candidates
// sorted by descending cosine similarity. Returns fewer when the corpus is
// smaller.
func (x *Index) SimilaritySearch(ctx context.Context, query string, topK int) ([]candidate.Candidate, error) {
	if topK <= 0 {
		return nil, nil
	}

	res, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	scored := make([]candidate.Candidate, 0, len(x.entries))
	for _, id := range x.order {
		e := x.entries[id]
		score := cosineSimilarity(res.Embedding, e.vector)
		scored = append(scored, candidate.New(e.id, score, e.snippet))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].SemanticScore() > scored[j].SemanticScore()
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// cosineSimilarity returns the cosine of the angle between two vectors in
// [-1, 1]; zero for mismatched or zero-length vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

func snippet(content string) string {
	if len(content) <= snippetLen {
		return content
	}
	return content[:snippetLen]
}
