// Package graphmem is an in-memory graph store for block relationships,
// the reference implementation of the graph collaborator interface.
package graphmem

import (
	"context"
	"sync"

	domgraph "github.com/tnedr/cognitive-memory-core/internal/domain/graph"
)

// Store holds nodes and typed relationships in memory.
type Store struct {
	mu        sync.RWMutex
	nodes     map[string]domgraph.Node
	relations []domgraph.Relation
}

// New creates an empty graph store.
func New() *Store {
	return &Store{nodes: map[string]domgraph.Node{}}
}

// AddNode upserts a node keyed by block ID.
func (s *Store) AddNode(_ context.Context, blockID, label string, properties map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[blockID] = domgraph.Node{ID: blockID, Label: label, Properties: properties}
	return nil
}

// AddRelationship records a typed edge between two blocks.
func (s *Store) AddRelationship(_ context.Context, sourceID, targetID, relType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relations = append(s.relations, domgraph.Relation{
		SourceID: sourceID,
		TargetID: targetID,
		Type:     relType,
	})
	return nil
}

// FindRelated walks outgoing relationships from blockID up to maxDepth hops
// and returns the edges reached, breadth-first. Each edge appears once.
func (s *Store) FindRelated(_ context.Context, blockID string, maxDepth int) ([]domgraph.Relation, error) {
	if maxDepth <= 0 {
		maxDepth = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	outgoing := make(map[string][]domgraph.Relation, len(s.nodes))
	for _, rel := range s.relations {
		outgoing[rel.SourceID] = append(outgoing[rel.SourceID], rel)
	}

	var found []domgraph.Relation
	visited := map[string]struct{}{blockID: {}}
	frontier := []string{blockID}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, rel := range outgoing[id] {
				found = append(found, rel)
				if _, ok := visited[rel.TargetID]; ok {
					continue
				}
				visited[rel.TargetID] = struct{}{}
				next = append(next, rel.TargetID)
			}
		}
		frontier = next
	}
	return found, nil
}
