// Package graph defines the relationship types exchanged with the graph
// collaborator.
package graph

// Node is a labeled graph node keyed by block ID.
type Node struct {
	ID         string
	Label      string
	Properties map[string]string
}

// Relation is a typed edge between two blocks.
type Relation struct {
	SourceID string
	TargetID string
	Type     string
}
