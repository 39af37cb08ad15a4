package domain

import "errors"

var (
	// ErrNotFound signals a missing knowledge block.
	ErrNotFound = errors.New("block not found")
	// ErrAlreadyExists signals a duplicate block ID.
	ErrAlreadyExists = errors.New("block already exists")
	// ErrInvalidParameter signals a malformed caller-supplied parameter.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrBackendUnavailable signals a failed vector/graph/storage collaborator.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrUnranked signals a candidate without a semantic score. A missing
	// score is a collaborator bug, never a valid ranking signal.
	ErrUnranked = errors.New("candidate has no semantic score")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrDecayInProgress signals an attempted concurrent decay pass.
	ErrDecayInProgress = errors.New("decay pass already running")
)
