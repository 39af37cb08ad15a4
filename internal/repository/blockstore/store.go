// Package blockstore persists knowledge blocks as markdown files with YAML
// frontmatter. Archived blocks move to an archive directory next to the
// active corpus and can be restored explicitly.
package blockstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tnedr/cognitive-memory-core/internal/domain"
	"github.com/tnedr/cognitive-memory-core/internal/domain/block"
)

const blockExt = ".md"

// Store is a file-backed block store.
type Store struct {
	basePath    string
	archivePath string

	// mu serializes file mutations; reads of distinct blocks stay
	// concurrent.
	mu sync.RWMutex
}

// New creates a store rooted at basePath, creating the directory tree as
// needed. Archived blocks live under basePath/archive.
func New(basePath string) (*Store, error) {
	archivePath := filepath.Join(basePath, "archive")
	if err := os.MkdirAll(archivePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dirs: %w", err)
	}
	return &Store{basePath: basePath, archivePath: archivePath}, nil
}

// Create writes a new block file. Fails with ErrAlreadyExists when the ID is
// taken.
func (s *Store) Create(_ context.Context, b *block.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(b.ID())
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, b.ID())
	}
	return s.write(path, b)
}

// Read loads a block by ID. Returns ErrNotFound for unknown or archived
// blocks.
func (s *Store) Read(_ context.Context, blockID string) (*block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(blockID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, blockID)
		}
		return nil, fmt.Errorf("read block file: %w", err)
	}
	b, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode block %s: %w", blockID, err)
	}
	return b, nil
}

// Update rewrites an existing block file. Idempotent under retry.
func (s *Store) Update(_ context.Context, b *block.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(b.ID())
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, b.ID())
		}
		return fmt.Errorf("stat block file: %w", err)
	}
	return s.write(path, b)
}

// Delete removes a block file permanently.
func (s *Store) Delete(_ context.Context, blockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(blockID)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, blockID)
		}
		return fmt.Errorf("delete block file: %w", err)
	}
	return nil
}

// ListAll returns the IDs of all active (non-archived) blocks, sorted.
func (s *Store) ListAll(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("list storage dir: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), blockExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), blockExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Archive moves a block out of the active corpus into the archive
// directory.
func (s *Store) Archive(_ context.Context, blockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.path(blockID)
	dst := filepath.Join(s.archivePath, blockID+blockExt)
	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, blockID)
		}
		return fmt.Errorf("archive block: %w", err)
	}
	return nil
}

// Restore moves an archived block back into the active corpus.
func (s *Store) Restore(_ context.Context, blockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := filepath.Join(s.archivePath, blockID+blockExt)
	dst := s.path(blockID)
	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, blockID)
		}
		return fmt.Errorf("restore block: %w", err)
	}
	return nil
}

func (s *Store) path(blockID string) string {
	return filepath.Join(s.basePath, blockID+blockExt)
}

// write lands the file via a temp-file rename so readers never observe a
// half-written block.
func (s *Store) write(path string, b *block.Block) error {
	data, err := encode(b)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write block file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit block file: %w", err)
	}
	return nil
}
