// Package block defines the knowledge block value object and its access
// metadata. A block is the unit of stored knowledge: text plus provenance.
package block

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tnedr/cognitive-memory-core/internal/domain"
)

// Metadata keys for embedded access tracking.
const (
	MetaAccessCount = "access_count"
	MetaLastAccess  = "last_access"
)

// Block is a knowledge block: identity, text, tags and open metadata.
// The content hash always reflects the current content.
type Block struct {
	id       string
	title    string
	content  string
	tags     []string
	infoType string
	created  time.Time
	updated  time.Time
	hash     string
	metadata map[string]string
}

// New creates a block. An empty id gets a generated one; tags are
// deduplicated (order-irrelevant set semantics); the content hash is
// computed from content.
func New(id, title, content string, tags []string, infoType string, metadata map[string]string) (*Block, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidParameter)
	}
	now := time.Now().UTC()
	if id == "" {
		id = GenerateID(now)
	}
	b := &Block{
		id:       id,
		title:    title,
		content:  content,
		tags:     dedupeTags(tags),
		infoType: infoType,
		created:  now,
		updated:  now,
		hash:     HashContent(content),
		metadata: map[string]string{},
	}
	for k, v := range metadata {
		b.metadata[k] = v
	}
	// Fresh blocks start unaccessed, last_access anchored to creation.
	if _, ok := b.metadata[MetaAccessCount]; !ok {
		b.metadata[MetaAccessCount] = "0"
	}
	if _, ok := b.metadata[MetaLastAccess]; !ok {
		b.metadata[MetaLastAccess] = now.Format(time.RFC3339Nano)
	}
	return b, nil
}

// Restore rehydrates a block from persisted state without touching
// timestamps or the stored hash.
func Restore(
	id, title, content string, tags []string, infoType string,
	created, updated time.Time, hash string, metadata map[string]string,
) *Block {
	if metadata == nil {
		metadata = map[string]string{}
	}
	if hash == "" {
		hash = HashContent(content)
	}
	return &Block{
		id:       id,
		title:    title,
		content:  content,
		tags:     dedupeTags(tags),
		infoType: infoType,
		created:  created,
		updated:  updated,
		hash:     hash,
		metadata: metadata,
	}
}

// GenerateID builds a timestamp-addressed block ID. A short random suffix
// keeps IDs unique within the same second.
func GenerateID(now time.Time) string {
	return fmt.Sprintf("KB-%s-%s", now.UTC().Format("20060102-150405"), uuid.NewString()[:8])
}

// HashContent returns the SHA-256 hex digest of content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ID returns the block identifier.
func (b *Block) ID() string { return b.id }

// Title returns the block title.
func (b *Block) Title() string { return b.title }

// Content returns the block body text.
func (b *Block) Content() string { return b.content }

// Tags returns a copy of the block tags, sorted.
func (b *Block) Tags() []string {
	if len(b.tags) == 0 {
		return nil
	}
	out := make([]string, len(b.tags))
	copy(out, b.tags)
	return out
}

// InformationType returns the optional classification tag.
func (b *Block) InformationType() string { return b.infoType }

// Created returns the creation time (UTC).
func (b *Block) Created() time.Time { return b.created }

// Updated returns the last modification time (UTC).
func (b *Block) Updated() time.Time { return b.updated }

// ContentHash returns the digest of the current content.
func (b *Block) ContentHash() string { return b.hash }

// Metadata returns a copy of the open metadata map.
func (b *Block) Metadata() map[string]string {
	out := make(map[string]string, len(b.metadata))
	for k, v := range b.metadata {
		out[k] = v
	}
	return out
}

// SetContent replaces the body text and recomputes the hash.
func (b *Block) SetContent(content string) {
	b.content = content
	b.hash = HashContent(content)
	b.updated = time.Now().UTC()
}

// AccessCount reads the access counter from metadata (0 when absent or
// malformed).
func (b *Block) AccessCount() int {
	n, err := strconv.Atoi(b.metadata[MetaAccessCount])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// LastAccess reads the last access time from metadata, falling back to the
// creation time when unset.
func (b *Block) LastAccess() time.Time {
	if raw, ok := b.metadata[MetaLastAccess]; ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t
		}
	}
	return b.created
}

// RecordAccess bumps the access counter and stamps last access. The mutation
// must still be persisted via the block store.
func (b *Block) RecordAccess(now time.Time) {
	now = now.UTC()
	b.metadata[MetaAccessCount] = strconv.Itoa(b.AccessCount() + 1)
	b.metadata[MetaLastAccess] = now.Format(time.RFC3339Nano)
	b.updated = now
}

func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
