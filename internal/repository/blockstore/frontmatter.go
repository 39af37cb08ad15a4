package blockstore

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tnedr/cognitive-memory-core/internal/domain/block"
)

const fence = "---"

// frontmatter is the YAML header persisted ahead of the block body.
type frontmatter struct {
	ID              string            `yaml:"id"`
	Title           string            `yaml:"title"`
	Tags            []string          `yaml:"tags,omitempty"`
	Created         time.Time         `yaml:"created"`
	Updated         time.Time         `yaml:"updated"`
	ContentHash     string            `yaml:"content_hash"`
	InformationType string            `yaml:"information_type,omitempty"`
	Metadata        map[string]string `yaml:"metadata,omitempty"`
}

// encode renders a block as a markdown document with YAML frontmatter.
func encode(b *block.Block) ([]byte, error) {
	fm := frontmatter{
		ID:              b.ID(),
		Title:           b.Title(),
		Tags:            b.Tags(),
		Created:         b.Created(),
		Updated:         b.Updated(),
		ContentHash:     b.ContentHash(),
		InformationType: b.InformationType(),
		Metadata:        b.Metadata(),
	}
	head, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(fence + "\n")
	sb.Write(head)
	sb.WriteString(fence + "\n")
	sb.WriteString(b.Content())
	return []byte(sb.String()), nil
}

// decode parses a markdown document with YAML frontmatter back into a block.
func decode(data []byte) (*block.Block, error) {
	text := string(data)
	if !strings.HasPrefix(text, fence+"\n") {
		return nil, fmt.Errorf("missing frontmatter fence")
	}

	rest := text[len(fence)+1:]
	end := strings.Index(rest, "\n"+fence)
	if end < 0 {
		return nil, fmt.Errorf("unterminated frontmatter")
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if fm.ID == "" {
		return nil, fmt.Errorf("frontmatter missing id")
	}

	body := rest[end+len(fence)+1:]
	body = strings.TrimPrefix(body, "\n")

	return block.Restore(
		fm.ID, fm.Title, body, fm.Tags, fm.InformationType,
		fm.Created, fm.Updated, fm.ContentHash, fm.Metadata,
	), nil
}
