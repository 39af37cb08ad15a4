// Package cmemory is the embedded SDK for the cognitive memory engine. It
// wires the block store, vector index and knowledge graph without the HTTP
// layer, for use directly inside Go programs.
package cmemory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tnedr/cognitive-memory-core/internal/domain"
	domdecay "github.com/tnedr/cognitive-memory-core/internal/domain/decay"
	"github.com/tnedr/cognitive-memory-core/internal/repository/blockstore"
	"github.com/tnedr/cognitive-memory-core/internal/repository/graphmem"
	"github.com/tnedr/cognitive-memory-core/internal/repository/vectorindex"
	compressuc "github.com/tnedr/cognitive-memory-core/internal/usecase/compress"
	decayuc "github.com/tnedr/cognitive-memory-core/internal/usecase/decay"
	knowledgeuc "github.com/tnedr/cognitive-memory-core/internal/usecase/knowledge"
	reflectionuc "github.com/tnedr/cognitive-memory-core/internal/usecase/reflection"
	retrievaluc "github.com/tnedr/cognitive-memory-core/internal/usecase/retrieval"
)

// EmbeddingResult is the public embedding output.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder turns text into a vector. Implementations wrap whatever provider
// the host application uses.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// Client is the cmemory SDK entry point.
type Client struct {
	store        *blockstore.Store
	index        *vectorindex.Index
	knowledgeSvc *knowledgeuc.Service
	retrievalSvc *retrievaluc.Service
	reflectSvc   *reflectionuc.Service
	decaySvc     *decayuc.Service
	compressSvc  *compressuc.Service
}

// New creates a cmemory Client backed by a directory of markdown blocks.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		knowledgePath: "knowledge",
		logger:        zap.NewNop(),
	}
	for _, o := range opts {
		o(cfg)
	}

	if cfg.embedder == nil {
		return nil, errors.New("cmemory: embedder required (use WithEmbedder)")
	}

	store, err := blockstore.New(cfg.knowledgePath)
	if err != nil {
		return nil, fmt.Errorf("cmemory: open block store: %w", err)
	}

	index := vectorindex.New(&embedderAdapter{inner: cfg.embedder})
	graph := graphmem.New()

	knowledgeSvc := knowledgeuc.New(store, index, graph, cfg.logger)
	decaySvc := decayuc.New(store, store, index, cfg.logger)
	retrievalSvc := retrievaluc.New(index, blockReader{store: store}, decaySvc, cfg.logger)
	reflectSvc := reflectionuc.New(store, index, graph, cfg.logger)
	compressSvc := compressuc.New(retrievalSvc, store, cfg.counter, cfg.logger)

	c := &Client{
		store:        store,
		index:        index,
		knowledgeSvc: knowledgeSvc,
		retrievalSvc: retrievalSvc,
		reflectSvc:   reflectSvc,
		decaySvc:     decaySvc,
		compressSvc:  compressSvc,
	}

	if !cfg.skipReindex {
		if _, err := knowledgeSvc.Reindex(context.Background()); err != nil {
			return nil, fmt.Errorf("cmemory: index corpus: %w", err)
		}
	}
	return c, nil
}

// Block is the public view of a stored knowledge block.
type Block struct {
	ID              string
	Title           string
	Content         string
	Tags            []string
	InformationType string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ContentHash     string
	AccessCount     int
	LastAccess      time.Time
	Metadata        map[string]string
}

// BlockMeta carries the caller-supplied fields for a new block.
type BlockMeta struct {
	ID              string
	Title           string
	Tags            []string
	InformationType string
	Metadata        map[string]string
}

// Record stores raw text as a new block and indexes it. Returns the block ID.
func (c *Client) Record(ctx context.Context, text string, meta BlockMeta) (string, error) {
	return c.knowledgeSvc.Record(ctx, text, knowledgeuc.Meta{
		ID:              meta.ID,
		Title:           meta.Title,
		Tags:            meta.Tags,
		InformationType: meta.InformationType,
		Extra:           meta.Metadata,
	})
}

// Get returns a block by ID.
func (c *Client) Get(ctx context.Context, blockID string) (Block, error) {
	b, err := c.knowledgeSvc.Get(ctx, blockID)
	if err != nil {
		return Block{}, err
	}
	return Block{
		ID:              b.ID(),
		Title:           b.Title(),
		Content:         b.Content(),
		Tags:            b.Tags(),
		InformationType: b.InformationType(),
		CreatedAt:       b.Created(),
		UpdatedAt:       b.Updated(),
		ContentHash:     b.ContentHash(),
		AccessCount:     b.AccessCount(),
		LastAccess:      b.LastAccess(),
		Metadata:        b.Metadata(),
	}, nil
}

// Link creates a typed relationship between two blocks.
func (c *Client) Link(ctx context.Context, sourceID, targetID, relType string) error {
	return c.knowledgeSvc.Link(ctx, sourceID, targetID, relType)
}

// Related returns up to limit block IDs related to blockID, combining
// vector-space neighbours and graph links.
func (c *Client) Related(ctx context.Context, blockID string, limit int) ([]string, error) {
	return c.reflectSvc.Related(ctx, blockID, limit)
}

// Restore moves an archived block back into the active corpus.
func (c *Client) Restore(ctx context.Context, blockID string) error {
	return c.knowledgeSvc.Restore(ctx, blockID)
}

// Reindex rebuilds the vector index from disk. Returns the block count.
func (c *Client) Reindex(ctx context.Context) (int, error) {
	return c.knowledgeSvc.Reindex(ctx)
}

// ArchivedBlock names a block archived by a decay pass and why.
type ArchivedBlock struct {
	BlockID string
	Reason  string
}

// Decay runs one archival pass with the given policy and returns what was
// archived. Concurrent passes are rejected.
func (c *Client) Decay(ctx context.Context, policy DecayPolicy) ([]ArchivedBlock, error) {
	kind := domdecay.Kind(policy.Kind)
	if policy.Kind == "" {
		kind = domdecay.Time
	}
	days := domdecay.DefaultDaysThreshold
	if policy.DaysThreshold != nil {
		days = *policy.DaysThreshold
	}
	usage := domdecay.DefaultUsageThreshold
	if policy.UsageThreshold != nil {
		usage = *policy.UsageThreshold
	}

	pol, err := domdecay.New(kind, days, usage)
	if err != nil {
		return nil, err
	}

	decisions, err := c.decaySvc.Decay(ctx, pol)
	if err != nil {
		return nil, err
	}

	out := make([]ArchivedBlock, len(decisions))
	for i, d := range decisions {
		out[i] = ArchivedBlock{BlockID: d.BlockID, Reason: string(d.Reason)}
	}
	return out, nil
}

// DecayPolicy selects and parameterizes a decay rule. Nil thresholds take
// the engine defaults (180 days, 0.01 usage share); an explicit zero is a
// real threshold, not a request for the default.
type DecayPolicy struct {
	Kind           string // "time", "usage", "both", "none"
	DaysThreshold  *int
	UsageThreshold *float64
}

// Context retrieves the blocks most relevant to goal and packs them into a
// single string within the token budget.
func (c *Client) Context(ctx context.Context, goal string, maxTokens int) (string, error) {
	return c.compressSvc.MaterializeContext(ctx, goal, maxTokens)
}

// Compress concatenates clipped summaries of the named blocks within the
// token budget.
func (c *Client) Compress(ctx context.Context, blockIDs []string, maxTokens int) (string, error) {
	return c.compressSvc.Compress(ctx, blockIDs, maxTokens)
}

// embedderAdapter wraps the public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// blockReader narrows the block store to the retrieval engine's view.
type blockReader struct {
	store *blockstore.Store
}

func (br blockReader) Read(ctx context.Context, blockID string) (retrievaluc.BlockView, error) {
	b, err := br.store.Read(ctx, blockID)
	if err != nil {
		return nil, err
	}
	return b, nil
}
