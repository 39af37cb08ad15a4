package reflection

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tnedr/cognitive-memory-core/internal/domain"
	"github.com/tnedr/cognitive-memory-core/internal/domain/block"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/candidate"
	domgraph "github.com/tnedr/cognitive-memory-core/internal/domain/graph"
)

type fakeBlocks struct {
	blocks map[string]*block.Block
}

func (f *fakeBlocks) Read(_ context.Context, blockID string) (*block.Block, error) {
	b, ok := f.blocks[blockID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

type fakeVector struct {
	hits     []candidate.Candidate
	err      error
	gotQuery string
	gotTopK  int
}

func (f *fakeVector) SimilaritySearch(_ context.Context, query string, topK int) ([]candidate.Candidate, error) {
	f.gotQuery = query
	f.gotTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type fakeGraph struct {
	relations []domgraph.Relation
	err       error
}

func (f *fakeGraph) FindRelated(_ context.Context, _ string, _ int) ([]domgraph.Relation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.relations, nil
}

func anchorBlock(t *testing.T) *block.Block {
	t.Helper()
	b, err := block.New("KB-anchor", "Anchor", "anchor content", nil, "", nil)
	if err != nil {
		t.Fatalf("block.New: %v", err)
	}
	return b
}

func hits(ids ...string) []candidate.Candidate {
	out := make([]candidate.Candidate, 0, len(ids))
	for i, id := range ids {
		out = append(out, candidate.New(id, 1.0-float64(i)*0.1, ""))
	}
	return out
}

func TestRelated_VectorNeighboursMinusSelf(t *testing.T) {
	vec := &fakeVector{hits: hits("KB-anchor", "KB-1", "KB-2")}
	svc := New(&fakeBlocks{blocks: map[string]*block.Block{"KB-anchor": anchorBlock(t)}}, vec, &fakeGraph{}, nil)

	got, err := svc.Related(context.Background(), "KB-anchor", 5)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	want := []string{"KB-1", "KB-2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if vec.gotQuery != "anchor content" {
		t.Errorf("similarity query must be the anchor content, got %q", vec.gotQuery)
	}
	if vec.gotTopK != 6 {
		t.Errorf("topK must be limit+1 to absorb the self hit, got %d", vec.gotTopK)
	}
}

func TestRelated_GraphTargetsAppendedAfterVector(t *testing.T) {
	vec := &fakeVector{hits: hits("KB-1")}
	graph := &fakeGraph{relations: []domgraph.Relation{
		{SourceID: "KB-anchor", TargetID: "KB-g1", Type: "RELATES_TO"},
		{SourceID: "KB-g1", TargetID: "KB-g2", Type: "RELATES_TO"},
	}}
	svc := New(&fakeBlocks{blocks: map[string]*block.Block{"KB-anchor": anchorBlock(t)}}, vec, graph, nil)

	got, err := svc.Related(context.Background(), "KB-anchor", 5)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	want := []string{"KB-1", "KB-g1", "KB-g2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRelated_DedupePrefersVectorOrder(t *testing.T) {
	vec := &fakeVector{hits: hits("KB-1", "KB-2")}
	graph := &fakeGraph{relations: []domgraph.Relation{
		{SourceID: "KB-anchor", TargetID: "KB-2", Type: "RELATES_TO"},
		{SourceID: "KB-anchor", TargetID: "KB-anchor", Type: "RELATES_TO"},
		{SourceID: "KB-anchor", TargetID: "KB-3", Type: "RELATES_TO"},
	}}
	svc := New(&fakeBlocks{blocks: map[string]*block.Block{"KB-anchor": anchorBlock(t)}}, vec, graph, nil)

	got, err := svc.Related(context.Background(), "KB-anchor", 5)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	want := []string{"KB-1", "KB-2", "KB-3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRelated_LimitTruncates(t *testing.T) {
	vec := &fakeVector{hits: hits("KB-1", "KB-2", "KB-3")}
	svc := New(&fakeBlocks{blocks: map[string]*block.Block{"KB-anchor": anchorBlock(t)}}, vec, &fakeGraph{}, nil)

	got, err := svc.Related(context.Background(), "KB-anchor", 2)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	want := []string{"KB-1", "KB-2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRelated_ZeroLimitUsesDefault(t *testing.T) {
	vec := &fakeVector{hits: hits()}
	svc := New(&fakeBlocks{blocks: map[string]*block.Block{"KB-anchor": anchorBlock(t)}}, vec, &fakeGraph{}, nil)

	if _, err := svc.Related(context.Background(), "KB-anchor", 0); err != nil {
		t.Fatalf("Related: %v", err)
	}
	if vec.gotTopK != DefaultLimit+1 {
		t.Errorf("topK: got %d, want %d", vec.gotTopK, DefaultLimit+1)
	}
}

func TestRelated_MissingAnchor(t *testing.T) {
	svc := New(&fakeBlocks{blocks: map[string]*block.Block{}}, &fakeVector{}, &fakeGraph{}, nil)

	_, err := svc.Related(context.Background(), "ghost", 5)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRelated_VectorFailurePropagates(t *testing.T) {
	vec := &fakeVector{err: domain.ErrBackendUnavailable}
	svc := New(&fakeBlocks{blocks: map[string]*block.Block{"KB-anchor": anchorBlock(t)}}, vec, &fakeGraph{}, nil)

	_, err := svc.Related(context.Background(), "KB-anchor", 5)
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestRelated_GraphFailurePropagates(t *testing.T) {
	graph := &fakeGraph{err: errors.New("boom")}
	svc := New(&fakeBlocks{blocks: map[string]*block.Block{"KB-anchor": anchorBlock(t)}}, &fakeVector{}, graph, nil)

	_, err := svc.Related(context.Background(), "KB-anchor", 5)
	if err == nil || !errors.Is(err, graph.err) {
		t.Fatalf("expected graph error, got %v", err)
	}
}
